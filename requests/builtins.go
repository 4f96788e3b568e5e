package requests

import (
	"net/http"

	"github.com/brettbedarf/sfm"
)

// Form field names shared with browser and CLI clients.
const (
	FieldFile = "file"      // path relative to the served root
	FieldName = "name"      // new directory name
	FieldData = "file_data" // multipart upload part
	FieldXSRF = "xsrf"
)

// RegisterBuiltins registers all built-in verbs by default
// or only the specific ones if verbs are provided
func RegisterBuiltins(reg *Registry, verbs ...sfm.Verb) {
	if len(verbs) == 0 {
		verbs = []sfm.Verb{sfm.VerbList, sfm.VerbStat, sfm.VerbDownload, sfm.VerbDelete, sfm.VerbMkdir, sfm.VerbUpload}
	}

	for _, v := range verbs {
		switch v {
		case sfm.VerbList:
			reg.Register(v, http.MethodGet, DecodeList)
		case sfm.VerbStat:
			reg.Register(v, http.MethodGet, DecodeStat)
		case sfm.VerbDownload:
			reg.Register(v, http.MethodGet, DecodeDownload)
		case sfm.VerbDelete:
			reg.Register(v, http.MethodPost, DecodeDelete)
		case sfm.VerbMkdir:
			reg.Register(v, http.MethodPost, DecodeMkdir)
		case sfm.VerbUpload:
			reg.Register(v, http.MethodPost, DecodeUpload)
		}
	}
}

// NewDefaultRegistry returns a registry with every built-in verb.
func NewDefaultRegistry() *Registry {
	reg := NewRegistry()
	RegisterBuiltins(reg)
	return reg
}
