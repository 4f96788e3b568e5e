package requests

import (
	"net/http"

	"github.com/brettbedarf/sfm"
)

func DecodeList(r *http.Request) (*sfm.Request, error) {
	return sfm.NewRequest(r.FormValue(FieldFile), sfm.ListOp{}), nil
}

func DecodeStat(r *http.Request) (*sfm.Request, error) {
	return sfm.NewRequest(r.FormValue(FieldFile), sfm.StatOp{}), nil
}

func DecodeDownload(r *http.Request) (*sfm.Request, error) {
	return sfm.NewRequest(r.FormValue(FieldFile), sfm.DownloadOp{}), nil
}

func DecodeDelete(r *http.Request) (*sfm.Request, error) {
	return sfm.NewRequest(r.FormValue(FieldFile), sfm.DeleteOp{}), nil
}

func DecodeMkdir(r *http.Request) (*sfm.Request, error) {
	return sfm.NewRequest(r.FormValue(FieldFile), sfm.MkdirOp{Name: r.FormValue(FieldName)}), nil
}

// DecodeUpload takes the file name from the multipart header, falling back
// to the name field. A missing part yields an UploadOp without Data so the
// Operator reports MissingUpload. The caller closes Data when it is an
// io.Closer.
func DecodeUpload(r *http.Request) (*sfm.Request, error) {
	op := sfm.UploadOp{Name: r.FormValue(FieldName), Size: -1}
	f, hdr, err := r.FormFile(FieldData)
	if err == nil {
		op.Data = f
		op.Size = hdr.Size
		if hdr.Filename != "" {
			op.Name = hdr.Filename
		}
	}
	return sfm.NewRequest(r.FormValue(FieldFile), op), nil
}
