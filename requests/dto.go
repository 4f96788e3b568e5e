package requests

import "github.com/brettbedarf/sfm"

// EntryDTO is the JSON representation of [sfm.Entry]
type EntryDTO struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Size       int64  `json:"size"`
	Mtime      int64  `json:"mtime"` // unix seconds
	IsDir      bool   `json:"is_dir"`
	Readable   bool   `json:"readable"`
	Writable   bool   `json:"writable"`
	Executable bool   `json:"executable"`
	Deletable  bool   `json:"is_deleteable"`
}

// ListResponse is the body of a successful list.
type ListResponse struct {
	Success bool       `json:"success"`
	Results []EntryDTO `json:"results"`
}

// StatResponse is the body of a successful stat.
type StatResponse struct {
	Success bool     `json:"success"`
	Result  EntryDTO `json:"result"`
}

// OKResponse is the body of a successful mutation.
type OKResponse struct {
	Success bool `json:"success"`
}

// ErrorDTO is the JSON representation of [sfm.Error]. The wrapped cause is
// never serialized.
type ErrorDTO struct {
	Code int    `json:"code"`
	Kind string `json:"kind"`
	Msg  string `json:"msg"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error ErrorDTO `json:"error"`
}

// NewEntryDTO converts a core Entry.
func NewEntryDTO(e sfm.Entry) EntryDTO {
	return EntryDTO{
		Name:       e.Name,
		Path:       e.Path,
		Size:       e.Size,
		Mtime:      e.ModTime.Unix(),
		IsDir:      e.IsDir,
		Readable:   e.Readable,
		Writable:   e.Writable,
		Executable: e.Executable,
		Deletable:  e.Deletable,
	}
}

// NewListResponse converts a list result. Results is never null.
func NewListResponse(entries []sfm.Entry) ListResponse {
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, NewEntryDTO(e))
	}
	return ListResponse{Success: true, Results: dtos}
}

// NewErrorResponse converts a core Error.
func NewErrorResponse(e *sfm.Error) ErrorResponse {
	return ErrorResponse{Error: ErrorDTO{
		Code: e.Code(),
		Kind: string(e.Kind),
		Msg:  e.Msg(),
	}}
}
