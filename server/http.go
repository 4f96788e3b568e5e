package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/brettbedarf/sfm"
	"github.com/brettbedarf/sfm/config"
	"github.com/brettbedarf/sfm/davfs"
	"github.com/brettbedarf/sfm/internal/util"
	"github.com/brettbedarf/sfm/requests"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// XSRFHeader may carry the anti-forgery token instead of the form field.
const XSRFHeader = "X-XSRF-Token"

// RequestIDHeader lets callers pick the request ID used in logs.
const RequestIDHeader = "X-Request-Id"

// Handler serves the JSON API over an [sfm.Operator].
type Handler struct {
	op     sfm.Operator
	cfg    *config.Config
	routes *requests.Registry
	logger util.Logger
}

// NewHandler returns the full HTTP surface: health check, JSON API and, when
// cfg.DavPrefix is set, WebDAV.
func NewHandler(op sfm.Operator, cfg *config.Config) http.Handler {
	h := &Handler{
		op:     op,
		cfg:    cfg,
		routes: requests.NewDefaultRegistry(),
		logger: util.GetLogger("HTTP"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/{do}", h.api)
	if cfg.DavPrefix != "" {
		r.PathPrefix(cfg.DavPrefix).Handler(davfs.NewHandler(op, cfg.DavPrefix))
	}
	return r
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

func (h *Handler) api(w http.ResponseWriter, r *http.Request) {
	token := h.ensureXSRF(w, r)

	route, err := h.routes.Route(mux.Vars(r)["do"])
	if err != nil {
		h.writeError(w, err)
		return
	}
	if r.Method != route.Method && !(route.Method == http.MethodGet && r.Method == http.MethodHead) {
		w.Header().Set("Allow", route.Method)
		h.writeStatus(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
		return
	}

	if route.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadSize)
		if err := h.parseForm(r); err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				h.writeStatus(w, http.StatusRequestEntityTooLarge, "too_large", "Request too large")
				return
			}
			h.logger.Debug().Err(err).Msg("Bad form")
			h.writeStatus(w, http.StatusBadRequest, "bad_request", "Bad request")
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}
		if !validXSRF(r, token) {
			h.writeError(w, sfm.Errorf(sfm.KindForbidden, nil, "XSRF Failure"))
			return
		}
	}

	req, err := route.Decode(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	req.ID = r.Header.Get(RequestIDHeader)
	if up, ok := req.Op.(sfm.UploadOp); ok {
		if c, ok := up.Data.(io.Closer); ok {
			defer c.Close()
		}
	}

	res, err := h.op.Dispatch(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	switch route.Verb {
	case sfm.VerbList:
		h.writeJSON(w, http.StatusOK, requests.NewListResponse(res.Entries))
	case sfm.VerbStat:
		h.writeJSON(w, http.StatusOK, requests.StatResponse{Success: true, Result: requests.NewEntryDTO(*res.Entry)})
	case sfm.VerbDownload:
		h.serveDownload(w, r, res.Download)
	default:
		h.writeJSON(w, http.StatusOK, requests.OKResponse{Success: true})
	}
}

// parseForm parses multipart bodies with the configured memory budget and
// plain forms otherwise.
func (h *Handler) parseForm(r *http.Request) error {
	err := r.ParseMultipartForm(h.cfg.UploadMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

func (h *Handler) serveDownload(w http.ResponseWriter, r *http.Request, dl *sfm.Download) {
	defer dl.Body.Close()
	w.Header().Set("Content-Type", dl.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": dl.Name}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, dl.Name, dl.ModTime, dl.Body)
}

// ensureXSRF returns the caller's anti-forgery token, issuing a cookie when
// there is none. A freshly issued token is not accepted on the same request.
func (h *Handler) ensureXSRF(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(h.cfg.XSRFCookie); err == nil && c.Value != "" {
		return c.Value
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.XSRFCookie,
		Value:    uuid.NewString(),
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return ""
}

func validXSRF(r *http.Request, token string) bool {
	if token == "" {
		return false
	}
	sent := r.PostFormValue(requests.FieldXSRF)
	if sent == "" {
		sent = r.Header.Get(XSRFHeader)
	}
	return subtle.ConstantTimeCompare([]byte(sent), []byte(token)) == 1
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	e := sfm.AsError(err)
	h.writeJSON(w, e.Code(), requests.NewErrorResponse(e))
}

// writeStatus reports transport level failures that have no core kind.
func (h *Handler) writeStatus(w http.ResponseWriter, status int, kind, msg string) {
	h.writeJSON(w, status, requests.ErrorResponse{Error: requests.ErrorDTO{Code: status, Kind: kind, Msg: msg}})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write response")
	}
}
