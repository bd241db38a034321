package handler

import (
	"embed"
	"errors"
	"html/template"
	"io"
	"log"
	"net/http"

	"github.com/collapsinghierarchy/rfidgate/service"
)

//go:embed templates/index.html
var templates embed.FS

var indexTmpl = template.Must(template.ParseFS(templates, "templates/index.html"))

// maxFormBytes caps a /register body; a uid, name and role fit well inside.
const maxFormBytes = 4 << 10

type Server struct {
	svc *service.Service
}

// New returns a ready Server instance.
func New(svc *service.Service) *Server { return &Server{svc: svc} }

func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTmpl.Execute(w, struct{ UID string }{s.svc.LastScanned()}); err != nil {
		log.Printf("render index: %v", err)
	}
}

func (s *Server) GetUID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, s.svc.LastScanned())
}

func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
	if err := r.ParseForm(); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			plain(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, err := s.svc.Register(r.Context(), r.PostForm.Get("uid"), r.PostForm.Get("name"), r.PostForm.Get("role"))
	switch {
	case err == nil:
		plain(w, http.StatusOK, "UID registered successfully!")
	case errors.Is(err, service.ErrMissingUID):
		plain(w, http.StatusBadRequest, "No UID scanned!")
	case errors.Is(err, service.ErrInvalidUID),
		errors.Is(err, service.ErrInvalidRole),
		errors.Is(err, service.ErrInvalidName):
		plain(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicateUID):
		plain(w, http.StatusOK, "UID already exists")
	default:
		plain(w, http.StatusInternalServerError, "Failed to save UID!")
	}
}

func plain(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	io.WriteString(w, msg)
}
