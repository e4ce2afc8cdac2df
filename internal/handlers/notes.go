package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/notestash/notestash/internal/auth"
	apierr "github.com/notestash/notestash/internal/errors"
	"github.com/notestash/notestash/internal/httputil"
	"github.com/notestash/notestash/internal/metadata"
	"github.com/notestash/notestash/internal/notes"
)

// NotesHandler serves the note catalog endpoints.
type NotesHandler struct {
	notes         *notes.Service
	maxUploadSize int64
}

// NewNotesHandler creates a NotesHandler. maxUploadSize bounds the accepted
// multipart request body in bytes.
func NewNotesHandler(svc *notes.Service, maxUploadSize int64) *NotesHandler {
	return &NotesHandler{notes: svc, maxUploadSize: maxUploadSize}
}

type uploadResponse struct {
	Message string      `json:"message"`
	Note    *notes.Note `json:"note"`
}

// Upload handles POST /api/notes/upload. The request is multipart form data
// with the note fields plus a "file" part.
func (h *NotesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, r, apierr.ErrInvalidInput.WithMessage("Malformed multipart body"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, r, apierr.ErrMissingFile)
		return
	}
	defer file.Close()

	semester := 0
	if v := r.FormValue("semester"); v != "" {
		semester, err = strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apierr.ErrInvalidInput.WithMessage("Semester must be a number"))
			return
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	note, err := h.notes.Upload(r.Context(), notes.UploadInput{
		Department:  r.FormValue("department"),
		Semester:    semester,
		Subject:     r.FormValue("subject"),
		Tag:         r.FormValue("tag"),
		Filename:    header.Filename,
		ContentType: contentType,
		Content:     file,
		Size:        header.Size,
		UploadedBy:  claims.UserID,
	})
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, uploadResponse{Message: "Upload successful", Note: note})
}

// List handles GET /api/notes with optional subject and semester query
// parameters.
func (h *NotesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := metadata.NoteFilter{Subject: r.URL.Query().Get("subject")}
	if v := r.URL.Query().Get("semester"); v != "" {
		sem, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, r, apierr.ErrInvalidInput.WithMessage("Semester must be a number"))
			return
		}
		filter.Semester = sem
	}
	h.list(w, r, filter)
}

// ListBySubject handles GET /api/notes/subject/{subject}.
func (h *NotesHandler) ListBySubject(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, metadata.NoteFilter{Subject: chi.URLParam(r, "subject")})
}

// ListBySemester handles GET /api/notes/semester/{semester}.
func (h *NotesHandler) ListBySemester(w http.ResponseWriter, r *http.Request) {
	sem, err := strconv.Atoi(chi.URLParam(r, "semester"))
	if err != nil {
		httputil.WriteError(w, r, apierr.ErrInvalidInput.WithMessage("Semester must be a number"))
		return
	}
	h.list(w, r, metadata.NoteFilter{Semester: sem})
}

func (h *NotesHandler) list(w http.ResponseWriter, r *http.Request, filter metadata.NoteFilter) {
	list, err := h.notes.List(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, list)
}

// Get handles GET /api/notes/{id}.
func (h *NotesHandler) Get(w http.ResponseWriter, r *http.Request) {
	note, err := h.notes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, note)
}

// File handles GET /api/notes/file/{id} (and its view and public aliases),
// streaming the note's content with the content type and filename recorded
// in the catalog.
func (h *NotesHandler) File(w http.ResponseWriter, r *http.Request) {
	note, rc, size, err := h.notes.FetchContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", note.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline",
		map[string]string{"filename": note.Filename}))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; all that is left is to log the broken stream.
		slog.Error("Streaming note content failed", "note_id", note.ID, "error", err)
	}
}

// Delete handles DELETE /api/notes/{id}.
func (h *NotesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	if err := h.notes.Remove(r.Context(), chi.URLParam(r, "id"), claims.UserID); err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"message": "Note deleted successfully"})
}

type rateRequest struct {
	Stars int `json:"stars"`
}

type rateResponse struct {
	Message       string  `json:"message"`
	RatingCount   int     `json:"ratingCount"`
	RatingAverage float64 `json:"ratingAverage"`
}

// Rate handles POST /api/notes/{id}/rate.
func (h *NotesHandler) Rate(w http.ResponseWriter, r *http.Request) {
	claims := auth.ClaimsFromContext(r.Context())

	var req rateRequest
	if err := decodeJSON(r, &req); err != nil {
		httputil.WriteError(w, r, err)
		return
	}

	sum, err := h.notes.Rate(r.Context(), chi.URLParam(r, "id"), claims.UserID, req.Stars)
	if err != nil {
		httputil.WriteError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, rateResponse{
		Message:       fmt.Sprintf("Rated %d stars", req.Stars),
		RatingCount:   sum.Count,
		RatingAverage: sum.Average,
	})
}
