package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog/log"

	"form-rag/internal/models"
)

// Engine is the request/response contract the HTTP layer calls into.
type Engine interface {
	IngestText(ctx context.Context, text, userID string, metadata map[string]string) (int, error)
	IngestFile(ctx context.Context, path, userID string) (int, error)
	Answer(ctx context.Context, question, userID, formContext string, threshold *float64) (*models.QueryResult, error)
	Clear(ctx context.Context, userID string) bool
}

type Server struct {
	engine Engine
}

func New(engine Engine) *Server {
	return &Server{engine: engine}
}

// Router wires the API surface. CORS is wide open because the primary
// client is a browser extension.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/upload_text", s.handleUploadText)
	r.Post("/upload_file", s.handleUploadFile)
	r.Post("/answer_question", s.handleAnswerQuestion)
	r.Post("/clear_data", s.handleClearData)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadTextRequest struct {
	Text     string            `json:"text"`
	UserID   string            `json:"user_id"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func (s *Server) handleUploadText(w http.ResponseWriter, r *http.Request) {
	var req uploadTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "No text provided")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "No user_id provided")
		return
	}

	chunks, err := s.engine.IngestText(r.Context(), req.Text, req.UserID, req.Metadata)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Text ingestion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"chunks_processed": chunks,
	})
}

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	userID := r.FormValue("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "No user_id provided")
		return
	}
	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Empty filename")
		return
	}

	// spool to a temp file keeping the extension, since the loader
	// dispatch keys on it
	tmp, err := os.CreateTemp("", "upload-*"+filepath.Ext(header.Filename))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := tmp.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	chunks, err := s.engine.IngestFile(r.Context(), tmp.Name(), userID)
	if errors.Is(err, models.ErrUnsupportedFormat) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("file", header.Filename).Msg("File ingestion failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "success",
		"chunks_processed": chunks,
	})
}

// ConfidenceThreshold is a pointer so a request omitting it falls back
// to the configured threshold while an explicit 0 is passed through.
type answerRequest struct {
	Question            string   `json:"question"`
	UserID              string   `json:"user_id"`
	FormContext         string   `json:"form_context,omitempty"`
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`
}

func (s *Server) handleAnswerQuestion(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "No question provided")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "No user_id provided")
		return
	}

	result, err := s.engine.Answer(r.Context(), req.Question, req.UserID, req.FormContext, req.ConfidenceThreshold)
	if err != nil {
		log.Error().Err(err).Str("user_id", req.UserID).Msg("Answering failed")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type clearRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "No user_id provided")
		return
	}

	if !s.engine.Clear(r.Context(), req.UserID) {
		writeError(w, http.StatusInternalServerError, "Failed to clear user data")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
