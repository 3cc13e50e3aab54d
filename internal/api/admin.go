package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kalambet/recallbot/internal/flashcard"
	"github.com/kalambet/recallbot/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// CreateFlashcardRequest is the body of POST /flashcards.
type CreateFlashcardRequest struct {
	Key      string `json:"key" validate:"required,max=4096"`
	Value    string `json:"value" validate:"max=4096"`
	Remarks  string `json:"remarks" validate:"max=4096"`
	Priority *int   `json:"priority" validate:"omitempty,min=0,max=99"`
}

// StatsResponse is the body of GET /stats.
type StatsResponse struct {
	Count int `json:"count"`
}

type AdminDeps struct {
	Store  *storage.Store
	Token  string
	Logger *slog.Logger
}

var requestValidator = validator.New()

// NewAdminHandler returns the admin REST API. Everything except /health
// requires the bearer token.
func NewAdminHandler(deps AdminDeps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))
		r.Get("/stats", handleStats(deps))
		r.Get("/flashcards", handleListFlashcards(deps))
		r.Post("/flashcards", handleCreateFlashcard(deps))
		r.Get("/flashcards/export", handleExportFlashcards(deps))
		r.Get("/flashcards/{ref}", handleGetFlashcard(deps))
		r.Delete("/flashcards/{ref}", handleDeleteFlashcard(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleStats(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.FlashcardCount()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to count flashcards: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, StatsResponse{Count: n})
	}
}

func handleListFlashcards(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntParam(r, "limit", 20, 100)
		offset := parseIntParam(r, "offset", 0, 0)

		cards, err := deps.Store.ListFlashcards(limit, offset)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to list flashcards: %v", err)
			return
		}
		if cards == nil {
			cards = []flashcard.Flashcard{}
		}
		writeJSON(w, http.StatusOK, cards)
	}
}

func handleGetFlashcard(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := flashcard.Resolve(deps.Store, chi.URLParam(r, "ref"))
		if errors.Is(err, flashcard.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "flashcard not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to get flashcard: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, card)
	}
}

func handleCreateFlashcard(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req CreateFlashcardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		req.Key = strings.TrimSpace(req.Key)
		if err := requestValidator.Struct(req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "%s", validationMessage(err))
			return
		}

		card := flashcard.New(req.Key, req.Value, req.Remarks)
		if req.Priority != nil {
			card.SetPriority(*req.Priority)
		}
		err := deps.Store.InsertFlashcard(&card)
		if errors.Is(err, flashcard.ErrDuplicateKey) {
			httpError(w, http.StatusConflict, "conflict", "flashcard %q already exists", req.Key)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to insert flashcard: %v", err)
			return
		}

		deps.Logger.Info("flashcard added via admin api", "id", card.ID, "key", card.Key)
		writeJSON(w, http.StatusCreated, card)
	}
}

func handleDeleteFlashcard(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := flashcard.Resolve(deps.Store, chi.URLParam(r, "ref"))
		if err == nil {
			err = deps.Store.DeleteFlashcard(card)
		}
		if errors.Is(err, flashcard.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "flashcard not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to delete flashcard: %v", err)
			return
		}

		deps.Logger.Info("flashcard deleted via admin api", "id", card.ID, "key", card.Key)
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func handleExportFlashcards(deps AdminDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := deps.Store.ExportAll()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to export flashcards: %v", err)
			return
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="flashcards.csv"`)
		if err := flashcard.WriteCSV(w, cards); err != nil {
			deps.Logger.Error("writing csv export failed", "error", err)
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}
