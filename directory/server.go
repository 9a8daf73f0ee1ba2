package directory

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fortressi/disburse"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Handler serves a Local directory over HTTP.
type Handler struct {
	Directory *Local
	Log       *zap.Logger
}

// NewRouter creates a router with the directory routes:
//
//	GET /v1/directories/{id}/recipients
//	PUT /v1/directories/{id}/recipients
func NewRouter(h *Handler) *chi.Mux {
	if h.Log == nil {
		h.Log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/v1/directories/{id}", func(r chi.Router) {
		r.Get("/recipients", h.GetRecipients)
		r.Put("/recipients", h.PutRecipients)
	})
	return r
}

// GetRecipients returns the list for a directory.
func (h *Handler) GetRecipients(w http.ResponseWriter, r *http.Request) {
	id := disburse.AccountID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	list, err := h.Directory.ListRecipients(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		h.Log.Error("listing recipients", zap.String("directory", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if list == nil {
		list = []disburse.AccountID{}
	}
	writeJSON(w, http.StatusOK, list)
}

// PutRecipients replaces the list for a directory.
func (h *Handler) PutRecipients(w http.ResponseWriter, r *http.Request) {
	id := disburse.AccountID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var list []disburse.AccountID
	if err := json.NewDecoder(r.Body).Decode(&list); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, a := range list {
		if err := a.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}

	if err := h.Directory.Mock(r.Context(), id, list); err != nil {
		h.Log.Error("storing recipients", zap.String("directory", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	h.Log.Info("recipients stored", zap.String("directory", id.String()), zap.Int("count", len(list)))
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
