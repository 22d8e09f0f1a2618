package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ayusman/stopsign/internal/store"
)

// MaxListLimit caps the limit query parameter.
const MaxListLimit = 500

// EpisodeHandler handles HTTP requests for episode resources.
type EpisodeHandler struct {
	store *store.Store
}

// NewEpisodeHandler creates a new EpisodeHandler with the given store.
func NewEpisodeHandler(s *store.Store) *EpisodeHandler {
	return &EpisodeHandler{store: s}
}

// ServeHTTP routes /api/episodes and /api/episodes/{id}.
func (h *EpisodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/episodes")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}

	id := path
	if id == "active" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.active(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type episodeResponse struct {
	ID           string  `json:"id"`
	ConfirmedAt  string  `json:"confirmed_at"`
	ResumedAt    string  `json:"resumed_at,omitempty"`
	DurationSec  float64 `json:"duration_seconds"`
	Active       bool    `json:"active"`
	Hits         int     `json:"hits"`
	SnapshotPath string  `json:"snapshot_path,omitempty"`
	SnapshotURL  string  `json:"snapshot_url,omitempty"`
}

type listEpisodesResponse struct {
	Episodes []episodeResponse `json:"episodes"`
	Total    int               `json:"total"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toResponse(e *store.Episode) episodeResponse {
	resp := episodeResponse{
		ID:           e.ID,
		ConfirmedAt:  e.ConfirmedAt.Format(timeLayout),
		DurationSec:  e.Duration().Seconds(),
		Active:       e.Active(),
		Hits:         e.Hits,
		SnapshotPath: e.SnapshotPath,
		SnapshotURL:  e.SnapshotURL,
	}
	if e.ResumedAt != nil {
		resp.ResumedAt = e.ResumedAt.Format(timeLayout)
	}
	return resp
}

// list handles GET /api/episodes?limit=N.
func (h *EpisodeHandler) list(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > MaxListLimit {
			n = MaxListLimit
		}
		limit = n
	}

	episodes, err := h.store.Episodes().List(limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to list episodes")
		return
	}

	total, err := h.store.Episodes().Count()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to count episodes")
		return
	}

	resp := listEpisodesResponse{
		Episodes: make([]episodeResponse, 0, len(episodes)),
		Total:    total,
	}
	for _, e := range episodes {
		resp.Episodes = append(resp.Episodes, toResponse(e))
	}

	WriteJSON(w, http.StatusOK, resp)
}

// get handles GET /api/episodes/{id}.
func (h *EpisodeHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	e, err := h.store.Episodes().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "episode not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get episode")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(e))
}

// active handles GET /api/episodes/active.
func (h *EpisodeHandler) active(w http.ResponseWriter, r *http.Request) {
	e, err := h.store.Episodes().Active()
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "no active episode")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to get active episode")
		return
	}

	WriteJSON(w, http.StatusOK, toResponse(e))
}

// delete handles DELETE /api/episodes/{id}.
func (h *EpisodeHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Episodes().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "episode not found")
			return
		}
		WriteError(w, http.StatusInternalServerError, "failed to delete episode")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
