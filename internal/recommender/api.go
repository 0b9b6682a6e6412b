package recommender

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/saaga0h/curator-platform/internal/catalog"
	"github.com/saaga0h/curator-platform/internal/personalization"
)

// API exposes the service over HTTP
type API struct {
	service *Service
	logger  *slog.Logger
}

// NewAPI creates the HTTP API
func NewAPI(service *Service, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{service: service, logger: logger}
}

// Handler returns the API routes
//
//	GET    /api/recommendations?user_id=&mood=&budget=&page=&q=&limit=&exclude_own=
//	GET    /api/profile?user_id=
//	DELETE /api/profile?user_id=
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/recommendations", a.handleRecommendations)
	mux.HandleFunc("/api/profile", a.handleProfile)
	return mux
}

type errorResponse struct {
	Error string `json:"error"`
}

// profileResponse is a profile with the size of the log it was built from.
// The count is omitted when the log cannot be counted.
type profileResponse struct {
	personalization.UserProfile
	InteractionCount *int `json:"interaction_count,omitempty"`
}

func (a *API) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	req := Request{
		UserID: q.Get("user_id"),
		Context: catalog.RequestContext{
			Mood:   q.Get("mood"),
			Budget: q.Get("budget"),
			Page:   q.Get("page"),
			Text:   q.Get("q"),
		},
	}

	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			a.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		req.Limit = limit
	}
	if v := q.Get("exclude_own"); v != "" {
		exclude, err := strconv.ParseBool(v)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, "exclude_own must be a boolean")
			return
		}
		if exclude {
			req.Context.ExcludeUser = req.UserID
		}
	}

	result, err := a.service.Recommend(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, req.UserID, err)
		return
	}

	a.writeJSON(w, http.StatusOK, result)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")

	switch r.Method {
	case http.MethodGet:
		profile, err := a.service.Profile(r.Context(), userID)
		if err != nil {
			a.writeServiceError(w, userID, err)
			return
		}

		resp := profileResponse{UserProfile: *profile}
		if count, err := a.service.InteractionCount(r.Context(), userID); err != nil {
			a.logger.Warn("Failed to count interactions", "user_id", userID, "error", err)
		} else {
			resp.InteractionCount = &count
		}
		a.writeJSON(w, http.StatusOK, resp)

	case http.MethodDelete:
		if userID == "" {
			a.writeError(w, http.StatusBadRequest, ErrMissingUser.Error())
			return
		}
		if err := a.service.Invalidate(r.Context(), userID); err != nil {
			a.writeServiceError(w, userID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, DELETE")
		a.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *API) writeServiceError(w http.ResponseWriter, userID string, err error) {
	switch {
	case errors.Is(err, ErrMissingUser):
		a.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrRateLimited):
		w.Header().Set("Retry-After", "60")
		a.writeError(w, http.StatusTooManyRequests, err.Error())
	default:
		a.logger.Error("Request failed", "user_id", userID, "error", err)
		a.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, message string) {
	a.writeJSON(w, status, errorResponse{Error: message})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to encode response", "error", err)
	}
}
