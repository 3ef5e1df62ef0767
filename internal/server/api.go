package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"wikicache/internal/store"
	"wikicache/internal/wiki"
	"wikicache/internal/wikipedia"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type fetchResponse struct {
	Status  wiki.Status `json:"status"`
	Message string      `json:"message"`
	ID      uint        `json:"id"`
	Title   string      `json:"title"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New(name + " must be a non-negative integer")
	}
	return n, nil
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", s.opts.PageSize)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = s.opts.PageSize
	}

	list, err := s.svc.Articles(r.Context(), store.ListOptions{Limit: limit, Offset: offset})
	if err != nil {
		s.internalError(w, r, "Failed to list articles", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	article, err := s.svc.Article(r.Context(), uint(id))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "article not found")
		return
	}
	if err != nil {
		s.internalError(w, r, "Failed to load article", err)
		return
	}
	writeJSON(w, http.StatusOK, article)
}

func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		title = r.PostFormValue("title")
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	res, err := s.svc.GetArticle(r.Context(), title, force)
	if res == nil {
		status, msg := fetchErrorStatus(err)
		if status == http.StatusInternalServerError {
			s.internalError(w, r, "Fetch failed", err)
			return
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, fetchResponse{
		Status:  res.Status,
		Message: fetchMessage(res.Status),
		ID:      res.Article.ID,
		Title:   res.Article.Title,
	})
}

// fetchErrorStatus maps a failed fetch with no article to serve.
func fetchErrorStatus(err error) (int, string) {
	var netErr *wikipedia.NetworkError
	switch {
	case errors.Is(err, wiki.ErrInvalidTitle), errors.Is(err, store.ErrEmptyTitle):
		return http.StatusBadRequest, "title is required"
	case errors.Is(err, wikipedia.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.As(err, &netErr):
		return http.StatusServiceUnavailable, "Wikipedia is unavailable, try again later"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func fetchMessage(status wiki.Status) string {
	switch status {
	case wiki.StatusCreated:
		return "Article fetched and stored"
	case wiki.StatusRefreshed:
		return "Article refreshed from Wikipedia"
	case wiki.StatusStale:
		return "Wikipedia is unavailable, serving cached copy"
	default:
		return "Article served from cache"
	}
}

// internalError logs the cause and hides it from the client.
func (s *Server) internalError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	s.logger.Error(msg, zap.String("request_id", requestID(r.Context())), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "internal error")
}
