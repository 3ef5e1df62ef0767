package server

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"wikicache/internal/model"
	"wikicache/internal/store"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string { return t.UTC().Format("Jan 02, 2006 15:04") },
}

type indexPage struct {
	Title    string
	Articles []model.ArticleSummary
	Recent   []string
	Flash    string
}

type viewPage struct {
	Title    string
	Article  *model.Article
	Content  template.HTML
	Modified string
	Flash    string
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, page string, data any) {
	var buf bytes.Buffer
	if err := s.pages[page].ExecuteTemplate(&buf, "layout", data); err != nil {
		s.logger.Error("Template error", zap.String("page", page), zap.String("request_id", requestID(r.Context())), zap.Error(err))
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	articles, err := s.svc.Articles(r.Context(), store.ListOptions{Limit: s.opts.PageSize})
	if err != nil {
		s.logger.Error("Failed to list articles", zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// the feed is optional; an unconfigured or unreachable redis just hides the panel
	recent, err := s.svc.Recent(r.Context(), 10)
	if err != nil {
		recent = nil
	}

	s.render(w, r, "index", indexPage{
		Title:    "Cached articles",
		Articles: articles,
		Recent:   recent,
		Flash:    s.flash.pop(r),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 0)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	article, err := s.svc.Article(r.Context(), uint(id))
	if errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		s.logger.Error("Failed to load article", zap.Uint64("id", id), zap.Error(err))
		http.Error(w, "Database error", http.StatusInternalServerError)
		return
	}

	// goldmark omits raw HTML unless built WithUnsafe
	var body bytes.Buffer
	if err := s.markdown.Convert([]byte(article.Content), &body); err != nil {
		s.logger.Error("Markdown rendering failed", zap.Uint("id", article.ID), zap.Error(err))
		http.Error(w, "Rendering error", http.StatusInternalServerError)
		return
	}

	s.render(w, r, "view", viewPage{
		Title:    article.Title,
		Article:  article,
		Content:  template.HTML(body.String()),
		Modified: article.ModifiedAt.UTC().Format("Jan 02, 2006 15:04"),
		Flash:    s.flash.pop(r),
	})
}

func (s *Server) handleFetchForm(w http.ResponseWriter, r *http.Request) {
	title := r.FormValue("title")
	force := r.FormValue("force") != ""

	res, err := s.svc.GetArticle(r.Context(), title, force)
	if res == nil {
		_, msg := fetchErrorStatus(err)
		if msg == "internal error" {
			s.logger.Error("Fetch failed", zap.String("title", title), zap.Error(err))
			msg = "Something went wrong, please try again"
		}
		s.flash.set(w, r, "Error: "+msg)
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	s.flash.set(w, r, fmt.Sprintf("%s: %s", fetchMessage(res.Status), res.Article.Title))
	http.Redirect(w, r, fmt.Sprintf("/view/%d", res.Article.ID), http.StatusSeeOther)
}
