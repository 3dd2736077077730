// Package server serves the rendered card container inside a host page.
package server

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/arcanaland/cardwatch/internal/poller"
	"github.com/arcanaland/cardwatch/internal/render"
)

// Controller is the part of the poll loop the server drives
type Controller interface {
	Renderer() *render.Renderer
	State() poller.State
	Refresh(ctx context.Context) error
}

// Options configures a Server
type Options struct {
	// ContainerID is the id of the rendered container element
	ContainerID string
	// Reload is how often the page pulls the container again. Zero disables it.
	Reload time.Duration
	Logger *zap.Logger
}

// Server holds the routes for the host page
type Server struct {
	controller Controller
	opts       Options
	logger     *zap.Logger
	page       *template.Template
}

func New(controller Controller, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		controller: controller,
		opts:       opts,
		logger:     logger,
		page:       template.Must(template.New("page").Parse(pageTemplate)),
	}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePage)
	r.Get("/cards", s.handleCards)
	r.Post("/refresh", s.handleRefresh)
	r.Get("/healthz", s.handleHealth)

	return r
}

// HTTPServer wraps the router in an http.Server listening on addr
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type pageData struct {
	Container   template.HTML
	ContainerID string
	ReloadMS    int64
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	// The container is serialized by the renderer, which escapes all card text
	var container bytes.Buffer
	if err := s.controller.Renderer().WriteHTML(&container); err != nil {
		s.internalError(w, err)
		return
	}

	var page bytes.Buffer
	data := pageData{
		Container:   template.HTML(container.String()),
		ContainerID: s.opts.ContainerID,
		ReloadMS:    s.opts.Reload.Milliseconds(),
	}
	if err := s.page.Execute(&page, data); err != nil {
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page.Bytes())
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	var container bytes.Buffer
	if err := s.controller.Renderer().WriteHTML(&container); err != nil {
		s.internalError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(container.Bytes())
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	err := s.controller.Refresh(r.Context())
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, poller.ErrCycleInFlight):
		http.Error(w, err.Error(), http.StatusConflict)
	case s.controller.State() != poller.StateReady:
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	state := s.controller.State()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if state != poller.StateReady {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_, _ = w.Write([]byte(state.String()))
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("Failed to write page", zap.Error(err))
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

const pageTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Cards</title>
<style>
.card { cursor: pointer; }
.card .card-back { display: none; }
.card.flipped .card-front { display: none; }
.card.flipped .card-back { display: block; }
</style>
</head>
<body>
{{.Container}}
{{if .ReloadMS}}<script>
(function () {
  var id = {{.ContainerID}};
  setInterval(function () {
    fetch("/cards", {cache: "no-store"})
      .then(function (resp) { return resp.ok ? resp.text() : Promise.reject(resp.status); })
      .then(function (html) {
        var current = document.getElementById(id);
        var next = document.createElement("div");
        next.innerHTML = html;
        if (!current || !next.firstElementChild) {
          return;
        }
        var flipped = [];
        current.querySelectorAll(".card").forEach(function (el, i) {
          if (el.classList.contains("flipped")) { flipped.push(i); }
        });
        var cards = next.firstElementChild.querySelectorAll(".card");
        flipped.forEach(function (i) {
          if (cards[i]) { cards[i].classList.add("flipped"); }
        });
        current.replaceWith(next.firstElementChild);
      })
      .catch(function () {});
  }, {{.ReloadMS}});
})();
</script>{{end}}
</body>
</html>
`
