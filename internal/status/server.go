// Package status serves read-only JSON views of a running sweep.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"garnet-sweep/internal/logging"
	"garnet-sweep/internal/progress"
	"garnet-sweep/internal/sweep"
)

// Source supplies the data served. progress.Reporter implements it.
type Source interface {
	View() progress.View
	Rows() []sweep.Row
	Schema() sweep.Schema
}

// Server exposes progress and rows over HTTP.
type Server struct {
	src    Source
	router chi.Router
}

// NewServer builds the router.
func NewServer(src Source) *Server {
	s := &Server{src: src}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/progress", s.handleProgress)
		r.Get("/rows", s.handleRows)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr until ctx is done. The returned address is the
// bound one, useful with port 0.
func (s *Server) Start(ctx context.Context, addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", err
	}
	log := logging.FromContext(ctx)
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("status server stopped", "err", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("status server listening", "addr", ln.Addr().String())
	return ln.Addr().String(), nil
}

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	var body errorBody
	body.Error.Code = errCode
	body.Error.Message = msg
	writeJSON(w, code, body)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ProgressResponse is the body of GET /api/progress.
type ProgressResponse struct {
	Title     string         `json:"title"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Percent   float64        `json:"percent"`
	Counts    map[string]int `json:"counts"`
	Elapsed   float64        `json:"elapsed_seconds"`
	Done      bool           `json:"done"`
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	v := s.src.View()
	counts := make(map[string]int, len(v.Counts))
	for st, n := range v.Counts {
		counts[string(st)] = n
	}
	writeJSON(w, http.StatusOK, ProgressResponse{
		Title:     v.Title,
		Total:     v.Total,
		Completed: v.Completed,
		Percent:   v.Percent(),
		Counts:    counts,
		Elapsed:   v.Elapsed.Seconds(),
		Done:      v.Done,
	})
}

// RowResponse is one element of GET /api/rows. Undefined metrics are omitted.
type RowResponse struct {
	Seq      int                `json:"seq"`
	Identity map[string]string  `json:"identity"`
	Status   string             `json:"status"`
	Metrics  map[string]float64 `json:"metrics"`
	Reason   string             `json:"reason,omitempty"`
}

func (s *Server) handleRows(w http.ResponseWriter, r *http.Request) {
	var want []sweep.Status
	if q := r.URL.Query().Get("status"); q != "" {
		for _, part := range strings.Split(q, ",") {
			st, err := sweep.ParseStatus(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
				return
			}
			want = append(want, st)
		}
	}
	schema := s.src.Schema()
	out := []RowResponse{}
	for _, row := range s.src.Rows() {
		if len(want) > 0 && !containsStatus(want, row.Status) {
			continue
		}
		id := make(map[string]string, len(schema.Axes))
		for i, c := range schema.Axes {
			if i < len(row.Identity) {
				id[c.Name] = row.Identity[i]
			}
		}
		out = append(out, RowResponse{
			Seq:      row.Seq,
			Identity: id,
			Status:   string(row.Status),
			Metrics:  row.Metrics.Clone(),
			Reason:   row.Reason,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func containsStatus(list []sweep.Status, s sweep.Status) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
