package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/photobooth/internal/model"
)

// SessionSource exposes the live booth counters.
type SessionSource interface {
	Session() model.BoothSession
	State() model.BoothState
}

type adminAPI struct {
	queue *EventQueue
	board *StatusBoard
	booth SessionSource
	log   zerolog.Logger
}

// NewAdminRouter serves the operator API. Mutating endpoints only queue input;
// the booth applies it on its next tick.
func NewAdminRouter(queue *EventQueue, board *StatusBoard, booth SessionSource, log zerolog.Logger) http.Handler {
	api := &adminAPI{queue: queue, board: board, booth: booth, log: log.With().Str("component", "admin").Logger()}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, api.requestLogger)

	r.Get("/healthz", api.health)
	r.Get("/status", api.status)

	r.Route("/paper", func(r chi.Router) {
		r.Post("/reload", api.enqueue(model.InputReloadPaper))
	})
	r.Route("/counter", func(r chi.Router) {
		r.Post("/reset", api.enqueue(model.InputResetCounter))
	})
	r.Post("/trigger", api.enqueue(model.InputTrigger))
	r.Post("/quit", api.enqueue(model.InputQuit))
	return r
}

func (a *adminAPI) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("took", time.Since(start)).
			Msg("Request")
	})
}

func (a *adminAPI) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	State          model.BoothState   `json:"state"`
	Session        model.BoothSession `json:"session"`
	PaperBudget    int                `json:"paperBudget"`
	PaperRemaining int                `json:"paperRemaining"`
	QueuedInput    int                `json:"queuedInput"`
	Board          StatusSnapshot     `json:"board"`
}

func (a *adminAPI) status(w http.ResponseWriter, _ *http.Request) {
	s := a.booth.Session()
	writeJSON(w, http.StatusOK, statusResponse{
		State:          a.booth.State(),
		Session:        s,
		PaperBudget:    s.PaperBudget(),
		PaperRemaining: s.PaperRemaining(),
		QueuedInput:    a.queue.Len(),
		Board:          a.board.Snapshot(),
	})
}

func (a *adminAPI) enqueue(kind model.InputKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.queue.Push(model.InputEvent{Kind: kind, Source: model.SourceRemote}) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "input queue full"})
			return
		}
		a.log.Info().Str("kind", string(kind)).Str("request_id", middleware.GetReqID(r.Context())).Msg("Operator input queued")
		writeJSON(w, http.StatusAccepted, map[string]string{"queued": string(kind)})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// AdminServer runs the admin router until its context ends.
type AdminServer struct {
	srv *http.Server
	log zerolog.Logger
}

func NewAdminServer(addr string, handler http.Handler, log zerolog.Logger) *AdminServer {
	return &AdminServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log.With().Str("component", "admin").Logger(),
	}
}

func (s *AdminServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.srv.Addr).Msg("Admin API listening")
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	}
}
