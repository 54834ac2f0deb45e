package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ytget/stream-downloader/internal/controller"
	"github.com/ytget/stream-downloader/internal/model"
	"github.com/ytget/stream-downloader/internal/notify"
)

const (
	maxBodyBytes    = 1 << 20
	shutdownTimeout = 5 * time.Second
	readTimeout     = 10 * time.Second

	codeInvalidInput      = "INVALID_INPUT"
	codeNotFound          = "NOT_FOUND"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeStoreFailure      = "STORE_FAILURE"
	codeUnknownCommand    = "UNKNOWN_COMMAND"
	codeInternal          = "INTERNAL_ERROR"
)

// Server exposes the IPC command table and the event stream over HTTP
type Server struct {
	handlers map[string]controller.HandlerFunc
	hub      *notify.Hub
	log      *slog.Logger
}

func NewServer(log *slog.Logger, handlers map[string]controller.HandlerFunc, hub *notify.Hub) *Server {
	return &Server{
		handlers: handlers,
		hub:      hub,
		log:      log.With(slog.String("service", "http")),
	}
}

// Handler returns the routes wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /ipc/{command}", s.handleCommand)
	mux.HandleFunc("GET /events", s.handleEvents)

	return RequestID(Recovery(s.log)(Logging(s.log)(mux)))
}

// Run serves on addr until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("start listen", slog.String("addr", addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("cannot serve on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cannot shut down: %w", err)
	}
	return nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("command")
	handler, ok := s.handlers[name]
	if !ok {
		writeError(w, http.StatusNotFound, codeUnknownCommand, "unknown command: "+name)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidInput, "cannot read body")
		return
	}

	var params json.RawMessage
	if len(body) > 0 {
		params = body
	}

	result, err := handler(r.Context(), params)
	if err != nil {
		s.writeCommandError(w, r, name, err)
		return
	}

	writeJSON(w, http.StatusOK, resultResponse{Result: result})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.log.Error("streaming is not supported", slog.Any("error", err))
		return
	}

	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(msg.Payload)
			if err != nil {
				s.log.Error("cannot encode event", slog.String("event", msg.Event), slog.Any("error", err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Event, data); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeCommandError(w http.ResponseWriter, r *http.Request, name string, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, codeInvalidInput, err.Error())
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, model.ErrStoreFailure):
		s.log.Error("store failure", slog.String("command", name), slog.String("request_id", RequestIDFromContext(r.Context())), slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, codeStoreFailure, "record store unavailable")
	default:
		s.log.Error("command failed", slog.String("command", name), slog.String("request_id", RequestIDFromContext(r.Context())), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, msg string) {
	writeJSON(w, status, errorResponse{Error: errorInfo{Code: code, Message: msg}})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	_ = enc.Encode(payload)
}
