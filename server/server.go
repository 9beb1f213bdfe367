// Package server exposes a channel over HTTP.
//
// Routes:
//
//	GET  /          welcome message
//	POST /message   enqueue a user message {message, conversationId, agent?}
//	GET  /history   conversation ledger (?conversation_id=) or the full ledger
//	GET  /healthz   liveness
//	GET  /metrics   Prometheus metrics (404 when metrics are disabled)
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hupe1980/assistant/channel"
	"github.com/hupe1980/assistant/core"
	"github.com/hupe1980/assistant/logging"
	"github.com/hupe1980/assistant/metrics"
)

const shutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	Address string
	Logger  logging.Logger
	Metrics *metrics.Metrics
}

// Server serves one channel over HTTP.
type Server struct {
	name    string
	channel *channel.Channel
	opts    Options
	logger  logging.Logger
	router  chi.Router
}

// New creates a Server for ch. name is the assistant name shown on the
// welcome route.
func New(name string, ch *channel.Channel, optFns ...func(o *Options)) *Server {
	opts := Options{Address: ":8080"}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &Server{name: name, channel: ch, opts: opts, logger: logging.OrNoOp(opts.Logger)}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/", s.handleWelcome)
	r.Post("/message", s.handleMessage)
	r.Get("/history", s.handleHistory)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.opts.Metrics.Handler())
	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Address,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.listen", "address", s.opts.Address, "channel", s.channel.Name())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info("server.shutdown", "address", s.opts.Address)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

type response struct {
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type messageRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId"`
	Agent          string `json:"agent,omitempty"`
}

func (s *Server) handleWelcome(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, response{Message: "Welcome to the assistant server! My name is " + s.name + "."})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, response{Message: "Invalid request body."})
			return
		}
	}
	q := r.URL.Query()
	if req.Message == "" {
		req.Message = q.Get("message")
	}
	if req.ConversationID == "" {
		req.ConversationID = q.Get("conversationId")
	}
	if req.Agent == "" {
		req.Agent = q.Get("agent")
	}

	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "No message provided."})
		return
	}
	if req.ConversationID == "" {
		writeJSON(w, http.StatusBadRequest, response{Message: "No conversation_id provided. Add conversation_id to the query string or body."})
		return
	}

	started, err := s.channel.StartAssistantResponse(r.Context(), core.NewUserMessage(req.Message, req.Agent), req.ConversationID)
	if err != nil || !started {
		if err != nil {
			s.logger.Error("server.message.error", "conversation_id", req.ConversationID, "error", err.Error())
		}
		writeJSON(w, http.StatusInternalServerError, response{Message: "Internal server error."})
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Message received."})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if convID := r.URL.Query().Get("conversation_id"); convID != "" {
		history, err := s.channel.ConversationHistory(convID, 0)
		if err != nil {
			s.internalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, response{Message: "Conversation history retrieved.", Data: history})
		return
	}

	all, err := s.channel.FullHistory()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response{Message: "Full conversation history retrieved.", Data: all})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.logger.Error("server.history.error", "error", err.Error())
	writeJSON(w, http.StatusInternalServerError, response{Message: "Internal server error."})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("server.request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
