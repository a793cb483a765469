// Package server exposes the webhook over HTTP: one POST endpoint for
// inbound WhatsApp messages, health and metrics on the side.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
	nodex "github.com/sorrisolabs/agendabot/agent/nodes"
)

type Config struct {
	Addr            string        `split_words:"true" default:":8080"`
	WebhookToken    string        `split_words:"true"`
	RateLimit       int           `split_words:"true" default:"60"`
	ReadTimeout     time.Duration `split_words:"true" default:"10s"`
	WriteTimeout    time.Duration `split_words:"true" default:"30s"`
	ShutdownTimeout time.Duration `split_words:"true" default:"15s"`
}

// MessageHandler is the pipeline's surface as the server sees it.
type MessageHandler interface {
	Handle(ctx context.Context, in nodex.GraphInput) (contract.Reply, error)
}

// Sender delivers the reply text back to the customer. nil disables outbound
// delivery, which keeps the webhook usable as a pure request/response API.
type Sender interface {
	SendText(ctx context.Context, number, text string) error
}

type Server struct {
	cfg     Config
	handler MessageHandler
	sender  Sender
	logger  zerolog.Logger
	httpSrv *http.Server
}

func New(cfg Config, handler MessageHandler, sender Sender, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:     cfg,
		handler: handler,
		sender:  sender,
		logger:  logger.With().Str("component", "server").Logger(),
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.cfg.RateLimit > 0 {
			r.Use(httprate.LimitByIP(s.cfg.RateLimit, time.Minute))
		}
		if s.cfg.WebhookToken != "" {
			r.Use(s.requireToken)
		}
		r.Post("/webhook/whatsapp", s.handleWebhook)
	})

	return r
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Webhook-Token") != s.cfg.WebhookToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	traceID := uuid.NewString()
	logger := s.logger.With().Str("trace_id", traceID).Logger()

	var msg contract.InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		logger.Warn().Err(err).Msg("undecodable webhook payload")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	// Evolution also delivers echoes of our own outbound messages.
	if msg.FromMe {
		logger.Debug().Str("message_id", msg.MessageID).Msg("ignored self message")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	reply, err := s.handler.Handle(r.Context(), nodex.GraphInput{
		Message: msg,
		TraceID: traceID,
	})
	if err != nil {
		switch {
		case errors.Is(err, contract.ErrValidation):
			logger.Warn().Err(err).Msg("rejected webhook payload")
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, contract.ErrStoreUnavailable):
			logger.Error().Err(err).Msg("backing store unavailable")
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
		default:
			logger.Error().Err(err).Msg("webhook processing failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
		return
	}

	if s.sender != nil && reply.Status == contract.StatusProcessed && reply.ReplyText != "" {
		if err := s.sender.SendText(r.Context(), msg.From, reply.ReplyText); err != nil {
			// The reply is still returned; delivery is retryable out of band.
			logger.Error().Err(err).Msg("outbound delivery failed")
		}
	}

	logger.Info().
		Str("status", string(reply.Status)).
		Str("intent", string(reply.Intent)).
		Msg("webhook handled")

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(reply); err != nil {
		logger.Error().Err(err).Msg("response encode failed")
	}
}

// Run serves until ctx is canceled, then drains within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", s.cfg.Addr).Msg("listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
