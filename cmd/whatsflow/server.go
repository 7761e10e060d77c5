package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"whatsflow/internal/constants"
	apperrors "whatsflow/internal/errors"
	"whatsflow/internal/features"
	"whatsflow/internal/httputil"
	"whatsflow/internal/middleware"
	"whatsflow/internal/models"
	"whatsflow/internal/service"
	"whatsflow/internal/tracing"
	"whatsflow/internal/versioning"
	"whatsflow/pkg/whatsapp"
	"whatsflow/pkg/whatsapp/types"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const healthPingTimeout = 2 * time.Second

// InboundHandler runs one inbound message through the dispatch pipeline.
type InboundHandler interface {
	HandleInbound(ctx context.Context, ev service.InboundEvent) (service.Result, error)
}

// MessageAPI backs the dashboard send and chat endpoints.
type MessageAPI interface {
	SendManual(ctx context.Context, req service.SendRequest) (*models.Message, error)
	Chat(ctx context.Context, req service.ChatRequest) (string, error)
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	cfg      models.Config
	inbound  InboundHandler
	messages MessageAPI
	health   HealthChecker
	inbox    http.Handler
	flags    *features.Manager
	verbose  bool
	server   *http.Server
}

// apiResponse is the envelope for every webhook and /api route.
type apiResponse struct {
	Status   string      `json:"status"`
	Message  string      `json:"message,omitempty"`
	Response string      `json:"response,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

func NewServer(cfg *models.Config, inbound InboundHandler, messages MessageAPI, health HealthChecker, inbox http.Handler, flags *features.Manager, logger *logrus.Logger, verbose bool) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		cfg:      *cfg,
		inbound:  inbound,
		messages: messages,
		health:   health,
		inbox:    inbox,
		flags:    flags,
		verbose:  verbose,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger, s.cfg.Server.TrustProxy))
	if s.flags.IsEnabled(features.FlagDebugHeaders) {
		s.router.Use(middleware.DebugHeaders(s.logger))
	}

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)

	s.router.HandleFunc("/webhook", s.handleVerify()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook", s.handleWebhook()).Methods(http.MethodPost)

	limiter := middleware.NewRateLimiter(s.cfg.Server.RateLimitPerSecond, s.cfg.Server.RateLimitBurst, s.cfg.Server.TrustProxy)
	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(limiter.Middleware(s.logger))
	api.Use(versioning.Middleware(s.logger))

	api.HandleFunc("/messages/send", s.handleSend()).Methods(http.MethodPost)
	api.HandleFunc("/ai/{provider:openai|gemini}", s.handleChat()).Methods(http.MethodPost)
	if s.inbox != nil && s.flags.IsEnabled(features.FlagInboxStream) {
		api.Handle("/inbox/ws", s.inbox).Methods(http.MethodGet)
	}
}

func (s *Server) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()

		status, code, dbStatus := "healthy", http.StatusOK, "ok"
		if err := s.health.Ping(ctx); err != nil {
			s.logger.WithError(err).Error("Health check database ping failed")
			status, code, dbStatus = "unhealthy", http.StatusServiceUnavailable, "unreachable"
		}

		httputil.WriteJSON(w, code, map[string]interface{}{
			"status":   status,
			"database": dbStatus,
			"build":    versioning.Info(),
		})
	}
}

// handleVerify answers the Cloud API subscription handshake.
func (s *Server) handleVerify() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		token := s.cfg.WhatsApp.VerifyToken
		if q.Get("hub.mode") != "subscribe" || token == "" || q.Get("hub.verify_token") != token {
			s.logger.WithField(service.LogFieldRemoteIP, httputil.ClientIP(r, s.cfg.Server.TrustProxy)).
				Warn("Webhook verification failed")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		s.logger.Info("Webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(q.Get("hub.challenge")))
	}
}

// handleWebhook always answers 200 so the platform does not redeliver; the
// envelope carries the outcome.
func (s *Server) handleWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithVerbose(r.Context(), s.verbose)
		log := s.logger.WithField(service.LogFieldRequestID, tracing.RequestID(ctx))

		body, err := httputil.ReadBody(w, r, s.cfg.Server.MaxBodyBytes)
		if err != nil {
			log.WithError(err).Warn("Failed to read webhook body")
			s.writeStatus(w, apiResponse{Status: "error", Message: "invalid request body"})
			return
		}

		if err := verifySignature(r, body, s.cfg.WhatsApp.AppSecret); err != nil {
			log.WithError(err).Warn("Rejected webhook with invalid signature")
			s.writeStatus(w, apiResponse{Status: "error", Message: "invalid signature"})
			return
		}

		var payload types.WebhookPayload
		if err := json.Unmarshal(body, &payload); err != nil {
			log.WithError(err).Warn("Failed to parse webhook payload")
			s.writeStatus(w, apiResponse{Status: "error", Message: "invalid payload"})
			return
		}

		value, ok := whatsapp.FirstChange(&payload)
		if !ok || len(value.Messages) == 0 {
			s.writeStatus(w, apiResponse{Status: "success", Message: constants.NoMessageToProcess})
			return
		}

		var failed error
		for i := range value.Messages {
			ev := service.EventFromWebhook(value, &value.Messages[i])
			res, err := s.inbound.HandleInbound(ctx, ev)
			if err != nil {
				log.WithError(err).WithField(service.LogFieldErrorCode, apperrors.GetCode(err)).
					Error("Failed to handle inbound message")
				failed = err
				continue
			}
			log.WithFields(logrus.Fields{
				service.LogFieldAccountID: res.AccountID,
				service.LogFieldStage:     res.Stage,
				"duplicate":               res.Duplicate,
				"dropped":                 res.Dropped,
			}).Debug("Inbound message handled")
		}

		if failed != nil {
			s.writeStatus(w, apiResponse{Status: "error", Message: apperrors.GetUserMessage(failed)})
			return
		}
		s.writeStatus(w, apiResponse{Status: "success"})
	}
}

func (s *Server) handleSend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithVerbose(r.Context(), s.verbose)

		var req service.SendRequest
		if err := httputil.DecodeJSON(w, r, s.cfg.Server.MaxBodyBytes, &req); err != nil {
			s.writeStatus(w, apiResponse{Status: "error", Message: "invalid request body"})
			return
		}

		msg, err := s.messages.SendManual(ctx, req)
		if err != nil {
			s.logger.WithError(err).WithField(service.LogFieldErrorCode, apperrors.GetCode(err)).
				Warn("Manual send failed")
			resp := apiResponse{Status: "error", Message: apperrors.GetUserMessage(err)}
			if msg != nil {
				resp.Data = msg
			}
			s.writeStatus(w, resp)
			return
		}

		s.writeStatus(w, apiResponse{Status: "success", Message: "Message sent", Data: msg})
	}
}

func (s *Server) handleChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req service.ChatRequest
		if err := httputil.DecodeJSON(w, r, s.cfg.Server.MaxBodyBytes, &req); err != nil {
			s.writeStatus(w, apiResponse{Status: "error", Message: "invalid request body"})
			return
		}
		req.Provider = mux.Vars(r)["provider"]

		reply, err := s.messages.Chat(r.Context(), req)
		if err != nil {
			s.writeStatus(w, apiResponse{Status: "error", Message: apperrors.GetUserMessage(err)})
			return
		}
		s.writeStatus(w, apiResponse{Status: "success", Response: reply})
	}
}

func (s *Server) writeStatus(w http.ResponseWriter, resp apiResponse) {
	httputil.WriteJSON(w, http.StatusOK, resp)
}
