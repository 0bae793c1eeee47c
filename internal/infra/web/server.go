package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"ai-chat-backend/internal/usecase"
)

// SendLimiter throttles sends per user over a fixed window. Satisfied by the
// Redis rate limiter.
type SendLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Server struct {
	chatUC   usecase.ChatUseCase
	streamUC usecase.StreamUseCase
	usageUC  usecase.UsageUseCase
	auth     *AuthManager
	limiter  SendLimiter

	// model labels the stream metrics emitted by the send handler.
	model          string
	sendRateLimit  int
	sendRateWindow time.Duration

	log *zerolog.Logger
}

func NewServer(
	chatUC usecase.ChatUseCase,
	streamUC usecase.StreamUseCase,
	usageUC usecase.UsageUseCase,
	auth *AuthManager,
	limiter SendLimiter,
	model string,
	sendRateLimit int,
	sendRateWindow time.Duration,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		chatUC:         chatUC,
		streamUC:       streamUC,
		usageUC:        usageUC,
		auth:           auth,
		limiter:        limiter,
		model:          model,
		sendRateLimit:  sendRateLimit,
		sendRateWindow: sendRateWindow,
		log:            logger,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(toChi(TraceID()), toChi(RequestLog(s.log)))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/chat", s.listChats)
		r.Post("/chat", s.createChat)
		r.Route("/chat/{chatID}", func(r chi.Router) {
			r.Get("/", s.getChat)
			r.Delete("/", s.deleteChat)
			r.Post("/message", s.sendMessage)
		})
		r.Get("/usage", s.getUsage)
	})
	return r
}

func toChi(m Middleware) func(http.Handler) http.Handler { return m }
