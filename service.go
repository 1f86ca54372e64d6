package wirebot

import (
	"context"
	"crypto/tls"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dsonbaker/wirebot/internal/outbound"
	"github.com/dsonbaker/wirebot/internal/queue"
)

// Service is a TLS-terminating HTTPS server dispatching POST /bots (bot
// creation) and POST /bots/{id}/messages (conversation events), backed by
// a bounded worker pool so a slow Handler stalls the HTTP response only
// while every worker is busy.
type Service struct {
	cfg     Config
	handler Handler
	cache   *BotCache
	queue   *queue.Queue
	log     zerolog.Logger
	workers chan struct{}
	server  *http.Server
}

// NewService builds a Service and starts its single outbound Request
// Queue goroutine. Nothing is bound to a network listener until
// ListenAndServe is called.
func NewService(cfg Config, handler Handler, log zerolog.Logger) *Service {
	outboundClient := outbound.New(cfg.wireHost(), cfg.outboundTimeout(), nil)
	s := &Service{
		cfg:     cfg,
		handler: handler,
		cache:   NewBotCache(),
		queue:   queue.New(outboundClient, log, 1024),
		log:     log,
		workers: make(chan struct{}, cfg.handlerWorkers()),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /bots", s.withAuth(s.handleCreateBot))
	mux.HandleFunc("POST /bots/{id}/messages", s.withAuth(s.handleEvent))
	s.server = &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: mux,
	}
	return s
}

// withAuth enforces the second precondition (Bearer token match) before
// the wrapped handler ever sees the request; method matching (the first
// precondition, 405) already happened inside ServeMux's routing, since
// every pattern here is method-qualified.
func (s *Service) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix || auth[len(prefix):] != s.cfg.AuthToken {
			s.log.Warn().Str("remote", r.RemoteAddr).Msg("rejected request with bad bearer token")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ListenAndServe loads the configured TLS certificate and starts serving.
// It blocks until the listener fails or Shutdown is called.
func (s *Service) ListenAndServe() error {
	cert, err := tls.LoadX509KeyPair(s.cfg.CertPath, s.cfg.KeyPath)
	if err != nil {
		return err
	}
	s.server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	s.log.Info().Str("addr", s.cfg.ListenAddress).Msg("starting inbound service")
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully stops the listener and drains the outbound queue.
func (s *Service) Shutdown(ctx context.Context) error {
	err := s.server.Shutdown(ctx)
	s.queue.Close()
	return err
}

// dispatch runs fn on the bounded worker pool, blocking only on pool
// capacity - never on network or disk I/O. While every worker is busy the
// calling request goroutine waits for a free slot, so handler latency
// delays the HTTP response only when the pool is full.
func (s *Service) dispatch(fn func()) {
	s.workers <- struct{}{}
	go func() {
		defer func() { <-s.workers }()
		fn()
	}()
}
