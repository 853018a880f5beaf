// Package httpapi is the thin net/http wiring layer: handler funcs that
// decode a request, call into the engine packages, and encode a response.
// It carries no business logic of its own — every invariant in spec lives
// in internal/magiclink, internal/sharedsecret, internal/authmw and the
// packages they build on.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/arkaitz-dev/hashrand-go/config"
	"github.com/arkaitz-dev/hashrand-go/internal/authmw"
	"github.com/arkaitz-dev/hashrand-go/internal/keymaterial"
	"github.com/arkaitz-dev/hashrand-go/internal/logger"
	"github.com/arkaitz-dev/hashrand-go/internal/magiclink"
	"github.com/arkaitz-dev/hashrand-go/internal/ratelimit"
	"github.com/arkaitz-dev/hashrand-go/internal/sharedsecret"
	"github.com/arkaitz-dev/hashrand-go/pkg/storage"
)

// Server holds every engine the handlers call into. It is safe for
// concurrent use: each engine is either stateless or internally
// synchronized.
type Server struct {
	cfg          *config.Config
	keys         *keymaterial.KeySet
	store        storage.Store
	magicLink    *magiclink.Engine
	sharedSecret *sharedsecret.Engine
	auth         *authmw.Engine
	limiter      *ratelimit.Limiter
	log          logger.Logger
}

// New wires every engine from the decoded config and key material.
func New(cfg *config.Config, keys *keymaterial.KeySet, store storage.Store, log logger.Logger) *Server {
	innerTTL := 15 * time.Minute
	storageTTL := time.Hour

	return &Server{
		cfg:   cfg,
		keys:  keys,
		store: store,
		magicLink: magiclink.New(keys, store.MagicLinks(), store.UserPrivkeys(),
			innerTTL, storageTTL),
		sharedSecret: sharedsecret.New(keys, store.SharedSecrets()),
		auth: authmw.New(keys,
			cfg.Tokens.AccessTokenDuration(), cfg.Tokens.RefreshTokenDuration(),
			store.UserKeys()),
		limiter: ratelimit.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, cfg.RateLimit.SweepInterval*10),
		log:     log,
	}
}

// Routes builds the full mux. Pattern matching with {name} path segments
// requires Go's 1.22+ http.ServeMux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/login/", s.withLimiter("login", s.handleLogin))
	mux.HandleFunc("POST /api/refresh", s.withLimiter("refresh", s.handleRefresh))

	mux.HandleFunc("POST /api/shared-secret/create", s.withLimiter("shared_secret_create", s.handleSharedSecretCreate))
	mux.HandleFunc("GET /api/shared-secret/confirm-read", s.withLimiter("shared_secret_confirm_read", s.handleConfirmRead))
	mux.HandleFunc("GET /api/shared-secret/{hash}", s.withLimiter("shared_secret", s.handleSharedSecret))
	mux.HandleFunc("POST /api/shared-secret/{hash}", s.withLimiter("shared_secret", s.handleSharedSecret))
	mux.HandleFunc("DELETE /api/shared-secret/{hash}", s.withLimiter("shared_secret_delete", s.handleSharedSecretDelete))

	mux.HandleFunc("POST /api/keys/rotate", s.withLimiter("keys_rotate", s.handleKeysRotate))
	mux.HandleFunc("GET /api/user/keys/", s.withLimiter("user_keys", s.handleUserKeys))

	return mux
}

// RunSweeper starts the magic-link and shared-secret expiry sweepers and
// the rate limiter's idle-client sweep; it blocks until stop is closed.
func (s *Server) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	go s.limiter.RunSweeper(interval, stop)

	for {
		select {
		case <-ticker.C:
			background := context.Background()
			if n, err := s.magicLink.Sweep(background); err == nil && n > 0 {
				s.log.Info("swept expired magic links", logger.Int("removed", int(n)))
			}
			if shards, tracking, err := s.sharedSecret.Sweep(background); err == nil && (shards > 0 || tracking > 0) {
				s.log.Info("swept expired shared secrets",
					logger.Int("shards_removed", int(shards)), logger.Int("tracking_removed", int(tracking)))
			}
		case <-stop:
			return
		}
	}
}
