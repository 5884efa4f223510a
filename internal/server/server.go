package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"assetgate/internal/api"
	"assetgate/internal/observability/logging"
	"assetgate/internal/serverutil"
)

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type Config struct {
	Addr            string
	TLS             TLSConfig
	CORS            CORSConfig
	Security        SecurityConfig
	Logger          *slog.Logger
	ShutdownTimeout time.Duration
}

type Server struct {
	httpServer      *http.Server
	logger          *slog.Logger
	tlsCertFile     string
	tlsKeyFile      string
	shutdownTimeout time.Duration
}

func New(handler *api.Handler, cfg Config) (*Server, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handler.Health)
	mux.HandleFunc("/assets/secure/", handler.SecureAsset)
	mux.HandleFunc("/assets/metadata/", handler.AssetMetadata)
	mux.HandleFunc("/assets/temp-url/", handler.TempURL)
	mux.HandleFunc("/api/assets", handler.Assets)
	mux.HandleFunc("/api/assets/", handler.AssetByID)

	corsPolicy, err := newCORSPolicy(cfg.CORS)
	if err != nil {
		return nil, fmt.Errorf("configure cors: %w", err)
	}

	handlerChain := http.Handler(mux)
	handlerChain = corsMiddleware(corsPolicy, cfg.Logger, handlerChain)
	handlerChain = securityHeadersMiddleware(cfg.Security, handlerChain)
	if cfg.Logger != nil {
		handlerChain = logging.RequestLogger(logging.RequestLoggerConfig{
			Logger:            cfg.Logger,
			DisableRemoteAddr: true,
			AdditionalFields: func(r *http.Request, _ int, _ time.Duration) []any {
				return []any{"remote_ip", extractClientIP(r)}
			},
		})(handlerChain)
	}
	handlerChain = requestIDMiddleware(cfg.Logger, handlerChain)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handlerChain,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srv := &Server{
		httpServer:      httpServer,
		logger:          cfg.Logger,
		tlsCertFile:     strings.TrimSpace(cfg.TLS.CertFile),
		tlsKeyFile:      strings.TrimSpace(cfg.TLS.KeyFile),
		shutdownTimeout: cfg.ShutdownTimeout,
	}

	if srv.tlsCertFile != "" && srv.tlsKeyFile != "" {
		httpServer.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	return srv, nil
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails, then drains in-flight requests before returning. The ready
// channel, when non-nil, is closed once the listener is accepting.
func (s *Server) Run(ctx context.Context, ready chan<- struct{}) error {
	if s.httpServer == nil {
		return fmt.Errorf("http server is not configured")
	}
	return serverutil.Run(ctx, serverutil.Config{
		Server:          s.httpServer,
		TLS:             serverutil.TLSConfig{CertFile: s.tlsCertFile, KeyFile: s.tlsKeyFile},
		ShutdownTimeout: s.shutdownTimeout,
		Ready:           ready,
	})
}

// Handler exposes the assembled middleware chain, primarily for tests.
func (s *Server) Handler() http.Handler {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Handler
}

func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return strings.TrimSpace(xrip)
	}
	return clientIP(r.RemoteAddr)
}

func clientIP(remoteAddr string) string {
	if remoteAddr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
