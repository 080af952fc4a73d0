// Package ops serves the optional operator endpoints: /healthz, /metrics and
// /debug/pprof/.
//
// The listener binds to loopback by default. A non-loopback address is
// refused unless Token is set or AllowInsecure is enabled. When a token is
// set, every endpoint requires it as a bearer header or ?token= query.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "hubtrack/pkg/logx"
)

const DefaultAddr = "127.0.0.1:9090"

var ErrInsecureBind = errors.New("ops: non-loopback addr requires token or allow_insecure")

type Config struct {
	Enabled       bool
	Addr          string
	Token         string
	AllowInsecure bool

	ReadTimeout time.Duration
	IdleTimeout time.Duration
}

// HealthFunc reports liveness. detail is encoded as JSON next to the status.
type HealthFunc func() (healthy bool, detail any)

type Server struct {
	mu       sync.Mutex
	log      logx.Logger
	cfg      Config
	gatherer prometheus.Gatherer
	health   HealthFunc

	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, log logx.Logger, gatherer prometheus.Gatherer, health HealthFunc) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{cfg: cfg, log: log, gatherer: gatherer, health: health}
}

// Addr returns the bound address, or "" when not listening.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Start binds the listener and serves in the background. It is a no-op when
// disabled or already running.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil || !s.cfg.Enabled {
		return nil
	}
	cur := s.cfg

	addr := strings.TrimSpace(cur.Addr)
	if addr == "" {
		addr = DefaultAddr
	}
	if !cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
		return ErrInsecureBind
	}
	if cur.AllowInsecure && cur.Token == "" && !isLoopbackAddr(addr) {
		s.log.Warn("ops server running without token on non-loopback addr (insecure)", logx.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.handler(cur.Token),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cur.ReadTimeout,
		IdleTimeout:       cur.IdleTimeout,
	}
	s.ln, s.srv = ln, srv

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("ops server stopped", logx.Err(err))
		}
	}()
	s.log.Info("ops server started", logx.String("addr", ln.Addr().String()), logx.Bool("token_set", cur.Token != ""))
	return nil
}

// Stop shuts the server down gracefully until ctx is done.
func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv, s.ln = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		_ = srv.Close()
	}
	s.log.Info("ops server stopped")
}

// Reconfigure applies cfg during hot reload, restarting the listener only
// when a listener setting changed.
func (s *Server) Reconfigure(ctx context.Context, cfg Config) error {
	s.mu.Lock()
	prev := s.cfg
	running := s.srv != nil
	s.cfg = cfg
	s.mu.Unlock()

	switch {
	case !cfg.Enabled:
		s.Stop(ctx)
		return nil
	case !running:
		return s.Start()
	case prev != cfg:
		s.Stop(ctx)
		return s.Start()
	}
	return nil
}

func (s *Server) handler(token string) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.Handler) http.Handler { return withAuth(token, h) }

	mux.Handle("/healthz", wrap(http.HandlerFunc(s.serveHealth)))
	if s.gatherer != nil {
		mux.Handle("/metrics", wrap(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))
	}
	mux.Handle("/debug/pprof/", wrap(http.HandlerFunc(hpprof.Index)))
	mux.Handle("/debug/pprof/cmdline", wrap(http.HandlerFunc(hpprof.Cmdline)))
	mux.Handle("/debug/pprof/profile", wrap(http.HandlerFunc(hpprof.Profile)))
	mux.Handle("/debug/pprof/symbol", wrap(http.HandlerFunc(hpprof.Symbol)))
	mux.Handle("/debug/pprof/trace", wrap(http.HandlerFunc(hpprof.Trace)))
	return mux
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	healthy, detail := true, any(nil)
	if s.health != nil {
		healthy, detail = s.health()
	}
	resp := struct {
		Status string `json:"status"`
		Detail any    `json:"detail,omitempty"`
	}{Status: "ok", Detail: detail}
	code := http.StatusOK
	if !healthy {
		resp.Status = "failing"
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// withAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func withAuth(token string, h http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	if tok == "" {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("token"); got != "" {
			if got == tok {
				h.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
			return
		}
		const p = "Bearer "
		if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
			h.ServeHTTP(w, r)
			return
		}
		unauthorized(w)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func isLoopbackAddr(addr string) bool {
	h, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	h = strings.TrimSpace(h)
	if h == "" {
		// empty host means all interfaces
		return false
	}
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
