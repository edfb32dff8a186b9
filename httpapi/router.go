package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	goIssuer "github.com/MrEthical07/goIssuer"
	"github.com/MrEthical07/goIssuer/middleware"
)

const defaultMaxBodyBytes = 64 << 10

// Options tunes the router. The zero value is usable.
type Options struct {
	Logger *zap.Logger
	// Metrics is mounted at GET /metrics when non-nil.
	Metrics http.Handler
	// MaxBodyBytes caps request bodies; zero means 64 KiB.
	MaxBodyBytes int64
	// TrustProxyHeaders makes the client IP come from X-Forwarded-For or
	// X-Real-IP. Enable only behind a proxy that sets them.
	TrustProxyHeaders bool
}

type handler struct {
	iss     *goIssuer.Issuer
	log     *zap.Logger
	maxBody int64
}

// NewRouter returns the issuer's HTTP surface.
func NewRouter(iss *goIssuer.Issuer, opts Options) chi.Router {
	h := &handler{iss: iss, log: opts.Logger, maxBody: opts.MaxBodyBytes}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	if h.maxBody <= 0 {
		h.maxBody = defaultMaxBodyBytes
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if opts.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(clientIP)
	r.Use(h.accessLog)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/.well-known/jwks.json", h.jwks)
	r.Get("/.well-known/oauth-authorization-server", h.metadata)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Post("/authorize", h.authorize)
		r.Get("/authorize/{requestID}", h.inspect)
		r.Post("/authorize/verify", h.verify)
		r.Post("/token", h.token)
	})

	r.With(middleware.Guard(iss)).Get("/userinfo", h.userinfo)

	return r
}

// clientIP hands the remote address to the issuer's credential throttle.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}
		next.ServeHTTP(w, r.WithContext(goIssuer.WithClientIP(r.Context(), ip)))
	})
}

func (h *handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		h.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err),
		)
	}
	writeErr(w, e.code, e.desc, e.status)
}
