package routes

// routes/routes.go
// HTTP routing setup for the provisioning web surface.

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/justinas/alice"
	"golang.org/x/time/rate"

	"github.com/collapsinghierarchy/rfidgate/handler"
	"github.com/collapsinghierarchy/rfidgate/service"
)

type Options struct {
	RateLimitPerMinute int // 0 disables limiting
	RateLimitBurst     int
}

// SetupRoutes wires the provisioning endpoints behind the middleware chain.
func SetupRoutes(svc *service.Service, opts Options) http.Handler {
	srv := handler.New(svc)

	mux := http.NewServeMux()

	mux.Handle("/", exactPath("/", http.HandlerFunc(srv.Index)))
	mux.Handle("/getuid", http.HandlerFunc(srv.GetUID))
	mux.Handle("/register", http.HandlerFunc(srv.Register))

	// Health check
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	chain := alice.New(requestID, logRequest, touch(svc))
	if opts.RateLimitPerMinute > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		lim := rate.NewLimiter(rate.Limit(float64(opts.RateLimitPerMinute)/60), burst)
		chain = chain.Append(rateLimit(lim))
	}
	return chain.Then(mux)
}

func exactPath(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

// RequestID returns the id assigned to r by the middleware chain.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// logRequest logs basic request information.
func logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s id=%s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Microsecond), RequestID(r.Context()))
	})
}

// touch keeps the provisioning session alive while a client is using it.
// The form's background /getuid poll does not count as use.
func touch(svc *service.Service) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/getuid" && r.URL.Path != "/healthz" {
				svc.Touch()
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rateLimit(lim *rate.Limiter) alice.Constructor {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !lim.Allow() {
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
