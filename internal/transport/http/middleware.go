package http

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mailmart_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mailmart_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})
)

const (
	userIDHeader  = "X-User-ID"
	adminIDHeader = "X-Admin-ID"
)

type ctxKey int

const (
	userKey ctxKey = iota
	adminKey
)

func userID(r *http.Request) string {
	id, _ := r.Context().Value(userKey).(string)
	return id
}

func adminID(r *http.Request) string {
	id, _ := r.Context().Value(adminKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency per route template.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		endpoint := "unmatched"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
	})
}

// gatewayAuth trusts X-User-ID only from a caller holding the gateway token.
func gatewayAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secureCompare(extractBearerToken(r.Header.Get("Authorization")), token) {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id := strings.TrimSpace(r.Header.Get(userIDHeader))
			if id == "" {
				respondError(w, http.StatusUnauthorized, "missing "+userIDHeader)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, id)))
		})
	}
}

func adminAuth(token string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !secureCompare(extractBearerToken(r.Header.Get("Authorization")), token) {
				respondError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			id := strings.TrimSpace(r.Header.Get(adminIDHeader))
			if id == "" {
				id = "admin"
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), adminKey, id)))
		})
	}
}

func extractBearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func secureCompare(a, b string) bool {
	if a == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
