package httpapi

import (
	"bytes"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const defaultMaxLogBytes = 2048

// statusRecorder captures the status code and the head of the body so that
// failed requests can be logged with what the client saw.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	maxLogBytes  int
	logBody      bytes.Buffer
	truncated    bool
	bytesWritten int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if remaining := r.maxLogBytes - r.logBody.Len(); remaining > 0 {
		if len(p) > remaining {
			r.logBody.Write(p[:remaining])
			r.truncated = true
		} else {
			r.logBody.Write(p)
		}
	} else if len(p) > 0 {
		r.truncated = true
	}

	n, err := r.ResponseWriter.Write(p)
	r.bytesWritten += n
	return n, err
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				maxLogBytes:    defaultMaxLogBytes,
			}
			next.ServeHTTP(recorder, r)

			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.statusCode),
				zap.Int("bytes", recorder.bytesWritten),
				zap.Duration("duration", time.Since(start)),
				zap.String("remote", r.RemoteAddr),
			}
			switch {
			case recorder.statusCode >= http.StatusInternalServerError:
				fields = append(fields, zap.String("body", recorder.logBody.String()), zap.Bool("truncated", recorder.truncated))
				log.Error("request failed", fields...)
			case recorder.statusCode >= http.StatusBadRequest:
				fields = append(fields, zap.String("body", recorder.logBody.String()), zap.Bool("truncated", recorder.truncated))
				log.Warn("request rejected", fields...)
			default:
				log.Info("request", fields...)
			}
		})
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter allows maxRequests per window for each client address. Idle
// entries are dropped on the next request after they expire.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	limit    rate.Limit
	burst    int
	expiry   time.Duration
	now      func() time.Time
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	if window <= 0 {
		window = time.Minute
	}
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		limit:    rate.Every(window / time.Duration(maxRequests)),
		burst:    maxRequests,
		expiry:   expiry,
		now:      time.Now,
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := l.now()

	l.mu.Lock()
	for k, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.expiry {
			delete(l.visitors, k)
		}
	}
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

func (l *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientKey(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
