package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter caps concurrent websocket connections and auth attempts per IP.
type RateLimiter struct {
	connections  map[string]int         // IP -> connection count
	authAttempts map[string][]time.Time // IP -> timestamps of auth attempts
	mu           sync.RWMutex
	maxConns     int
	maxAuth      int
	done         chan struct{}
	stopOnce     sync.Once
}

func New(maxConns, maxAuth int) *RateLimiter {
	rl := &RateLimiter{
		connections:  make(map[string]int),
		authAttempts: make(map[string][]time.Time),
		maxConns:     maxConns,
		maxAuth:      maxAuth,
		done:         make(chan struct{}),
	}

	// Cleanup old auth attempts every minute
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()

	return rl
}

func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

func (rl *RateLimiter) MaxConns() int { return rl.maxConns }
func (rl *RateLimiter) MaxAuth() int  { return rl.maxAuth }

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-time.Minute)
	for ip, attempts := range rl.authAttempts {
		valid := recentSince(attempts, cutoff)
		if len(valid) == 0 {
			delete(rl.authAttempts, ip)
		} else {
			rl.authAttempts[ip] = valid
		}
	}
}

func recentSince(attempts []time.Time, cutoff time.Time) []time.Time {
	var valid []time.Time
	for _, t := range attempts {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	return valid
}

func (rl *RateLimiter) CanConnect(ip string) bool {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return rl.connections[ip] < rl.maxConns
}

func (rl *RateLimiter) AddConnection(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.connections[ip]++
}

func (rl *RateLimiter) RemoveConnection(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.connections[ip]--
	if rl.connections[ip] <= 0 {
		delete(rl.connections, ip)
	}
}

// CanAuth records an attempt and reports whether it fits the one-minute window.
func (rl *RateLimiter) CanAuth(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := recentSince(rl.authAttempts[ip], time.Now().Add(-time.Minute))
	if len(recent) >= rl.maxAuth {
		rl.authAttempts[ip] = recent
		return false
	}

	rl.authAttempts[ip] = append(recent, time.Now())
	return true
}

// IPLimiter is a token bucket per client IP for ordinary API requests.
type IPLimiter struct {
	visitors sync.Map
	rps      rate.Limit
	burst    int
}

type visitor struct {
	limiter  *rate.Limiter
	mu       sync.Mutex
	lastSeen time.Time
}

func NewIPLimiter(perMinute, burst int) *IPLimiter {
	return &IPLimiter{
		rps:   rate.Limit(float64(perMinute) / 60.0),
		burst: burst,
	}
}

func (l *IPLimiter) Allow(ip string) bool {
	v, _ := l.visitors.LoadOrStore(ip, &visitor{limiter: rate.NewLimiter(l.rps, l.burst)})
	vi := v.(*visitor)
	vi.mu.Lock()
	vi.lastSeen = time.Now()
	vi.mu.Unlock()
	return vi.limiter.Allow()
}

// Sweep forgets visitors idle for longer than idle.
func (l *IPLimiter) Sweep(idle time.Duration) {
	cutoff := time.Now().Add(-idle)
	l.visitors.Range(func(k, v any) bool {
		vi := v.(*visitor)
		vi.mu.Lock()
		stale := vi.lastSeen.Before(cutoff)
		vi.mu.Unlock()
		if stale {
			l.visitors.Delete(k)
		}
		return true
	})
}

func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (for reverse proxies)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
