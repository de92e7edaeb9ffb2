package middleware

import (
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/siteworks/recruitops/internal/web/auth"
	"github.com/siteworks/recruitops/internal/web/ratelimit"
	"github.com/siteworks/recruitops/internal/web/response"
)

// RateLimit limits requests per authenticated user, or per client IP for
// anonymous requests. Mount it after Authenticate for the per-user key to
// apply. Limiter errors fail open. A nil limiter disables limiting.
func RateLimit(limiter ratelimit.Limiter, proxies Proxies, logger *zap.Logger) Middleware {
	if limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d, err := limiter.Allow(r.Context(), RateLimitKey(r, proxies))
			if err != nil {
				logger.Warn("rate limit check failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter(time.Now()).Seconds()))
				response.RenderTooManyRequests(w, secs)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitKey identifies the caller
func RateLimitKey(r *http.Request, proxies Proxies) string {
	if p, ok := auth.FromContext(r.Context()); ok && p.UserID != "" {
		return "user:" + p.UserID
	}
	return "ip:" + proxies.ClientIP(r)
}

// Proxies are the reverse proxies whose forwarding headers are believed
type Proxies []*net.IPNet

// ParseProxies reads IP addresses and CIDR blocks
func ParseProxies(entries []string) (Proxies, error) {
	out := make(Proxies, 0, len(entries))
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid proxy address %q", e)
			}
			bits := 8 * net.IPv6len
			if ip4 := ip.To4(); ip4 != nil {
				ip, bits = ip4, 8*net.IPv4len
			}
			out = append(out, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy range %q: %w", e, err)
		}
		out = append(out, n)
	}
	return out, nil
}

func (p Proxies) trusts(addr string) bool {
	ip := net.ParseIP(addr)
	if ip == nil {
		return false
	}
	for _, n := range p {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP returns the connection address. When the connection comes from a
// trusted proxy, X-Forwarded-For is walked from the right and the first hop
// that is not a trusted proxy wins; X-Real-IP is used when there is no
// X-Forwarded-For.
func (p Proxies) ClientIP(r *http.Request) string {
	remote, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		remote = r.RemoteAddr
	}
	if !p.trusts(remote) {
		return remote
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !p.trusts(hop) {
				return hop
			}
		}
		return remote
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return remote
}
