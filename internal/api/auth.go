package api

import (
	"net"
	"net/http"
	"strings"

	"charterly/internal/config"
	"charterly/internal/domain"
)

const clientKeyUnknown = "unknown"

// HTTPAuth resolves the session actor and applies per-client rate limits.
// Requests without a session pass through as anonymous; the services decide
// what an anonymous caller may do.
type HTTPAuth struct {
	sessions SessionParser
	limiter  *rateLimiter
}

func NewHTTPAuth(sessions SessionParser, cfg config.RateLimitConfig) *HTTPAuth {
	return &HTTPAuth{sessions: sessions, limiter: newRateLimiter(cfg)}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return a.wrap(next, true)
}

// WrapUnlimited resolves the session like Wrap but skips the per-client
// limiter. Provider callbacks arrive in bursts from a few addresses and are
// idempotent.
func (a *HTTPAuth) WrapUnlimited(next http.Handler) http.Handler {
	return a.wrap(next, false)
}

func (a *HTTPAuth) wrap(next http.Handler, limited bool) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.authenticate(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid session token")
			return
		}

		if limited && !a.limiter.allow(clientKey(r, actor)) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		if actor.Authenticated() {
			r = r.WithContext(domain.WithActor(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}

func (a *HTTPAuth) authenticate(r *http.Request) (domain.Actor, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return domain.Actor{}, nil
	}

	token, ok := bearerToken(header)
	if !ok || a.sessions == nil {
		return domain.Actor{}, domain.ErrUnauthorized
	}
	return a.sessions.Parse(token)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// clientKey prefers the session user so that a user is limited across addresses.
func clientKey(r *http.Request, actor domain.Actor) string {
	if actor.Authenticated() {
		return "user:" + actor.UserID
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return "ip:" + host
	}
	return clientKeyUnknown
}
