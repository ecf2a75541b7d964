package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SessionCookieName    = "session"
	DevSessionCookieName = "dev-session-token"

	KindSession = "session"
	KindDev     = "dev"
)

// Principal is the authenticated caller.
type Principal struct {
	UserID string
	Email  string
	// Source names the extractor that resolved the principal.
	Source string
}

// SessionClaims are carried by session tokens.
type SessionClaims struct {
	Email string `json:"email"`
	Kind  string `json:"kind"`
	jwt.RegisteredClaims
}

// Sessions issues and verifies HS256 session tokens.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// TTL is the lifetime of issued tokens.
func (s *Sessions) TTL() time.Duration { return s.ttl }

// Issue signs a token for userID. kind is KindSession or KindDev.
func (s *Sessions) Issue(userID, email, kind string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(s.ttl)
	claims := SessionClaims{
		Email: email,
		Kind:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Parse verifies token and returns its claims.
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("session token has no subject")
	}
	return claims, nil
}

// CredentialExtractor resolves a principal from one kind of credential.
// It returns nil, nil when the request does not carry that credential.
type CredentialExtractor interface {
	Name() string
	Extract(r *http.Request) (*Principal, error)
}

type tokenExtractor struct {
	name     string
	kind     string
	sessions *Sessions
	token    func(r *http.Request) string
}

func (e tokenExtractor) Name() string { return e.name }

func (e tokenExtractor) Extract(r *http.Request) (*Principal, error) {
	raw := e.token(r)
	if raw == "" {
		return nil, nil
	}
	claims, err := e.sessions.Parse(raw)
	if err != nil {
		return nil, err
	}
	if claims.Kind != e.kind {
		return nil, fmt.Errorf("unexpected token kind %q", claims.Kind)
	}
	return &Principal{UserID: claims.Subject, Email: claims.Email, Source: e.name}, nil
}

// BearerSession reads "Authorization: Bearer <token>".
func BearerSession(s *Sessions) CredentialExtractor {
	return tokenExtractor{name: "bearer", kind: KindSession, sessions: s, token: func(r *http.Request) string {
		parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}}
}

// SessionCookie reads the session cookie.
func SessionCookie(s *Sessions) CredentialExtractor {
	return tokenExtractor{name: "cookie", kind: KindSession, sessions: s, token: cookieValue(SessionCookieName)}
}

// DevSessionCookie reads the development login cookie.
func DevSessionCookie(s *Sessions) CredentialExtractor {
	return tokenExtractor{name: "dev-cookie", kind: KindDev, sessions: s, token: cookieValue(DevSessionCookieName)}
}

func cookieValue(name string) func(r *http.Request) string {
	return func(r *http.Request) string {
		c, err := r.Cookie(name)
		if err != nil {
			return ""
		}
		return c.Value
	}
}

type principalKey struct{}

// Identity stores the first principal resolved by extractors in the request
// context. Invalid credentials are skipped so a later extractor can still
// match.
func Identity(extractors ...CredentialExtractor) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, ex := range extractors {
				p, err := ex.Extract(r)
				if err != nil || p == nil {
					continue
				}
				r = r.WithContext(ContextWithPrincipal(r.Context(), p))
				break
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects requests without a resolved principal.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error": map[string]string{"code": "unauthenticated", "message": "authentication required"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	if p == nil || strings.TrimSpace(p.UserID) == "" {
		return ctx
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(*Principal)
	return p, ok && p != nil
}

func UserIDFromContext(ctx context.Context) string {
	if p, ok := PrincipalFromContext(ctx); ok {
		return p.UserID
	}
	return ""
}
