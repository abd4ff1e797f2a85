package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/configtypes"
)

const sessionIssuer = "pagepurge-session"

// ErrNoSession is returned when a request carries no session token
var ErrNoSession = errors.New("no session")

// SessionClaims identify a signed-in user and what they may do
type SessionClaims struct {
	UserID       string   `json:"user_id"`
	Capabilities []string `json:"caps"`
	jwt.RegisteredClaims
}

// Session is an authenticated viewer
type Session struct {
	UserID       string
	Capabilities []string
}

// Can reports whether the session grants capability
func (s *Session) Can(capability string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// SessionAuthenticator reads session tokens from the session cookie or a Bearer header
type SessionAuthenticator struct {
	secret          []byte
	cookieName      string
	adminCapability string
	logger          *zap.Logger
}

func NewSessionAuthenticator(cfg configtypes.SessionConfig, logger *zap.Logger) *SessionAuthenticator {
	return &SessionAuthenticator{
		secret:          []byte(cfg.Secret),
		cookieName:      cfg.CookieName,
		adminCapability: cfg.AdminCapability,
		logger:          logger,
	}
}

// CookieName is the cookie session tokens are read from
func (a *SessionAuthenticator) CookieName() string {
	return a.cookieName
}

// IssueSession signs a session token for userID
func (a *SessionAuthenticator) IssueSession(userID string, capabilities []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		UserID:       userID,
		Capabilities: capabilities,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Authenticate returns the session of the request. ErrNoSession means the
// viewer is anonymous; any other error means a token was present but invalid.
func (a *SessionAuthenticator) Authenticate(ctx *fasthttp.RequestCtx) (*Session, error) {
	raw := a.tokenFrom(ctx)
	if raw == "" {
		return nil, ErrNoSession
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithIssuer(sessionIssuer), jwt.WithExpirationRequired())
	if err != nil {
		a.logger.Debug("Invalid session token", zap.Error(err))
		return nil, fmt.Errorf("invalid session: %w", err)
	}

	return &Session{UserID: claims.UserID, Capabilities: claims.Capabilities}, nil
}

// IsAdmin reports whether the session holds the configured admin capability
func (a *SessionAuthenticator) IsAdmin(s *Session) bool {
	return s.Can(a.adminCapability)
}

func (a *SessionAuthenticator) tokenFrom(ctx *fasthttp.RequestCtx) string {
	if cookie := ctx.Request.Header.Cookie(a.cookieName); len(cookie) > 0 {
		return string(cookie)
	}
	header := string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization))
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}
