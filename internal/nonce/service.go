package nonce

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/edgecomet/pagepurge/internal/common/configtypes"
	"github.com/edgecomet/pagepurge/internal/common/redis"
)

const issuer = "pagepurge"

var (
	ErrTokenMissing      = errors.New("token is missing")
	ErrTokenUsed         = errors.New("token was already used")
	ErrNamespaceMismatch = errors.New("token namespace mismatch")
)

// Claims are carried by every token
type Claims struct {
	Namespace string `json:"ns"`
	jwt.RegisteredClaims
}

// Service issues signed single-use tokens bound to an action namespace.
// Consumed token ids are remembered in Redis until the token would expire.
type Service struct {
	secret []byte
	ttl    time.Duration
	strict bool
	redis  *redis.Client
	keys   *redis.KeyGenerator
	logger *zap.Logger
	now    func() time.Time
}

func NewService(cfg configtypes.NonceConfig, client *redis.Client, keys *redis.KeyGenerator, logger *zap.Logger) *Service {
	return &Service{
		secret: []byte(cfg.Secret),
		ttl:    cfg.TTL.ToDuration(),
		strict: cfg.StrictNamespace,
		redis:  client,
		keys:   keys,
		logger: logger,
		now:    time.Now,
	}
}

// IssueToken signs a fresh token for namespace
func (s *Service) IssueToken(_ context.Context, namespace string) (string, error) {
	now := s.now()
	claims := Claims{
		Namespace: namespace,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry and issuer. The namespace is compared only
// in strict mode; otherwise a mismatch is logged and the token accepted.
func (s *Service) Verify(token, namespace string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("invalid token: missing id")
	}

	if claims.Namespace != namespace {
		if s.strict {
			return nil, ErrNamespaceMismatch
		}
		s.logger.Warn("Accepting token issued for another namespace",
			zap.String("expected", namespace),
			zap.String("actual", claims.Namespace))
	}
	return claims, nil
}

// VerifyAndConsume verifies token and marks it used. A second call with the
// same token returns ErrTokenUsed.
func (s *Service) VerifyAndConsume(ctx context.Context, token, namespace string) error {
	claims, err := s.Verify(token, namespace)
	if err != nil {
		return err
	}

	remaining := claims.ExpiresAt.Sub(s.now())
	if remaining < time.Second {
		remaining = time.Second
	}

	fresh, err := s.redis.SetNX(ctx, s.keys.NonceKey(claims.ID), claims.Namespace, remaining)
	if err != nil {
		return fmt.Errorf("failed to consume token: %w", err)
	}
	if !fresh {
		return ErrTokenUsed
	}
	return nil
}

// VerifyAndConsumeToken is the boolean form used by request hosts
func (s *Service) VerifyAndConsumeToken(ctx context.Context, token, namespace string) bool {
	if err := s.VerifyAndConsume(ctx, token, namespace); err != nil {
		s.logger.Debug("Token rejected",
			zap.String("namespace", namespace),
			zap.Error(err))
		return false
	}
	return true
}
