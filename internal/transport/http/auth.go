package http

import (
	"errors"
	"fmt"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"sessionbook/backend/internal/domain"
)

const actorKey = "sessionbook.actor"

var errUnauthenticated = errors.New("unauthenticated")

// Claims are the bearer token claims. The subject is the caller's id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator verifies HS256 bearer tokens and turns them into actors.
type Authenticator struct {
	secret []byte
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{secret: []byte(secret), now: time.Now}
}

// IssueToken signs a token for actor. Used by tooling and tests; production
// tokens come from the identity service sharing the secret.
func (a *Authenticator) IssueToken(actor domain.Actor, ttl time.Duration) (string, error) {
	now := a.now()
	claims := Claims{
		Role: string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *Authenticator) Parse(token string) (domain.Actor, error) {
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %w", errUnauthenticated, err)
	}
	if !t.Valid {
		return domain.Actor{}, errUnauthenticated
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: bad subject", errUnauthenticated)
	}
	role := domain.Role(claims.Role)
	switch role {
	case domain.RoleClient, domain.RolePsychologist, domain.RoleAdmin:
	default:
		return domain.Actor{}, fmt.Errorf("%w: unknown role %q", errUnauthenticated, claims.Role)
	}
	return domain.Actor{ID: id, Role: role}, nil
}

func (a *Authenticator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a == nil {
			c.AbortWithStatusJSON(nethttp.StatusUnauthorized, errorBody("unauthorized", "authentication is not configured"))
			return
		}
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(nethttp.StatusUnauthorized, errorBody("unauthorized", "bearer token required"))
			return
		}
		actor, err := a.Parse(strings.TrimSpace(token))
		if err != nil {
			c.AbortWithStatusJSON(nethttp.StatusUnauthorized, errorBody("unauthorized", "invalid or expired token"))
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

func actorFrom(c *gin.Context) domain.Actor {
	v, _ := c.Get(actorKey)
	actor, _ := v.(domain.Actor)
	return actor
}
