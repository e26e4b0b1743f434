package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/xenking/luxe-store/internal/domain/auth"
	"github.com/xenking/luxe-store/pkg/httpmiddleware"
)

const roleAdmin = "admin"

var _ auth.Gateway = (*JWTGateway)(nil)

// claims is the access token payload issued by the identity service.
type claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// JWTGateway resolves HS256 bearer tokens into identities.
type JWTGateway struct {
	secret []byte
	issuer string
}

// NewJWTGateway creates a gateway verifying tokens signed with secret. A
// non-empty issuer is enforced on every token.
func NewJWTGateway(secret []byte, issuer string) *JWTGateway {
	return &JWTGateway{secret: secret, issuer: issuer}
}

// Resolve verifies token and returns the identity it carries.
func (g *JWTGateway) Resolve(_ context.Context, token string) (auth.Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if g.issuer != "" {
		opts = append(opts, jwt.WithIssuer(g.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return g.secret, nil
	}, opts...)
	if err != nil {
		return auth.Identity{}, errors.Wrap(auth.ErrInvalidToken, err.Error())
	}

	id := c.UserID
	if id == "" {
		id = c.Subject
	}
	if id == "" {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return auth.Identity{UserID: id, Email: c.Email, IsAdmin: c.Role == roleAdmin}, nil
}

// Issue signs a token for id valid for ttl.
func (g *JWTGateway) Issue(id auth.Identity, ttl time.Duration) (string, error) {
	role := "customer"
	if id.IsAdmin {
		role = roleAdmin
	}
	now := time.Now()
	c := claims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    g.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.secret)
}

// Authenticate attaches the identity of a valid bearer token to the request.
// Requests without a token continue anonymously; a bad token is rejected.
func Authenticate(gw auth.Gateway) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				writeError(w, r, auth.ErrInvalidToken)
				return
			}
			id, err := gw.Resolve(r.Context(), strings.TrimSpace(token))
			if err != nil {
				writeError(w, r, err)
				return
			}
			ctx := auth.WithIdentity(r.Context(), id)
			ctx = zctx.With(ctx, zap.String("user_id", id.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimitKey keys authenticated callers by user and others by client IP.
func RateLimitKey(r *http.Request) string {
	if id, ok := auth.FromContext(r.Context()); ok {
		return "user:" + id.UserID
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}
