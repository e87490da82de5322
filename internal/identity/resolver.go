// Package identity maps inbound credentials to a caller identity.
package identity

import (
	"context"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is an authenticated identity-provider subject. It says nothing about
// whether a local User row exists for it.
type Caller struct {
	IdentityID string
}

// Resolver resolves a credential to a caller. A nil Caller means the request
// is anonymous; resolution never fails loudly.
type Resolver interface {
	Resolve(authHeader string) *Caller
}

// JWTResolver validates HMAC-signed bearer tokens and reads the subject claim.
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver returns a resolver for tokens signed with secret. When issuer
// is non-empty the iss claim must match it.
func NewJWTResolver(secret, issuer string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret), issuer: issuer}
}

// Resolve accepts either "Bearer <token>" or a bare token.
func (r *JWTResolver) Resolve(authHeader string) *Caller {
	tokenString := BearerToken(authHeader)
	if tokenString == "" {
		return nil
	}
	sub, err := r.subject(tokenString)
	if err != nil {
		return nil
	}
	return &Caller{IdentityID: sub}
}

func (r *JWTResolver) subject(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return r.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", errors.New("invalid or expired token")
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errors.New("token missing subject")
	}
	return sub, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	switch {
	case len(parts) == 2 && strings.EqualFold(parts[0], "Bearer"):
		return parts[1]
	case len(parts) == 1:
		return parts[0]
	default:
		return ""
	}
}

type callerKey struct{}

// WithCaller stores the caller on ctx; a nil caller is stored as anonymous.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

// FromContext returns the caller stored on ctx, or nil.
func FromContext(ctx context.Context) *Caller {
	caller, _ := ctx.Value(callerKey{}).(*Caller)
	return caller
}
