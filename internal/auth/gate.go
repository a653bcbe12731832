// Package auth validates bearer credentials for connection attempts. Every
// failure mode collapses to anonymous; nothing here panics or propagates
// credential errors past the gate.
package auth

import (
	"context"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abdelslam1997/light-messages-backend/internal/directory"
)

// Claims carried by an access token. The user_id claim identifies the
// connecting user.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Gate resolves a bearer credential to a user identity.
type Gate struct {
	secret    []byte
	directory directory.Directory
	log       *slog.Logger
}

func NewGate(secret string, dir directory.Directory, log *slog.Logger) *Gate {
	return &Gate{secret: []byte(secret), directory: dir, log: log}
}

// Resolve validates the credential and confirms the claimed user exists.
// Missing, malformed, expired or otherwise invalid credentials all resolve to
// anonymous (ok == false).
func (g *Gate) Resolve(ctx context.Context, credential string) (int64, bool) {
	if credential == "" {
		return 0, false
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims,
		func(t *jwt.Token) (any, error) { return g.secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
	)
	if err != nil || !token.Valid {
		g.log.Debug("auth: token rejected", "err", err)
		return 0, false
	}
	if claims.UserID <= 0 {
		return 0, false
	}

	if _, err := g.directory.LookupUser(ctx, claims.UserID); err != nil {
		g.log.Debug("auth: claimed user not resolvable", "user_id", claims.UserID, "err", err)
		return 0, false
	}
	return claims.UserID, true
}
