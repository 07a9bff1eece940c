package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader               = "Authorization"
	tokenPrefix               = "Bearer "
	UserClaimsKey  contextKey = "user_claims"
	BidderIDKey    contextKey = "bidder_id"
	PermissionsKey contextKey = "permissions"
)

// Middleware rejects requests without a valid Bearer token and injects the
// caller's claims and bidder id into the request context.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get(tokenHeader)
			if authHeader == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				writeUnauthorized(w, "invalid authorization header format")
				return
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			bidderID, err := claims.BidderID()
			if err != nil {
				writeUnauthorized(w, "invalid token subject")
				return
			}

			ctx := WithClaims(r.Context(), claims, bidderID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims stores identity in ctx the same way Middleware does.
func WithClaims(ctx context.Context, claims *Claims, bidderID uuid.UUID) context.Context {
	ctx = context.WithValue(ctx, UserClaimsKey, claims)
	ctx = context.WithValue(ctx, BidderIDKey, bidderID)
	return context.WithValue(ctx, PermissionsKey, claims.Permissions)
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// GetBidderID retrieves the authenticated bidder from the context.
func GetBidderID(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(BidderIDKey).(uuid.UUID)
	return id, ok
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
