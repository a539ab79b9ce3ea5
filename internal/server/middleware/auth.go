package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/identity"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/metrics"
	"github.com/fernhill/clienthub/internal/profile"
)

// WithBearerAuth verifies the bearer access token, resolves the principal,
// and attaches it to the request context. Requests whose account has no
// profile row are rejected here; protected APIs never see an unresolved
// caller.
func WithBearerAuth(tokens *credential.TokenIssuer, resolver *profile.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearer(c)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, err)
			return
		}

		accountID, err := tokens.VerifyAccess(token)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, errors.New("invalid token"))
			return
		}

		p, err := resolver.Resolve(c.Request.Context(), accountID)
		if err != nil {
			if errors.Is(err, profile.ErrNotFound) {
				AbortWithError(c, http.StatusForbidden, errors.New("no profile for account"))
			} else {
				AbortWithError(c, http.StatusInternalServerError, errors.New("failed to resolve principal"))
			}

			return
		}

		ctx, err := identity.WithPrincipal(c.Request.Context(), p)
		if err != nil {
			log.Error(c.Request.Context(), "failed to attach principal", log.Cause(err))
			AbortWithError(c, http.StatusInternalServerError, errors.New("internal server error"))

			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireTeamAdmin gates a route group to team administrators.
func RequireTeamAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := identity.GetPrincipal(c.Request.Context())
		if !ok || !p.IsTeam() || p.Team.Role != identity.TeamRoleAdmin {
			metrics.AccessDenials.Add(c.Request.Context(), 1)
			AbortWithError(c, http.StatusForbidden, errors.New("team administrator required"))

			return
		}

		c.Next()
	}
}

func extractBearer(c *gin.Context) (string, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", errors.New("missing authorization header")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", errors.New("authorization header must be a bearer token")
	}

	return token, nil
}
