package middleware

import (
	"net/http"
	"time"

	"github.com/bynd/onepager/internal/errs"
	"github.com/bynd/onepager/internal/server"
	"github.com/clerk/clerk-sdk-go/v2"
	clerkhttp "github.com/clerk/clerk-sdk-go/v2/http"
	"github.com/labstack/echo/v4"
)

// AuthMiddleware verifies Clerk session tokens on the report API. With no
// secret key configured it lets every request through; config validation
// refuses that combination in production.
type AuthMiddleware struct {
	server *server.Server
}

func NewAuthMiddleware(s *server.Server) *AuthMiddleware {
	return &AuthMiddleware{server: s}
}

func (auth *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	if !auth.server.Config.Auth.Enabled() {
		return next
	}

	failure := clerkhttp.AuthorizationFailureHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth.server.Logger.Warn().
			Str("function", "RequireAuth").
			Str("path", r.URL.Path).
			Msg("rejected request without a valid session token")
		writeJSONError(w, errs.NewUnauthorizedError("Unauthorized", false))
	}))

	return echo.WrapMiddleware(clerkhttp.WithHeaderAuthorization(failure))(func(c echo.Context) error {
		start := time.Now()

		claims, ok := clerk.SessionClaimsFromContext(c.Request().Context())
		if !ok {
			auth.server.Logger.Error().
				Str("function", "RequireAuth").
				Str("request_id", GetRequestID(c)).
				Msg("could not get session claims from context")
			return errs.NewUnauthorizedError("Unauthorized", false)
		}

		setUser(c, claims.Subject, claims.ActiveOrganizationRole)

		auth.server.Logger.Debug().
			Str("function", "RequireAuth").
			Str("user_id", claims.Subject).
			Str("request_id", GetRequestID(c)).
			Dur("duration", time.Since(start)).
			Msg("user authenticated")

		return next(c)
	})
}
