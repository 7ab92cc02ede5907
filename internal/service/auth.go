package service

import (
	"github.com/bynd/onepager/internal/server"
	"github.com/clerk/clerk-sdk-go/v2"
)

type AuthService struct {
	server  *server.Server
	enabled bool
}

// NewAuthService configures the Clerk SDK when a secret key is present.
func NewAuthService(s *server.Server) *AuthService {
	enabled := s.Config.Auth.Enabled()
	if enabled {
		clerk.SetKey(s.Config.Auth.SecretKey)
	} else {
		s.Logger.Warn().Msg("clerk secret key not set, write routes are unauthenticated")
	}
	return &AuthService{server: s, enabled: enabled}
}

// Enabled reports whether requests are authenticated.
func (a *AuthService) Enabled() bool {
	return a.enabled
}
