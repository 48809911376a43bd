package auth

import (
	"errors"

	"log/slog"

	"github.com/serjnsk/dl-network/pkg/config"
	"github.com/serjnsk/dl-network/pkg/crypto"
	"github.com/serjnsk/dl-network/pkg/jwt"
)

// The dashboard is single-operator: one shared password unlocks an admin
// session token, carried as a cookie or bearer token.

var (
	ErrLoginDisabled      = errors.New("admin password is not configured")
	ErrInvalidCredentials = errors.New("invalid password")
)

// Service issues and validates dashboard sessions.
type Service struct {
	logger *slog.Logger
	cfg    config.DashboardConfig
}

// New returns an auth service.
func New(logger *slog.Logger, cfg config.DashboardConfig) Service {
	return Service{logger: logger, cfg: cfg}
}

// Login compares the shared password and issues a session token.
func (s Service) Login(password string) (string, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", ErrLoginDisabled
	}
	if err := crypto.ComparePassword([]byte(s.cfg.AdminPasswordHash), password); err != nil {
		return "", ErrInvalidCredentials
	}
	token, err := jwt.GenerateSession("admin", s.cfg.SessionSecret, s.cfg.SessionTTL)
	if err != nil {
		return "", err
	}
	s.logger.Info("admin session issued")
	return token, nil
}

// Authorize validates a session token.
func (s Service) Authorize(token string) (*jwt.SessionClaims, error) {
	return jwt.ParseSession(token, s.cfg.SessionSecret)
}
