package services

import (
	"context"
	"errors"

	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/config"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/models"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/repositories"
	"github.com/ToolsAustralia/ToolsAustralia-sub008/internal/utils"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/exp/slog"
)

var _ AuthService = (*AuthServiceImpl)(nil)

// AuthServiceImpl handles admin authentication
type AuthServiceImpl struct {
	adminUserRepo repositories.AdminUserRepository
	cfg           *config.Config
}

// NewAuthService creates a new AuthServiceImpl
func NewAuthService(adminUserRepo repositories.AdminUserRepository, cfg *config.Config) *AuthServiceImpl {
	return &AuthServiceImpl{
		adminUserRepo: adminUserRepo,
		cfg:           cfg,
	}
}

// Login verifies credentials and issues a JWT
func (s *AuthServiceImpl) Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error) {
	adminUser, err := s.adminUserRepo.FindByEmail(ctx, req.Email)
	if err != nil {
		slog.Warn("Login attempt for unknown admin", "email", req.Email)
		return nil, errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(adminUser.Password), []byte(req.Password)); err != nil {
		slog.Warn("Login attempt with wrong password", "email", req.Email)
		return nil, errors.New("invalid credentials")
	}

	token, err := utils.GenerateJWT(adminUser.ID.Hex(), adminUser.Role, s.cfg)
	if err != nil {
		slog.Error("Failed to generate JWT", "error", err)
		return nil, errors.New("failed to generate token")
	}

	return &models.LoginResponse{
		Token:     token,
		ExpiresIn: s.cfg.JWT.ExpiresIn,
	}, nil
}
