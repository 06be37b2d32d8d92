// Package service: authentication business logic.
//
// AuthService sits between the HTTP handlers and the repository/auth
// utilities:
//
//	AuthHandler (HTTP) → AuthService (business rules) → UserRepository (DB)
//	                   ↘ TokenService (JWT), PasswordService (bcrypt)
//
// Two ways in lead to the same result, a user record plus a signed JWT:
//   - Local accounts: Register / Login with a bcrypt-hashed password
//   - GitHub OAuth: LoginOrRegisterGitHub after the handler's code exchange
//
// Admin rights come from configuration (ADMIN_LOGINS). A listed login is
// promoted on register and on every login, and the flag travels inside the
// token so RequireAdmin never needs a database round trip.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snipshare/internal/apperror"
	"github.com/sakif/snipshare/internal/auth"
	"github.com/sakif/snipshare/internal/model"
	"github.com/sakif/snipshare/internal/repository"
)

// errBadCredentials is deliberately vague: it must not reveal whether the
// login exists.
var errBadCredentials = apperror.Unauthorized("invalid login or password")

// RegisterInput is the body of a local sign-up.
type RegisterInput struct {
	Login    string `json:"login"    validate:"required,login"`
	Email    string `json:"email"    validate:"omitempty,max=254,email"`
	Password string `json:"password" validate:"required"`
}

// LoginInput is the body of a local sign-in.
type LoginInput struct {
	Login    string `json:"login"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService handles the authentication business logic.
type AuthService struct {
	users       repository.UserRepository
	tokens      *auth.TokenService
	passwords   *auth.PasswordService
	adminLogins map[string]bool
	logger      *slog.Logger
}

// NewAuthService creates an AuthService. adminLogins are compared without
// regard to case.
func NewAuthService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	adminLogins []string,
	logger *slog.Logger,
) *AuthService {
	admins := make(map[string]bool, len(adminLogins))
	for _, l := range adminLogins {
		if l = strings.ToLower(strings.TrimSpace(l)); l != "" {
			admins[l] = true
		}
	}
	return &AuthService{
		users:       users,
		tokens:      tokens,
		passwords:   passwords,
		adminLogins: admins,
		logger:      logger,
	}
}

// AuthResult bundles the user record and the issued JWT so the handler can
// set the cookie and respond in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a local account and signs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Login = strings.TrimSpace(in.Login)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if err := checkPasswordLength(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("service/auth: hashing password: %w", err)
	}

	user := &model.User{
		Login:        in.Login,
		Email:        in.Email,
		PasswordHash: hash,
		IsAdmin:      s.isAdminLogin(in.Login),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: creating user %q: %w", in.Login, err)
	}

	s.logger.Info("user registered",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// Login checks a local account's password. Unknown logins and wrong
// passwords produce the same error and take about the same time.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Login = strings.TrimSpace(in.Login)
	if err := validateStruct(in); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByLogin(ctx, in.Login)
	if err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("service/auth: looking up %q: %w", in.Login, err)
		}
		// Burn a bcrypt comparison so timing does not leak existence.
		_ = s.passwords.Verify("", in.Password)
		return nil, errBadCredentials
	}

	if err := s.passwords.Verify(user.PasswordHash, in.Password); err != nil {
		s.logger.Warn("failed login", slog.String("login", in.Login))
		return nil, errBadCredentials
	}

	if s.isAdminLogin(user.Login) && !user.IsAdmin {
		user.IsAdmin = true
	}

	s.logger.Info("user logged in",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback: the user is
// upserted on github_id (created on first login, email and avatar refreshed
// afterwards) and a token issued.
func (s *AuthService) LoginOrRegisterGitHub(ctx context.Context, ghUser *auth.GitHubUser) (*AuthResult, error) {
	if ghUser == nil {
		return nil, fmt.Errorf("service/auth: GitHub user must not be nil")
	}

	user := &model.User{
		GitHubID:  ghUser.ID,
		Login:     ghUser.Login,
		Email:     ghUser.Email,
		AvatarURL: ghUser.AvatarURL,
		IsAdmin:   s.isAdminLogin(ghUser.Login),
	}

	// After this call user.ID is populated by the repository.
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, fmt.Errorf("service/auth: upserting user (githubID=%d): %w", ghUser.ID, err)
	}

	s.logger.Info("user authenticated via GitHub",
		slog.String("userID", user.ID),
		slog.String("login", user.Login),
	)
	return s.issue(user)
}

// GetUserByID returns the user for the given internal ID. Used by /api/me
// once the middleware has validated the token.
func (s *AuthService) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperror.ValidationFailed("id", "user ID is required")
	}

	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("service/auth: fetching user %s: %w", id, err)
	}
	if s.isAdminLogin(user.Login) {
		user.IsAdmin = true
	}
	return user, nil
}

func (s *AuthService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(auth.Identity{UserID: user.ID, IsAdmin: user.IsAdmin})
	if err != nil {
		return nil, fmt.Errorf("service/auth: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

func (s *AuthService) isAdminLogin(login string) bool {
	return s.adminLogins[strings.ToLower(login)]
}

// checkPasswordLength counts bytes, not runes: bcrypt only looks at the
// first 72 bytes.
func checkPasswordLength(pw string) error {
	switch {
	case len(pw) < auth.MinPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at least %d bytes", auth.MinPasswordBytes))
	case len(pw) > auth.MaxPasswordBytes:
		return apperror.ValidationFailed("password",
			fmt.Sprintf("password must be at most %d bytes", auth.MaxPasswordBytes))
	}
	return nil
}
