package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/recordshelf/apiserver/config"
	"github.com/recordshelf/apiserver/internal/mq"
	"github.com/recordshelf/apiserver/internal/store"
	"github.com/recordshelf/apiserver/types"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id int) (types.User, error)
	GetByUsername(ctx context.Context, username string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	MarkVerified(ctx context.Context, id int) error
	SetProfilePicture(ctx context.Context, id int, pictureURL string) error
	Search(ctx context.Context, q string, limit int) ([]types.UserSummary, error)
}

// Publisher sends verification-email jobs to the message queue.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// Tokens is the credential pair returned on login.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Verification outcomes. Verify never fails for a replayed link on an
// already-verified account; it reports AlreadyVerified instead.
const (
	VerifySuccess         = "success"
	VerifyAlreadyVerified = "already_verified"
	VerifyExpired         = "expired"
	VerifyInvalid         = "invalid"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)

// AuthService implements registration, email verification, and the
// access/refresh token session lifecycle.
type AuthService struct {
	users     UserRepository
	publisher Publisher
	cfg       config.AuthConfig
	secret    []byte
	frontend  string
	logger    *zap.Logger
}

func NewAuthService(users UserRepository, publisher Publisher, cfg config.AuthConfig, frontendURL string, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:     users,
		publisher: publisher,
		cfg:       cfg,
		secret:    []byte(cfg.JWTSecret),
		frontend:  strings.TrimRight(frontendURL, "/"),
		logger:    logger,
	}
}

// RegisterInput is the registration payload after JSON decoding.
type RegisterInput struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register validates the input, creates an unverified account, and enqueues
// a verification email. It does not log the user in.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (types.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))

	if ve := validateRegistration(input); ve != nil {
		return types.User{}, ve
	}

	if _, err := s.users.GetByUsername(ctx, input.Username); err == nil {
		return types.User{}, conflictError("username", "username already taken")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check username: %w", err)
	}
	if _, err := s.users.GetByEmail(ctx, input.Email); err == nil {
		return types.User{}, conflictError("email", "email already registered")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return types.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, types.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		// Concurrent registration can slip past the pre-checks; the unique
		// constraints are authoritative.
		if errors.Is(err, store.ErrDuplicate) {
			return types.User{}, conflictError("username", "username or email already taken")
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	s.sendVerificationEmail(ctx, user)
	return user, nil
}

// sendVerificationEmail enqueues the verification job. Failure to publish
// does not fail registration; the user can request a resend.
func (s *AuthService) sendVerificationEmail(ctx context.Context, user types.User) {
	if s.publisher == nil {
		s.logger.Warn("no mail publisher configured, skipping verification email",
			zap.String("username", user.Username))
		return
	}

	token, err := IssueToken(s.secret, user.ID, TokenTypeVerify, s.cfg.VerifyTokenTTL)
	if err != nil {
		s.logger.Error("issue verification token", zap.Error(err))
		return
	}

	job := types.VerificationEmailJob{
		Email:    user.Email,
		Username: user.Username,
		Link:     fmt.Sprintf("%s/verify?token=%s", s.frontend, url.QueryEscape(token)),
	}
	data, err := json.Marshal(job)
	if err != nil {
		s.logger.Error("marshal verification job", zap.Error(err))
		return
	}

	if _, err := s.publisher.Publish(ctx, mq.VerificationEmailQueue, data, nil); err != nil {
		s.logger.Error("publish verification job", zap.Error(err),
			zap.String("username", user.Username))
	}
}

// Verify resolves a verification token. Idempotent for verified accounts.
func (s *AuthService) Verify(ctx context.Context, token string) (string, error) {
	userID, err := ParseToken(s.secret, token, TokenTypeVerify)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return VerifyExpired, nil
		}
		return VerifyInvalid, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return VerifyInvalid, nil
		}
		return "", fmt.Errorf("load user: %w", err)
	}
	if user.IsVerified {
		return VerifyAlreadyVerified, nil
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return "", fmt.Errorf("mark verified: %w", err)
	}
	return VerifySuccess, nil
}

// Login checks credentials and issues the access/refresh token pair.
// Unverified accounts are rejected before the password is examined so the
// client can show a tailored message.
func (s *AuthService) Login(ctx context.Context, username, password string) (types.User, Tokens, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, Tokens{}, ErrInvalidCredentials
		}
		return types.User{}, Tokens{}, fmt.Errorf("load user: %w", err)
	}

	if !user.IsVerified {
		return types.User{}, Tokens{}, ErrEmailUnverified
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return types.User{}, Tokens{}, ErrInvalidCredentials
	}

	access, err := IssueToken(s.secret, user.ID, TokenTypeAccess, s.cfg.AccessTokenTTL)
	if err != nil {
		return types.User{}, Tokens{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, err := IssueToken(s.secret, user.ID, TokenTypeRefresh, s.cfg.RefreshTokenTTL)
	if err != nil {
		return types.User{}, Tokens{}, fmt.Errorf("issue refresh token: %w", err)
	}

	return user, Tokens{AccessToken: access, RefreshToken: refresh}, nil
}

// Refresh mints a new access token from a valid refresh token. The refresh
// token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	userID, err := ParseToken(s.secret, refreshToken, TokenTypeRefresh)
	if err != nil {
		return "", err
	}

	// The account must still exist; tokens outlive nothing else.
	if _, err := s.users.GetByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	return IssueToken(s.secret, userID, TokenTypeAccess, s.cfg.AccessTokenTTL)
}

func validateRegistration(input RegisterInput) *ValidationError {
	fields := make(map[string]string)

	if input.Username == "" {
		fields["username"] = "username is required"
	} else if !usernamePattern.MatchString(input.Username) {
		fields["username"] = "username must be 3-30 characters of letters, digits, or underscores"
	}

	if input.Email == "" {
		fields["email"] = "email is required"
	} else if !strings.Contains(input.Email, "@") || strings.ContainsAny(input.Email, " \t") {
		fields["email"] = "email is not valid"
	}

	if len(input.Password) < 8 {
		fields["password"] = "password must be at least 8 characters"
	}

	if input.ConfirmPassword != input.Password {
		fields["confirm_password"] = "passwords do not match"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
