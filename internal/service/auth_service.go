package service

import (
	"context"
	"crypto/subtle"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/cache"
	"taskmanager/internal/errors"
	"taskmanager/internal/logger"
	"taskmanager/internal/model"
	"taskmanager/internal/repository"
)

const bcryptCost = 10

var (
	// ErrInvalidCredentials is returned when email or password is incorrect.
	ErrInvalidCredentials = stderrors.New("invalid email or password")
	// ErrUserAlreadyExists is returned when trying to register an existing user.
	ErrUserAlreadyExists = stderrors.New("user already exists")
	// ErrInvalidRefreshToken is returned when refresh token is invalid or expired.
	ErrInvalidRefreshToken = stderrors.New("invalid or expired refresh token")
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	Name             string
	Email            string
	Password         string
	ProfileImageURL  string
	AdminInviteToken string
}

// ProfileUpdate carries a partial profile update; nil fields are left unchanged.
type ProfileUpdate struct {
	Name            *string
	Email           *string
	Password        *string
	ProfileImageURL *string
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string, access *auth.Claims) error
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (user *model.User, accessToken string, err error)
}

type authService struct {
	userRepo         repository.UserRepository
	jwtService       *auth.JWTService
	tokenStore       auth.TokenStoreInterface
	cache            *cache.Client
	adminInviteToken string
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	userRepo repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
	cache *cache.Client,
	adminInviteToken string,
) AuthService {
	return &authService{
		userRepo:         userRepo,
		jwtService:       jwtService,
		tokenStore:       tokenStore,
		cache:            cache,
		adminInviteToken: adminInviteToken,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a new user with hashed password. A matching invite token grants the admin role.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := normalizeEmail(in.Email)

	// Check if user already exists
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil && existing != nil {
		return nil, ErrUserAlreadyExists
	}
	// If error is not "record not found", return it (could be a database error)
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	role := model.RoleMember
	if s.adminInviteToken != "" && in.AdminInviteToken != "" &&
		subtle.ConstantTimeCompare([]byte(in.AdminInviteToken), []byte(s.adminInviteToken)) == 1 {
		role = model.RoleAdmin
	}

	user := &model.User{
		ID:              uuid.New(),
		Name:            strings.TrimSpace(in.Name),
		Email:           email,
		PasswordHash:    string(hashedPassword),
		ProfileImageURL: in.ProfileImageURL,
		Role:            role,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	logger.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return user, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (accessToken, refreshToken string, user *model.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user)
	if err != nil {
		return "", "", nil, fmt.Errorf("generate refresh token: %w", err)
	}

	// Store refresh token in Redis
	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, auth.RefreshTokenExpiry); err != nil {
		return "", "", nil, fmt.Errorf("store refresh token: %w", err)
	}

	return accessToken, refreshToken, user, nil
}

// RefreshToken validates a refresh token and returns a new access token carrying the stored role.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error) {
	claims, err := s.jwtService.ValidateToken(refreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh || claims.ID == "" {
		return "", ErrInvalidRefreshToken
	}

	// Verify token exists in Redis and belongs to the same user
	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if err != nil || storedUserID != claims.UserID {
		return "", ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidRefreshToken
		}
		return "", fmt.Errorf("load user: %w", err)
	}

	accessToken, err = s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout revokes the refresh token, if given, and blacklists the current access token until it expires.
func (s *authService) Logout(ctx context.Context, refreshToken string, access *auth.Claims) error {
	if refreshToken != "" {
		tokenID, err := s.jwtService.ExtractTokenID(refreshToken)
		if err != nil {
			return ErrInvalidRefreshToken
		}
		if err := s.tokenStore.DeleteRefreshToken(ctx, tokenID); err != nil {
			return fmt.Errorf("delete refresh token: %w", err)
		}
	}

	if access != nil && access.ID != "" {
		if err := s.tokenStore.BlacklistAccessToken(ctx, access.ID, access.RemainingTTL(time.Now())); err != nil {
			return fmt.Errorf("blacklist access token: %w", err)
		}
	}
	return nil
}

// Profile returns the stored user.
func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

// UpdateProfile changes name, email, password or image and issues a fresh access token.
func (s *authService) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileUpdate) (*model.User, string, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, "", err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, "", errors.NewValidationError("name", "must not be empty")
		}
		user.Name = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if email != user.Email {
			other, err := s.userRepo.FindByEmail(ctx, email)
			if err == nil && other != nil && other.ID != user.ID {
				return nil, "", ErrUserAlreadyExists
			}
			if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, "", fmt.Errorf("check email: %w", err)
			}
			user.Email = email
		}
	}
	if in.Password != nil {
		if len(*in.Password) < 6 {
			return nil, "", errors.NewValidationError("password", "must be at least 6 characters")
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcryptCost)
		if err != nil {
			return nil, "", fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = string(hashed)
	}
	if in.ProfileImageURL != nil {
		user.ProfileImageURL = *in.ProfileImageURL
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, "", fmt.Errorf("update user: %w", err)
	}
	_ = s.cache.Delete(ctx, userCacheKey(user.ID))

	accessToken, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, "", fmt.Errorf("generate access token: %w", err)
	}
	return user, accessToken, nil
}
