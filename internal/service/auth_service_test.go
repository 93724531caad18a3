package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"taskmanager/internal/auth"
	"taskmanager/internal/model"
)

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) List(ctx context.Context) ([]model.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.User), args.Error(1)
}

func (m *MockUserRepository) CountByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

// MockTokenStore is a mock implementation of TokenStoreInterface.
type MockTokenStore struct {
	mock.Mock
}

func (m *MockTokenStore) StoreRefreshToken(ctx context.Context, tokenID string, userID uuid.UUID, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, userID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) GetRefreshToken(ctx context.Context, tokenID string) (uuid.UUID, error) {
	args := m.Called(ctx, tokenID)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockTokenStore) DeleteRefreshToken(ctx context.Context, tokenID string) error {
	args := m.Called(ctx, tokenID)
	return args.Error(0)
}

func (m *MockTokenStore) BlacklistAccessToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	args := m.Called(ctx, tokenID, ttl)
	return args.Error(0)
}

func (m *MockTokenStore) IsAccessTokenBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	args := m.Called(ctx, tokenID)
	return args.Bool(0), args.Error(1)
}

const testInviteToken = "invite-123"

func newTestAuthService(repo *MockUserRepository, store *MockTokenStore) (AuthService, *auth.JWTService) {
	jwtService := auth.NewJWTService("test-secret")
	return NewAuthService(repo, jwtService, store, nil, testInviteToken), jwtService
}

func hashedUser(email, password string, role model.Role) *model.User {
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	return &model.User{
		ID:           uuid.New(),
		Name:         "Test User",
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         role,
	}
}

func TestAuthService_Register(t *testing.T) {
	tests := []struct {
		name          string
		input         RegisterInput
		setupMock     func(*MockUserRepository)
		expectedRole  model.Role
		expectedError error
	}{
		{
			name:  "member registration",
			input: RegisterInput{Name: "Test User", Email: "Test@Example.com ", Password: "password123"},
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleMember,
		},
		{
			name:  "admin invite token",
			input: RegisterInput{Name: "Boss", Email: "boss@example.com", Password: "password123", AdminInviteToken: testInviteToken},
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "boss@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleAdmin,
		},
		{
			name:  "wrong invite token falls back to member",
			input: RegisterInput{Name: "Guess", Email: "guess@example.com", Password: "password123", AdminInviteToken: "nope"},
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "guess@example.com").Return(nil, gorm.ErrRecordNotFound)
				m.On("Create", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)
			},
			expectedRole: model.RoleMember,
		},
		{
			name:  "user already exists",
			input: RegisterInput{Name: "Existing", Email: "existing@example.com", Password: "password123"},
			setupMock: func(m *MockUserRepository) {
				m.On("FindByEmail", mock.Anything, "existing@example.com").Return(&model.User{Email: "existing@example.com"}, nil)
			},
			expectedError: ErrUserAlreadyExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)

			service, _ := newTestAuthService(mockRepo, new(MockTokenStore))
			user, err := service.Register(context.Background(), tt.input)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError, err)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				require.NotNil(t, user)
				assert.Equal(t, normalizeEmail(tt.input.Email), user.Email)
				assert.Equal(t, tt.input.Name, user.Name)
				assert.Equal(t, tt.expectedRole, user.Role)
				assert.NotEmpty(t, user.PasswordHash)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestAuthService_Login(t *testing.T) {
	existing := hashedUser("test@example.com", "password123", model.RoleMember)

	tests := []struct {
		name          string
		email         string
		password      string
		setupMock     func(*MockUserRepository, *MockTokenStore)
		expectedError error
	}{
		{
			name:     "successful login",
			email:    "test@example.com",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "test@example.com").Return(existing, nil)
				mToken.On("StoreRefreshToken", mock.Anything, mock.Anything, existing.ID, auth.RefreshTokenExpiry).Return(nil)
			},
		},
		{
			name:     "invalid credentials - wrong password",
			email:    "test@example.com",
			password: "wrong",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "test@example.com").Return(existing, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name:     "invalid credentials - user not found",
			email:    "notfound@example.com",
			password: "password123",
			setupMock: func(mRepo *MockUserRepository, mToken *MockTokenStore) {
				mRepo.On("FindByEmail", mock.Anything, "notfound@example.com").Return(nil, gorm.ErrRecordNotFound)
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockTokenStore := new(MockTokenStore)
			tt.setupMock(mockRepo, mockTokenStore)

			service, _ := newTestAuthService(mockRepo, mockTokenStore)
			accessToken, refreshToken, user, err := service.Login(context.Background(), tt.email, tt.password)

			if tt.expectedError != nil {
				assert.Error(t, err)
				assert.Equal(t, tt.expectedError, err)
				assert.Empty(t, accessToken)
				assert.Empty(t, refreshToken)
				assert.Nil(t, user)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, accessToken)
				assert.NotEmpty(t, refreshToken)
				require.NotNil(t, user)
				assert.Equal(t, tt.email, user.Email)
			}

			mockRepo.AssertExpectations(t)
			mockTokenStore.AssertExpectations(t)
		})
	}
}

func TestAuthService_RefreshToken(t *testing.T) {
	user := hashedUser("test@example.com", "password123", model.RoleMember)

	t.Run("issues access token with stored role", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockTokenStore := new(MockTokenStore)
		service, jwtService := newTestAuthService(mockRepo, mockTokenStore)

		tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
		require.NoError(t, err)

		promoted := *user
		promoted.Role = model.RoleAdmin
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(user.ID, nil)
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(&promoted, nil)

		accessToken, err := service.RefreshToken(context.Background(), refreshToken)
		require.NoError(t, err)

		claims, err := jwtService.ValidateToken(accessToken)
		require.NoError(t, err)
		assert.Equal(t, model.RoleAdmin, claims.Role)
		assert.Equal(t, auth.TokenTypeAccess, claims.TokenType)
	})

	t.Run("revoked token", func(t *testing.T) {
		mockTokenStore := new(MockTokenStore)
		service, jwtService := newTestAuthService(new(MockUserRepository), mockTokenStore)

		tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
		require.NoError(t, err)
		mockTokenStore.On("GetRefreshToken", mock.Anything, tokenID).Return(uuid.Nil, assert.AnError)

		_, err = service.RefreshToken(context.Background(), refreshToken)
		assert.Equal(t, ErrInvalidRefreshToken, err)
	})

	t.Run("access token is not a refresh token", func(t *testing.T) {
		service, jwtService := newTestAuthService(new(MockUserRepository), new(MockTokenStore))

		accessToken, err := jwtService.GenerateAccessToken(user)
		require.NoError(t, err)

		_, err = service.RefreshToken(context.Background(), accessToken)
		assert.Equal(t, ErrInvalidRefreshToken, err)
	})
}

func TestAuthService_Logout(t *testing.T) {
	user := hashedUser("test@example.com", "password123", model.RoleMember)
	mockTokenStore := new(MockTokenStore)
	service, jwtService := newTestAuthService(new(MockUserRepository), mockTokenStore)

	tokenID, refreshToken, err := jwtService.GenerateRefreshToken(user)
	require.NoError(t, err)
	accessToken, err := jwtService.GenerateAccessToken(user)
	require.NoError(t, err)
	accessClaims, err := jwtService.ValidateToken(accessToken)
	require.NoError(t, err)

	mockTokenStore.On("DeleteRefreshToken", mock.Anything, tokenID).Return(nil)
	mockTokenStore.On("BlacklistAccessToken", mock.Anything, accessClaims.ID,
		mock.MatchedBy(func(ttl time.Duration) bool { return ttl > 0 && ttl <= auth.AccessTokenExpiry }),
	).Return(nil)

	require.NoError(t, service.Logout(context.Background(), refreshToken, accessClaims))
	mockTokenStore.AssertExpectations(t)

	assert.Equal(t, ErrInvalidRefreshToken, service.Logout(context.Background(), "garbage", nil))
}

func TestAuthService_UpdateProfile(t *testing.T) {
	user := hashedUser("test@example.com", "password123", model.RoleMember)

	t.Run("email taken", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service, _ := newTestAuthService(mockRepo, new(MockTokenStore))

		current := *user
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(&current, nil)
		mockRepo.On("FindByEmail", mock.Anything, "taken@example.com").Return(&model.User{ID: uuid.New()}, nil)

		email := "taken@example.com"
		_, _, err := service.UpdateProfile(context.Background(), user.ID, ProfileUpdate{Email: &email})
		assert.Equal(t, ErrUserAlreadyExists, err)
		mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	})

	t.Run("rename and new password", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		service, jwtService := newTestAuthService(mockRepo, new(MockTokenStore))

		current := *user
		mockRepo.On("FindByID", mock.Anything, user.ID).Return(&current, nil)
		mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*model.User")).Return(nil)

		name, password := "Renamed", "newpassword"
		updated, accessToken, err := service.UpdateProfile(context.Background(), user.ID, ProfileUpdate{Name: &name, Password: &password})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", updated.Name)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(updated.PasswordHash), []byte(password)))

		_, err = jwtService.ValidateToken(accessToken)
		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})
}
