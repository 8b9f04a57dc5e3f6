package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zapstock/internal/domain"
	"zapstock/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptCost is the cost factor for bcrypt hashing
const BcryptCost = 10

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenExpired       = errors.New("token has expired")
)

// UserService defines the interface for account and session business logic
type UserService interface {
	Register(ctx context.Context, email, password, name string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (accessToken, sessionToken string, user *domain.User, err error)
	Logout(ctx context.Context, sessionToken string) error
	Refresh(ctx context.Context, sessionToken string) (newAccessToken string, err error)
	ValidateToken(tokenString string) (*Claims, error)
	Authenticate(ctx context.Context, tokenString string) (*domain.Principal, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// Claims represents the JWT claims
type Claims struct {
	UserID    uuid.UUID `json:"user_id"`
	Role      string    `json:"role"`
	SessionID uuid.UUID `json:"session_id"`
	jwt.RegisteredClaims
}

// TokenSettings controls token lifetimes.
type TokenSettings struct {
	Secret        string
	AccessExpiry  time.Duration
	SessionExpiry time.Duration
}

type userService struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	tokens      TokenSettings
	logger      *zap.Logger
	now         func() time.Time
}

// NewUserService creates a new instance of UserService
func NewUserService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	tokens TokenSettings,
	logger *zap.Logger,
) UserService {
	if tokens.AccessExpiry <= 0 {
		tokens.AccessExpiry = 15 * time.Minute
	}
	if tokens.SessionExpiry <= 0 {
		tokens.SessionExpiry = 30 * 24 * time.Hour
	}
	return &userService{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates a new user account with hashed password
func (s *userService) Register(ctx context.Context, email, password, name string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	existingUser, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existingUser != nil {
		return nil, fmt.Errorf("%w: email already registered", domain.ErrAlreadyExists)
	}

	hashedPassword, err := s.hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		Name:         strings.TrimSpace(name),
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}

// Login authenticates a user, opens a session and returns an access token bound to it
func (s *userService) Login(ctx context.Context, email, password string) (accessToken, sessionToken string, user *domain.User, err error) {
	user, err = s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return "", "", nil, ErrInvalidCredentials
		}
		return "", "", nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := s.verifyPassword(user.PasswordHash, password); err != nil {
		return "", "", nil, ErrInvalidCredentials
	}

	session, err := s.openSession(ctx, user)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to open session: %w", err)
	}

	accessToken, err = s.generateAccessToken(user, session.ID)
	if err != nil {
		return "", "", nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	return accessToken, session.Token, user, nil
}

// Logout revokes the session. Unknown or already revoked sessions are treated as logged out.
func (s *userService) Logout(ctx context.Context, sessionToken string) error {
	if err := s.sessionRepo.Revoke(ctx, sessionToken); err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) {
			return nil
		}
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// Refresh issues a new access token for a live session
func (s *userService) Refresh(ctx context.Context, sessionToken string) (string, error) {
	session, err := s.liveSession(s.sessionRepo.FindByToken(ctx, sessionToken))
	if err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}

	newAccessToken, err := s.generateAccessToken(user, session.ID)
	if err != nil {
		return "", fmt.Errorf("failed to generate access token: %w", err)
	}

	return newAccessToken, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *userService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.tokens.Secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Authenticate validates an access token and checks that the session it was issued for is
// still live, so logging out takes effect before the token expires.
func (s *userService) Authenticate(ctx context.Context, tokenString string) (*domain.Principal, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}

	if _, err := s.liveSession(s.sessionRepo.FindByID(ctx, claims.SessionID)); err != nil {
		return nil, err
	}

	return &domain.Principal{
		UserID:    claims.UserID,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *userService) GetUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (s *userService) liveSession(session *domain.Session, err error) (*domain.Session, error) {
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) || errors.Is(err, domain.ErrSessionRevoked) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session.Expired(s.now()) {
		return nil, ErrTokenExpired
	}
	return session, nil
}

func (s *userService) hashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *userService) verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// generateAccessToken generates a JWT access token carrying user, role and session claims
func (s *userService) generateAccessToken(user *domain.User, sessionID uuid.UUID) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokens.AccessExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.tokens.Secret))
}

// openSession persists a new session with a random opaque token
func (s *userService) openSession(ctx context.Context, user *domain.User) (*domain.Session, error) {
	now := s.now()
	session := &domain.Session{
		ID:        uuid.New(),
		UserID:    user.ID,
		Token:     uuid.New().String(),
		ExpiresAt: now.Add(s.tokens.SessionExpiry),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	return session, nil
}
