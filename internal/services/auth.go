package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/requestdata"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

const minPasswordLength = 8

type JWTClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type LoginResult struct {
	AccessToken string      `json:"access_token"`
	User        *types.User `json:"user"`

	// MustResetPassword tells the client to route into the credential reset
	// flow before anything else. Set for accounts provisioned by checkout.
	MustResetPassword bool `json:"must_reset_password"`
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	// ResetPassword replaces the caller's credential and clears the
	// must-reset flag set by account provisioning.
	ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error
	// SetContextFromToken validates the bearer token and attaches the
	// authenticated caller to the context.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
}

type authService struct {
	db           *gorm.DB
	log          *logger.Logger
	userRepo     repos.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
}

func NewAuthService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, jwtSecretKey string, accessTTL time.Duration) AuthService {
	return &authService{
		db:           db,
		log:          log.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
	}
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if email == "" || password == "" {
		return nil, apierr.Invalid(errors.New("email and password are required"))
	}

	user, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("lookup user: %w", err))
	}
	if user == nil {
		return nil, apierr.Unauthorized(errors.New("invalid email or password"))
	}
	if cmpErr := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); cmpErr != nil {
		return nil, apierr.Unauthorized(errors.New("invalid email or password"))
	}

	token, err := s.generateAccessToken(user)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("sign access token: %w", err))
	}

	s.log.Info("User logged in", "user_id", user.ID, "must_reset", user.MustResetPassword)
	return &LoginResult{
		AccessToken:       token,
		User:              user,
		MustResetPassword: user.MustResetPassword,
	}, nil
}

func (s *authService) ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string) error {
	if userID == uuid.Nil {
		return apierr.Invalid(errors.New("user id is required"))
	}
	if len(newPassword) < minPasswordLength {
		return apierr.Invalid(fmt.Errorf("password must be at least %d characters", minPasswordLength))
	}

	user, err := s.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return apierr.Transient(fmt.Errorf("lookup user: %w", err))
	}
	if user == nil {
		return apierr.NotFound(fmt.Errorf("user %s not found", userID))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return apierr.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.userRepo.UpdatePassword(ctx, nil, userID, string(hash)); err != nil {
		return apierr.Transient(fmt.Errorf("update password: %w", err))
	}

	s.log.Info("Password reset", "user_id", userID)
	return nil
}

func (s *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, apierr.Unauthorized(errors.New("missing token"))
	}
	parsed, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecretKey), nil
	})
	if err != nil {
		return ctx, apierr.Unauthorized(fmt.Errorf("parse token: %w", err))
	}
	claims, ok := parsed.Claims.(*JWTClaims)
	if !ok || !parsed.Valid {
		return ctx, apierr.Unauthorized(errors.New("invalid or expired token"))
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized(fmt.Errorf("invalid user id in token: %w", err))
	}

	rd := &requestdata.RequestData{
		UserID:      userID,
		Role:        claims.Role,
		TokenString: tokenString,
	}
	return requestdata.WithRequestData(ctx, rd), nil
}

func (s *authService) generateAccessToken(user *types.User) (string, error) {
	claims := JWTClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecretKey))
}
