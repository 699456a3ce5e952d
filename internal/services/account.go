package services

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/franciosse/piscine-organique-backend/internal/apierr"
	"github.com/franciosse/piscine-organique-backend/internal/logger"
	"github.com/franciosse/piscine-organique-backend/internal/repos"
	"github.com/franciosse/piscine-organique-backend/internal/types"
)

// tempPasswordBytes is the entropy of a generated temporary credential.
// 24 random bytes comfortably clears the 16-byte floor.
const tempPasswordBytes = 24

type FindOrCreateInput struct {
	Email       string
	DisplayName string

	// ProvisionedViaPayment marks the account as created by checkout, which
	// forces a credential reset on first login.
	ProvisionedViaPayment bool
}

type FindOrCreateResult struct {
	UserID    uuid.UUID
	UserEmail string
	IsNewUser bool

	// TempPassword is the plaintext temporary credential, present only when
	// IsNewUser is true. It exists solely in this return value: the store
	// keeps the bcrypt hash and the logger redacts credential keys.
	TempPassword string
}

type AccountService interface {
	// FindOrCreateUser resolves an email to a user account, creating one
	// with a temporary credential when none exists. Concurrent calls for
	// the same email converge on a single row via the unique email index.
	FindOrCreateUser(ctx context.Context, in FindOrCreateInput) (*FindOrCreateResult, error)
}

type accountService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewAccountService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) AccountService {
	return &accountService{db: db, log: log.With("service", "AccountService"), userRepo: userRepo}
}

func (s *accountService) FindOrCreateUser(ctx context.Context, in FindOrCreateInput) (*FindOrCreateResult, error) {
	email := repos.NormalizeEmail(in.Email)
	if email == "" {
		return nil, apierr.Invalid(errors.New("email is required"))
	}

	existing, err := s.userRepo.GetByEmail(ctx, nil, email)
	if err != nil {
		return nil, apierr.Transient(fmt.Errorf("lookup user by email: %w", err))
	}
	if existing != nil {
		return &FindOrCreateResult{UserID: existing.ID, UserEmail: existing.Email, IsNewUser: false}, nil
	}

	tempPassword, err := generateTempPassword()
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("generate temporary credential: %w", err))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, apierr.Internal(fmt.Errorf("hash temporary credential: %w", err))
	}

	user := &types.User{
		ID:                    uuid.New(),
		Email:                 email,
		DisplayName:           in.DisplayName,
		PasswordHash:          string(hash),
		Role:                  types.RoleStudent,
		EmailVerified:         false,
		ProvisionedViaPayment: in.ProvisionedViaPayment,
		MustResetPassword:     in.ProvisionedViaPayment,
	}
	if err := s.userRepo.Create(ctx, nil, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race to a concurrent call for the same email.
			// The winner's row is authoritative; return it instead.
			winner, lookupErr := s.userRepo.GetByEmail(ctx, nil, email)
			if lookupErr != nil {
				return nil, apierr.Transient(fmt.Errorf("re-lookup user after duplicate key: %w", lookupErr))
			}
			if winner == nil {
				return nil, apierr.Transient(errors.New("duplicate key on insert but no visible user row"))
			}
			return &FindOrCreateResult{UserID: winner.ID, UserEmail: winner.Email, IsNewUser: false}, nil
		}
		return nil, apierr.Transient(fmt.Errorf("create user: %w", err))
	}

	s.log.Info("Provisioned user account", "user_id", user.ID, "via_payment", in.ProvisionedViaPayment)
	return &FindOrCreateResult{
		UserID:       user.ID,
		UserEmail:    user.Email,
		IsNewUser:    true,
		TempPassword: tempPassword,
	}, nil
}

func generateTempPassword() (string, error) {
	buf := make([]byte, tempPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
