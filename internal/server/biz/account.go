package biz

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/server/store"
)

const (
	minSecretLength = 8
	resetTTL        = time.Hour
)

// HashPassword hashes a password using bcrypt.
func HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	return hex.EncodeToString(hashedPassword), nil
}

// VerifyPassword verifies a password against a hash.
func VerifyPassword(hashedPassword, password string) error {
	decodedHashedPassword, err := hex.DecodeString(hashedPassword)
	if err != nil {
		return fmt.Errorf("failed to decode hashed password: %w", err)
	}

	return bcrypt.CompareHashAndPassword(decodedHashedPassword, []byte(password))
}

type AccountServiceParams struct {
	fx.In

	Accounts    *store.AccountStore
	Invitations *InvitationService
}

func NewAccountService(params AccountServiceParams) *AccountService {
	return &AccountService{
		accounts:    params.Accounts,
		invitations: params.Invitations,
	}
}

// AccountService is the account directory behind the credential store. It
// owns password hashing, registration, and the reset flow.
type AccountService struct {
	accounts    *store.AccountStore
	invitations *InvitationService
}

var _ credential.Directory = (*AccountService)(nil)

// Authenticate verifies email and password. Unknown emails and wrong
// passwords both come back as ErrInvalidCredentials so callers cannot probe
// which addresses exist.
func (s *AccountService) Authenticate(ctx context.Context, email, secret string) (credential.Account, error) {
	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return credential.Account{}, credential.ErrInvalidCredentials
		}

		log.Error(ctx, "failed to get account", log.Cause(err))

		return credential.Account{}, ErrInternal
	}

	if err := VerifyPassword(acct.SecretHash, secret); err != nil {
		return credential.Account{}, credential.ErrInvalidCredentials
	}

	log.Debug(ctx, "account authenticated", log.String("account_id", acct.ID))

	return toCredentialAccount(acct), nil
}

// Register creates a new account. If a pending client invitation exists for
// the email, the matching client profile is created immediately so the first
// resolution lands on the client variant instead of a team bootstrap.
func (s *AccountService) Register(ctx context.Context, email, secret string, attributes map[string]string) (credential.Account, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return credential.Account{}, ErrInvalidEmail
	}

	if len(secret) < minSecretLength {
		return credential.Account{}, ErrWeakSecret
	}

	secretHash, err := HashPassword(secret)
	if err != nil {
		log.Error(ctx, "failed to hash password", log.Cause(err))

		return credential.Account{}, ErrInternal
	}

	now := time.Now()
	acct := &store.Account{
		ID:         uuid.NewString(),
		Email:      email,
		SecretHash: secretHash,
		Metadata:   attributes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return credential.Account{}, credential.ErrEmailTaken
		}

		log.Error(ctx, "failed to create account", log.Cause(err))

		return credential.Account{}, ErrInternal
	}

	if err := s.invitations.AcceptPending(ctx, acct.ID, acct.Email, attributes[credential.MetaDisplayName]); err != nil {
		// Registration already succeeded; the account falls back to the team
		// bootstrap path and the invitation stays pending.
		log.Warn(ctx, "failed to accept pending invitation",
			log.String("account_id", acct.ID),
			log.Cause(err),
		)
	}

	log.Info(ctx, "account registered", log.String("account_id", acct.ID))

	return toCredentialAccount(acct), nil
}

// Lookup fetches an account by id. A missing account maps to a dead session.
func (s *AccountService) Lookup(ctx context.Context, accountID string) (credential.Account, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return credential.Account{}, credential.ErrSessionExpired
		}

		log.Error(ctx, "failed to get account", log.Cause(err))

		return credential.Account{}, ErrInternal
	}

	return toCredentialAccount(acct), nil
}

// StartPasswordReset issues a reset credential for the email. Unknown emails
// succeed silently; the caller learns nothing about which addresses exist.
// Delivery is the mailer's job; until one is wired the reset link is logged.
func (s *AccountService) StartPasswordReset(ctx context.Context, email, redirectTarget string) error {
	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}

		log.Error(ctx, "failed to get account", log.Cause(err))

		return ErrInternal
	}

	reset := &store.PasswordReset{
		Token:          uuid.NewString(),
		AccountID:      acct.ID,
		RedirectTarget: redirectTarget,
		ExpiresAt:      time.Now().Add(resetTTL),
		CreatedAt:      time.Now(),
	}

	if err := s.accounts.CreatePasswordReset(ctx, reset); err != nil {
		log.Error(ctx, "failed to create password reset", log.Cause(err))

		return ErrInternal
	}

	log.Info(ctx, "password reset issued",
		log.String("account_id", acct.ID),
		log.String("reset_token", reset.Token),
		log.String("redirect_target", redirectTarget),
	)

	return nil
}

// CompletePasswordReset consumes a reset token and installs the new secret.
func (s *AccountService) CompletePasswordReset(ctx context.Context, token, newSecret string) error {
	if len(newSecret) < minSecretLength {
		return ErrWeakSecret
	}

	reset, err := s.accounts.ConsumePasswordReset(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrResetExpired
		}

		log.Error(ctx, "failed to consume password reset", log.Cause(err))

		return ErrInternal
	}

	secretHash, err := HashPassword(newSecret)
	if err != nil {
		log.Error(ctx, "failed to hash password", log.Cause(err))

		return ErrInternal
	}

	if err := s.accounts.UpdateSecretHash(ctx, reset.AccountID, secretHash); err != nil {
		log.Error(ctx, "failed to update secret hash", log.Cause(err))

		return ErrInternal
	}

	log.Info(ctx, "password reset completed", log.String("account_id", reset.AccountID))

	return nil
}

func toCredentialAccount(acct *store.Account) credential.Account {
	return credential.Account{
		ID:       acct.ID,
		Email:    acct.Email,
		Metadata: acct.Metadata,
	}
}
