package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Account is an account row, the authentication-side identity record.
type Account struct {
	ID         string
	Email      string
	SecretHash string
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PasswordReset is an outstanding reset credential.
type PasswordReset struct {
	Token          string
	AccountID      string
	RedirectTarget string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// AccountStore persists accounts and password reset credentials.
type AccountStore struct {
	db *sql.DB
}

func NewAccountStore(db *sql.DB) *AccountStore {
	return &AccountStore{db: db}
}

// CreateAccount inserts an account. Email collisions return ErrConflict.
func (s *AccountStore) CreateAccount(ctx context.Context, acct *Account) error {
	metadata, err := json.Marshal(acct.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode account metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, secret_hash, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		acct.ID, acct.Email, acct.SecretHash, string(metadata), acct.CreatedAt, acct.UpdatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert account: %w", err), ErrConflict)
	}

	return nil
}

// GetAccount fetches an account by id.
func (s *AccountStore) GetAccount(ctx context.Context, accountID string) (*Account, error) {
	return s.get(ctx, `WHERE id = ?`, accountID)
}

// GetAccountByEmail fetches an account by email, case-insensitively.
func (s *AccountStore) GetAccountByEmail(ctx context.Context, email string) (*Account, error) {
	return s.get(ctx, `WHERE email = ?`, email)
}

func (s *AccountStore) get(ctx context.Context, where string, arg any) (*Account, error) {
	acct := &Account{}

	var metadata string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, secret_hash, metadata, created_at, updated_at FROM accounts `+where,
		arg,
	).Scan(&acct.ID, &acct.Email, &acct.SecretHash, &metadata, &acct.CreatedAt, &acct.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}

	if err := json.Unmarshal([]byte(metadata), &acct.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode account metadata: %w", err)
	}

	return acct, nil
}

// UpdateSecretHash replaces the account's secret hash.
func (s *AccountStore) UpdateSecretHash(ctx context.Context, accountID, secretHash string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET secret_hash = ?, updated_at = ? WHERE id = ?`,
		secretHash, time.Now(), accountID,
	)
	if err != nil {
		return fmt.Errorf("failed to update secret hash: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

// CreatePasswordReset records an outstanding reset credential.
func (s *AccountStore) CreatePasswordReset(ctx context.Context, reset *PasswordReset) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO password_resets (token, account_id, redirect_target, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		reset.Token, reset.AccountID, reset.RedirectTarget, reset.ExpiresAt, reset.CreatedAt,
	)
	if err != nil {
		return mapWriteError(fmt.Errorf("failed to insert password reset: %w", err), ErrConflict)
	}

	return nil
}

// ConsumePasswordReset deletes and returns an unexpired reset by token.
func (s *AccountStore) ConsumePasswordReset(ctx context.Context, token string) (*PasswordReset, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	reset := &PasswordReset{}

	err = tx.QueryRowContext(ctx,
		`SELECT token, account_id, redirect_target, expires_at, created_at
		 FROM password_resets WHERE token = ?`,
		token,
	).Scan(&reset.Token, &reset.AccountID, &reset.RedirectTarget, &reset.ExpiresAt, &reset.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read password reset: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE token = ?`, token); err != nil {
		return nil, fmt.Errorf("failed to delete password reset: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit password reset consume: %w", err)
	}

	if time.Now().After(reset.ExpiresAt) {
		return nil, ErrNotFound
	}

	return reset, nil
}
