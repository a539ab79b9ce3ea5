package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fernhill/clienthub/internal/identity"
)

// CompanyStore persists the companies client contacts are scoped to.
type CompanyStore struct {
	db *sql.DB
}

func NewCompanyStore(db *sql.DB) *CompanyStore {
	return &CompanyStore{db: db}
}

// CreateCompany inserts a company. Name collisions return ErrConflict.
func (s *CompanyStore) CreateCompany(ctx context.Context, name string) (*identity.Company, error) {
	company := &identity.Company{ID: uuid.NewString(), Name: name}
	now := time.Now()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO companies (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		company.ID, company.Name, now, now,
	)
	if err != nil {
		return nil, mapWriteError(fmt.Errorf("failed to insert company: %w", err), ErrConflict)
	}

	return company, nil
}

// GetCompany fetches a company by id.
func (s *CompanyStore) GetCompany(ctx context.Context, companyID string) (*identity.Company, error) {
	return s.get(ctx, `WHERE id = ?`, companyID)
}

// GetCompanyByName fetches a company by its unique name.
func (s *CompanyStore) GetCompanyByName(ctx context.Context, name string) (*identity.Company, error) {
	return s.get(ctx, `WHERE name = ?`, name)
}

// EnsureCompany returns the company with the given name, creating it if
// absent. A creation race falls back to reading the winner's row.
func (s *CompanyStore) EnsureCompany(ctx context.Context, name string) (*identity.Company, error) {
	company, err := s.GetCompanyByName(ctx, name)
	if err == nil {
		return company, nil
	}

	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	company, err = s.CreateCompany(ctx, name)
	if errors.Is(err, ErrConflict) {
		return s.GetCompanyByName(ctx, name)
	}

	return company, err
}

// ListCompanies returns all companies ordered by name.
func (s *CompanyStore) ListCompanies(ctx context.Context) ([]identity.Company, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM companies ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []identity.Company

	for rows.Next() {
		var c identity.Company
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}

		companies = append(companies, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate companies: %w", err)
	}

	return companies, nil
}

func (s *CompanyStore) get(ctx context.Context, where string, arg any) (*identity.Company, error) {
	company := &identity.Company{}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name FROM companies `+where,
		arg,
	).Scan(&company.ID, &company.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read company: %w", err)
	}

	return company, nil
}
