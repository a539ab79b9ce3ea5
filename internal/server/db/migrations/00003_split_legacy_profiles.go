// Package migrations holds the Go data migrations registered with goose.
package migrations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pressly/goose/v3"

	"github.com/fernhill/clienthub/internal/identity"
)

//nolint:gochecknoinits // goose migrations register themselves.
func init() {
	goose.AddMigrationContext(upSplitLegacyProfiles, downSplitLegacyProfiles)
}

// upSplitLegacyProfiles splits rows of the retired single-enum profiles
// table into team_profiles and client_profiles. Databases created after the
// split have no legacy table and skip straight through.
func upSplitLegacyProfiles(ctx context.Context, tx *sql.Tx) error {
	var name string

	err := tx.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'profiles'`,
	).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("probe legacy profiles table: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT id, email, display_name, avatar_url, role, company_name FROM profiles`,
	)
	if err != nil {
		return fmt.Errorf("read legacy profiles: %w", err)
	}
	defer rows.Close()

	type legacyRow struct {
		id, email, displayName, avatarURL, companyName string
		role                                           identity.LegacyRole
	}

	var legacy []legacyRow

	for rows.Next() {
		var r legacyRow
		if err := rows.Scan(&r.id, &r.email, &r.displayName, &r.avatarURL, &r.role, &r.companyName); err != nil {
			return fmt.Errorf("scan legacy profile: %w", err)
		}

		legacy = append(legacy, r)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate legacy profiles: %w", err)
	}

	companies := make(map[string]string)

	for _, r := range legacy {
		kind, teamRole, clientRole, err := identity.MapLegacyRole(r.role)
		if err != nil {
			return fmt.Errorf("profile %s: %w", r.id, err)
		}

		switch kind {
		case identity.KindTeam:
			_, err = tx.ExecContext(ctx,
				`INSERT INTO team_profiles (id, email, display_name, avatar_url, role)
				 VALUES (?, ?, ?, ?, ?)`,
				r.id, r.email, r.displayName, r.avatarURL, string(teamRole),
			)
		case identity.KindClient:
			companyID, ok := companies[r.companyName]
			if !ok {
				companyID = uuid.NewString()
				companies[r.companyName] = companyID

				_, err = tx.ExecContext(ctx,
					`INSERT INTO companies (id, name) VALUES (?, ?)
					 ON CONFLICT (name) DO NOTHING`,
					companyID, r.companyName,
				)
				if err != nil {
					return fmt.Errorf("create company %q: %w", r.companyName, err)
				}

				if err = tx.QueryRowContext(ctx,
					`SELECT id FROM companies WHERE name = ?`, r.companyName,
				).Scan(&companyID); err != nil {
					return fmt.Errorf("read company %q: %w", r.companyName, err)
				}

				companies[r.companyName] = companyID
			}

			_, err = tx.ExecContext(ctx,
				`INSERT INTO client_profiles (id, email, display_name, role, company_id)
				 VALUES (?, ?, ?, ?, ?)`,
				r.id, r.email, r.displayName, string(clientRole), companyID,
			)
		default:
			return fmt.Errorf("profile %s: unmapped kind %s", r.id, kind)
		}

		if err != nil {
			return fmt.Errorf("migrate profile %s: %w", r.id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DROP TABLE profiles`); err != nil {
		return fmt.Errorf("drop legacy profiles table: %w", err)
	}

	return nil
}

// downSplitLegacyProfiles is irreversible; the legacy table is gone.
func downSplitLegacyProfiles(ctx context.Context, tx *sql.Tx) error {
	return nil
}
