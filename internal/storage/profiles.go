package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/jmoiron/sqlx"
)

// profileRepo works against either the pool or an open transaction.
type profileRepo struct {
	q sqlx.ExtContext
}

type profileRow struct {
	InfluencerID string         `db:"influencer_id"`
	Email        sql.NullString `db:"email"`
	AccountID    sql.NullString `db:"account_id"`
	Document     []byte         `db:"document"`
}

func (r profileRow) toDomain() (*domain.InfluencerProfile, error) {
	var p domain.InfluencerProfile
	if err := json.Unmarshal(r.Document, &p); err != nil {
		return nil, fmt.Errorf("failed to decode profile %s: %w", r.InfluencerID, err)
	}
	p.InfluencerID = r.InfluencerID
	p.Email = r.Email.String
	p.AccountID = r.AccountID.String
	return &p, nil
}

func (r *profileRepo) FindProfile(ctx context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	return r.findProfile(ctx, "influencer_id", influencerID)
}

func (r *profileRepo) FindProfileByEmail(ctx context.Context, email string) (*domain.InfluencerProfile, error) {
	return r.findProfile(ctx, "email", email)
}

func (r *profileRepo) findProfile(ctx context.Context, column, value string) (*domain.InfluencerProfile, error) {
	query := `
		SELECT influencer_id, email, account_id, document
		FROM influencer_profiles
		WHERE ` + column + ` = $1
	`

	var row profileRow
	if err := sqlx.GetContext(ctx, r.q, &row, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrInfluencerNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	return row.toDomain()
}

// UpsertProfile creates or replaces the profile document by influencer id.
func (r *profileRepo) UpsertProfile(ctx context.Context, profile *domain.InfluencerProfile) error {
	query := `
		INSERT INTO influencer_profiles (
			influencer_id, email, account_id, document, last_sync_date, created_at, updated_at
		) VALUES (
			$1, NULLIF($2, ''), NULLIF($3, '')::uuid, $4, $5, NOW(), NOW()
		)
		ON CONFLICT (influencer_id) DO UPDATE
		SET email = EXCLUDED.email,
		    account_id = EXCLUDED.account_id,
		    document = EXCLUDED.document,
		    last_sync_date = EXCLUDED.last_sync_date,
		    updated_at = NOW()
	`

	document, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	var lastSync *time.Time
	if profile.SyncMetadata.LastSyncDate != nil {
		lastSync = profile.SyncMetadata.LastSyncDate
	}

	if _, err := r.q.ExecContext(ctx, query, profile.InfluencerID, profile.Email, profile.AccountID, string(document), lastSync); err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (r *profileRepo) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `
		SELECT id, name, email, role, created_at
		FROM accounts
		WHERE email = $1
	`

	var account domain.Account
	if err := sqlx.GetContext(ctx, r.q, &account, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// CreateAccount is exactly-once per email: a concurrent insert of the same
// email loses the race and reads back the winner's row.
func (r *profileRepo) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (id, name, email, role, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (email) DO NOTHING
		RETURNING id, name, email, role, created_at
	`

	var created domain.Account
	err := sqlx.GetContext(ctx, r.q, &created, query, account.ID, account.Name, account.Email, account.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return r.FindAccountByEmail(ctx, account.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &created, nil
}
