// Package storage persists sync jobs, schedules, influencer profiles and
// their backing accounts in PostgreSQL.
package storage

import (
	"context"
	_ "embed"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"

	"github.com/cuongbtq/creator-sync/internal/domain"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// Storage handles all database operations for the sync pipeline
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// Migrate creates the tables if they do not exist yet.
func (s *Storage) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Info("Database schema is up to date")
	return nil
}

// WithinTx runs fn in a transaction holding an advisory lock derived from
// lockKey, so all work on one identity is serialized. Either everything fn
// wrote commits or nothing does.
func (s *Storage) WithinTx(ctx context.Context, lockKey string, fn func(ctx context.Context, repo domain.ProfileRepository) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("Failed to roll back transaction",
					slog.String("lock_key", lockKey),
					slog.String("error", rbErr.Error()),
				)
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", fnvHash(lockKey)); err != nil {
		return fmt.Errorf("failed to acquire advisory lock for %s: %w", lockKey, err)
	}

	if err = fn(ctx, &profileRepo{q: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// fnvHash computes FNV-1a 64-bit hash of the given string for use as advisory lock key.
func fnvHash(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	u := h.Sum64()
	if u > uint64(math.MaxInt64) {
		u %= uint64(math.MaxInt64)
	}
	return int64(u)
}

func (s *Storage) profiles() *profileRepo {
	return &profileRepo{q: s.db}
}

func (s *Storage) FindProfile(ctx context.Context, influencerID string) (*domain.InfluencerProfile, error) {
	return s.profiles().FindProfile(ctx, influencerID)
}

func (s *Storage) FindProfileByEmail(ctx context.Context, email string) (*domain.InfluencerProfile, error) {
	return s.profiles().FindProfileByEmail(ctx, email)
}

func (s *Storage) UpsertProfile(ctx context.Context, profile *domain.InfluencerProfile) error {
	return s.profiles().UpsertProfile(ctx, profile)
}

func (s *Storage) FindAccountByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return s.profiles().FindAccountByEmail(ctx, email)
}

func (s *Storage) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	return s.profiles().CreateAccount(ctx, account)
}
