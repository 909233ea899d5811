package domain

import "context"

// ProfileRepository is the profile store as seen by the sync pipeline. The
// same interface is served inside and outside a transaction.
type ProfileRepository interface {
	FindProfile(ctx context.Context, influencerID string) (*InfluencerProfile, error)
	FindProfileByEmail(ctx context.Context, email string) (*InfluencerProfile, error)
	UpsertProfile(ctx context.Context, profile *InfluencerProfile) error
	FindAccountByEmail(ctx context.Context, email string) (*Account, error)

	// CreateAccount inserts the account unless one with the same email exists,
	// and returns whichever row is stored.
	CreateAccount(ctx context.Context, account *Account) (*Account, error)
}
