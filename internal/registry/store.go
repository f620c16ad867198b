package registry

import "context"

// Store persists registry state. Stores are pure I/O: dedup ordering, gate
// evaluation, and ownership checks belong to the Service. The one exception
// is CreateContent, which must perform the fingerprint lookup, id allocation,
// and double insert as a single atomic step so a failure can never leave the
// record map and the fingerprint index disagreeing.
type Store interface {
	// CreateContent registers fp under a freshly allocated id and returns
	// (id, true, nil). If fp is already indexed it returns the existing id
	// as (id, false, nil) without touching any state. Returns
	// ErrCounterOverflow when the id space is exhausted; in that case no
	// record or index entry is written.
	CreateContent(ctx context.Context, fp Fingerprint, owner Principal) (ContentID, bool, error)

	// FindContent returns the record for id, or sentinel.ErrNotFound.
	FindContent(ctx context.Context, id ContentID) (*ContentRecord, error)

	// LookupFingerprint returns the id registered for fp, or
	// sentinel.ErrNotFound.
	LookupFingerprint(ctx context.Context, fp Fingerprint) (ContentID, error)

	// TransferOwner overwrites the owner of id. Returns sentinel.ErrNotFound
	// when id has no record.
	TransferOwner(ctx context.Context, id ContentID, newOwner Principal) error

	// Rule returns the current validation rule.
	Rule(ctx context.Context) (string, error)

	// SetRule replaces the validation rule.
	SetRule(ctx context.Context, rule string) error

	// SeedRule binds the initial validation rule if, and only if, no rule
	// has ever been stored. Durable stores keep the rule across restarts,
	// so construction must not clobber an admin's later update.
	SeedRule(ctx context.Context, rule string) error
}
