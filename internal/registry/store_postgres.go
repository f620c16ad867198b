package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	"provenance/pkg/platform/sentinel"
)

// PostgresStore persists registry state in PostgreSQL. This store is pure
// I/O; gate evaluation and ownership checks belong in the service. Ids are
// stored as NUMERIC(20,0) because the id space is a full uint64, which BIGINT
// cannot represent.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed registry store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the registry schema when it does not exist yet. The state
// row is inserted lazily by SeedRule so the rule can be bound exactly once.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS registry_state (
			singleton BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			validation_rule TEXT NOT NULL,
			next_id NUMERIC(20,0) NOT NULL
		);
		CREATE TABLE IF NOT EXISTS contents (
			id NUMERIC(20,0) PRIMARY KEY,
			fingerprint BYTEA NOT NULL UNIQUE,
			owner_principal TEXT NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate registry schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateContent(ctx context.Context, fp Fingerprint, owner Principal) (ContentID, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("begin create content: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Dedup check first: an existing fingerprint is a successful no-op.
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT id::text FROM contents WHERE fingerprint = $1`, []byte(fp),
	).Scan(&existing)
	if err == nil {
		id, perr := parseID(existing)
		if perr != nil {
			return 0, false, perr
		}
		return id, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, false, fmt.Errorf("lookup fingerprint: %w", err)
	}

	// FOR UPDATE pins the counter row for the rest of the transaction.
	var nextRaw string
	err = tx.QueryRowContext(ctx,
		`SELECT next_id::text FROM registry_state WHERE singleton FOR UPDATE`,
	).Scan(&nextRaw)
	if err != nil {
		return 0, false, fmt.Errorf("load id counter: %w", err)
	}
	next, err := strconv.ParseUint(nextRaw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse id counter %q: %w", nextRaw, err)
	}
	if next == math.MaxUint64 {
		return 0, false, ErrCounterOverflow
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO contents (id, fingerprint, owner_principal) VALUES ($1::numeric, $2, $3)`,
		strconv.FormatUint(next, 10), []byte(fp), string(owner),
	); err != nil {
		return 0, false, fmt.Errorf("insert content: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE registry_state SET next_id = $1::numeric WHERE singleton`,
		strconv.FormatUint(next+1, 10),
	); err != nil {
		return 0, false, fmt.Errorf("advance id counter: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("commit create content: %w", err)
	}
	return ContentID(next), true, nil
}

func (s *PostgresStore) FindContent(ctx context.Context, id ContentID) (*ContentRecord, error) {
	var (
		fp    []byte
		owner string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, owner_principal FROM contents WHERE id = $1::numeric`,
		formatID(id),
	).Scan(&fp, &owner)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find content: %w", err)
	}
	return &ContentRecord{Fingerprint: Fingerprint(fp), Owner: Principal(owner)}, nil
}

func (s *PostgresStore) LookupFingerprint(ctx context.Context, fp Fingerprint) (ContentID, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT id::text FROM contents WHERE fingerprint = $1`, []byte(fp),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, sentinel.ErrNotFound
		}
		return 0, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return parseID(raw)
}

func (s *PostgresStore) TransferOwner(ctx context.Context, id ContentID, newOwner Principal) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE contents SET owner_principal = $2 WHERE id = $1::numeric`,
		formatID(id), string(newOwner),
	)
	if err != nil {
		return fmt.Errorf("transfer owner: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transfer owner: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Rule(ctx context.Context) (string, error) {
	var rule string
	err := s.db.QueryRowContext(ctx,
		`SELECT validation_rule FROM registry_state WHERE singleton`,
	).Scan(&rule)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("load validation rule: %w", err)
	}
	return rule, nil
}

func (s *PostgresStore) SetRule(ctx context.Context, rule string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE registry_state SET validation_rule = $1 WHERE singleton`, rule,
	)
	if err != nil {
		return fmt.Errorf("set validation rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set validation rule: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SeedRule(ctx context.Context, rule string) error {
	// ON CONFLICT DO NOTHING keeps an already-bound rule across restarts.
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registry_state (singleton, validation_rule, next_id)
		 VALUES (TRUE, $1, 1)
		 ON CONFLICT (singleton) DO NOTHING`, rule,
	)
	if err != nil {
		return fmt.Errorf("seed validation rule: %w", err)
	}
	return nil
}

func parseID(raw string) (ContentID, error) {
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse content id %q: %w", raw, err)
	}
	return ContentID(v), nil
}

func formatID(id ContentID) string {
	return strconv.FormatUint(uint64(id), 10)
}
