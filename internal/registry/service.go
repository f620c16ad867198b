package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"provenance/internal/audit"
	"provenance/internal/registry/metrics"
	"provenance/pkg/platform/sentinel"
)

// RecordCache is the read-path cache the service consults before hitting the
// store. Implementations must tolerate a nil receiver; the concrete Redis
// cache lives in the cache subpackage.
type RecordCache interface {
	Get(ctx context.Context, id ContentID) (*ContentRecord, bool)
	Set(ctx context.Context, id ContentID, rec *ContentRecord)
	Invalidate(ctx context.Context, id ContentID) error
}

// Service is the content-ownership registry. It owns every invariant: one id
// per distinct fingerprint, strictly increasing ids, owner-authorized
// transfers, and the admin-gated validation rule. Stores stay pure I/O.
//
// The registry's contract requires one operation to complete fully before the
// next begins. Running as a standalone service there is no replicated host to
// serialize calls, so a single lock around the mutating operation set
// reproduces that guarantee.
type Service struct {
	mu    sync.RWMutex
	store Store
	admin Principal
	gate  Gate

	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   RecordCache
	auditor *audit.Publisher
	tracer  trace.Tracer
}

// Option configures optional service collaborators.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithCache(c RecordCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithGate selects the admission predicate. The default PrefixGate matches
// fingerprints against the rule; OpenGate disables admission checks entirely.
func WithGate(g Gate) Option {
	return func(s *Service) { s.gate = g }
}

// New constructs the registry, binding admin permanently and seeding the
// initial validation rule. Binding the admin is the single trust-anchoring
// event in the system; there is no way to change it later.
func New(ctx context.Context, store Store, admin Principal, initialRule string, opts ...Option) (*Service, error) {
	s := &Service{
		store:  store,
		admin:  admin,
		gate:   PrefixGate{},
		tracer: otel.Tracer("provenance/registry"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := store.SeedRule(ctx, initialRule); err != nil {
		return nil, fmt.Errorf("seed validation rule: %w", err)
	}
	return s, nil
}

// Admin returns the principal bound at construction.
func (s *Service) Admin() Principal {
	return s.admin
}

// UpdateValidationRule replaces the validation rule. Admin-only; any other
// caller gets ErrNotAdmin and the rule is untouched. The new rule may be any
// string, including empty (which re-opens the gate).
func (s *Service) UpdateValidationRule(ctx context.Context, caller Principal, rule string) error {
	ctx, span := s.tracer.Start(ctx, "registry.UpdateValidationRule")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("update_rule", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	if caller != s.admin {
		s.metrics.IncrementRuleUpdate("not_admin")
		return ErrNotAdmin
	}
	if err := s.store.SetRule(ctx, rule); err != nil {
		return fmt.Errorf("set validation rule: %w", err)
	}
	s.metrics.IncrementRuleUpdate("updated")
	s.auditor.Emit(audit.Event{
		Actor:  string(caller),
		Action: audit.ActionRuleUpdate,
		Detail: rule,
	})
	return nil
}

// Register records new content under the caller's ownership and returns its
// id. The sequence is fixed: gate first, dedup second, allocation last.
//
// A fingerprint that is already registered returns its existing id as a
// successful no-op; ownership is NOT reassigned to the new caller, and the
// caller cannot tell "newly created" from "already present" by the id alone.
// Note the gate runs before dedup, so content admitted under an earlier,
// looser rule can still be re-submitted only while it passes the current one.
func (s *Service) Register(ctx context.Context, caller Principal, fp Fingerprint) (ContentID, error) {
	ctx, span := s.tracer.Start(ctx, "registry.Register")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("register", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	rule, err := s.store.Rule(ctx)
	if err != nil {
		return 0, fmt.Errorf("load validation rule: %w", err)
	}
	if !s.gate.Admit(rule, fp) {
		s.metrics.IncrementRegistration("rejected")
		return 0, ErrInvalidContent
	}

	id, created, err := s.store.CreateContent(ctx, fp, caller)
	if err != nil {
		if errors.Is(err, ErrCounterOverflow) {
			s.metrics.IncrementRegistration("overflow")
			return 0, ErrCounterOverflow
		}
		return 0, fmt.Errorf("create content: %w", err)
	}

	if !created {
		s.metrics.IncrementRegistration("deduplicated")
		s.auditor.Emit(audit.Event{
			Actor:     string(caller),
			Action:    audit.ActionDedupHit,
			ContentID: uint64(id),
		})
		return id, nil
	}

	s.metrics.IncrementRegistration("created")
	s.auditor.Emit(audit.Event{
		Actor:     string(caller),
		Action:    audit.ActionRegister,
		ContentID: uint64(id),
	})
	return id, nil
}

// TransferOwnership reassigns a record to newOwner. Only the current owner
// may transfer; there is no approval mechanism, no self-transfer restriction,
// and no history. The fingerprint and id never change.
func (s *Service) TransferOwnership(ctx context.Context, caller Principal, id ContentID, newOwner Principal) error {
	ctx, span := s.tracer.Start(ctx, "registry.TransferOwnership")
	defer span.End()
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("transfer", time.Since(start)) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.store.FindContent(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.IncrementTransfer("not_found")
			return ErrContentNotFound
		}
		return fmt.Errorf("find content: %w", err)
	}
	if rec.Owner != caller {
		s.metrics.IncrementTransfer("not_owner")
		return ErrNotOwner
	}
	if err := s.store.TransferOwner(ctx, id, newOwner); err != nil {
		return fmt.Errorf("transfer owner: %w", err)
	}
	if err := s.cacheInvalidate(ctx, id); err != nil && s.logger != nil {
		s.logger.Warn("cache invalidation failed after transfer",
			"content_id", uint64(id),
			"error", err,
		)
	}
	s.metrics.IncrementTransfer("transferred")
	s.auditor.Emit(audit.Event{
		Actor:     string(caller),
		Action:    audit.ActionTransfer,
		ContentID: uint64(id),
		Detail:    string(newOwner),
	})
	return nil
}

// GetContent looks up a record by id. Absence is a query result, not an
// error: the record pointer is nil when nothing is registered under id.
func (s *Service) GetContent(ctx context.Context, id ContentID) (*ContentRecord, error) {
	ctx, span := s.tracer.Start(ctx, "registry.GetContent")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.cacheGet(ctx, id); ok {
		s.metrics.RecordCacheLookup("hit")
		return rec, nil
	}
	s.metrics.RecordCacheLookup("miss")

	rec, err := s.store.FindContent(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find content: %w", err)
	}
	s.cacheSet(ctx, id, rec)
	return rec, nil
}

// LookupFingerprint resolves a fingerprint to its id through the secondary
// index. Like GetContent, absence is a result rather than an error.
func (s *Service) LookupFingerprint(ctx context.Context, fp Fingerprint) (ContentID, bool, error) {
	ctx, span := s.tracer.Start(ctx, "registry.LookupFingerprint")
	defer span.End()

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.store.LookupFingerprint(ctx, fp)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return id, true, nil
}

// ValidationRule returns the current rule verbatim. Reads are public; only
// mutation is admin-gated.
func (s *Service) ValidationRule(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.Rule(ctx)
}

func (s *Service) cacheGet(ctx context.Context, id ContentID) (*ContentRecord, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, id)
}

func (s *Service) cacheSet(ctx context.Context, id ContentID, rec *ContentRecord) {
	if s.cache != nil {
		s.cache.Set(ctx, id, rec)
	}
}

func (s *Service) cacheInvalidate(ctx context.Context, id ContentID) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, id)
}
