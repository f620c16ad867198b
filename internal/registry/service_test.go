package registry

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/suite"

	"provenance/pkg/platform/sentinel"
)

const (
	adminPrincipal = Principal("admin")
	alice          = Principal("alice")
	bob            = Principal("bob")
	carol          = Principal("carol")
)

type ServiceSuite struct {
	suite.Suite
	ctx context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctx = context.Background()
}

func (s *ServiceSuite) newService(rule string, opts ...Option) (*Service, *MemoryStore) {
	store := NewMemoryStore()
	svc, err := New(s.ctx, store, adminPrincipal, rule, opts...)
	s.Require().NoError(err)
	return svc, store
}

func (s *ServiceSuite) TestRegister() {
	s.Run("assigns strictly increasing ids from 1", func() {
		svc, _ := s.newService("")
		var prev ContentID
		for _, fp := range []Fingerprint{"hash-a", "hash-b", "hash-c"} {
			id, err := svc.Register(s.ctx, alice, fp)
			s.Require().NoError(err)
			s.Greater(id, prev)
			prev = id
		}
		s.Equal(ContentID(3), prev)
	})

	s.Run("first registration starts at id 1", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)
		s.Equal(ContentID(1), id)
	})

	s.Run("records the caller as owner", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		rec, err := svc.GetContent(s.ctx, id)
		s.Require().NoError(err)
		s.Require().NotNil(rec)
		s.Equal(alice, rec.Owner)
		s.Equal(Fingerprint("hash-a"), rec.Fingerprint)
	})
}

func (s *ServiceSuite) TestRegisterDedup() {
	s.Run("same fingerprint returns same id", func() {
		svc, _ := s.newService("")
		first, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)
		second, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)
		s.Equal(first, second)
	})

	s.Run("re-registration by another caller does not steal ownership", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		dupID, err := svc.Register(s.ctx, bob, "hash-a")
		s.Require().NoError(err)
		s.Equal(id, dupID)

		rec, err := svc.GetContent(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(alice, rec.Owner)
	})

	s.Run("dedup does not consume ids", func() {
		svc, _ := s.newService("")
		_, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)
		_, err = svc.Register(s.ctx, bob, "hash-a")
		s.Require().NoError(err)

		next, err := svc.Register(s.ctx, alice, "hash-b")
		s.Require().NoError(err)
		s.Equal(ContentID(2), next)
	})
}

func (s *ServiceSuite) TestValidationGate() {
	s.Run("mismatched prefix is rejected without state change", func() {
		svc, store := s.newService("xyz")
		_, err := svc.Register(s.ctx, alice, "abc123")
		s.Require().ErrorIs(err, ErrInvalidContent)

		_, err = store.LookupFingerprint(s.ctx, "abc123")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("matching prefix is admitted", func() {
		svc, _ := s.newService("xyz")
		id, err := svc.Register(s.ctx, alice, "xyz123")
		s.Require().NoError(err)
		s.Equal(ContentID(1), id)
	})

	s.Run("empty rule admits everything", func() {
		svc, _ := s.newService("")
		_, err := svc.Register(s.ctx, alice, "anything-at-all")
		s.Require().NoError(err)
	})

	s.Run("gate runs before dedup", func() {
		// Content admitted under a loose rule stays registered after the
		// rule tightens, but re-submitting it now fails the gate.
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "legacy-hash")
		s.Require().NoError(err)

		s.Require().NoError(svc.UpdateValidationRule(s.ctx, adminPrincipal, "ipfs:"))

		_, err = svc.Register(s.ctx, bob, "legacy-hash")
		s.Require().ErrorIs(err, ErrInvalidContent)

		rec, err := svc.GetContent(s.ctx, id)
		s.Require().NoError(err)
		s.Require().NotNil(rec)
		s.Equal(alice, rec.Owner)
	})

	s.Run("open gate ignores the rule", func() {
		svc, _ := s.newService("xyz", WithGate(OpenGate{}))
		_, err := svc.Register(s.ctx, alice, "abc123")
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestUpdateValidationRule() {
	s.Run("non-admin is rejected and rule is unchanged", func() {
		svc, _ := s.newService("ipfs:")
		err := svc.UpdateValidationRule(s.ctx, alice, "sha256:")
		s.Require().ErrorIs(err, ErrNotAdmin)

		rule, err := svc.ValidationRule(s.ctx)
		s.Require().NoError(err)
		s.Equal("ipfs:", rule)
	})

	s.Run("admin replaces the rule", func() {
		svc, _ := s.newService("ipfs:")
		s.Require().NoError(svc.UpdateValidationRule(s.ctx, adminPrincipal, "sha256:"))

		rule, err := svc.ValidationRule(s.ctx)
		s.Require().NoError(err)
		s.Equal("sha256:", rule)
	})

	s.Run("admin may clear the rule", func() {
		svc, _ := s.newService("ipfs:")
		s.Require().NoError(svc.UpdateValidationRule(s.ctx, adminPrincipal, ""))

		_, err := svc.Register(s.ctx, alice, "no-prefix-at-all")
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestTransferOwnership() {
	s.Run("owner transfers and only the owner field changes", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		s.Require().NoError(svc.TransferOwnership(s.ctx, alice, id, bob))

		rec, err := svc.GetContent(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(bob, rec.Owner)
		s.Equal(Fingerprint("hash-a"), rec.Fingerprint)
	})

	s.Run("non-owner is rejected", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		err = svc.TransferOwnership(s.ctx, bob, id, carol)
		s.Require().ErrorIs(err, ErrNotOwner)

		rec, err := svc.GetContent(s.ctx, id)
		s.Require().NoError(err)
		s.Equal(alice, rec.Owner)
	})

	s.Run("unknown id is rejected", func() {
		svc, _ := s.newService("")
		err := svc.TransferOwnership(s.ctx, alice, 42, bob)
		s.Require().ErrorIs(err, ErrContentNotFound)
	})

	s.Run("self-transfer is allowed", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)
		s.Require().NoError(svc.TransferOwnership(s.ctx, alice, id, alice))
	})
}

func (s *ServiceSuite) TestCounterOverflow() {
	s.Run("exhausted id space rejects new content", func() {
		svc, store := s.newService("")
		_, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		store.mu.Lock()
		store.nextID = math.MaxUint64
		store.mu.Unlock()

		_, err = svc.Register(s.ctx, bob, "hash-b")
		s.Require().ErrorIs(err, ErrCounterOverflow)

		// Nothing was written for the rejected fingerprint.
		_, err = store.LookupFingerprint(s.ctx, "hash-b")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("dedup still succeeds after exhaustion", func() {
		svc, store := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		store.mu.Lock()
		store.nextID = math.MaxUint64
		store.mu.Unlock()

		dupID, err := svc.Register(s.ctx, bob, "hash-a")
		s.Require().NoError(err)
		s.Equal(id, dupID)
	})
}

func (s *ServiceSuite) TestGetContent() {
	s.Run("absence is a result, not an error", func() {
		svc, _ := s.newService("")
		rec, err := svc.GetContent(s.ctx, 99)
		s.Require().NoError(err)
		s.Nil(rec)
	})
}

func (s *ServiceSuite) TestLookupFingerprint() {
	s.Run("resolves registered fingerprints", func() {
		svc, _ := s.newService("")
		id, err := svc.Register(s.ctx, alice, "hash-a")
		s.Require().NoError(err)

		found, ok, err := svc.LookupFingerprint(s.ctx, "hash-a")
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(id, found)
	})

	s.Run("absence is a result, not an error", func() {
		svc, _ := s.newService("")
		_, ok, err := svc.LookupFingerprint(s.ctx, "missing")
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *ServiceSuite) TestAdminIsBoundAtConstruction() {
	svc, _ := s.newService("")
	s.Equal(adminPrincipal, svc.Admin())
}

// TestEndToEnd walks the canonical registry lifecycle: register, dedup from a
// second caller, a chain of transfers, and a stale-owner rejection.
func (s *ServiceSuite) TestEndToEnd() {
	svc, _ := s.newService("ipfs:")

	id, err := svc.Register(s.ctx, alice, "ipfs:QmABC")
	s.Require().NoError(err)
	s.Equal(ContentID(1), id)

	dupID, err := svc.Register(s.ctx, bob, "ipfs:QmABC")
	s.Require().NoError(err)
	s.Equal(id, dupID)

	rec, err := svc.GetContent(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(alice, rec.Owner)

	s.Require().NoError(svc.TransferOwnership(s.ctx, alice, id, bob))
	s.Require().NoError(svc.TransferOwnership(s.ctx, bob, id, carol))

	err = svc.TransferOwnership(s.ctx, alice, id, bob)
	s.Require().ErrorIs(err, ErrNotOwner)

	rec, err = svc.GetContent(s.ctx, id)
	s.Require().NoError(err)
	s.Equal(carol, rec.Owner)
}
