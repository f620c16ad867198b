package registry

import "strings"

// Gate decides whether a fingerprint may be newly registered under the
// current validation rule. The gate only affects new registrations; records
// admitted under an earlier rule are never revalidated or evicted.
//
// Gates are chosen once at construction. The rule string they evaluate
// against is the mutable, admin-controlled half of the policy.
type Gate interface {
	Admit(rule string, fp Fingerprint) bool
}

// PrefixGate admits a fingerprint when it begins with the bytes of the
// current rule. An empty rule admits everything, so a freshly constructed
// registry behaves like an ungated one until the admin tightens the rule.
type PrefixGate struct{}

func (PrefixGate) Admit(rule string, fp Fingerprint) bool {
	return rule == "" || strings.HasPrefix(string(fp), rule)
}

// OpenGate admits every fingerprint regardless of the rule. It exists for
// deployments that want dedup and ownership tracking without an admission
// policy.
type OpenGate struct{}

func (OpenGate) Admit(string, Fingerprint) bool { return true }
