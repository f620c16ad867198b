package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixGate(t *testing.T) {
	gate := PrefixGate{}

	tests := []struct {
		name  string
		rule  string
		fp    Fingerprint
		admit bool
	}{
		{"empty rule admits everything", "", "anything", true},
		{"empty rule admits empty fingerprint", "", "", true},
		{"exact prefix match", "ipfs:", "ipfs:QmABC", true},
		{"rule equals fingerprint", "ipfs:", "ipfs:", true},
		{"prefix mismatch", "xyz", "abc123", false},
		{"partial prefix is not enough", "ipfs:", "ipf", false},
		{"rule longer than fingerprint", "sha256:", "sha", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.admit, gate.Admit(tc.rule, tc.fp))
		})
	}
}

func TestOpenGate(t *testing.T) {
	gate := OpenGate{}
	require.True(t, gate.Admit("xyz", "abc123"))
	require.True(t, gate.Admit("", ""))
}
