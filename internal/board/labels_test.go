package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoveLabels(t *testing.T) {
	labels := MoveLabels()
	require.Len(t, labels, 1968)

	// All labels are unique.
	seen := make(map[string]bool, len(labels))
	for _, label := range labels {
		require.Falsef(t, seen[label], "duplicate label %q", label)
		seen[label] = true
	}

	// Spot-check moves that must be encodable.
	for _, label := range []string{"e2e4", "a1h8", "g1f3", "e7e8q", "a2b1n", "h7g8r"} {
		assert.Containsf(t, seen, label, "label %q missing", label)
	}
	// No null moves, no promotions away from the back ranks.
	assert.NotContains(t, seen, "e2e2")
	assert.NotContains(t, seen, "e2e4q")
	assert.NotContains(t, seen, "e6e7q")
}

func TestMoveLabelIndex(t *testing.T) {
	labels := MoveLabels()
	index := MoveLabelIndex()
	require.Len(t, index, len(labels))
	for ii, label := range labels {
		require.Equal(t, ii, index[label])
	}
}
