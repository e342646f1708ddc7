package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestBuildHistory(t *testing.T) {
	deltas := []ItemDelta{{Code: "A", PreviousQuantity: 1, NewQuantity: 2}}

	tests := []struct {
		name   string
		prev   *string
		next   *string
		deltas []ItemDelta
		want   bool
	}{
		{name: "nothing changed", prev: strPtr("U1"), next: strPtr("U1"), want: false},
		{name: "both units nil", want: false},
		{name: "unit changed", prev: strPtr("U1"), next: strPtr("U2"), want: true},
		{name: "unit case differs", prev: strPtr("u1"), next: strPtr("U1"), want: true},
		{name: "unit cleared", prev: strPtr("U1"), want: true},
		{name: "unit set", next: strPtr("U1"), want: true},
		{name: "items changed", prev: strPtr("U1"), next: strPtr("U1"), deltas: deltas, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := BuildHistory(tt.prev, tt.next, tt.deltas)
			if !tt.want {
				assert.Nil(t, h)
				return
			}
			require.NotNil(t, h)
			assert.Equal(t, HistoryKindUpdate, h.Kind)
			assert.Equal(t, tt.prev, h.Diff.PreviousUnit)
			assert.Equal(t, tt.next, h.Diff.NewUnit)
			assert.Len(t, h.Diff.Items, len(tt.deltas))
		})
	}
}

func TestHistoryEntry_Actor(t *testing.T) {
	assert.Equal(t, SystemActorName, HistoryEntry{}.Actor())
	assert.Equal(t, "Ana", HistoryEntry{ActorName: strPtr("Ana")}.Actor())
}
