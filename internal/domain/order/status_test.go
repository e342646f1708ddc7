package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Approve(t *testing.T) {
	next, err := Requested.Approve()
	require.NoError(t, err)
	assert.Equal(t, Approved, next)

	_, err = Approved.Approve()
	require.ErrorIs(t, err, ErrPermission)

	_, err = Cancelled.Approve()
	require.ErrorIs(t, err, ErrPermission)
}

func TestStatus_Cancel(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		admin   bool
		want    Status
		wantErr bool
	}{
		{name: "requested by owner", from: Requested, want: Cancelled},
		{name: "requested by admin", from: Requested, admin: true, want: Cancelled},
		{name: "approved by admin", from: Approved, admin: true, want: Cancelled},
		{name: "approved by owner", from: Approved, wantErr: true},
		{name: "cancelled by admin", from: Cancelled, admin: true, wantErr: true},
		{name: "cancelled by owner", from: Cancelled, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := tt.from.Cancel(tt.admin)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrPermission)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestStatus_ValidateEdit(t *testing.T) {
	require.NoError(t, Requested.ValidateEdit())
	require.NoError(t, Approved.ValidateEdit())
	require.ErrorIs(t, Cancelled.ValidateEdit(), ErrPermission)
	require.ErrorIs(t, Status(9).ValidateEdit(), ErrPermission)
}

func TestParseStatus(t *testing.T) {
	for _, s := range []Status{Requested, Approved, Cancelled} {
		got, ok := ParseStatus(s.String())
		require.True(t, ok)
		assert.Equal(t, s, got)
	}
	_, ok := ParseStatus("shipped")
	assert.False(t, ok)
	assert.True(t, Cancelled.Terminal())
	assert.False(t, Approved.Terminal())
}
