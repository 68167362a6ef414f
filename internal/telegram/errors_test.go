package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsFloodWait(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantWait time.Duration
		wantOK   bool
	}{
		{
			name:     "flood wait",
			err:      NewFloodWait(17),
			wantWait: 17 * time.Second,
			wantOK:   true,
		},
		{
			name:     "premium flood wait",
			err:      NewRPCError(420, "FLOOD_PREMIUM_WAIT_5"),
			wantWait: 5 * time.Second,
			wantOK:   true,
		},
		{
			name:     "slowmode wait",
			err:      NewRPCError(420, "SLOWMODE_WAIT_30"),
			wantWait: 30 * time.Second,
			wantOK:   true,
		},
		{
			name:     "wrapped flood wait",
			err:      fmt.Errorf("delete history: %w", NewFloodWait(3)),
			wantWait: 3 * time.Second,
			wantOK:   true,
		},
		{
			name:   "other rpc error",
			err:    NewRPCError(400, TypeChatAdminRequired),
			wantOK: false,
		},
		{
			name:   "suffix only in the middle",
			err:    NewRPCError(400, "NOT_A_FLOOD_WAIT_5_REALLY"),
			wantOK: false,
		},
		{
			name:   "plain error",
			err:    errors.New("boom"),
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wait, ok := AsFloodWait(tt.err)
			require.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantWait, wait)
			}
		})
	}
}

func TestIsPermissionDenied(t *testing.T) {
	for _, typ := range []string{
		TypeChatAdminRequired,
		TypeChatWriteForbidden,
		TypeMessageDeleteForbidden,
		TypeUserBannedInChannel,
		TypeChannelPrivate,
	} {
		assert.True(t, IsPermissionDenied(NewRPCError(403, typ)), typ)
	}

	assert.False(t, IsPermissionDenied(NewFloodWait(5)))
	assert.False(t, IsPermissionDenied(errors.New("boom")))
	assert.False(t, IsPermissionDenied(nil))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewRPCError(400, TypePeerIDInvalid)))
	assert.True(t, IsNotFound(NewRPCError(400, TypeUserNotParticipant)))
	assert.False(t, IsNotFound(NewRPCError(400, TypeChatAdminRequired)))
	assert.False(t, IsNotFound(nil))
}

func TestIsAuthTerminated(t *testing.T) {
	for _, typ := range []string{
		TypeAuthKeyUnregistered,
		TypeUserDeactivated,
		TypeUserDeactivatedBan,
		TypeSessionRevoked,
		TypeSessionExpired,
	} {
		assert.True(t, IsAuthTerminated(NewRPCError(401, typ)), typ)
	}

	assert.False(t, IsAuthTerminated(NewRPCError(400, TypePeerIDInvalid)))
	assert.False(t, IsAuthTerminated(nil))
}

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection reset" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

var _ net.Error = fakeNetError{}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(fakeNetError{}))
	assert.True(t, IsTransient(fmt.Errorf("rpc: %w", fakeNetError{})))
	assert.False(t, IsTransient(NewRPCError(400, TypeChatAdminRequired)))
	assert.False(t, IsTransient(errors.New("boom")))
	assert.False(t, IsTransient(nil))
}

func TestDialogPeer(t *testing.T) {
	channel := Dialog{ID: 10, AccessHash: 99, Broadcast: true}
	assert.True(t, channel.Peer().Channel)

	supergroup := Dialog{ID: 11, Megagroup: true}
	assert.True(t, supergroup.Peer().Channel)

	basic := Dialog{ID: 12, BasicGroup: true}
	assert.False(t, basic.Peer().Channel)

	user := Dialog{ID: 13, IsUser: true}
	assert.False(t, user.Peer().Channel)
	assert.Equal(t, int64(13), user.Peer().ID)
}
