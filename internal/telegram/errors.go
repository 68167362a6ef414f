package telegram

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/wasilibs/go-re2"
)

// RPC error types the engine distinguishes. The strings follow the
// Telegram API error surface.
const (
	TypeChatAdminRequired      = "CHAT_ADMIN_REQUIRED"
	TypeChatWriteForbidden     = "CHAT_WRITE_FORBIDDEN"
	TypeMessageDeleteForbidden = "MESSAGE_DELETE_FORBIDDEN"
	TypeUserBannedInChannel    = "USER_BANNED_IN_CHANNEL"
	TypeChannelPrivate         = "CHANNEL_PRIVATE"
	TypePeerIDInvalid          = "PEER_ID_INVALID"
	TypeUserNotParticipant     = "USER_NOT_PARTICIPANT"
	TypeAuthKeyUnregistered    = "AUTH_KEY_UNREGISTERED"
	TypeUserDeactivated        = "USER_DEACTIVATED"
	TypeUserDeactivatedBan     = "USER_DEACTIVATED_BAN"
	TypeSessionRevoked         = "SESSION_REVOKED"
	TypeSessionExpired         = "SESSION_EXPIRED"
)

// Wait-demand error types carry the required pause in the error string,
// e.g. FLOOD_WAIT_42.
var waitPattern = re2.MustCompile(`^(FLOOD_WAIT|FLOOD_PREMIUM_WAIT|SLOWMODE_WAIT)_(\d+)$`)

// RPCError is a typed Telegram RPC failure.
type RPCError struct {
	Code int    // numeric code, e.g. 420 for flood waits
	Type string // error type string, e.g. CHAT_ADMIN_REQUIRED
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Type)
}

// NewRPCError builds a typed RPC error.
func NewRPCError(code int, typ string) *RPCError {
	return &RPCError{Code: code, Type: typ}
}

// NewFloodWait builds the throttle error the platform raises when the
// caller must pause before retrying.
func NewFloodWait(seconds int) *RPCError {
	return &RPCError{Code: 420, Type: fmt.Sprintf("FLOOD_WAIT_%d", seconds)}
}

// AsFloodWait reports whether err is a platform wait demand and, if so,
// the duration the platform requires before the next attempt.
func AsFloodWait(err error) (time.Duration, bool) {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return 0, false
	}
	m := waitPattern.FindStringSubmatch(rpcErr.Type)
	if m == nil {
		return 0, false
	}
	seconds, convErr := strconv.Atoi(m[2])
	if convErr != nil {
		return 0, false
	}
	return time.Duration(seconds) * time.Second, true
}

// IsPermissionDenied reports whether err is a permission condition:
// the account lacks standing for the requested operation.
func IsPermissionDenied(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Type {
	case TypeChatAdminRequired, TypeChatWriteForbidden,
		TypeMessageDeleteForbidden, TypeUserBannedInChannel,
		TypeChannelPrivate:
		return true
	}
	return false
}

// IsNotFound reports whether err means the peer no longer exists or is
// no longer addressable by this account.
func IsNotFound(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Type {
	case TypePeerIDInvalid, TypeUserNotParticipant:
		return true
	}
	return false
}

// IsAuthTerminated reports whether err means the session is no longer
// usable at all. These conditions end the whole job, not one target.
func IsAuthTerminated(err error) bool {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Type {
	case TypeAuthKeyUnregistered, TypeUserDeactivated,
		TypeUserDeactivatedBan, TypeSessionRevoked, TypeSessionExpired:
		return true
	}
	return false
}

// IsTransient reports whether err looks like a recoverable network
// condition: timeouts, dropped connections, cancelled deadlines.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return false
}
