// Package telegram defines the boundary to an authenticated Telegram
// account client. The engine never authenticates or manages sessions
// itself; it issues requests through a Client handle provided by the
// caller and interprets the RPC error surface defined here.
package telegram

import "context"

// ServiceNotificationID is the Telegram service notification account
// (verification codes, login alerts). It must never be left, have its
// history deleted, or be archived: the surrounding tooling reads
// verification codes out of that conversation.
const ServiceNotificationID int64 = 777000

// Account describes the authenticated account behind a Client.
type Account struct {
	ID        int64
	Username  string
	FirstName string
	Phone     string
}

// Dialog is one open conversation as reported by the dialog list.
// The boolean discriminants mirror what the directory exposes; the
// engine resolves them into a closed kind once, at enumeration time.
type Dialog struct {
	ID         int64
	AccessHash int64
	Title      string
	Broadcast  bool // broadcast channel
	Megagroup  bool // supergroup
	BasicGroup bool // legacy small group
	IsUser     bool // one-to-one chat
	IsBot      bool // one-to-one chat with a bot
	Archived   bool // already in the archive folder
}

// Peer addresses one conversation in a request.
type Peer struct {
	ID         int64
	AccessHash int64
	Channel    bool // channel or supergroup peer
}

// Contact is one entry of the account's contact list.
type Contact struct {
	UserID    int64
	FirstName string
	Phone     string
}

// Client is an authenticated, connected account handle. Implementations
// carry their own transport; every method maps to a single RPC and
// returns errors classifiable by this package.
type Client interface {
	// GetMe returns the account behind this client.
	GetMe(ctx context.Context) (*Account, error)

	// GetDialogs returns one page of the dialog list starting at offset.
	// A short page (fewer than limit entries) means the list is exhausted.
	GetDialogs(ctx context.Context, offset, limit int) ([]Dialog, error)

	// LeaveChannel leaves a channel or supergroup.
	LeaveChannel(ctx context.Context, peer Peer) error

	// DeleteChatUser removes a user (normally self) from a basic group.
	DeleteChatUser(ctx context.Context, chatID, userID int64) error

	// DeleteHistory erases the message history with a peer. With revoke
	// the history is removed for all participants, otherwise only the
	// local view is cleared.
	DeleteHistory(ctx context.Context, peer Peer, revoke bool) error

	// GetContacts returns the full contact list.
	GetContacts(ctx context.Context) ([]Contact, error)

	// DeleteContacts removes the given user IDs from the contact list.
	DeleteContacts(ctx context.Context, userIDs []int64) error

	// ArchiveDialog moves a dialog into the archive folder.
	ArchiveDialog(ctx context.Context, peer Peer) error
}

// Peer returns the request peer for this dialog.
func (d Dialog) Peer() Peer {
	return Peer{
		ID:         d.ID,
		AccessHash: d.AccessHash,
		Channel:    d.Broadcast || d.Megagroup,
	}
}
