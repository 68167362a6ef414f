package telegram

import (
	"context"
	"errors"
	"sync"
)

// ErrNoTransport is returned by NewClient when no transport has been
// registered. Session loading and authentication live outside this
// module; the embedding application plugs its transport in here.
var ErrNoTransport = errors.New("no account client transport registered")

// ClientFactory builds an authenticated client for the named account.
type ClientFactory func(ctx context.Context, account string) (Client, error)

var (
	factoryMu sync.RWMutex
	factory   ClientFactory
)

// SetClientFactory registers the transport used to obtain account
// clients. Typically called once at application startup.
func SetClientFactory(f ClientFactory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factory = f
}

// NewClient obtains an authenticated client for the named account from
// the registered transport.
func NewClient(ctx context.Context, account string) (Client, error) {
	factoryMu.RLock()
	f := factory
	factoryMu.RUnlock()

	if f == nil {
		return nil, ErrNoTransport
	}
	return f(ctx, account)
}
