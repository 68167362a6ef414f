package cleaner

import (
	"context"
	"errors"
	"fmt"

	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/telegram"
)

// ErrEnumeration wraps failures to retrieve the dialog list. Callers
// may retry the whole job on it; the directory was not mutated.
var ErrEnumeration = errors.New("dialog enumeration failed")

const defaultDialogPageSize = 100

// Enumerator lists and classifies every open conversation of the
// account. Read-only: it never mutates platform state.
type Enumerator struct {
	client   telegram.Client
	logger   *logger.Logger
	pageSize int
}

// NewEnumerator creates an enumerator over the given client.
func NewEnumerator(client telegram.Client, log *logger.Logger) *Enumerator {
	return &Enumerator{
		client:   client,
		logger:   log,
		pageSize: defaultDialogPageSize,
	}
}

// ListTargets pages through the dialog list until exhaustion and
// returns one classified target per conversation. The service
// notification account is filtered out here so no downstream action
// can ever touch it.
func (e *Enumerator) ListTargets(ctx context.Context) ([]*Target, error) {
	var targets []*Target

	offset := 0
	for {
		dialogs, err := e.client.GetDialogs(ctx, offset, e.pageSize)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEnumeration, err)
		}

		for _, d := range dialogs {
			if d.ID == telegram.ServiceNotificationID {
				e.logger.DebugCtx(ctx, "skipping service notification dialog",
					logger.Field{Key: "chat_id", Value: d.ID})
				continue
			}
			targets = append(targets, &Target{
				ID:       d.ID,
				Title:    d.Title,
				Kind:     classify(d),
				Peer:     d.Peer(),
				Archived: d.Archived,
			})
		}

		if len(dialogs) < e.pageSize {
			break
		}
		offset += len(dialogs)
	}

	e.logger.InfoCtx(ctx, "dialogs enumerated",
		logger.Field{Key: "count", Value: len(targets)})

	return targets, nil
}
