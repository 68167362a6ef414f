package cleaner

import (
	"context"
	"time"

	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/telegram"
)

// Executors run one action category against one task. Shared shape:
// wait for the rate limiter, issue the platform call, classify failures
// through the retry policy, and emit exactly one terminal record per
// target (or per contact). Once a task is dequeued it always runs to a
// terminal record, even across a job cancellation: platform mutations
// cannot be rolled back, so in-flight work is finished, never aborted.

// executeDeleteHistory erases the history with one target. The
// bidirectional (revoke) delete is tried first when the job's revoke
// default is on; a permission denial degrades to self-only deletion
// exactly once and yields a partial outcome.
func (c *Cleaner) executeDeleteHistory(ctx context.Context, task Task) []ActionRecord {
	t := task.Target
	t.state = StateDeletingHistory

	// Detached from cancellation: see package note above.
	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	c.metrics.ActionStarted(ActionDeleteHistory)
	defer c.metrics.ActionFinished(ActionDeleteHistory)

	dec, err := c.runAction(ctx, ActionDeleteHistory, t, func(ctx context.Context) error {
		revoke := c.cfg.RevokeByDefault && !t.selfOnly
		return c.client.DeleteHistory(ctx, t.Peer, revoke)
	})

	var rec ActionRecord
	switch {
	case err == nil && t.selfOnly:
		rec = c.record(t, ActionDeleteHistory, "history_deleted(self_only)", StatusPartial,
			"self-only: insufficient permission for full delete")
	case err == nil:
		rec = c.record(t, ActionDeleteHistory, "history_deleted", StatusSuccess, "")
	case dec.Kind == DecisionSkip:
		rec = c.record(t, ActionDeleteHistory, "", StatusSkipped, dec.Reason)
	default:
		rec = c.record(t, ActionDeleteHistory, "", StatusFailed, dec.Reason)
	}

	c.metrics.RecordAction(ActionDeleteHistory, rec.Status, time.Since(started))
	return []ActionRecord{rec}
}

// executeLeave removes the account from one group or channel. Channels
// and supergroups take the channel leave call; basic groups remove self
// from the member list. Private chats never reach this executor.
func (c *Cleaner) executeLeave(ctx context.Context, task Task) []ActionRecord {
	t := task.Target
	t.state = StateLeaving
	defer func() { t.state = StateDone }()

	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	c.metrics.ActionStarted(ActionLeave)
	defer c.metrics.ActionFinished(ActionLeave)

	dec, err := c.runAction(ctx, ActionLeave, t, func(ctx context.Context) error {
		if t.Peer.Channel {
			return c.client.LeaveChannel(ctx, t.Peer)
		}
		return c.client.DeleteChatUser(ctx, t.ID, c.me.ID)
	})

	var rec ActionRecord
	switch {
	case err == nil:
		rec = c.record(t, ActionLeave, "left", StatusSuccess, "")
	case dec.Kind == DecisionSkip:
		rec = c.record(t, ActionLeave, "", StatusSkipped, dec.Reason)
	default:
		rec = c.record(t, ActionLeave, "", StatusFailed, dec.Reason)
	}

	c.metrics.RecordAction(ActionLeave, rec.Status, time.Since(started))
	return []ActionRecord{rec}
}

// executeContactBatch removes one batch of contacts. The batch is one
// platform call; the report still gets one record per contact.
func (c *Cleaner) executeContactBatch(ctx context.Context, task Task) []ActionRecord {
	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	c.metrics.ActionStarted(ActionDeleteContact)
	defer c.metrics.ActionFinished(ActionDeleteContact)

	ids := make([]int64, 0, len(task.Contacts))
	for _, contact := range task.Contacts {
		ids = append(ids, contact.UserID)
	}

	dec, err := c.runActionForPeer(ctx, ActionDeleteContact, 0, nil, func(ctx context.Context) error {
		return c.client.DeleteContacts(ctx, ids)
	})

	status := StatusSuccess
	done := "contact_deleted"
	detail := ""
	switch {
	case err == nil:
	case dec.Kind == DecisionSkip:
		status, done, detail = StatusSkipped, "", dec.Reason
	default:
		status, done, detail = StatusFailed, "", dec.Reason
	}

	records := make([]ActionRecord, 0, len(task.Contacts))
	for _, contact := range task.Contacts {
		records = append(records, ActionRecord{
			TargetID:  contact.UserID,
			Title:     contact.FirstName,
			Kind:      KindPrivate,
			Action:    ActionDeleteContact,
			Done:      done,
			Status:    status,
			Error:     detail,
			Timestamp: time.Now(),
		})
	}

	c.metrics.RecordAction(ActionDeleteContact, status, time.Since(started))
	return records
}

// executeArchive moves one remaining dialog to the archive folder.
// Failures here are recorded but never escalate: archiving is a
// best-effort finishing touch.
func (c *Cleaner) executeArchive(ctx context.Context, t *Target) ActionRecord {
	ctx = context.WithoutCancel(ctx)

	started := time.Now()
	c.metrics.ActionStarted(ActionArchive)
	defer c.metrics.ActionFinished(ActionArchive)

	dec, err := c.runAction(ctx, ActionArchive, t, func(ctx context.Context) error {
		return c.client.ArchiveDialog(ctx, t.Peer)
	})

	var rec ActionRecord
	switch {
	case err == nil:
		rec = c.record(t, ActionArchive, "archived", StatusSuccess, "")
	case dec.Kind == DecisionSkip:
		rec = c.record(t, ActionArchive, "", StatusSkipped, dec.Reason)
	default:
		rec = c.record(t, ActionArchive, "", StatusFailed, dec.Reason)
	}

	c.metrics.RecordAction(ActionArchive, rec.Status, time.Since(started))
	return rec
}

// runAction is the generic retry loop around one platform operation
// against a dialog target.
func (c *Cleaner) runAction(ctx context.Context, action ActionType, t *Target, op func(ctx context.Context) error) (Decision, error) {
	return c.runActionForPeer(ctx, action, t.ID, t, op)
}

// runActionForPeer executes op under the rate limiter, classifying each
// failure through the retry policy until a terminal decision. It
// returns a nil error on success, otherwise the last error and the
// decision that ended the loop.
func (c *Cleaner) runActionForPeer(ctx context.Context, action ActionType, peerID int64, t *Target, op func(ctx context.Context) error) (Decision, error) {
	attempt := 0
	for {
		attempt++

		if err := c.limiter.Wait(ctx, peerID); err != nil {
			return Decision{Kind: DecisionFatal, Reason: err.Error()}, err
		}

		err := op(ctx)
		if err == nil {
			return Decision{}, nil
		}

		degraded := t != nil && t.selfOnly
		dec := c.policy.Classify(action, err, attempt, degraded)

		switch dec.Kind {
		case DecisionRetry:
			if _, ok := telegram.AsFloodWait(err); ok {
				c.metrics.RecordFloodWait()
			}
			c.logger.WarnCtx(ctx, "action retrying",
				logger.Field{Key: "action", Value: string(action)},
				logger.Field{Key: "peer_id", Value: peerID},
				logger.Field{Key: "attempt", Value: attempt},
				logger.Field{Key: "wait", Value: dec.Wait.String()})
			if sleepErr := sleep(ctx, dec.Wait); sleepErr != nil {
				return Decision{Kind: DecisionFatal, Reason: dec.Reason}, err
			}

		case DecisionDegrade:
			t.selfOnly = true
			c.logger.InfoCtx(ctx, "degrading to self-only delete",
				logger.Field{Key: "peer_id", Value: peerID})

		case DecisionAbort:
			c.fail(err)
			return Decision{Kind: DecisionFatal, Reason: dec.Reason}, err

		default:
			return dec, err
		}
	}
}

// record builds a terminal record for a dialog target.
func (c *Cleaner) record(t *Target, action ActionType, done string, status Status, detail string) ActionRecord {
	return ActionRecord{
		TargetID:  t.ID,
		Title:     t.Title,
		Kind:      t.Kind,
		Action:    action,
		Done:      done,
		Status:    status,
		Error:     detail,
		Timestamp: time.Now(),
	}
}

// sleep pauses for d or until the context ends.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
