// Package cleaner implements the bulk conversation-cleanup engine for
// one authenticated Telegram account: enumerate every open dialog,
// delete history, leave groups and channels, remove contacts, archive
// whatever remains, and write an auditable report. All platform calls
// go through rate limiting and a bounded retry policy; per-category
// worker pools keep concurrency under the platform's tolerance.
package cleaner

import (
	"time"

	"github.com/biot9999/newtdata/internal/telegram"
)

// TargetKind is the closed classification of a dialog, resolved once at
// enumeration time.
type TargetKind string

const (
	KindGroup   TargetKind = "group"
	KindChannel TargetKind = "channel"
	KindPrivate TargetKind = "private"
	KindBot     TargetKind = "bot"
	KindUnknown TargetKind = "unknown"
)

// ActionType names one cleanup action category.
type ActionType string

const (
	ActionLeave         ActionType = "leave"
	ActionDeleteHistory ActionType = "delete_history"
	ActionDeleteContact ActionType = "delete_contact"
	ActionArchive       ActionType = "archive"
)

// Status is the terminal outcome of one action attempt.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// TargetState tracks a target through its per-job sub-states. States
// only ever advance; Done is terminal whether or not every action on
// the target succeeded.
type TargetState int

const (
	StatePending TargetState = iota
	StateDeletingHistory
	StateLeaving
	StateDone
)

// Target is one conversation subject to cleanup. A target is handed to
// exactly one in-flight task at a time, so its mutable fields need no
// lock.
type Target struct {
	ID       int64
	Title    string
	Kind     TargetKind
	Peer     telegram.Peer
	Archived bool

	state    TargetState
	selfOnly bool // the self-only fallback has been spent for this target
}

// ActionRecord is the immutable outcome of one (target, action) attempt.
type ActionRecord struct {
	TargetID  int64
	Title     string
	Kind      TargetKind
	Action    ActionType
	Done      string // report label, e.g. "left", "history_deleted(self_only)"
	Status    Status
	Error     string
	Timestamp time.Time
}

// Stats are the running job statistics. Counters are only mutated
// under the report aggregator's lock.
type Stats struct {
	GroupsLeft       int `json:"groups_left"`
	ChannelsLeft     int `json:"channels_left"`
	HistoriesDeleted int `json:"histories_deleted"`
	ContactsDeleted  int `json:"contacts_deleted"`
	DialogsClosed    int `json:"dialogs_closed"`
	Errors           int `json:"errors"`
	Skipped          int `json:"skipped"`
}

// Progress is a cumulative snapshot handed to the progress sink after
// every recorded action.
type Progress struct {
	Account   string
	Processed int
	Total     int
	Stats     Stats
	Last      ActionRecord
}

// ProgressFunc receives progress snapshots. Implementations must be
// fast; they are called on the recording path.
type ProgressFunc func(Progress)

// Config is the plain configuration record for one cleanup job.
type Config struct {
	Account                   string
	LeaveConcurrency          int
	DeleteHistoryConcurrency  int
	DeleteContactsConcurrency int
	ActionSpacing             time.Duration
	ActionJitter              time.Duration
	MinPeerInterval           time.Duration
	RevokeByDefault           bool
	MaxRetries                int
	ContactBatchSize          int
	ReportDir                 string
	DryRun                    bool
}

// Default engine knobs. The concurrency and spacing values are the
// highest rates observed to stay under platform throttling.
const (
	DefaultLeaveConcurrency          = 3
	DefaultDeleteHistoryConcurrency  = 2
	DefaultDeleteContactsConcurrency = 3
	DefaultActionSpacing             = 300 * time.Millisecond
	DefaultActionJitter              = 200 * time.Millisecond
	DefaultMinPeerInterval           = 1500 * time.Millisecond
	DefaultMaxRetries                = 3
	DefaultContactBatchSize          = 100
	DefaultReportDir                 = "./results/cleanup_reports"
)

// withDefaults fills unset config fields in place.
func (c *Config) withDefaults() {
	if c.LeaveConcurrency <= 0 {
		c.LeaveConcurrency = DefaultLeaveConcurrency
	}
	if c.DeleteHistoryConcurrency <= 0 {
		c.DeleteHistoryConcurrency = DefaultDeleteHistoryConcurrency
	}
	if c.DeleteContactsConcurrency <= 0 {
		c.DeleteContactsConcurrency = DefaultDeleteContactsConcurrency
	}
	if c.ActionSpacing <= 0 {
		c.ActionSpacing = DefaultActionSpacing
	}
	if c.ActionJitter <= 0 {
		c.ActionJitter = DefaultActionJitter
	}
	if c.MinPeerInterval <= 0 {
		c.MinPeerInterval = DefaultMinPeerInterval
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.ContactBatchSize <= 0 || c.ContactBatchSize > 100 {
		c.ContactBatchSize = DefaultContactBatchSize
	}
	if c.ReportDir == "" {
		c.ReportDir = DefaultReportDir
	}
}

// classify resolves the directory discriminants into the closed kind.
func classify(d telegram.Dialog) TargetKind {
	switch {
	case d.Broadcast:
		return KindChannel
	case d.Megagroup, d.BasicGroup:
		return KindGroup
	case d.IsUser && d.IsBot:
		return KindBot
	case d.IsUser:
		return KindPrivate
	default:
		return KindUnknown
	}
}

// leavable reports whether the leave action applies to this kind.
// Private chats cannot be left; they are archived at the end instead.
func (t *Target) leavable() bool {
	return t.Kind == KindGroup || t.Kind == KindChannel
}
