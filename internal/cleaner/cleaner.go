package cleaner

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/biot9999/newtdata/internal/logger"
	"github.com/biot9999/newtdata/internal/telegram"
)

// JobState is the job-level state machine. States only ever advance;
// Finalized is reached only after the report artifacts are written.
type JobState string

const (
	JobCreated            JobState = "created"
	JobEnumerating        JobState = "enumerating"
	JobProcessingDialogs  JobState = "processing_dialogs"
	JobDeletingContacts   JobState = "deleting_contacts"
	JobArchivingRemainder JobState = "archiving_remainder"
	JobFinalized          JobState = "finalized"
)

// Summary is the final outcome of one cleanup job.
type Summary struct {
	Account   string
	JobID     string
	StartedAt time.Time
	Elapsed   time.Duration
	Stats     Stats
	CSVPath   string
	JSONPath  string
	Cancelled bool
}

// Cleaner drives one cleanup job end to end: enumerate, delete
// histories, leave, delete contacts, archive the remainder, report.
type Cleaner struct {
	client  telegram.Client
	cfg     Config
	logger  *logger.Logger
	limiter *RateLimiter
	policy  RetryPolicy
	report  *Report
	metrics *PrometheusMetrics

	progress ProgressFunc

	jobID     string
	startedAt time.Time
	me        *telegram.Account

	stateMu sync.Mutex
	state   JobState

	failMu    sync.Mutex
	jobErr    error
	runCancel context.CancelFunc
}

// Option configures optional Cleaner collaborators.
type Option func(*Cleaner)

// WithProgress installs a progress sink invoked after every recorded
// action with cumulative counts.
func WithProgress(fn ProgressFunc) Option {
	return func(c *Cleaner) { c.progress = fn }
}

// WithMetrics installs Prometheus metrics.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(c *Cleaner) { c.metrics = m }
}

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Cleaner) { c.policy = p }
}

// New creates a cleaner for one account job. The client must already be
// authenticated and connected; the cleaner never logs in.
func New(client telegram.Client, cfg Config, log *logger.Logger, opts ...Option) *Cleaner {
	cfg.withDefaults()

	c := &Cleaner{
		client:  client,
		cfg:     cfg,
		logger:  log,
		limiter: NewRateLimiter(cfg.ActionSpacing, cfg.ActionJitter, cfg.MinPeerInterval),
		policy:  DefaultRetryPolicy(),
		jobID:   uuid.NewString(),
		state:   JobCreated,
	}
	c.policy.MaxAttempts = cfg.MaxRetries

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current job state.
func (c *Cleaner) State() JobState {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

func (c *Cleaner) setState(s JobState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
	c.logger.Info("job state changed", logger.Field{Key: "state", Value: string(s)})
}

// Run executes the whole cleanup job. The final report is written in
// every case, including cancellation and job-fatal errors; the returned
// summary reflects exactly what was completed.
func (c *Cleaner) Run(ctx context.Context) (*Summary, error) {
	c.startedAt = time.Now()
	c.report = NewReport(c.cfg.Account, c.jobID, c.startedAt)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	c.failMu.Lock()
	c.runCancel = cancel
	c.failMu.Unlock()

	c.logger.Info("cleanup job started",
		logger.Field{Key: "account", Value: c.cfg.Account},
		logger.Field{Key: "job_id", Value: c.jobID},
		logger.Field{Key: "dry_run", Value: c.cfg.DryRun})

	c.setState(JobEnumerating)

	me, err := c.client.GetMe(runCtx)
	if err != nil {
		c.fail(fmt.Errorf("failed to identify account: %w", err))
		return c.finalize(runCtx)
	}
	c.me = me

	targets, err := NewEnumerator(c.client, c.logger).ListTargets(runCtx)
	if err != nil {
		c.fail(err)
		return c.finalize(runCtx)
	}
	c.metrics.SetTargetCount(len(targets))

	for _, t := range targets {
		c.report.Register(t)
	}

	if c.cfg.DryRun {
		c.dryRun(targets)
		return c.finalize(runCtx)
	}

	c.processDialogs(runCtx, targets)

	if runCtx.Err() == nil {
		c.setState(JobDeletingContacts)
		c.deleteContacts(runCtx)
	}

	if runCtx.Err() == nil {
		c.setState(JobArchivingRemainder)
		c.archiveRemainder(runCtx)
	}

	return c.finalize(ctx)
}

// processDialogs fans the targets through the delete-history pool and
// feeds each finished target into the leave pool. History deletion
// strictly precedes leaving for every target: leaving first can forfeit
// the right to delete.
func (c *Cleaner) processDialogs(ctx context.Context, targets []*Target) {
	c.setState(JobProcessingDialogs)

	buffer := len(targets) + 1
	historyPool := NewPool("delete_history", c.cfg.DeleteHistoryConcurrency, buffer, c.logger)
	leavePool := NewPool("leave", c.cfg.LeaveConcurrency, buffer, c.logger)

	historyPool.Start(ctx, c.executeDeleteHistory)
	leavePool.Start(ctx, c.executeLeave)

	byID := make(map[int64]*Target, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}

	go func() {
		for _, t := range targets {
			historyPool.Submit(Task{Target: t})
		}
		historyPool.Close()
	}()

	go func() {
		for rec := range historyPool.Results() {
			c.emit(rec)

			t := byID[rec.TargetID]
			if t.leavable() {
				leavePool.Submit(Task{Target: t})
				continue
			}
			// Leave does not apply to private chats; the dialog is
			// archived in the final pass instead.
			t.state = StateDone
			c.emit(c.record(t, ActionLeave, "", StatusSkipped, "not applicable"))
		}
		leavePool.Close()
	}()

	for rec := range leavePool.Results() {
		c.emit(rec)
	}
}

// deleteContacts clears the contact list in batches through its own
// pool. Contacts are independent of dialogs; the job sequences the
// phases for clearer progress reporting.
func (c *Cleaner) deleteContacts(ctx context.Context) {
	contacts, err := c.client.GetContacts(ctx)
	if err != nil {
		if telegram.IsAuthTerminated(err) {
			c.fail(err)
			return
		}
		c.logger.ErrorCtx(ctx, "failed to fetch contact list", err)
		return
	}
	if len(contacts) == 0 {
		c.logger.InfoCtx(ctx, "no contacts to delete")
		return
	}

	c.logger.InfoCtx(ctx, "deleting contacts",
		logger.Field{Key: "count", Value: len(contacts)})

	pool := NewPool("delete_contacts", c.cfg.DeleteContactsConcurrency, len(contacts)+1, c.logger)
	pool.Start(ctx, c.executeContactBatch)

	go func() {
		for start := 0; start < len(contacts); start += c.cfg.ContactBatchSize {
			end := start + c.cfg.ContactBatchSize
			if end > len(contacts) {
				end = len(contacts)
			}
			pool.Submit(Task{Contacts: contacts[start:end]})
		}
		pool.Close()
	}()

	for rec := range pool.Results() {
		c.emit(rec)
	}
}

// archiveRemainder re-enumerates and archives whatever conversations
// are still open, private chats chiefly. Best effort: failures are
// recorded, never job-fatal.
func (c *Cleaner) archiveRemainder(ctx context.Context) {
	remaining, err := NewEnumerator(c.client, c.logger).ListTargets(ctx)
	if err != nil {
		c.logger.ErrorCtx(ctx, "failed to enumerate dialogs for archiving", err)
		return
	}

	for _, t := range remaining {
		if ctx.Err() != nil {
			return
		}
		if t.Archived {
			continue
		}
		c.emit(c.executeArchive(ctx, t))
	}
}

// dryRun records what the job would do without touching the platform.
func (c *Cleaner) dryRun(targets []*Target) {
	for _, t := range targets {
		c.emit(c.record(t, ActionDeleteHistory, "", StatusSkipped, "dry-run"))
		if t.leavable() {
			c.emit(c.record(t, ActionLeave, "", StatusSkipped, "dry-run"))
		}
		t.state = StateDone
	}
}

// emit records one terminal action and notifies the progress sink.
func (c *Cleaner) emit(rec ActionRecord) {
	p := c.report.Record(rec)
	if c.progress != nil {
		c.progress(p)
	}
}

// fail stores the first job-fatal error and stops new dispatch. Already
// running actions finish and are reported.
func (c *Cleaner) fail(err error) {
	c.failMu.Lock()
	if c.jobErr == nil {
		c.jobErr = err
	}
	cancel := c.runCancel
	c.failMu.Unlock()

	c.logger.Error("job-fatal error, aborting remaining queue", err,
		logger.Field{Key: "account", Value: c.cfg.Account})

	if cancel != nil {
		cancel()
	}
}

// finalize writes both report artifacts and builds the summary. Always
// called, whatever path Run took.
func (c *Cleaner) finalize(ctx context.Context) (*Summary, error) {
	elapsed := time.Since(c.startedAt)
	stamp := c.startedAt.Format("20060102_150405")

	csvPath := filepath.Join(c.cfg.ReportDir, fmt.Sprintf("cleanup_%s_%s.csv", c.cfg.Account, stamp))
	jsonPath := filepath.Join(c.cfg.ReportDir, fmt.Sprintf("cleanup_%s_%s.json", c.cfg.Account, stamp))

	if err := c.report.WriteCSV(csvPath); err != nil {
		c.logger.Error("failed to write CSV report", err)
	}
	if err := c.report.WriteJSON(jsonPath, elapsed); err != nil {
		c.logger.Error("failed to write JSON report", err)
	}

	c.setState(JobFinalized)

	summary := &Summary{
		Account:   c.cfg.Account,
		JobID:     c.jobID,
		StartedAt: c.startedAt,
		Elapsed:   elapsed,
		Stats:     c.report.Stats(),
		CSVPath:   csvPath,
		JSONPath:  jsonPath,
		Cancelled: ctx.Err() != nil,
	}

	c.failMu.Lock()
	jobErr := c.jobErr
	c.failMu.Unlock()

	c.logger.Info("cleanup job finalized",
		logger.Field{Key: "account", Value: c.cfg.Account},
		logger.Field{Key: "elapsed", Value: elapsed.String()},
		logger.Field{Key: "errors", Value: summary.Stats.Errors},
		logger.Field{Key: "cancelled", Value: summary.Cancelled})

	return summary, jobErr
}
