package cleaner

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Row is one report line: everything that happened to one target (or
// one contact) during the job.
type Row struct {
	ChatID      int64    `json:"chat_id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	ActionsDone []string `json:"actions_done"`
	Status      Status   `json:"status"`
	Error       string   `json:"error,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

// Report accumulates per-target outcomes into running statistics and
// renders the final CSV and JSON artifacts. All methods are safe for
// concurrent use; the executors of every pool feed the same instance.
type Report struct {
	mu sync.Mutex

	account   string
	jobID     string
	startedAt time.Time

	rows  map[int64]*Row
	order []int64
	stats Stats

	processed int // records with a terminal status
}

// jsonReport is the wire shape of the JSON artifact.
type jsonReport struct {
	AccountName    string  `json:"account_name"`
	JobID          string  `json:"job_id"`
	Timestamp      string  `json:"timestamp"`
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Statistics     Stats   `json:"statistics"`
	Actions        []Row   `json:"actions"`
}

// NewReport creates an empty report for one job.
func NewReport(account, jobID string, startedAt time.Time) *Report {
	return &Report{
		account:   account,
		jobID:     jobID,
		startedAt: startedAt,
		rows:      make(map[int64]*Row),
	}
}

// Register adds a pending row for a target before any action runs, so
// an aborted job still reports the target as not attempted.
func (r *Report) Register(t *Target) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureRow(t.ID, t.Title, string(t.Kind))
}

// Record folds one terminal action record into the target's row and
// the running statistics, and returns the cumulative progress snapshot.
func (r *Report) Record(rec ActionRecord) Progress {
	r.mu.Lock()
	defer r.mu.Unlock()

	row := r.ensureRow(rec.TargetID, rec.Title, string(rec.Kind))

	if rec.Done != "" {
		row.ActionsDone = append(row.ActionsDone, rec.Done)
	}
	row.Status = mergeStatus(row.Status, rec.Status)
	if rec.Error != "" {
		if row.Error != "" {
			row.Error += "; "
		}
		row.Error += rec.Error
	}
	row.Timestamp = rec.Timestamp.Format(time.RFC3339)

	r.applyStats(rec)
	r.processed++

	return Progress{
		Account:   r.account,
		Processed: r.processed,
		Total:     len(r.order),
		Stats:     r.stats,
		Last:      rec,
	}
}

// Stats returns a copy of the running statistics.
func (r *Report) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// ensureRow returns the row for id, creating a pending one if needed.
// Caller must hold the lock.
func (r *Report) ensureRow(id int64, title, kind string) *Row {
	if row, ok := r.rows[id]; ok {
		return row
	}
	row := &Row{
		ChatID:    id,
		Title:     norm.NFC.String(title),
		Type:      kind,
		Status:    StatusPending,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	r.rows[id] = row
	r.order = append(r.order, id)
	return row
}

// applyStats updates the counters for one record. Caller must hold the
// lock.
func (r *Report) applyStats(rec ActionRecord) {
	switch rec.Status {
	case StatusFailed:
		r.stats.Errors++
		return
	case StatusSkipped:
		r.stats.Skipped++
		return
	}

	// success or partial
	switch rec.Action {
	case ActionLeave:
		if rec.Kind == KindChannel {
			r.stats.ChannelsLeft++
		} else {
			r.stats.GroupsLeft++
		}
	case ActionDeleteHistory:
		r.stats.HistoriesDeleted++
	case ActionDeleteContact:
		r.stats.ContactsDeleted++
	case ActionArchive:
		r.stats.DialogsClosed++
	}
}

// mergeStatus combines the row status with a new record status. A row
// is only as good as its worst action: failed > partial > success;
// skipped never upgrades or downgrades an attempted row.
func mergeStatus(current, next Status) Status {
	if current == StatusPending {
		return next
	}
	rank := func(s Status) int {
		switch s {
		case StatusFailed:
			return 3
		case StatusPartial:
			return 2
		case StatusSuccess:
			return 1
		default: // pending, skipped
			return 0
		}
	}
	if rank(next) > rank(current) {
		return next
	}
	return current
}

// WriteCSV writes the CSV artifact: one row per target.
func (r *Report) WriteCSV(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create CSV report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"chat_id", "title", "type", "actions_done", "status", "error", "timestamp"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, id := range r.order {
		row := r.rows[id]
		record := []string{
			strconv.FormatInt(row.ChatID, 10),
			row.Title,
			row.Type,
			strings.Join(row.ActionsDone, ", "),
			string(row.Status),
			row.Error,
			row.Timestamp,
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV report: %w", err)
	}
	return nil
}

// WriteJSON writes the JSON artifact with the statistics object and the
// ordered per-target action details.
func (r *Report) WriteJSON(path string, elapsed time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	out := jsonReport{
		AccountName:    r.account,
		JobID:          r.jobID,
		Timestamp:      r.startedAt.Format(time.RFC3339),
		ElapsedSeconds: float64(int(elapsed.Seconds()*100)) / 100,
		Statistics:     r.stats,
		Actions:        make([]Row, 0, len(r.order)),
	}
	for _, id := range r.order {
		row := r.rows[id]
		if row.ActionsDone == nil {
			row.ActionsDone = []string{}
		}
		out.Actions = append(out.Actions, *row)
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON report: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}
	return nil
}
