// Package schedule runs cleanup jobs on a cron expression, draining a
// persistent queue of accounts that are due for cleaning.
package schedule

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Entry is one queued account. CleanedAt is zero until the account has
// been cleaned at least once.
type Entry struct {
	Account   string    `yaml:"account"`
	CleanedAt time.Time `yaml:"cleaned_at,omitempty"`
}

// Queue is the on-disk list of accounts awaiting cleanup.
type Queue struct {
	Accounts []Entry `yaml:"accounts"`

	path string
}

// LoadQueue reads the queue file. A missing file yields an empty queue
// bound to the same path, so the first save creates it.
func LoadQueue(path string) (*Queue, error) {
	q := &Queue{path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read queue file: %w", err)
	}

	if err := yaml.Unmarshal(data, q); err != nil {
		return nil, fmt.Errorf("failed to parse queue file %s: %w", path, err)
	}
	return q, nil
}

// Save writes the queue back to its file.
func (q *Queue) Save() error {
	data, err := yaml.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal queue: %w", err)
	}
	if err := os.WriteFile(q.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write queue file: %w", err)
	}
	return nil
}

// Pending returns the accounts that have not been cleaned yet, in queue
// order.
func (q *Queue) Pending() []string {
	var pending []string
	for _, e := range q.Accounts {
		if e.CleanedAt.IsZero() {
			pending = append(pending, e.Account)
		}
	}
	return pending
}

// MarkCleaned stamps the account with the current time and persists the
// queue.
func (q *Queue) MarkCleaned(account string) error {
	for i := range q.Accounts {
		if q.Accounts[i].Account == account {
			q.Accounts[i].CleanedAt = time.Now().UTC()
			return q.Save()
		}
	}
	return fmt.Errorf("account %s not found in queue", account)
}
