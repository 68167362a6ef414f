package cleaner

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biot9999/newtdata/internal/telegram"
)

// fakeClient is an in-memory telegram.Client. Errors can be queued per
// peer and are consumed one per call, so a peer can fail once and then
// succeed.
type fakeClient struct {
	mu sync.Mutex

	me       telegram.Account
	dialogs  []telegram.Dialog
	contacts []telegram.Contact

	historyErrs  map[int64][]error
	leaveErrs    map[int64][]error
	contactsErrs []error
	dialogsErr   error

	left            map[int64]bool
	historyRevoke   map[int64][]bool // revoke flag of every DeleteHistory call
	archived        map[int64]bool
	deletedContacts []int64
}

func newFakeClient(dialogs []telegram.Dialog, contacts []telegram.Contact) *fakeClient {
	return &fakeClient{
		me:            telegram.Account{ID: 1000, Username: "alice"},
		dialogs:       dialogs,
		contacts:      contacts,
		historyErrs:   make(map[int64][]error),
		leaveErrs:     make(map[int64][]error),
		left:          make(map[int64]bool),
		historyRevoke: make(map[int64][]bool),
		archived:      make(map[int64]bool),
	}
}

func (f *fakeClient) popErr(queue map[int64][]error, id int64) error {
	if errs := queue[id]; len(errs) > 0 {
		queue[id] = errs[1:]
		return errs[0]
	}
	return nil
}

func (f *fakeClient) GetMe(ctx context.Context) (*telegram.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	me := f.me
	return &me, nil
}

func (f *fakeClient) GetDialogs(ctx context.Context, offset, limit int) ([]telegram.Dialog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dialogsErr != nil {
		return nil, f.dialogsErr
	}
	// Left conversations drop out of the dialog list.
	visible := make([]telegram.Dialog, 0, len(f.dialogs))
	for _, d := range f.dialogs {
		if f.left[d.ID] {
			continue
		}
		visible = append(visible, d)
	}
	if offset >= len(visible) {
		return nil, nil
	}
	end := offset + limit
	if end > len(visible) {
		end = len(visible)
	}
	return visible[offset:end], nil
}

func (f *fakeClient) LeaveChannel(ctx context.Context, peer telegram.Peer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(f.leaveErrs, peer.ID); err != nil {
		return err
	}
	f.left[peer.ID] = true
	return nil
}

func (f *fakeClient) DeleteChatUser(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.popErr(f.leaveErrs, chatID); err != nil {
		return err
	}
	f.left[chatID] = true
	return nil
}

func (f *fakeClient) DeleteHistory(ctx context.Context, peer telegram.Peer, revoke bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyRevoke[peer.ID] = append(f.historyRevoke[peer.ID], revoke)
	if err := f.popErr(f.historyErrs, peer.ID); err != nil {
		return err
	}
	return nil
}

func (f *fakeClient) GetContacts(ctx context.Context) ([]telegram.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contacts, nil
}

func (f *fakeClient) DeleteContacts(ctx context.Context, userIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.contactsErrs) > 0 {
		err := f.contactsErrs[0]
		f.contactsErrs = f.contactsErrs[1:]
		if err != nil {
			return err
		}
	}
	f.deletedContacts = append(f.deletedContacts, userIDs...)
	return nil
}

func (f *fakeClient) ArchiveDialog(ctx context.Context, peer telegram.Peer) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.archived[peer.ID] = true
	return nil
}

func makeContacts(n int) []telegram.Contact {
	contacts := make([]telegram.Contact, 0, n)
	for i := 0; i < n; i++ {
		contacts = append(contacts, telegram.Contact{
			UserID:    int64(5000 + i),
			FirstName: fmt.Sprintf("contact-%d", i),
		})
	}
	return contacts
}

// fastConfig keeps the engine real but the waits negligible.
func fastConfig(t *testing.T) Config {
	t.Helper()
	return Config{
		Account:                   "alice",
		LeaveConcurrency:          3,
		DeleteHistoryConcurrency:  2,
		DeleteContactsConcurrency: 3,
		ActionSpacing:             time.Millisecond,
		ActionJitter:              time.Nanosecond,
		MinPeerInterval:           time.Millisecond,
		RevokeByDefault:           true,
		MaxRetries:                3,
		ContactBatchSize:          2,
		ReportDir:                 t.TempDir(),
	}
}

func readCSVRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func mixedDialogs() []telegram.Dialog {
	return []telegram.Dialog{
		{ID: 100, Title: "broadcast", Broadcast: true},
		{ID: 200, Title: "supergroup", Megagroup: true},
		{ID: 300, Title: "basic", BasicGroup: true},
		{ID: 400, Title: "friend", IsUser: true},
		{ID: 500, Title: "bot", IsUser: true, IsBot: true},
		{ID: telegram.ServiceNotificationID, Title: "Telegram", IsUser: true},
	}
}

func TestCleaner_FullRunMixedDialogs(t *testing.T) {
	client := newFakeClient(mixedDialogs(), makeContacts(3))
	job := New(client, fastConfig(t), testLogger(t))

	summary, err := job.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.Cancelled)
	assert.Equal(t, JobFinalized, job.State())

	// Every non-service dialog got its history deleted with revoke.
	for _, id := range []int64{100, 200, 300, 400, 500} {
		require.NotEmpty(t, client.historyRevoke[id], "history not deleted for %d", id)
		assert.True(t, client.historyRevoke[id][0], "revoke not requested for %d", id)
	}

	// Groups and channels were left; one-to-one chats were not.
	for _, id := range []int64{100, 200, 300} {
		assert.True(t, client.left[id], "did not leave %d", id)
	}
	assert.False(t, client.left[400])
	assert.False(t, client.left[500])

	// The service notification dialog was never touched.
	assert.Empty(t, client.historyRevoke[telegram.ServiceNotificationID])
	assert.False(t, client.left[telegram.ServiceNotificationID])
	assert.False(t, client.archived[telegram.ServiceNotificationID])

	// All contacts went, in batches.
	assert.ElementsMatch(t, []int64{5000, 5001, 5002}, client.deletedContacts)

	// The remainder, the one-to-one chats, was archived.
	for _, id := range []int64{400, 500} {
		assert.True(t, client.archived[id], "did not archive %d", id)
	}
	assert.Equal(t, 2, summary.Stats.DialogsClosed)

	assert.Equal(t, 1, summary.Stats.ChannelsLeft)
	assert.Equal(t, 2, summary.Stats.GroupsLeft)
	assert.Equal(t, 5, summary.Stats.HistoriesDeleted)
	assert.Equal(t, 3, summary.Stats.ContactsDeleted)
	assert.Equal(t, 0, summary.Stats.Errors)

	// Both report artifacts exist.
	assert.FileExists(t, summary.CSVPath)
	assert.FileExists(t, summary.JSONPath)

	rows := readCSVRows(t, summary.CSVPath)
	for _, row := range rows[1:] {
		assert.NotEqual(t, "777000", row[0])
	}
}

func TestCleaner_SuccessRowShape(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
	}, nil)
	job := New(client, fastConfig(t), testLogger(t))

	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	rows := readCSVRows(t, summary.CSVPath)
	require.Len(t, rows, 2)
	assert.Equal(t, "200", rows[1][0])
	assert.Equal(t, "history_deleted, left", rows[1][3])
	assert.Equal(t, string(StatusSuccess), rows[1][4])
	assert.Empty(t, rows[1][5])
}

func TestCleaner_FloodWaitRetriesThenSucceeds(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
	}, nil)
	client.historyErrs[200] = []error{telegram.NewFloodWait(0)}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Stats.HistoriesDeleted)
	assert.Equal(t, 0, summary.Stats.Errors)
	assert.Len(t, client.historyRevoke[200], 2)
}

func TestCleaner_FloodWaitBudgetExhausted(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
		{ID: 300, Title: "basic", BasicGroup: true},
	}, nil)
	client.historyErrs[200] = []error{
		telegram.NewFloodWait(0),
		telegram.NewFloodWait(0),
		telegram.NewFloodWait(0),
	}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	// Target 200 failed after three attempts; 300 was unaffected.
	assert.Equal(t, 1, summary.Stats.HistoriesDeleted)
	assert.GreaterOrEqual(t, summary.Stats.Errors, 1)
	assert.Len(t, client.historyRevoke[200], 3)
	assert.True(t, client.left[300])
}

func TestCleaner_PermissionDeniedDegradesOnce(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
	}, nil)
	client.historyErrs[200] = []error{
		telegram.NewRPCError(403, telegram.TypeMessageDeleteForbidden),
	}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	// First call requested revoke, the degraded retry did not.
	require.Len(t, client.historyRevoke[200], 2)
	assert.True(t, client.historyRevoke[200][0])
	assert.False(t, client.historyRevoke[200][1])

	// Degraded outcome is partial, not an error, and still leaves.
	assert.Equal(t, 1, summary.Stats.HistoriesDeleted)
	assert.Equal(t, 0, summary.Stats.Errors)
	assert.True(t, client.left[200])

	rows := readCSVRows(t, summary.CSVPath)
	require.Len(t, rows, 2)
	assert.Equal(t, string(StatusPartial), rows[1][4])
	assert.Contains(t, rows[1][3], "history_deleted(self_only)")
	assert.Contains(t, rows[1][5], "self-only")
}

func TestCleaner_PermissionDeniedTwiceIsFailed(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
	}, nil)
	client.historyErrs[200] = []error{
		telegram.NewRPCError(403, telegram.TypeMessageDeleteForbidden),
		telegram.NewRPCError(403, telegram.TypeMessageDeleteForbidden),
	}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	// Exactly two delete calls: the fallback is spent once per target.
	assert.Len(t, client.historyRevoke[200], 2)
	assert.GreaterOrEqual(t, summary.Stats.Errors, 1)
}

func TestCleaner_NotParticipantIsSkippedNotFailed(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
	}, nil)
	client.leaveErrs[200] = []error{
		telegram.NewRPCError(400, telegram.TypeUserNotParticipant),
	}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Stats.Errors)
	assert.Equal(t, 1, summary.Stats.Skipped)
	assert.Equal(t, 0, summary.Stats.GroupsLeft)
}

func TestCleaner_AuthTerminatedAbortsJob(t *testing.T) {
	dialogs := make([]telegram.Dialog, 0, 10)
	for i := 0; i < 10; i++ {
		dialogs = append(dialogs, telegram.Dialog{
			ID: int64(200 + i), Title: fmt.Sprintf("group-%d", i), Megagroup: true,
		})
	}
	client := newFakeClient(dialogs, makeContacts(2))
	client.historyErrs[200] = []error{
		telegram.NewRPCError(401, telegram.TypeAuthKeyUnregistered),
	}

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())

	require.Error(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, JobFinalized, job.State())

	// No contact deletion happened after the abort.
	assert.Empty(t, client.deletedContacts)

	// The report was still written and covers every enumerated target.
	rows := readCSVRows(t, summary.CSVPath)
	assert.Len(t, rows, 11)
}

func TestCleaner_CancellationFinishesAndReports(t *testing.T) {
	dialogs := make([]telegram.Dialog, 0, 20)
	for i := 0; i < 20; i++ {
		dialogs = append(dialogs, telegram.Dialog{
			ID: int64(200 + i), Title: fmt.Sprintf("group-%d", i), Megagroup: true,
		})
	}
	client := newFakeClient(dialogs, nil)

	cfg := fastConfig(t)
	cfg.ActionSpacing = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	job := New(client, cfg, testLogger(t))

	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	summary, _ := job.Run(ctx)
	require.NotNil(t, summary)
	assert.True(t, summary.Cancelled)
	assert.Equal(t, JobFinalized, job.State())

	// Every target is accounted for in the report even though most were
	// never attempted.
	rows := readCSVRows(t, summary.CSVPath)
	assert.Len(t, rows, 21)
}

func TestCleaner_DryRunTouchesNothing(t *testing.T) {
	client := newFakeClient(mixedDialogs(), makeContacts(2))

	cfg := fastConfig(t)
	cfg.DryRun = true

	job := New(client, cfg, testLogger(t))
	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, client.historyRevoke)
	assert.Empty(t, client.left)
	assert.Empty(t, client.archived)
	assert.Empty(t, client.deletedContacts)

	// Still reports what it would have done.
	assert.FileExists(t, summary.CSVPath)
	assert.Equal(t, 0, summary.Stats.Errors)
	assert.Greater(t, summary.Stats.Skipped, 0)
}

func TestCleaner_EnumerationFailureFinalizesEmptyReport(t *testing.T) {
	client := newFakeClient(nil, nil)
	client.dialogsErr = fmt.Errorf("directory unavailable")

	job := New(client, fastConfig(t), testLogger(t))
	summary, err := job.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEnumeration)
	require.NotNil(t, summary)
	assert.FileExists(t, summary.CSVPath)

	rows := readCSVRows(t, summary.CSVPath)
	assert.Len(t, rows, 1) // header only
}

func TestCleaner_ReportFilenamesCarryAccountAndStamp(t *testing.T) {
	client := newFakeClient(nil, nil)
	job := New(client, fastConfig(t), testLogger(t))

	summary, err := job.Run(context.Background())
	require.NoError(t, err)

	base := filepath.Base(summary.CSVPath)
	assert.Regexp(t, `^cleanup_alice_\d{8}_\d{6}\.csv$`, base)
	assert.Regexp(t, `^cleanup_alice_\d{8}_\d{6}\.json$`, filepath.Base(summary.JSONPath))
}

func TestCleaner_ProgressCallbackSeesEveryRecord(t *testing.T) {
	client := newFakeClient([]telegram.Dialog{
		{ID: 200, Title: "supergroup", Megagroup: true},
		{ID: 400, Title: "friend", IsUser: true},
	}, nil)

	var mu sync.Mutex
	var snapshots []Progress
	job := New(client, fastConfig(t), testLogger(t), WithProgress(func(p Progress) {
		mu.Lock()
		snapshots = append(snapshots, p)
		mu.Unlock()
	}))

	_, err := job.Run(context.Background())
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, snapshots)
	last := snapshots[len(snapshots)-1]
	assert.Equal(t, "alice", last.Account)
	assert.Equal(t, 2, last.Total)
	assert.Equal(t, len(snapshots), last.Processed)
}
