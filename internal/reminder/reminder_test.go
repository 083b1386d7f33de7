package reminder

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repbaza/internal/db"
	"repbaza/internal/model"
)

type recordingNotifier struct {
	mu    sync.Mutex
	sends []sentMessage
}

type sentMessage struct {
	chatID int64
	text   string
}

func (r *recordingNotifier) Send(_ context.Context, chatID int64, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sends = append(r.sends, sentMessage{chatID, text})
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sends)
}

func setupService(t *testing.T, leads []time.Duration) (*Service, *db.DB, *recordingNotifier) {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	notifier := &recordingNotifier{}
	return New(database, notifier, client, leads), database, notifier
}

func insertSlot(t *testing.T, database *db.DB, date, timeStr string, status model.Status, userID int64, group string) {
	t.Helper()
	_, err := database.Exec(
		`INSERT INTO slots (date, time, status, user_id, group_name, created_by) VALUES (?, ?, ?, ?, ?, ?)`,
		date, timeStr, int(status), userID, group, userID,
	)
	require.NoError(t, err)
}

func TestReminderSentOncePerBooking(t *testing.T) {
	svc, database, notifier := setupService(t, []time.Duration{2 * time.Hour})
	ctx := context.Background()

	start := time.Now().Add(2 * time.Hour).Truncate(time.Hour)
	date := start.Format(model.DateLayout)

	// Two-hour confirmed booking: reminder only for the first hour.
	insertSlot(t, database, date, start.Format(model.TimeLayout), model.StatusConfirmed, 100, "Звуки Му")
	next := start.Add(time.Hour)
	insertSlot(t, database, next.Format(model.DateLayout), next.Format(model.TimeLayout), model.StatusConfirmed, 100, "Звуки Му")

	svc.CheckNow(ctx)

	require.Equal(t, 1, notifier.count())
	assert.Equal(t, int64(100), notifier.sends[0].chatID)
	assert.Contains(t, notifier.sends[0].text, start.Format(model.TimeLayout))
	assert.Contains(t, notifier.sends[0].text, start.Add(2*time.Hour).Format(model.TimeLayout))

	// A second pass is deduplicated by the ledger.
	svc.CheckNow(ctx)
	assert.Equal(t, 1, notifier.count())
}

func TestReminderSkipsContinuationStart(t *testing.T) {
	svc, database, notifier := setupService(t, []time.Duration{2 * time.Hour})
	ctx := context.Background()

	target := time.Now().Add(2 * time.Hour).Truncate(time.Hour)
	prev := target.Add(-time.Hour)

	// The booking started an hour before the lead window target.
	insertSlot(t, database, prev.Format(model.DateLayout), prev.Format(model.TimeLayout), model.StatusConfirmed, 100, "Звуки Му")
	insertSlot(t, database, target.Format(model.DateLayout), target.Format(model.TimeLayout), model.StatusConfirmed, 100, "Звуки Му")

	svc.CheckNow(ctx)
	assert.Zero(t, notifier.count())
}

func TestReminderIgnoresPendingAndOtherGroups(t *testing.T) {
	svc, database, notifier := setupService(t, []time.Duration{2 * time.Hour})
	ctx := context.Background()

	target := time.Now().Add(2 * time.Hour).Truncate(time.Hour)
	prev := target.Add(-time.Hour)

	// Pending slots never get reminders.
	insertSlot(t, database, target.Format(model.DateLayout), target.Format(model.TimeLayout), model.StatusPending, 100, "Звуки Му")
	svc.CheckNow(ctx)
	assert.Zero(t, notifier.count())

	// A different group in the previous hour is not a continuation.
	insertSlot(t, database, prev.Format(model.DateLayout), prev.Format(model.TimeLayout), model.StatusConfirmed, 200, "Кино")
	_, err := database.Exec(`UPDATE slots SET status = ? WHERE date = ? AND time = ?`,
		int(model.StatusConfirmed), target.Format(model.DateLayout), target.Format(model.TimeLayout))
	require.NoError(t, err)

	svc.CheckNow(ctx)
	require.Equal(t, 1, notifier.count())
	assert.Equal(t, int64(100), notifier.sends[0].chatID)
}
