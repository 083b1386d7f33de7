package adminbot

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repbaza/internal/callback"
	"repbaza/internal/config"
	"repbaza/internal/db"
	"repbaza/internal/model"
)

const adminID int64 = 900

type mockTelegramClient struct {
	mu   sync.Mutex
	sent []tgbotapi.Chattable
}

func (m *mockTelegramClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockTelegramClient) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockTelegramClient) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (m *mockTelegramClient) SelfUser() tgbotapi.User {
	return tgbotapi.User{UserName: "test_admin_bot"}
}

func (m *mockTelegramClient) messagesTo(chatID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok && msg.ChatID == chatID {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (m *mockTelegramClient) documentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.sent {
		if _, ok := c.(tgbotapi.DocumentConfig); ok {
			n++
		}
	}
	return n
}

func setupAdminBot(t *testing.T) (*Bot, *mockTelegramClient, *mockTelegramClient, *db.DB) {
	t.Helper()

	database, err := db.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.EnsureHorizon(context.Background(), time.Now(), 28, 7))

	cfg := &config.Config{}
	cfg.Booking.HorizonDays = 28
	cfg.Admins = []int64{adminID}

	adminTG := &mockTelegramClient{}
	userTG := &mockTelegramClient{}
	logger := zerolog.Nop()
	b := NewWithClients(adminTG, userTG, cfg, database, &logger)
	return b, adminTG, userTG, database
}

func bookSlots(t *testing.T, database *db.DB, date string, times []string, status model.Status, userID int64, group string) []int64 {
	t.Helper()
	var ids []int64
	for _, tm := range times {
		_, err := database.Exec(
			`UPDATE slots SET status = ?, user_id = ?, group_name = ?, created_by = ?, contact_info = '@user'
			 WHERE date = ? AND time = ?`,
			int(status), userID, group, userID, date, tm)
		require.NoError(t, err)
		slot, err := database.SlotAt(context.Background(), date, tm)
		require.NoError(t, err)
		ids = append(ids, slot.ID)
	}
	return ids
}

func adminMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		From: &tgbotapi.User{ID: adminID},
		Chat: &tgbotapi.Chat{ID: adminID},
		Text: text,
	}
}

func adminCallback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: adminID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: adminID}},
		Data:    data,
	}
}

func TestNonAdminRejected(t *testing.T) {
	b, adminTG, _, _ := setupAdminBot(t)
	msg := &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1},
		Text: "/start",
	}
	b.handleMessage(context.Background(), msg)
	require.NotEmpty(t, adminTG.messagesTo(1))
	assert.Contains(t, adminTG.messagesTo(1)[0], "нет прав")
}

func TestPendingListGroupsRuns(t *testing.T) {
	b, adminTG, _, database := setupAdminBot(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 1).Format(model.DateLayout)
	bookSlots(t, database, date, []string{"18:00", "19:00"}, model.StatusPending, 100, "Звуки Му")

	b.handleMessage(ctx, adminMessage(btnPending))

	joined := strings.Join(adminTG.messagesTo(adminID), "\n")
	// One run, not two separate cards.
	assert.Equal(t, 1, strings.Count(joined, "Группа: Звуки Му"))
	assert.Contains(t, joined, "18:00–20:00")
}

func TestConfirmFlow(t *testing.T) {
	b, _, userTG, database := setupAdminBot(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 1).Format(model.DateLayout)
	ids := bookSlots(t, database, date, []string{"18:00", "19:00"}, model.StatusPending, 100, "Звуки Му")

	b.handleCallback(ctx, adminCallback(callback.Format(callback.ActionConfirm, ids, 100)))

	for _, tm := range []string{"18:00", "19:00"} {
		slot, err := database.SlotAt(ctx, date, tm)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConfirmed, slot.Status)
	}
	userMsgs := strings.Join(userTG.messagesTo(100), "\n")
	assert.Contains(t, userMsgs, "подтверждена")

	// A second click on the same stale button is a no-op.
	b.handleCallback(ctx, adminCallback(callback.Format(callback.ActionConfirm, ids, 100)))
	assert.Equal(t, 1, strings.Count(strings.Join(userTG.messagesTo(100), "\n"), "подтверждена"))
}

func TestRejectKeepsSubscribers(t *testing.T) {
	b, _, userTG, database := setupAdminBot(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 2).Format(model.DateLayout)
	ids := bookSlots(t, database, date, []string{"15:00"}, model.StatusPending, 100, "Кино")
	_, err := database.Exec(`UPDATE slots SET subscribed_users = '55' WHERE id = ?`, ids[0])
	require.NoError(t, err)

	b.handleCallback(ctx, adminCallback(callback.Format(callback.ActionReject, ids, 100)))

	slot, err := database.SlotAt(ctx, date, "15:00")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFree, slot.Status)
	assert.Equal(t, []int64{55}, slot.Subscribers)

	userMsgs := strings.Join(userTG.messagesTo(100), "\n")
	assert.Contains(t, userMsgs, "отклонена")
}

func TestCancelNotifiesOwnerAndSubscribers(t *testing.T) {
	b, _, userTG, database := setupAdminBot(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 3).Format(model.DateLayout)
	ids := bookSlots(t, database, date, []string{"18:00", "19:00"}, model.StatusConfirmed, 100, "Звуки Му")
	_, err := database.Exec(`UPDATE slots SET subscribed_users = '55' WHERE id = ?`, ids[0])
	require.NoError(t, err)

	b.handleCallback(ctx, adminCallback(callback.Format(callback.ActionCancel, ids, 100)))

	for _, tm := range []string{"18:00", "19:00"} {
		slot, err := database.SlotAt(ctx, date, tm)
		require.NoError(t, err)
		assert.Equal(t, model.StatusFree, slot.Status)
		assert.Empty(t, slot.Subscribers)
	}

	ownerMsgs := strings.Join(userTG.messagesTo(100), "\n")
	assert.Contains(t, ownerMsgs, "вынуждены отменить")
	// 18:00 and 19:00 slots make an 18:00-20:00 run, end exclusive.
	assert.Contains(t, ownerMsgs, "с 18:00 по 20:00")

	watcherMsgs := strings.Join(userTG.messagesTo(55), "\n")
	assert.Contains(t, watcherMsgs, "освободилось время")
}

func TestConfirmPastBookingRefused(t *testing.T) {
	b, _, userTG, database := setupAdminBot(t)
	ctx := context.Background()

	// Yesterday's slot is still in the store within the retention window.
	date := time.Now().AddDate(0, 0, -1).Format(model.DateLayout)
	_, err := database.Exec(
		`INSERT INTO slots (date, time, status, user_id, group_name, created_by) VALUES (?, '18:00', 1, 100, 'Кино', 100)`,
		date)
	require.NoError(t, err)
	slot, err := database.SlotAt(ctx, date, "18:00")
	require.NoError(t, err)
	ids := []int64{slot.ID}

	b.handleCallback(ctx, adminCallback(callback.Format(callback.ActionConfirm, ids, 100)))

	slot, err = database.SlotAt(ctx, date, "18:00")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, slot.Status)
	assert.Empty(t, userTG.messagesTo(100))
}

func TestExportSendsDocument(t *testing.T) {
	b, adminTG, _, database := setupAdminBot(t)
	ctx := context.Background()

	date := time.Now().AddDate(0, 0, 1).Format(model.DateLayout)
	bookSlots(t, database, date, []string{"18:00"}, model.StatusConfirmed, 100, "Звуки Му")

	b.handleMessage(ctx, adminMessage(btnExport))
	assert.Equal(t, 1, adminTG.documentCount())
}
