package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"scheduler/internal/engine"
	"scheduler/internal/model"
)

type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func isMessage(chatID int64) interface{} {
	return mock.MatchedBy(func(c tgbotapi.MessageConfig) bool { return c.ChatID == chatID })
}

func isDocument(chatID int64) interface{} {
	return mock.MatchedBy(func(c tgbotapi.DocumentConfig) bool { return c.ChatID == chatID })
}

var noWait = RetryConfig{MaxRetries: 2}

func TestSendReport(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", isMessage(1)).Return(nil).Once()
	bot.On("Send", isDocument(1)).Return(nil).Once()
	bot.On("Send", isMessage(2)).Return(nil).Once()
	bot.On("Send", isDocument(2)).Return(nil).Once()

	tg := NewTelegram(bot, []int64{1, 2}, noWait, zerolog.Nop())
	require.NoError(t, tg.SendReport(context.Background(), "summary", "schedule.xlsx", []byte("xlsx")))

	bot.AssertExpectations(t)
	doc := bot.Calls[1].Arguments.Get(0).(tgbotapi.DocumentConfig)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "schedule.xlsx", file.Name)
	assert.Equal(t, []byte("xlsx"), file.Bytes)
}

func TestSendReport_RetriesTransientErrors(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", isMessage(1)).Return(errors.New("connection reset")).Once()
	bot.On("Send", isMessage(1)).Return(nil).Once()
	bot.On("Send", isDocument(1)).Return(&tgbotapi.Error{Code: 429, Message: "slow down"}).Once()
	bot.On("Send", isDocument(1)).Return(nil).Once()

	tg := NewTelegram(bot, []int64{1}, noWait, zerolog.Nop())
	require.NoError(t, tg.SendReport(context.Background(), "summary", "f.xlsx", nil))
	bot.AssertExpectations(t)
}

func TestSendReport_PermanentErrorSkipsChat(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", isMessage(1)).Return(&tgbotapi.Error{Code: 403, Message: "blocked"}).Once()
	bot.On("Send", isMessage(2)).Return(nil).Once()
	bot.On("Send", isDocument(2)).Return(nil).Once()

	tg := NewTelegram(bot, []int64{1, 2}, noWait, zerolog.Nop())
	err := tg.SendReport(context.Background(), "summary", "f.xlsx", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 1")
	assert.NotContains(t, err.Error(), "chat 2")
	bot.AssertExpectations(t)
}

func TestSendReport_GivesUpAfterMaxRetries(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", isMessage(1)).Return(errors.New("boom"))

	tg := NewTelegram(bot, []int64{1}, noWait, zerolog.Nop())
	err := tg.SendReport(context.Background(), "summary", "f.xlsx", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	bot.AssertNumberOfCalls(t, "Send", 3)
}

func TestSendReport_ContextCancelled(t *testing.T) {
	bot := new(mockSender)
	bot.On("Send", isMessage(1)).Return(errors.New("boom"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tg := NewTelegram(bot, []int64{1}, RetryConfig{MaxRetries: 3, RetryDelays: []time.Duration{time.Hour}}, zerolog.Nop())

	err := tg.SendReport(ctx, "summary", "f.xlsx", nil)
	assert.ErrorIs(t, err, context.Canceled)
	bot.AssertNumberOfCalls(t, "Send", 1)
}

func TestSummary(t *testing.T) {
	ann := model.NewStudent("Ann", 7, "middle", 30)
	res := &engine.Result{
		Placements: []engine.Placement{{Entity: ann}},
		Failures:   []engine.Failure{{Entity: model.NewStudent("Bob", 7, "middle", 30), Err: engine.ErrNoOptions}},
	}

	assert.Equal(t, "Schedule run r1\nplaced: 1, failed: 1, skipped: 0\n- Bob: no_options", Summary("r1", res))
}

func TestSummary_CapsFailures(t *testing.T) {
	res := &engine.Result{}
	for i := 0; i < 25; i++ {
		s := model.NewStudent(fmt.Sprintf("S%d", i), 7, "middle", 30)
		res.Failures = append(res.Failures, engine.Failure{Entity: s, Err: &engine.OverBookedError{Entity: s}})
	}

	got := Summary("r1", res)
	assert.Contains(t, got, "- S19: overbooked")
	assert.NotContains(t, got, "- S20")
	assert.Contains(t, got, "... and 5 more")
}
