// Package telegram delivers flashcards and reads instructions through the
// Telegram Bot API.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "gopkg.in/telegram-bot-api.v4"

	"github.com/kalambet/recallbot/internal/flashcard"
)

const parseModeMarkdownV2 = "MarkdownV2"

// ErrSendTimeout is returned when a message is not delivered within the
// send timeout.
var ErrSendTimeout = errors.New("telegram: send timed out")

// botAPI is the part of tgbotapi.BotAPI the messenger uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// Config configures the Telegram connection.
type Config struct {
	Token       string
	ChatID      int64
	PollTimeout time.Duration
	SendTimeout time.Duration
}

// Messenger talks to the single chat identified by Config.ChatID. Updates
// from any other chat are dropped.
type Messenger struct {
	bot         botAPI
	sender      botAPI
	chatID      int64
	pollTimeout time.Duration
	sendTimeout time.Duration
	logger      *slog.Logger
}

// New connects to the Bot API with token and verifies it.
func New(cfg Config, logger *slog.Logger) (*Messenger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	// The polling timeout covers a long poll plus the time to answer it.
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, &http.Client{Timeout: cfg.PollTimeout + cfg.SendTimeout})
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	sender := *bot
	sender.Client = &http.Client{Timeout: cfg.SendTimeout}

	logger.Info("telegram bot authorized", "bot", bot.Self.UserName)
	return newMessenger(bot, &sender, cfg.ChatID, cfg.PollTimeout, cfg.SendTimeout, logger), nil
}

func newMessenger(bot, sender botAPI, chatID int64, pollTimeout, sendTimeout time.Duration, logger *slog.Logger) *Messenger {
	return &Messenger{
		bot:         bot,
		sender:      sender,
		chatID:      chatID,
		pollTimeout: pollTimeout,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// GetPendingInstructions returns the texts of messages newer than
// lastSeenID sent from the configured chat, and the newest update id.
func (m *Messenger) GetPendingInstructions(ctx context.Context, lastSeenID int) ([]string, int, error) {
	if err := ctx.Err(); err != nil {
		return nil, lastSeenID, err
	}
	u := tgbotapi.NewUpdate(lastSeenID + 1)
	u.Timeout = int(m.pollTimeout / time.Second)

	updates, err := m.bot.GetUpdates(u)
	if err != nil {
		return nil, lastSeenID, fmt.Errorf("getting updates: %w", err)
	}

	latest := lastSeenID
	var texts []string
	for _, upd := range updates {
		latest = max(latest, upd.UpdateID)
		msg := upd.Message
		if msg == nil {
			msg = upd.EditedMessage
		}
		if msg == nil || msg.Chat == nil || msg.Chat.ID != m.chatID {
			continue
		}
		if msg.Text == "" {
			continue
		}
		texts = append(texts, msg.Text)
	}
	if len(updates) > len(texts) {
		m.logger.Debug("updates ignored", "count", len(updates)-len(texts))
	}
	return texts, latest, nil
}

// ShowText sends text, escaping markup characters when autoEscape is set.
func (m *Messenger) ShowText(ctx context.Context, text string, autoEscape bool) error {
	if autoEscape {
		text = Escape(text)
	}
	return m.send(ctx, text)
}

// ShowFlashcard sends the selected fields of card. Field values are
// escaped; prefix and suffix are sent as markup.
func (m *Messenger) ShowFlashcard(ctx context.Context, card flashcard.Flashcard, fields flashcard.Field, prefix, suffix string) error {
	return m.send(ctx, FormatFlashcard(card, fields, prefix, suffix))
}

func (m *Messenger) send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(m.chatID, text)
	msg.ParseMode = parseModeMarkdownV2
	msg.DisableNotification = true

	done := make(chan error, 1)
	go func() {
		_, err := m.sender.Send(msg)
		done <- err
	}()

	var expired <-chan time.Time
	if m.sendTimeout > 0 {
		timer := time.NewTimer(m.sendTimeout)
		defer timer.Stop()
		expired = timer.C
	}
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("sending message: %w", err)
		}
		return nil
	case <-expired:
		return fmt.Errorf("%w after %s", ErrSendTimeout, m.sendTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FormatFlashcard renders the selected fields in a fixed order: the key in
// bold, then value, remarks, Id and priority.
func FormatFlashcard(card flashcard.Flashcard, fields flashcard.Field, prefix, suffix string) string {
	var b strings.Builder
	if fields.Has(flashcard.FieldKey) {
		b.WriteString("*" + Escape(card.Key) + "*\n\n")
	}
	if fields.Has(flashcard.FieldValue) {
		b.WriteString(Escape(card.Value) + "\n\n")
	}
	if fields.Has(flashcard.FieldRemarks) {
		b.WriteString(Escape(card.Remarks) + "\n\n")
	}
	if fields.Has(flashcard.FieldID) {
		b.WriteString(Escape(strconv.FormatInt(card.ID, 10)) + "\n")
	}
	if fields.Has(flashcard.FieldPriority) {
		b.WriteString(Escape(strconv.Itoa(card.Priority)) + "\n")
	}
	return prefix + strings.TrimRight(b.String(), "\n") + suffix
}

// MarkdownV2 reserved characters.
var escaper = strings.NewReplacer(
	`\`, `\\`,
	"`", "\\`",
	"*", `\*`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	">", `\>`,
	"(", `\(`,
	")", `\)`,
	"#", `\#`,
	"+", `\+`,
	"-", `\-`,
	"=", `\=`,
	"~", `\~`,
	".", `\.`,
	"!", `\!`,
	"|", `\|`,
)

// Escape backslash-escapes every MarkdownV2 special character in s.
func Escape(s string) string {
	return escaper.Replace(s)
}
