package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fieldops-io/fieldops/internal/connector"
)

// Config holds Telegram connector configuration.
type Config struct {
	Token       string  // Bot token from @BotFather
	Role        string  // Role this bot serves, used in logs and Name
	AllowFrom   []int64 // Allowed Telegram user IDs (empty = allow all)
	APIEndpoint string  // Optional Bot API endpoint override, e.g. a local Bot API server
}

// Connector implements the connector.Connector interface for Telegram.
type Connector struct {
	bot     *tgbotapi.BotAPI
	config  Config
	handler connector.Handler
	logger  *slog.Logger
	cancel  context.CancelFunc
}

// New creates a new Telegram connector.
func New(cfg Config, handler connector.Handler, logger *slog.Logger) (*Connector, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{})
	if err != nil {
		return nil, fmt.Errorf("telegram: init %s bot: %w", cfg.Role, err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("connector", "telegram", "role", cfg.Role)

	logger.Info("telegram bot authorized", "username", bot.Self.UserName)

	return &Connector{
		bot:     bot,
		config:  cfg,
		handler: handler,
		logger:  logger,
	}, nil
}

func (c *Connector) Name() string { return "telegram/" + c.config.Role }

// Start begins long-polling for updates. Blocks until context is cancelled.
func (c *Connector) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := c.bot.GetUpdatesChan(u)

	c.logger.Info("telegram connector started", "bot", c.bot.Self.UserName)

	for {
		select {
		case update := <-updates:
			c.handleUpdate(ctx, update)

		case <-ctx.Done():
			c.bot.StopReceivingUpdates()
			c.logger.Info("telegram connector stopped")
			return ctx.Err()
		}
	}
}

// Stop gracefully shuts down the connector.
func (c *Connector) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

// Send delivers a text or photo message to a Telegram chat.
func (c *Connector) Send(_ context.Context, msg connector.OutboundMessage) (int, error) {
	if strings.TrimSpace(msg.Text) == "" && msg.PhotoURL == "" {
		c.logger.Warn("skipping empty message", "chat_id", msg.ChatID)
		return 0, nil
	}

	if msg.PhotoURL != "" {
		if fitsCaption(msg.Text) {
			return c.sendPhoto(msg, msg.Text)
		}
		// Caption too long: photo first, then the text carrying the buttons.
		if _, err := c.sendPhoto(connector.OutboundMessage{ChatID: msg.ChatID, PhotoURL: msg.PhotoURL}, ""); err != nil {
			return 0, err
		}
		msg.PhotoURL = ""
	}

	tgMsg := tgbotapi.NewMessage(msg.ChatID, ToHTML(msg.Text))
	tgMsg.ParseMode = tgbotapi.ModeHTML
	tgMsg.DisableWebPagePreview = true
	tgMsg.ReplyMarkup = replyMarkup(msg)

	sent, err := c.bot.Send(tgMsg)
	if err != nil {
		// Fallback to plain text if HTML fails
		c.logger.Warn("HTML send failed, falling back to plain text",
			"chat_id", msg.ChatID,
			"error", err,
		)
		tgMsg.Text = StripMarkup(msg.Text)
		tgMsg.ParseMode = ""
		sent, err = c.bot.Send(tgMsg)
	}
	if err != nil {
		return 0, fmt.Errorf("telegram: send to %d: %w", msg.ChatID, err)
	}
	return sent.MessageID, nil
}

func (c *Connector) sendPhoto(msg connector.OutboundMessage, caption string) (int, error) {
	photo := tgbotapi.NewPhoto(msg.ChatID, tgbotapi.FileURL(msg.PhotoURL))
	if caption != "" {
		photo.Caption = ToHTML(caption)
		photo.ParseMode = tgbotapi.ModeHTML
	}
	photo.ReplyMarkup = replyMarkup(msg)

	sent, err := c.bot.Send(photo)
	if err != nil {
		return 0, fmt.Errorf("telegram: send photo to %d: %w", msg.ChatID, err)
	}
	return sent.MessageID, nil
}

// Edit replaces the caption (photo messages) or text of a message.
// A failed caption edit is retried as a text edit.
func (c *Connector) Edit(_ context.Context, msg connector.EditMessage) error {
	markup := inlineKeyboard(msg.Buttons)

	if msg.HasPhoto {
		edit := tgbotapi.NewEditMessageCaption(msg.ChatID, msg.MessageID, ToHTML(msg.Text))
		edit.ParseMode = tgbotapi.ModeHTML
		edit.ReplyMarkup = markup
		_, err := c.bot.Request(edit)
		if err == nil {
			return nil
		}
		c.logger.Warn("caption edit failed, editing text", "chat_id", msg.ChatID, "error", err)
	}

	edit := tgbotapi.NewEditMessageText(msg.ChatID, msg.MessageID, ToHTML(msg.Text))
	edit.ParseMode = tgbotapi.ModeHTML
	edit.ReplyMarkup = markup
	if _, err := c.bot.Request(edit); err != nil {
		return fmt.Errorf("telegram: edit message %d in %d: %w", msg.MessageID, msg.ChatID, err)
	}
	return nil
}

// FileURL returns the direct download URL of an uploaded file.
func (c *Connector) FileURL(_ context.Context, fileID string) (string, error) {
	url, err := c.bot.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("telegram: resolve file: %w", err)
	}
	return url, nil
}

func (c *Connector) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ev, ok := toEvent(update)
	if !ok {
		return
	}

	// Access control
	if len(c.config.AllowFrom) > 0 && !contains(c.config.AllowFrom, ev.User.ID) {
		c.logger.Warn("unauthorized user", "user_id", ev.User.ID, "username", ev.User.Username)
		return
	}

	if update.CallbackQuery != nil {
		// Stop the client-side spinner regardless of the outcome.
		if _, err := c.bot.Request(tgbotapi.NewCallback(update.CallbackQuery.ID, "")); err != nil {
			c.logger.Warn("answer callback failed", "error", err)
		}
	}

	if err := c.handler(ctx, ev); err != nil {
		c.logger.Error("inbound handler error",
			"chat_id", ev.ChatID,
			"error", err,
		)
	}
}

// toEvent converts a Telegram update into a connector event.
// Updates the workflow has no use for report false.
func toEvent(update tgbotapi.Update) (connector.Event, bool) {
	if cq := update.CallbackQuery; cq != nil {
		if cq.Message == nil || cq.Message.Chat == nil || cq.From == nil {
			return connector.Event{}, false
		}
		return connector.Event{
			Kind:            connector.EventCallback,
			ChatID:          cq.Message.Chat.ID,
			User:            toUser(cq.From),
			Data:            cq.Data,
			MessageID:       cq.Message.MessageID,
			MessageHasPhoto: len(cq.Message.Photo) > 0,
		}, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return connector.Event{}, false
	}
	ev := connector.Event{
		ChatID:    msg.Chat.ID,
		User:      toUser(msg.From),
		MessageID: msg.MessageID,
	}

	switch {
	case msg.IsCommand():
		ev.Kind = connector.EventCommand
		ev.Text = msg.Command()
	case len(msg.Photo) > 0:
		ev.Kind = connector.EventPhoto
		ev.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
		ev.Text = msg.Caption
	case strings.TrimSpace(msg.Text) != "":
		ev.Kind = connector.EventText
		ev.Text = strings.TrimSpace(msg.Text)
	default:
		return connector.Event{}, false
	}
	return ev, true
}

func toUser(u *tgbotapi.User) connector.User {
	return connector.User{
		ID:        u.ID,
		Username:  u.UserName,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func replyMarkup(msg connector.OutboundMessage) any {
	if kb := inlineKeyboard(msg.Buttons); kb != nil {
		return *kb
	}
	if msg.ForceReply {
		return tgbotapi.ForceReply{ForceReply: true}
	}
	return nil
}

func inlineKeyboard(rows [][]connector.Button) *tgbotapi.InlineKeyboardMarkup {
	var kbRows [][]tgbotapi.InlineKeyboardButton
	for _, row := range rows {
		var buttons []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		if len(buttons) > 0 {
			kbRows = append(kbRows, buttons)
		}
	}
	if len(kbRows) == 0 {
		return nil
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(kbRows...)
	return &kb
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
