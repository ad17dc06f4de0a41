package slackconn

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"
)

// Config holds Slack mirror configuration.
type Config struct {
	BotToken string // xoxb-... Bot User OAuth Token
	Channel  string // Channel ID receiving supervisor alerts
	APIURL   string // Optional Web API base URL override (must end in "/")
}

// Mirror posts supervisor alerts to a single Slack channel.
type Mirror struct {
	api     *slack.Client
	channel string
	logger  *slog.Logger
}

// New creates a Slack mirror.
func New(cfg Config, logger *slog.Logger) (*Mirror, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("slack: bot_token is required")
	}
	if cfg.Channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}

	if logger == nil {
		logger = slog.Default()
	}

	var opts []slack.Option
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(cfg.APIURL))
	}

	return &Mirror{
		api:     slack.New(cfg.BotToken, opts...),
		channel: cfg.Channel,
		logger:  logger.With("connector", "slack"),
	}, nil
}

// Verify checks the token against auth.test.
func (m *Mirror) Verify(ctx context.Context) error {
	resp, err := m.api.AuthTestContext(ctx)
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	m.logger.Info("slack bot authorized", "user", resp.User, "team", resp.Team)
	return nil
}

// Post delivers one alert. Text may use **bold** markup.
func (m *Mirror) Post(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, _, err := m.api.PostMessageContext(ctx, m.channel,
		slack.MsgOptionText(MarkdownToMrkdwn(text), false),
	)
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", m.channel, err)
	}
	return nil
}

// MarkdownToMrkdwn converts **bold** to Slack's *bold*.
func MarkdownToMrkdwn(md string) string {
	return strings.ReplaceAll(md, "**", "*")
}
