package slack

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/socketmode"
)

// BotAPI abstracts the Slack API client for testing. Profile lookups are
// needed to map Slack members to directory users by email.
type BotAPI interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
	GetUserInfo(user string) (*slack.User, error)
	AuthTest() (*slack.AuthTestResponse, error)
}

// SafeSlackClient wraps the Slack API client with a write allowlist. Direct
// message channels are always writable; other channels must be listed.
type SafeSlackClient struct {
	inner           *slack.Client
	allowedChannels map[string]bool
	logger          zerolog.Logger
}

// NewSafeSlackClient creates a restricted Slack client.
func NewSafeSlackClient(client *slack.Client, allowedChannels []string, logger zerolog.Logger) *SafeSlackClient {
	return &SafeSlackClient{
		inner:           client,
		allowedChannels: channelSet(allowedChannels),
		logger:          logger.With().Str("component", "slack.safe_client").Logger(),
	}
}

// PostMessage sends a message only if the channel may be written to.
func (s *SafeSlackClient) PostMessage(channelID string, options ...slack.MsgOption) (string, string, error) {
	if !isDirect(channelID) && !s.allowedChannels[channelID] {
		s.logger.Warn().
			Str("channel_id", channelID).
			Msg("blocked PostMessage to non-allowlisted channel")
		return "", "", fmt.Errorf("channel %s is not in the allowed channels list", channelID)
	}
	return s.inner.PostMessage(channelID, options...)
}

// GetUserInfo returns the profile of a single member.
func (s *SafeSlackClient) GetUserInfo(user string) (*slack.User, error) {
	return s.inner.GetUserInfo(user)
}

// AuthTest tests the bot token.
func (s *SafeSlackClient) AuthTest() (*slack.AuthTestResponse, error) {
	return s.inner.AuthTest()
}

// App is the Slack intake channel running over Socket Mode.
type App struct {
	api     BotAPI
	socket  *socketmode.Client
	logger  zerolog.Logger
	handler *Handler
}

// NewApp creates the Socket Mode client and hands the API to handler.
// allowedChannels restricts which channels are read and written.
func NewApp(botToken, appToken string, allowedChannels []string, logger zerolog.Logger, handler *Handler) (*App, error) {
	if !strings.HasPrefix(appToken, "xapp-") {
		return nil, fmt.Errorf("slack app token must be an xapp- token for Socket Mode")
	}
	rawAPI := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	api := NewSafeSlackClient(rawAPI, allowedChannels, logger)
	socket := socketmode.New(rawAPI)

	handler.api = api
	handler.acker = socket
	handler.allowed = channelSet(allowedChannels)

	return &App{
		api:     api,
		socket:  socket,
		logger:  logger.With().Str("component", "slack").Logger(),
		handler: handler,
	}, nil
}

// AuthTest resolves the bot identity and tells the handler to ignore its own
// messages and strip its mention.
func (a *App) AuthTest() (*slack.AuthTestResponse, error) {
	resp, err := a.api.AuthTest()
	if err != nil {
		return nil, fmt.Errorf("slack auth test: %w", err)
	}
	a.handler.botUserID = resp.UserID
	return resp, nil
}

// Run starts the Socket Mode event loop. Blocks until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info().Msg("starting Slack Socket Mode connection")

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-a.socket.Events:
				if !ok {
					return
				}
				a.handler.HandleEvent(ctx, evt)
			}
		}
	}()

	if err := a.socket.RunContext(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("socket mode error: %w", err)
	}
	a.logger.Info().Msg("Slack Socket Mode stopped")
	return nil
}

func channelSet(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// isDirect reports whether channelID is a direct message conversation.
func isDirect(channelID string) bool {
	return strings.HasPrefix(channelID, "D")
}
