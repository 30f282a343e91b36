package slack

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	perrors "github.com/p-blackswan/tally/internal/errors"
	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/requestid"
)

// Processor runs the intake pipeline for one message.
type Processor interface {
	Process(ctx context.Context, userID, text string) (*intake.Result, error)
}

// Directory resolves Slack members to team users.
type Directory interface {
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// Acker acknowledges Socket Mode envelopes.
type Acker interface {
	Ack(req socketmode.Request, payload ...interface{})
}

var mentionRe = regexp.MustCompile(`<@[A-Z0-9]+>`)

// Handler turns Slack messages into intake calls.
type Handler struct {
	api        BotAPI
	acker      Acker
	logger     zerolog.Logger
	middleware *Middleware
	processor  Processor
	directory  Directory
	allowed    map[string]bool
	reply      bool
	botUserID  string
	members    *memberCache
}

// NewHandler creates a new event handler.
func NewHandler(logger zerolog.Logger, middleware *Middleware, processor Processor, directory Directory, reply bool) *Handler {
	return &Handler{
		logger:     logger.With().Str("component", "slack.handler").Logger(),
		middleware: middleware,
		processor:  processor,
		directory:  directory,
		allowed:    map[string]bool{},
		reply:      reply,
		members:    newMemberCache(defaultMemberCapacity, defaultMemberTTL),
	}
}

// HandleEvent routes Socket Mode events.
func (h *Handler) HandleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		h.handleEventsAPI(ctx, evt)
	case socketmode.EventTypeConnected:
		h.logger.Info().Msg("connected to Slack")
	case socketmode.EventTypeConnectionError:
		h.logger.Warn().Msg("Slack connection error, retrying")
	default:
		h.logger.Debug().Str("type", string(evt.Type)).Msg("unhandled event type")
	}
}

func (h *Handler) handleEventsAPI(ctx context.Context, evt socketmode.Event) {
	// Slack requires the ack within 3 seconds
	if h.acker != nil && evt.Request != nil {
		h.acker.Ack(*evt.Request)
	}

	eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
	if !ok {
		h.logger.Warn().Str("type", string(evt.Type)).Msg("failed to cast events_api data")
		return
	}
	if eventsAPIEvent.Type == slackevents.CallbackEvent {
		h.handleCallbackEvent(ctx, eventsAPIEvent.InnerEvent)
	}
}

func (h *Handler) handleCallbackEvent(ctx context.Context, inner slackevents.EventsAPIInnerEvent) {
	switch ev := inner.Data.(type) {
	case *slackevents.AppMentionEvent:
		if !h.allowed[ev.Channel] {
			h.logger.Debug().Str("channel", ev.Channel).Msg("mention in non-allowlisted channel ignored")
			return
		}
		h.handleMessage(ctx, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp)

	case *slackevents.MessageEvent:
		// Skip bot messages and message_changed/deleted subtypes
		if ev.User == "" || ev.SubType != "" || ev.BotID != "" || ev.User == h.botUserID {
			return
		}
		if ev.ChannelType != "im" && !h.allowed[ev.Channel] {
			return
		}
		// Mentions arrive twice, once as app_mention
		if h.botUserID != "" && strings.Contains(ev.Text, "<@"+h.botUserID+">") && ev.ChannelType != "im" {
			return
		}
		h.handleMessage(ctx, ev.Channel, ev.User, ev.Text, ev.ThreadTimeStamp, ev.TimeStamp)

	default:
		h.logger.Debug().Str("inner_type", inner.Type).Msg("unhandled callback event type")
	}
}

func (h *Handler) handleMessage(ctx context.Context, channelID, slackUser, text, threadTS, messageTS string) {
	ctx, _ = requestid.Ensure(ctx)
	log := requestid.Logger(ctx, h.logger).With().
		Str("channel", channelID).
		Str("slack_user", slackUser).
		Logger()

	text = strings.TrimSpace(mentionRe.ReplaceAllString(text, ""))
	if text == "" {
		return
	}
	if h.middleware != nil && !h.middleware.CheckRateLimit(slackUser) {
		return
	}

	userID, err := h.resolveUser(ctx, slackUser)
	if err != nil {
		log.Warn().Err(err).Msg("failed to resolve Slack member")
		return
	}
	if userID == "" {
		log.Info().Msg("Slack member matches no team user, message ignored")
		return
	}

	res, err := h.processor.Process(ctx, userID, text)
	if err != nil {
		if errors.Is(err, perrors.ErrUserNotFound) {
			h.members.remove(slackUser)
		}
		log.Error().Err(err).Msg("failed to process Slack message")
		return
	}
	log.Info().
		Str("message_id", res.Message.ID).
		Int("created", len(res.Created)).
		Int("updated", len(res.Updated)).
		Msg("Slack message processed")

	if !h.reply || h.api == nil {
		return
	}
	summary := Summary(res)
	if summary == "" {
		return
	}
	thread := threadTS
	if thread == "" {
		thread = messageTS
	}
	if _, _, err := h.api.PostMessage(channelID,
		slack.MsgOptionText(summary, false),
		slack.MsgOptionTS(thread),
	); err != nil {
		log.Warn().Err(err).Msg("failed to reply in thread")
	}
}

// resolveUser maps a Slack member to a directory user by profile email,
// falling back to an exact real-name match. An empty id means no match.
func (h *Handler) resolveUser(ctx context.Context, slackUser string) (string, error) {
	if id, ok := h.members.get(slackUser); ok {
		return id, nil
	}
	if h.api == nil {
		return "", nil
	}

	info, err := h.api.GetUserInfo(slackUser)
	if err != nil {
		return "", err
	}

	if email := strings.TrimSpace(info.Profile.Email); email != "" {
		u, err := h.directory.UserByEmail(ctx, email)
		if err != nil {
			return "", err
		}
		if u != nil {
			h.members.put(slackUser, u.ID)
			return u.ID, nil
		}
	}

	names := []string{info.RealName, info.Profile.RealName, info.Profile.DisplayName}
	users, err := h.directory.ListUsers(ctx)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		for _, u := range users {
			if strings.EqualFold(u.Name, name) {
				h.members.put(slackUser, u.ID)
				return u.ID, nil
			}
		}
	}
	return "", nil
}
