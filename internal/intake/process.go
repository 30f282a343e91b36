package intake

import (
	"context"
	"fmt"
	"strings"

	perrors "github.com/p-blackswan/tally/internal/errors"
	"github.com/p-blackswan/tally/internal/metrics"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/parser"
	"github.com/p-blackswan/tally/internal/requestid"
)

// Process classifies text sent by userID and applies the resulting task
// changes. An unknown user is rejected with perrors.ErrUserNotFound before
// anything is written. Extraction problems never fail the call; repository
// errors do, and leave nothing committed.
func (o *Orchestrator) Process(ctx context.Context, userID, text string) (*Result, error) {
	ctx, _ = requestid.Ensure(ctx)
	log := requestid.Logger(ctx, o.logger)

	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message content is empty", perrors.ErrInvalidInput)
	}

	user, err := o.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		log.Info().Str("user_id", userID).Msg("rejected message from unknown user")
		return nil, fmt.Errorf("%w: %s", perrors.ErrUserNotFound, userID)
	}

	req, pool, err := o.gather(ctx, text)
	if err != nil {
		return nil, err
	}
	ext := o.extract(ctx, req)

	p := o.plan(ctx, *user, text, ext, pool)
	res, err := o.commit(ctx, *user, text, ext, p)
	if err != nil {
		o.metrics.RecordError("intake", "persistence")
		log.Error().Err(err).Str("user_id", userID).Msg("failed to persist message")
		return nil, err
	}

	if o.namer != nil {
		for _, c := range p.corrections {
			o.namer.RecordCorrection(ctx, c)
		}
	}

	o.metrics.RecordMessage(string(ext.MessageType), string(ext.Action))
	o.metrics.RecordMutation(metrics.MutationCreated, len(res.Created))
	o.metrics.RecordMutation(metrics.MutationUpdated, len(res.Updated))
	o.metrics.RecordMutation(metrics.MutationLinked, p.links())

	log.Info().
		Str("message_id", res.Message.ID).
		Str("message_type", string(ext.MessageType)).
		Str("action", string(ext.Action)).
		Float64("confidence", ext.Confidence).
		Str("source", ext.Source).
		Int("created", len(res.Created)).
		Int("updated", len(res.Updated)).
		Strs("related", res.Message.RelatedTaskIDs).
		Msg("message processed")

	if o.notifier != nil {
		o.notifier.Notify(ctx, res)
	}
	return res, nil
}

// Classify runs extraction with full context but writes nothing.
func (o *Orchestrator) Classify(ctx context.Context, text string) (*models.Extraction, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: message content is empty", perrors.ErrInvalidInput)
	}
	req, _, err := o.gather(ctx, text)
	if err != nil {
		return nil, err
	}
	return o.extract(ctx, req), nil
}

// gather loads the directory, the recent conversation and the task pool.
func (o *Orchestrator) gather(ctx context.Context, text string) (parser.Request, []models.Task, error) {
	users, err := o.store.ListUsers(ctx)
	if err != nil {
		return parser.Request{}, nil, fmt.Errorf("list users: %w", err)
	}
	recent, err := o.store.RecentMessages(ctx, o.ctxMessages)
	if err != nil {
		return parser.Request{}, nil, fmt.Errorf("recent messages: %w", err)
	}
	pool, err := o.store.ListTasks(ctx, models.TaskFilter{})
	if err != nil {
		return parser.Request{}, nil, fmt.Errorf("list tasks: %w", err)
	}

	conversation := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		conversation = append(conversation, parser.ConversationLine(recent[i]))
	}

	var open []parser.ContextTask
	for _, t := range pool {
		if len(open) == o.ctxTasks {
			break
		}
		if t.Status.Open() {
			open = append(open, parser.ContextTask{ID: t.ID, Title: t.Title, Status: t.Status})
		}
	}

	return parser.Request{
		Text:         text,
		Users:        users,
		Conversation: conversation,
		OpenTasks:    open,
	}, pool, nil
}

func (o *Orchestrator) extract(ctx context.Context, req parser.Request) *models.Extraction {
	if ext := o.extractor.Extract(ctx, req); ext != nil {
		return ext
	}
	return &models.Extraction{MessageType: models.MessageConversation, Reasoning: "no extraction"}
}

// commit writes the planned changes and the message in one transaction.
func (o *Orchestrator) commit(ctx context.Context, user models.User, text string, ext *models.Extraction, p plan) (*Result, error) {
	log := requestid.Logger(ctx, o.logger)
	res := &Result{Extraction: ext}

	err := o.store.Atomically(ctx, func(r Repositories) error {
		res.Created, res.Updated = nil, nil
		related := []string{}

		for _, step := range p.steps {
			switch step.kind {
			case stepCreate:
				t, err := r.CreateTask(ctx, step.draft)
				if err != nil {
					return fmt.Errorf("create task: %w", err)
				}
				res.Created = append(res.Created, t)
				related = append(related, t.ID)

			case stepLink:
				related = append(related, step.taskID)

			default:
				current, err := r.GetTask(ctx, step.taskID)
				if err != nil {
					return fmt.Errorf("get task %s: %w", step.taskID, err)
				}
				if current == nil {
					log.Warn().Str("task_id", step.taskID).Msg("matched task disappeared, skipping")
					continue
				}
				updated, err := r.UpdateTask(ctx, step.taskID, step.patch(ext, *current))
				if err != nil {
					return fmt.Errorf("update task %s: %w", step.taskID, err)
				}
				if updated == nil {
					continue
				}
				res.Updated = append(res.Updated, *updated)
				related = append(related, updated.ID)
			}
		}

		msg, err := r.AppendMessage(ctx, models.Message{
			UserID:         user.ID,
			UserName:       user.Name,
			Content:        text,
			ParsedData:     ext,
			RelatedTaskIDs: related,
		})
		if err != nil {
			return fmt.Errorf("append message: %w", err)
		}
		res.Message = msg
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
