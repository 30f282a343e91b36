package intake

import (
	"context"
	"slices"

	"github.com/p-blackswan/tally/internal/matcher"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/requestid"
)

type stepKind int

const (
	stepCreate stepKind = iota
	stepLink
	stepUpdate
	stepHandoff
	stepRename
	stepRetag
)

// step is one planned change. Patches are computed at commit time against
// the task as it is inside the transaction.
type step struct {
	kind   stepKind
	taskID string
	draft  models.Task
	title  string
	tags   []string
}

type plan struct {
	steps       []step
	corrections []models.TaskNameCorrection
}

func (p *plan) links() int {
	n := 0
	for _, s := range p.steps {
		if s.kind == stepLink {
			n++
		}
	}
	return n
}

// plan decides what ext does to the task pool. It reads nothing from the
// store, so the naming sequence can be advanced before the write
// transaction opens.
func (o *Orchestrator) plan(ctx context.Context, user models.User, text string, ext *models.Extraction, pool []models.Task) plan {
	var p plan
	log := requestid.Logger(ctx, o.logger)

	if ext.MessageType.Remark() {
		if t, ok := topMatch(ext.TaskReference, pool); ok {
			p.steps = append(p.steps, step{kind: stepLink, taskID: t.ID})
		}
		return p
	}
	if !ext.IsTaskWorthy || ext.MessageType != models.MessageTask {
		return p
	}

	switch ext.Action {
	case models.ActionCreate, "":
		if len(ext.BatchItems) >= 2 {
			base := titleOf(ext)
			for _, item := range ext.BatchItems {
				p.create(o.draft(ctx, user, ext, base+" - "+item))
			}
			break
		}
		p.create(o.draft(ctx, user, ext, titleOf(ext)))

	case models.ActionUpdate, models.ActionComplete, models.ActionBlock:
		targets := resolve(ext, pool)
		if len(targets) == 0 {
			if ext.TaskTitle == "" {
				break
			}
			log.Info().
				Str("action", string(ext.Action)).
				Str("reference", ext.TaskReference).
				Str("title", ext.TaskTitle).
				Msg("no task matched, creating one instead")
			p.create(o.draft(ctx, user, ext, ext.TaskTitle))
			break
		}
		for _, t := range targets {
			p.steps = append(p.steps, step{kind: stepUpdate, taskID: t.ID})
		}

	case models.ActionHandoff:
		if len(ext.Assignees) == 0 {
			break
		}
		for _, t := range resolve(ext, pool) {
			p.steps = append(p.steps, step{kind: stepHandoff, taskID: t.ID})
		}

	case models.ActionComment:
		if t, ok := topMatch(ext.TaskReference, pool); ok {
			p.steps = append(p.steps, step{kind: stepLink, taskID: t.ID})
		}

	case models.ActionRename:
		t, ok := topMatch(ext.TaskReference, pool)
		if !ok || ext.NewTaskTitle == "" || ext.NewTaskTitle == t.Title {
			break
		}
		p.steps = append(p.steps, step{kind: stepRename, taskID: t.ID, title: ext.NewTaskTitle})
		p.corrections = append(p.corrections, models.TaskNameCorrection{
			OriginalTitle:  t.Title,
			CorrectedTitle: ext.NewTaskTitle,
			WorkflowType:   t.WorkflowType,
			OriginalTags:   t.Tags,
			CorrectedTags:  t.Tags,
			UserMessage:    text,
		})

	case models.ActionRetag:
		t, ok := topMatch(ext.TaskReference, pool)
		if !ok || len(ext.NewTags) == 0 {
			break
		}
		p.steps = append(p.steps, step{kind: stepRetag, taskID: t.ID, tags: ext.NewTags})
		p.corrections = append(p.corrections, models.TaskNameCorrection{
			OriginalTitle:  t.Title,
			CorrectedTitle: t.Title,
			WorkflowType:   t.WorkflowType,
			OriginalTags:   t.Tags,
			CorrectedTags:  ext.NewTags,
			UserMessage:    text,
		})
	}
	return p
}

func (p *plan) create(t models.Task) {
	p.steps = append(p.steps, step{kind: stepCreate, draft: t})
}

// resolve finds the targets of an update-like action: every reference match,
// or else the single similar-title match.
func resolve(ext *models.Extraction, pool []models.Task) []models.Task {
	if ext.TaskReference != "" {
		return matcher.FindByReference(ext.TaskReference, pool)
	}
	if ext.TaskTitle != "" {
		if t, ok := matcher.FindBySimilarTitle(ext.TaskTitle, pool); ok {
			return []models.Task{t}
		}
	}
	return nil
}

func topMatch(reference string, pool []models.Task) (models.Task, bool) {
	if reference == "" {
		return models.Task{}, false
	}
	matches := matcher.FindByReference(reference, pool)
	if len(matches) == 0 {
		return models.Task{}, false
	}
	return matches[0], true
}

func titleOf(ext *models.Extraction) string {
	if ext.TaskTitle != "" {
		return ext.TaskTitle
	}
	return UntitledTask
}

// draft builds a new task from ext and enriches it with a short id, a
// display title and tags. Naming suggestions land on the extraction.
func (o *Orchestrator) draft(ctx context.Context, user models.User, ext *models.Extraction, title string) models.Task {
	t := models.Task{
		Title:        title,
		Status:       models.StatusTodo,
		Priority:     models.PriorityMedium,
		WorkflowType: models.WorkflowGeneral,
		Assignees:    []string{user.ID},
		BlockedBy:    ext.BlockedBy,
		Metadata:     ext.Metadata.Clone(),
		CreatedBy:    user.ID,
	}
	if ext.Status.Valid() {
		t.Status = ext.Status
	}
	if ext.Priority.Valid() {
		t.Priority = ext.Priority
	}
	if ext.WorkflowType != "" {
		t.WorkflowType = ext.WorkflowType
	}
	if len(ext.Assignees) > 0 {
		t.Assignees = slices.Clone(ext.Assignees)
	}
	if ext.Deadline != nil {
		d := *ext.Deadline
		t.Deadline = &d
	}
	if st, ok := forcedStatus(ext); ok {
		t.Status = st
	}

	if o.namer == nil {
		return t
	}
	named, err := o.namer.Enhance(ctx, t.Title, t.WorkflowType, t.Metadata)
	if err != nil {
		l := requestid.Logger(ctx, o.logger)
		l.Warn().Err(err).Str("workflow_type", t.WorkflowType).Msg("task naming failed, creating without short id")
		o.metrics.RecordError("naming", "sequence")
	} else {
		t.Tags = named.Tags
		t.Metadata[models.MetaShortID] = named.ShortID
		t.Metadata[models.MetaDisplayTitle] = named.EnhancedTitle
	}
	for _, s := range o.namer.Suggestions(ctx, t.Title, t.WorkflowType) {
		if !slices.Contains(ext.Suggestions, s) {
			ext.Suggestions = append(ext.Suggestions, s)
		}
	}
	return t
}

// forcedStatus is the status an extraction imposes regardless of its status
// field: a blocker means blocked, and completing means completed.
func forcedStatus(ext *models.Extraction) (models.Status, bool) {
	switch {
	case ext.Action == models.ActionComplete:
		return models.StatusCompleted, true
	case ext.BlockedBy != "":
		return models.StatusBlocked, true
	}
	return "", false
}

// patch computes the change step makes to current.
func (s step) patch(ext *models.Extraction, current models.Task) models.TaskPatch {
	var p models.TaskPatch
	switch s.kind {
	case stepHandoff:
		a := slices.Clone(ext.Assignees)
		p.Assignees = &a
	case stepRename:
		title := s.title
		p.Title = &title
	case stepRetag:
		tags := slices.Clone(s.tags)
		p.Tags = &tags
	case stepUpdate:
		p = fieldPatch(ext, current)
	}
	return p
}

// fieldPatch maps an update-like extraction onto an existing task. Present
// fields overwrite; metadata is merged and never loses keys.
func fieldPatch(ext *models.Extraction, current models.Task) models.TaskPatch {
	var p models.TaskPatch
	if ext.Status.Valid() {
		st := ext.Status
		p.Status = &st
	}
	if ext.Priority.Valid() {
		pr := ext.Priority
		p.Priority = &pr
	}
	if len(ext.Assignees) > 0 {
		a := slices.Clone(ext.Assignees)
		p.Assignees = &a
	}
	if ext.Deadline != nil {
		d := *ext.Deadline
		p.Deadline = &d
	}
	if ext.BlockedBy != "" {
		b := ext.BlockedBy
		p.BlockedBy = &b
	}
	if st, ok := forcedStatus(ext); ok {
		p.Status = &st
	}
	if len(ext.Metadata) > 0 {
		p.Metadata = current.Metadata.Merge(ext.Metadata)
	}
	return p
}
