package store

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/models"
)

var epoch = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

// tickingClock advances one millisecond per reading.
func tickingClock() func() time.Time {
	var (
		mu sync.Mutex
		t  = epoch
	)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Millisecond)
		return t
	}
}

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "nested", "tally.db")
	store, err := New(dbPath, zerolog.Nop(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew_CreatesSchema(t *testing.T) {
	store := newTestStore(t)

	tables := []string{
		"meta", "users", "workflows", "tasks", "messages",
		"task_name_corrections", "naming_sequences",
	}
	for _, table := range tables {
		var count int
		err := store.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		require.NoError(t, err)
		assert.Equal(t, 1, count, "table %s should exist", table)
	}
	assert.Equal(t, 2, store.schemaVersion())

	var mode string
	require.NoError(t, store.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestNew_ReopenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tally.db")
	s1, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	_, err = s1.CreateUser(context.Background(), models.User{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := New(dbPath, zerolog.Nop())
	require.NoError(t, err)
	defer s2.Close()

	users, err := s2.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Len(t, users, 1)
	assert.Equal(t, 2, s2.schemaVersion())
}

func TestUsers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	bob, err := store.CreateUser(ctx, models.User{Name: "Bob Smith", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.NotEmpty(t, bob.ID)
	_, err = store.CreateUser(ctx, models.User{ID: "u-alice", Name: "Alice Johnson", Email: "Alice@Example.com", Avatar: "a.png"})
	require.NoError(t, err)

	got, err := store.GetUser(ctx, "u-alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "a.png", got.Avatar)

	byEmail, err := store.UserByEmail(ctx, " alice@example.COM ")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, "u-alice", byEmail.ID)

	missing, err := store.GetUser(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	users, err := store.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "Alice Johnson", users[0].Name)

	_, err = store.CreateUser(ctx, models.User{Name: "Dup", Email: "bob@example.com"})
	assert.Error(t, err)
}

func TestTasks_CRUD(t *testing.T) {
	store := newTestStore(t, WithClock(tickingClock()))
	ctx := context.Background()
	deadline := time.Date(2025, 10, 31, 17, 0, 0, 0, time.UTC)

	created, err := store.CreateTask(ctx, models.Task{
		Title:        "Humana Invoice October 2025",
		Status:       models.StatusTodo,
		Priority:     models.PriorityMedium,
		WorkflowType: models.WorkflowInvoiceGeneration,
		Assignees:    []string{"u-alice"},
		Tags:         []string{"invoice", "billing"},
		Deadline:     &deadline,
		Metadata:     models.Metadata{"customerName": "Humana", "amount": 25000.0},
		CreatedBy:    "u-alice",
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, created, *got)

	status := models.StatusBlocked
	blocker := "waiting on PO"
	updated, err := store.UpdateTask(ctx, created.ID, models.TaskPatch{
		Status:    &status,
		BlockedBy: &blocker,
		Metadata:  got.Metadata.Merge(models.Metadata{"paid": false}),
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, models.StatusBlocked, updated.Status)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))

	reread, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "waiting on PO", reread.BlockedBy)
	assert.Equal(t, models.Metadata{"customerName": "Humana", "amount": 25000.0, "paid": false}, reread.Metadata)
	assert.Equal(t, []string{"invoice", "billing"}, reread.Tags)

	missing, err := store.UpdateTask(ctx, "nope", models.TaskPatch{Status: &status})
	require.NoError(t, err)
	assert.Nil(t, missing)

	ok, err := store.DeleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.DeleteTask(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	gone, err := store.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestTasks_ListFiltersAndOrder(t *testing.T) {
	store := newTestStore(t, WithClock(tickingClock()))
	ctx := context.Background()

	mk := func(title string, status models.Status, wf string, assignees ...string) models.Task {
		task, err := store.CreateTask(ctx, models.Task{
			Title: title, Status: status, Priority: models.PriorityMedium,
			WorkflowType: wf, Assignees: assignees, CreatedBy: "u1",
		})
		require.NoError(t, err)
		return task
	}
	first := mk("first", models.StatusTodo, models.WorkflowGeneral, "u1")
	second := mk("second", models.StatusCompleted, models.WorkflowMonthlyClose, "u2")
	third := mk("third", models.StatusTodo, models.WorkflowMonthlyClose, "u1", "u2")

	all, err := store.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	byWF, err := store.ListTasks(ctx, models.TaskFilter{WorkflowType: models.WorkflowMonthlyClose})
	require.NoError(t, err)
	assert.Len(t, byWF, 2)

	byStatus, err := store.ListTasks(ctx, models.TaskFilter{Status: models.StatusTodo})
	require.NoError(t, err)
	assert.Len(t, byStatus, 2)

	byAssignee, err := store.ListTasks(ctx, models.TaskFilter{Assignee: "u2"})
	require.NoError(t, err)
	require.Len(t, byAssignee, 2)
	assert.Equal(t, third.ID, byAssignee[0].ID)

	// "u" must not match "u1" as a substring
	none, err := store.ListTasks(ctx, models.TaskFilter{Assignee: "u"})
	require.NoError(t, err)
	assert.Empty(t, none)

	limited, err := store.ListTasks(ctx, models.TaskFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, third.ID, limited[0].ID)
}

func TestTasks_SameMillisecondKeepsInsertionOrder(t *testing.T) {
	store := newTestStore(t, WithClock(func() time.Time { return epoch }))
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"a", "b", "c"} {
		task, err := store.CreateTask(ctx, models.Task{Title: title, Status: models.StatusTodo, Priority: models.PriorityLow, WorkflowType: "general", CreatedBy: "u"})
		require.NoError(t, err)
		ids = append(ids, task.ID)
	}

	all, err := store.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{ids[2], ids[1], ids[0]}, []string{all[0].ID, all[1].ID, all[2].ID})
}

func TestMessages(t *testing.T) {
	store := newTestStore(t, WithClock(tickingClock()))
	ctx := context.Background()

	deadline := time.Date(2025, 10, 16, 0, 0, 0, 0, time.UTC)
	first, err := store.AppendMessage(ctx, models.Message{
		UserID:   "u1",
		UserName: "Alice",
		Content:  "I am starting Humana Invoice October 2025",
		ParsedData: &models.Extraction{
			Confidence:   0.9,
			IsTaskWorthy: true,
			MessageType:  models.MessageTask,
			Action:       models.ActionCreate,
			TaskTitle:    "Humana Invoice October 2025",
			Deadline:     &deadline,
			Metadata:     models.Metadata{"year": 2025.0},
			Source:       models.SourceDeterministic,
		},
		RelatedTaskIDs: []string{"t1"},
	})
	require.NoError(t, err)
	assert.False(t, first.Timestamp.IsZero())

	second, err := store.AppendMessage(ctx, models.Message{UserID: "u1", UserName: "Alice", Content: "hey"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, second.RelatedTaskIDs)

	got, err := store.GetMessage(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.NotNil(t, got.ParsedData)
	assert.Equal(t, "Humana Invoice October 2025", got.ParsedData.TaskTitle)
	assert.True(t, deadline.Equal(*got.ParsedData.Deadline))
	assert.Equal(t, []string{"t1"}, got.RelatedTaskIDs)

	recent, err := store.RecentMessages(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, second.ID, recent[0].ID)
	assert.Nil(t, recent[0].ParsedData)

	page, err := store.ListMessages(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, first.ID, page[0].ID)
}

func TestWorkflows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	w, err := store.CreateWorkflow(ctx, models.Workflow{
		Name:        "Monthly Close",
		Description: "Month-end close",
		Stages:      []models.WorkflowStage{{Name: "Reconcile", Order: 1}, {Name: "Review", Order: 2}},
		Fields:      []models.WorkflowField{{Name: "Month", Type: models.FieldSelect, Options: []string{"January"}, Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "monthly-close", w.Slug)
	assert.NotEmpty(t, w.Stages[0].ID)

	byName, err := store.WorkflowByName(ctx, "Monthly Close")
	require.NoError(t, err)
	require.NotNil(t, byName)
	assert.Equal(t, w.ID, byName.ID)
	assert.Equal(t, w.Stages, byName.Stages)
	assert.Equal(t, w.Fields, byName.Fields)

	got, err := store.GetWorkflow(ctx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	none, err := store.WorkflowByName(ctx, "Payroll")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = store.CreateWorkflow(ctx, models.Workflow{Name: "Annual Planning"})
	require.NoError(t, err)
	all, err := store.ListWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Annual Planning", all[0].Name)
}

func TestCorrections(t *testing.T) {
	store := newTestStore(t, WithClock(tickingClock()))
	ctx := context.Background()

	for _, c := range []models.TaskNameCorrection{
		{OriginalTitle: "a", CorrectedTitle: "A", WorkflowType: models.WorkflowInvoiceGeneration},
		{OriginalTitle: "b", CorrectedTitle: "B", WorkflowType: models.WorkflowMonthlyClose, CorrectedTags: []string{"close"}},
		{OriginalTitle: "c", CorrectedTitle: "C", WorkflowType: models.WorkflowInvoiceGeneration},
	} {
		require.NoError(t, store.SaveCorrection(ctx, c))
	}

	inv, err := store.RecentCorrections(ctx, models.WorkflowInvoiceGeneration, 10)
	require.NoError(t, err)
	require.Len(t, inv, 2)
	assert.Equal(t, "C", inv[0].CorrectedTitle)
	assert.Equal(t, []string{}, inv[0].OriginalTags)

	all, err := store.RecentCorrections(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "C", all[0].CorrectedTitle)
	assert.Equal(t, []string{"close"}, all[1].CorrectedTags)
}

func TestSequences(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seq := store.Sequences()

	for want := int64(1); want <= 3; want++ {
		got, err := seq.Next(ctx, "invoice-generation")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	got, err := seq.Next(ctx, "general")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)
}

func TestSequences_ConcurrentAreDistinct(t *testing.T) {
	store := newTestStore(t)
	seq := store.Sequences()

	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int64]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), "k")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seen[v] = true
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, n)
	assert.True(t, seen[n])
}

func TestAtomically_CommitAndRollback(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Atomically(ctx, func(r *Repo) error {
		task, err := r.CreateTask(ctx, models.Task{Title: "kept", Status: models.StatusTodo, Priority: models.PriorityMedium, WorkflowType: "general", CreatedBy: "u"})
		if err != nil {
			return err
		}
		_, err = r.AppendMessage(ctx, models.Message{UserID: "u", UserName: "U", Content: "x", RelatedTaskIDs: []string{task.ID}})
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = store.Atomically(ctx, func(r *Repo) error {
		if _, err := r.CreateTask(ctx, models.Task{Title: "dropped", Status: models.StatusTodo, Priority: models.PriorityMedium, WorkflowType: "general", CreatedBy: "u"}); err != nil {
			return err
		}
		// reads inside the transaction see the pending write
		tasks, err := r.ListTasks(ctx, models.TaskFilter{})
		if err != nil {
			return err
		}
		if len(tasks) != 2 {
			return errors.New("transaction does not see its own write")
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	tasks, err := store.ListTasks(ctx, models.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "kept", tasks[0].Title)

	msgs, err := store.RecentMessages(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestPing(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.PingContext(context.Background()))
}
