package intake

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/tally/internal/dates"
	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/naming"
	"github.com/p-blackswan/tally/internal/parser"
)

var (
	alice = models.User{ID: "u-alice", Name: "Alice Johnson", Email: "alice@example.com"}
	bob   = models.User{ID: "u-bob", Name: "Bob Smith", Email: "bob@example.com"}

	anchor = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)
)

// memStore is an in-memory Store. Atomically restores the previous state
// when fn fails.
type memStore struct {
	mu       sync.Mutex
	users    []models.User
	tasks    []models.Task // insertion order
	messages []models.Message
	tick     int

	failCreate error
	failAppend error
}

func newMemStore(users ...models.User) *memStore {
	return &memStore{users: users}
}

func (m *memStore) now() time.Time {
	m.tick++
	return anchor.Add(time.Duration(m.tick) * time.Second)
}

func (m *memStore) GetUser(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			u := u
			return &u, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListUsers(context.Context) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.users), nil
}

func (m *memStore) CreateTask(_ context.Context, t models.Task) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate != nil {
		return models.Task{}, m.failCreate
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.CreatedAt = m.now()
	t.UpdatedAt = t.CreatedAt
	if t.Metadata == nil {
		t.Metadata = models.Metadata{}
	}
	m.tasks = append(m.tasks, t)
	return t, nil
}

func (m *memStore) GetTask(_ context.Context, id string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tasks {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memStore) ListTasks(_ context.Context, f models.TaskFilter) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for i := len(m.tasks) - 1; i >= 0; i-- {
		t := m.tasks[i]
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.WorkflowType != "" && t.WorkflowType != f.WorkflowType {
			continue
		}
		if f.Assignee != "" && !t.HasAssignee(f.Assignee) {
			continue
		}
		out = append(out, t)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) UpdateTask(_ context.Context, id string, patch models.TaskPatch) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tasks {
		if t.ID == id {
			t = patch.Apply(t)
			t.UpdatedAt = m.now()
			m.tasks[i] = t
			return &t, nil
		}
	}
	return nil, nil
}

func (m *memStore) AppendMessage(_ context.Context, msg models.Message) (models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAppend != nil {
		return models.Message{}, m.failAppend
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	msg.Timestamp = m.now()
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *memStore) RecentMessages(_ context.Context, limit int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for i := len(m.messages) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.messages[i])
	}
	return out, nil
}

func (m *memStore) Atomically(_ context.Context, fn func(Repositories) error) error {
	m.mu.Lock()
	tasks := slices.Clone(m.tasks)
	messages := slices.Clone(m.messages)
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.tasks, m.messages = tasks, messages
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) taskCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// scripted returns a copy of a canned extraction and records its requests.
type scripted struct {
	ext  models.Extraction
	reqs []parser.Request
}

func (s *scripted) Extract(_ context.Context, req parser.Request) *models.Extraction {
	s.reqs = append(s.reqs, req)
	ext := s.ext
	ext.Metadata = s.ext.Metadata.Clone()
	ext.Suggestions = slices.Clone(s.ext.Suggestions)
	return &ext
}

type failingClassifier struct{}

func (failingClassifier) Classify(context.Context, parser.Request) (*models.Extraction, error) {
	return nil, errors.New("upstream 529 overloaded")
}

type memCorrections struct {
	mu    sync.Mutex
	saved []models.TaskNameCorrection
}

func (c *memCorrections) SaveCorrection(_ context.Context, corr models.TaskNameCorrection) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, corr)
	return nil
}

func (c *memCorrections) RecentCorrections(_ context.Context, wf string, limit int) ([]models.TaskNameCorrection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []models.TaskNameCorrection
	for i := len(c.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if c.saved[i].WorkflowType == wf {
			out = append(out, c.saved[i])
		}
	}
	return out, nil
}

type recordingNotifier struct {
	results []*Result
}

func (n *recordingNotifier) Notify(_ context.Context, res *Result) {
	n.results = append(n.results, res)
}

func clock() time.Time { return anchor }

func deterministicChain(primary parser.Classifier) *parser.Chain {
	det := parser.NewDeterministic(dates.New(dates.WithClock(clock)))
	return parser.NewChain(primary, det, nil, zerolog.Nop())
}

func newNamer(c *memCorrections) *naming.Engine {
	if c == nil {
		return naming.New(naming.NewMemorySequence(), nil, naming.WithClock(clock))
	}
	return naming.New(naming.NewMemorySequence(), c, naming.WithClock(clock))
}
