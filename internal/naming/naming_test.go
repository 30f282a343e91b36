package naming

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/models"
)

var fixedNow = time.Date(2025, 10, 15, 9, 0, 0, 0, time.UTC)

func newEngine(store CorrectionStore) *Engine {
	return New(NewMemorySequence(), store, WithClock(func() time.Time { return fixedNow }))
}

type memCorrections struct {
	mu      sync.Mutex
	saved   []models.TaskNameCorrection
	saveErr error
	readErr error
}

func (m *memCorrections) SaveCorrection(_ context.Context, c models.TaskNameCorrection) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, c)
	return nil
}

func (m *memCorrections) RecentCorrections(_ context.Context, wf string, limit int) ([]models.TaskNameCorrection, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TaskNameCorrection
	for i := len(m.saved) - 1; i >= 0 && len(out) < limit; i-- {
		if m.saved[i].WorkflowType == wf {
			out = append(out, m.saved[i])
		}
	}
	return out, nil
}

type failingSequence struct{}

func (failingSequence) Next(context.Context, string) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestEnhance_Templates(t *testing.T) {
	tests := []struct {
		name     string
		workflow string
		raw      string
		md       models.Metadata
		title    string
		tags     []string
	}{
		{
			name:     "invoice with number",
			workflow: models.WorkflowInvoiceGeneration,
			raw:      "Send INV-1001 to Acme",
			md:       models.Metadata{"invoiceNumber": "INV-1001", "customerName": "Acme", "amount": 25000.0},
			title:    "INV-0001: INV-1001 - Acme $25,000",
			tags:     []string{"invoice", "billing", "acme"},
		},
		{
			name:     "invoice without number",
			workflow: models.WorkflowInvoiceGeneration,
			raw:      "Humana invoice",
			md:       models.Metadata{"customerName": "Humana", "amount": 75000.5},
			title:    "INV-0001: Humana Invoice $75,000.5",
			tags:     []string{"invoice", "billing", "humana", "high-value"},
		},
		{
			name:     "invoice unknown customer",
			workflow: models.WorkflowInvoiceGeneration,
			raw:      "Invoice",
			md:       nil,
			title:    "INV-0001: Unknown Invoice",
			tags:     []string{"invoice", "billing"},
		},
		{
			name:     "payment",
			workflow: models.WorkflowPaymentReconciliation,
			raw:      "Reconcile payment",
			md:       models.Metadata{"invoiceNumber": "INV-2002", "amount": 1200.0},
			title:    "PAY-0001: Reconcile INV-2002 $1,200",
			tags:     []string{"payment", "reconciliation", "inv-2002"},
		},
		{
			name:     "payment without invoice",
			workflow: models.WorkflowPaymentReconciliation,
			raw:      "Match the Acme wire",
			title:    "PAY-0001: Match the Acme wire",
			tags:     []string{"payment", "reconciliation"},
		},
		{
			name:     "monthly close defaults year",
			workflow: models.WorkflowMonthlyClose,
			raw:      "Close the books",
			md:       models.Metadata{"month": "October"},
			title:    "CLOSE-0001: October 2025 Financial Close",
			tags:     []string{"monthly-close", "financial-reporting", "october"},
		},
		{
			name:     "annual planning with department",
			workflow: models.WorkflowAnnualPlanning,
			raw:      "Plan budget",
			md:       models.Metadata{"year": 2026.0, "department": "Marketing"},
			title:    "PLAN-0001: FY2026 Marketing Budget Planning",
			tags:     []string{"planning", "annual", "budgeting", "fy2026"},
		},
		{
			name:     "annual planning defaults to next year",
			workflow: models.WorkflowAnnualPlanning,
			raw:      "Plan",
			title:    "PLAN-0001: FY2026 Annual Plan",
			tags:     []string{"planning", "annual", "budgeting"},
		},
		{
			name:     "model change",
			workflow: models.WorkflowModelChange,
			raw:      "Ship pricing model",
			md:       models.Metadata{"modelName": "Pricing", "version": "2.1"},
			title:    "MODEL-0001: Pricing v2.1",
			tags:     []string{"model", "change-control", "v2.1"},
		},
		{
			name:     "model change without name",
			workflow: models.WorkflowModelChange,
			raw:      "Ship v3",
			md:       models.Metadata{"version": "3"},
			title:    "MODEL-0001: Ship v3",
			tags:     []string{"model", "change-control", "v3"},
		},
		{
			name:     "vendor with category",
			workflow: models.WorkflowVendorOnboarding,
			raw:      "Onboard Stripe",
			md:       models.Metadata{"vendorName": "Stripe", "category": "Software"},
			title:    "VENDOR-0001: Onboard Stripe (Software)",
			tags:     []string{"vendor", "onboarding", "software"},
		},
		{
			name:     "vendor without category",
			workflow: models.WorkflowVendorOnboarding,
			raw:      "Onboard Stripe",
			md:       models.Metadata{"vendorName": "Stripe"},
			title:    "VENDOR-0001: Onboard Stripe",
			tags:     []string{"vendor", "onboarding"},
		},
		{
			name:     "general",
			workflow: models.WorkflowGeneral,
			raw:      "Order new chairs",
			title:    "TASK-0001: Order new chairs",
			tags:     []string{"general"},
		},
		{
			name:     "unknown workflow",
			workflow: "facilities",
			raw:      "Fix the door",
			title:    "TASK-0001: Fix the door",
			tags:     []string{"general"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(nil).Enhance(context.Background(), tt.raw, tt.workflow, tt.md)
			require.NoError(t, err)
			assert.Equal(t, tt.title, res.EnhancedTitle)
			assert.Equal(t, tt.tags, res.Tags)
			assert.Contains(t, res.Reasoning, res.ShortID)
		})
	}
}

func TestEnhance_SequenceIsStrictlyIncreasingPerWorkflow(t *testing.T) {
	e := newEngine(nil)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		res, err := e.Enhance(ctx, "x", models.WorkflowInvoiceGeneration, nil)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("INV-%04d", i), res.ShortID)
	}

	res, err := e.Enhance(ctx, "x", models.WorkflowMonthlyClose, nil)
	require.NoError(t, err)
	assert.Equal(t, "CLOSE-0001", res.ShortID)

	// unknown workflow types share the general counter
	res, err = e.Enhance(ctx, "x", "facilities", nil)
	require.NoError(t, err)
	assert.Equal(t, "TASK-0001", res.ShortID)
	res, err = e.Enhance(ctx, "x", models.WorkflowGeneral, nil)
	require.NoError(t, err)
	assert.Equal(t, "TASK-0002", res.ShortID)
}

func TestEnhance_ConcurrentIDsAreDistinct(t *testing.T) {
	e := newEngine(nil)
	const n = 50

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := e.Enhance(context.Background(), "x", models.WorkflowVendorOnboarding, nil)
			if err == nil {
				ids <- res.ShortID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
	assert.True(t, seen["VENDOR-0050"])
}

func TestEnhance_SequenceFailure(t *testing.T) {
	e := New(failingSequence{}, nil)
	_, err := e.Enhance(context.Background(), "x", models.WorkflowGeneral, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestEnhance_MonthTag(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name string
		raw  string
		md   models.Metadata
		want string
	}{
		{"metadata full name", "x", models.Metadata{"year": 2025.0, "month": "October"}, "2025-10"},
		{"metadata abbreviation", "x", models.Metadata{"year": "2025", "month": "Sep"}, "2025-09"},
		{"metadata number", "x", models.Metadata{"year": 2024.0, "month": "3"}, "2024-03"},
		{"title", "Humana Invoice October 2025", nil, "2025-10"},
		{"title abbreviation", "Close Dec 2024 books", nil, "2024-12"},
		{"due date", "x", models.Metadata{"dueDate": "2025-11-30"}, "2025-11"},
		{"metadata wins over title", "January 2023", models.Metadata{"year": 2025.0, "month": "feb"}, "2025-02"},
		{"bad metadata falls through to title", "March 2025", models.Metadata{"year": 2025.0, "month": "smarch"}, "2025-03"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(nil).Enhance(ctx, tt.raw, models.WorkflowGeneral, tt.md)
			require.NoError(t, err)
			assert.Contains(t, res.Tags, tt.want)
		})
	}

	res, err := newEngine(nil).Enhance(ctx, "no dates here", models.WorkflowGeneral, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"general"}, res.Tags)
}

func TestEnhance_TagsAreUnique(t *testing.T) {
	res, err := newEngine(nil).Enhance(context.Background(), "Close October 2025", models.WorkflowMonthlyClose,
		models.Metadata{"month": "monthly-close"})
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, tag := range res.Tags {
		assert.False(t, seen[tag], tag)
		seen[tag] = true
	}
}

func TestRecordCorrection(t *testing.T) {
	store := &memCorrections{}
	e := newEngine(store)

	e.RecordCorrection(context.Background(), models.TaskNameCorrection{
		OriginalTitle:  "Acme invoice",
		CorrectedTitle: "Acme Q4 invoice",
		WorkflowType:   models.WorkflowInvoiceGeneration,
		UserMessage:    "rename Acme invoice to Acme Q4 invoice",
	})

	require.Len(t, store.saved, 1)
	c := store.saved[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, fixedNow, c.CreatedAt)
	assert.Equal(t, []string{}, c.OriginalTags)
	assert.Equal(t, []string{}, c.CorrectedTags)
}

func TestRecordCorrection_DefaultsWorkflowType(t *testing.T) {
	store := &memCorrections{}
	e := newEngine(store)
	ctx := context.Background()

	e.RecordCorrection(ctx, models.TaskNameCorrection{OriginalTitle: "Ship the deck", CorrectedTitle: "Ship Q4 deck"})
	require.Len(t, store.saved, 1)
	assert.Equal(t, models.WorkflowGeneral, store.saved[0].WorkflowType)
	assert.Len(t, e.Suggestions(ctx, "Ship the deck", ""), 1)
}

func TestRecordCorrection_SwallowsErrors(t *testing.T) {
	e := newEngine(&memCorrections{saveErr: errors.New("disk full")})
	assert.NotPanics(t, func() {
		e.RecordCorrection(context.Background(), models.TaskNameCorrection{OriginalTitle: "a", CorrectedTitle: "b"})
	})

	assert.NotPanics(t, func() {
		New(nil, nil).RecordCorrection(context.Background(), models.TaskNameCorrection{})
	})
}

func TestSuggestions(t *testing.T) {
	store := &memCorrections{}
	e := newEngine(store)
	ctx := context.Background()

	for i, corrected := range []string{"A1", "A2", "A3", "A4"} {
		e.RecordCorrection(ctx, models.TaskNameCorrection{
			OriginalTitle:  "Acme invoice October",
			CorrectedTitle: corrected,
			WorkflowType:   models.WorkflowInvoiceGeneration,
			CreatedAt:      fixedNow.Add(time.Duration(i) * time.Minute),
		})
	}
	e.RecordCorrection(ctx, models.TaskNameCorrection{
		OriginalTitle:  "Acme invoice October",
		CorrectedTitle: "other workflow",
		WorkflowType:   models.WorkflowMonthlyClose,
	})

	got := e.Suggestions(ctx, "acme invoice october", models.WorkflowInvoiceGeneration)
	require.Len(t, got, 3)
	assert.Equal(t, `Consider: "A4" (based on similar past correction)`, got[0])

	// 1 of 3 words in common is below the threshold
	assert.Empty(t, e.Suggestions(ctx, "Acme payroll run", models.WorkflowInvoiceGeneration))
	assert.Empty(t, e.Suggestions(ctx, "", models.WorkflowInvoiceGeneration))
}

func TestSuggestions_StorageFailure(t *testing.T) {
	e := newEngine(&memCorrections{readErr: errors.New("no such table")})
	assert.Empty(t, e.Suggestions(context.Background(), "Acme invoice", models.WorkflowInvoiceGeneration))
	assert.Empty(t, New(nil, nil).Suggestions(context.Background(), "Acme invoice", ""))
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "25,000", formatAmount(25000))
	assert.Equal(t, "1,234,567.891", formatAmount(1234567.8912))
	assert.Equal(t, "999", formatAmount(999))
	assert.Equal(t, "0.5", formatAmount(0.5))
	assert.Equal(t, "-1,000", formatAmount(-1000))
}

func TestWordSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, wordSimilarity("Acme Invoice", "acme invoice"), 1e-9)
	assert.InDelta(t, 2.0/3.0, wordSimilarity("acme invoice", "acme invoice october"), 1e-9)
	assert.Zero(t, wordSimilarity("", ""))
}
