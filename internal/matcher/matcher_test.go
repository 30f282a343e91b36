package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/models"
)

func task(id, title string, status models.Status, md models.Metadata) models.Task {
	return models.Task{ID: id, Title: title, Status: status, Metadata: md}
}

var pool = []models.Task{
	task("t1", "Humana Invoice October 2025", models.StatusTodo, models.Metadata{"customerName": "Humana"}),
	task("t2", "TechCorp payment reconciliation", models.StatusInProgress, models.Metadata{"invoiceNumber": "INV-1001"}),
	task("t3", "October close", models.StatusCompleted, nil),
	task("t4", "Onboard Stripe", models.StatusTodo, models.Metadata{"vendorName": "Stripe"}),
}

func TestScore_Components(t *testing.T) {
	// phrase + two title tokens + one metadata token + active
	assert.Equal(t, 100+10+10+5+2, Score("Humana invoice", pool[0]))
	// metadata only + active
	assert.Equal(t, 5+2, Score("inv-1001", pool[1]))
	// completed tasks get no active bonus
	assert.Equal(t, 100+10+10, Score("october close", pool[2]))
	// open task without textual evidence still earns the active bonus
	assert.Equal(t, ActiveScore, Score("payroll", pool[3]))
	// closed task without evidence scores nothing
	assert.Equal(t, 0, Score("payroll", pool[2]))
}

func TestFindByReference_Ranking(t *testing.T) {
	got := FindByReference("October", pool)
	require.Len(t, got, 4)
	// t1 phrase(100)+title(10)+active(2); t3 phrase(100)+title(10);
	// t2 and t4 only the active bonus, in repository order.
	assert.Equal(t, []string{"t1", "t3", "t2", "t4"}, []string{got[0].ID, got[1].ID, got[2].ID, got[3].ID})

	got = FindByReference("TechCorp payment", pool)
	require.NotEmpty(t, got)
	assert.Equal(t, "t2", got[0].ID)
}

func TestFindByReference_StableTies(t *testing.T) {
	tasks := []models.Task{
		task("a", "Acme invoice", models.StatusTodo, nil),
		task("b", "Acme invoice", models.StatusTodo, nil),
		task("c", "Acme invoice", models.StatusTodo, nil),
	}
	got := FindByReference("acme", tasks)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestFindByReference_NoTerms(t *testing.T) {
	assert.Empty(t, FindByReference("", pool))
	assert.Empty(t, FindByReference("to an of", pool))
}

func TestFindByReference_OpenTasksAlwaysMatch(t *testing.T) {
	got := FindByReference("payroll", pool)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"t1", "t2", "t4"}, []string{got[0].ID, got[1].ID, got[2].ID})

	closed := []models.Task{
		task("c1", "October close", models.StatusCompleted, nil),
		task("c2", "Vendor audit", models.StatusBlocked, nil),
	}
	assert.Empty(t, FindByReference("payroll", closed))
}

func TestFindByReference_MonotonicInEvidence(t *testing.T) {
	tk := task("x", "Globex quarterly invoice", models.StatusTodo, models.Metadata{"customerName": "Globex"})

	// Adding a term never lowers the score while no phrase bonus is in play.
	steps := []string{"zebra invoice", "zebra invoice globex", "zebra invoice globex quarterly"}
	prev := 0
	for _, phrase := range steps {
		s := Score(phrase, tk)
		assert.GreaterOrEqual(t, s, prev, phrase)
		prev = s
	}

	// Extending a phrase that stays inside the title keeps the phrase bonus.
	assert.Greater(t, Score("globex quarterly invoice", tk), Score("globex quarterly", tk))

	// Ranking follows: a task matched by more terms ranks first.
	other := task("y", "Quarterly report", models.StatusTodo, nil)
	got := FindByReference("globex quarterly", []models.Task{other, tk})
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].ID)
}

func TestFindBySimilarTitle(t *testing.T) {
	got, ok := FindBySimilarTitle("Humana Invoice October 2025", pool)
	require.True(t, ok)
	assert.Equal(t, "t1", got.ID)

	// only one significant word in common
	_, ok = FindBySimilarTitle("Humana payroll", pool)
	assert.False(t, ok)

	// short words do not count
	_, ok = FindBySimilarTitle("the and for", pool)
	assert.False(t, ok)
}

func TestFindBySimilarTitle_FirstInRepositoryOrder(t *testing.T) {
	tasks := []models.Task{
		task("new", "Acme invoice draft", models.StatusTodo, nil),
		task("old", "Acme invoice final", models.StatusTodo, nil),
	}
	got, ok := FindBySimilarTitle("acme invoice", tasks)
	require.True(t, ok)
	assert.Equal(t, "new", got.ID)
}
