package workflows_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/store"
	"github.com/p-blackswan/tally/internal/workflows"
)

func TestDefault(t *testing.T) {
	cat, err := workflows.Default()
	require.NoError(t, err)
	require.Len(t, cat.Workflows, 6)
	require.Len(t, cat.Users, 4)

	slugs := make([]string, 0, len(cat.Workflows))
	for _, w := range cat.Workflows {
		slugs = append(slugs, w.Slug)
		assert.NotEmpty(t, w.Stages, w.Name)
		assert.NotEmpty(t, w.Fields, w.Name)
	}
	assert.ElementsMatch(t, []string{
		models.WorkflowInvoiceGeneration,
		models.WorkflowPaymentReconciliation,
		models.WorkflowMonthlyClose,
		models.WorkflowAnnualPlanning,
		models.WorkflowModelChange,
		models.WorkflowVendorOnboarding,
	}, slugs)

	vendor := cat.Workflows[5]
	assert.Equal(t, "Vendor Onboarding", vendor.Name)
	category := vendor.Fields[2]
	assert.Equal(t, models.FieldSelect, category.Type)
	assert.True(t, category.Required)
	assert.Contains(t, category.Options, "Software")

	voc := cat.Vocabulary()
	require.Len(t, voc, 6)
	assert.Equal(t, "invoice-generation", voc[0].Slug)
	assert.Equal(t, "Invoice Generation", voc[0].Name)
}

func TestParse_DefaultsAndEnv(t *testing.T) {
	t.Setenv("TALLY_TEST_DEPT", "Facilities")
	cat, err := workflows.Parse([]byte(`
workflows:
  - name: ${TALLY_TEST_DEPT} Requests
    stages:
      - name: Open
      - name: Done
    fields:
      - name: Room
`))
	require.NoError(t, err)
	require.Len(t, cat.Workflows, 1)
	w := cat.Workflows[0]
	assert.Equal(t, "Facilities Requests", w.Name)
	assert.Equal(t, "facilities-requests", w.Slug)
	assert.Equal(t, 2, w.Stages[1].Order)
	assert.Equal(t, models.FieldText, w.Fields[0].Type)
}

func TestParse_Errors(t *testing.T) {
	_, err := workflows.Parse([]byte("workflows: ["))
	assert.Error(t, err)

	_, err = workflows.Parse([]byte("workflows:\n  - name: A\n  - name: A\n"))
	assert.ErrorContains(t, err, "duplicate")

	_, err = workflows.Parse([]byte("workflows:\n  - description: nameless\n"))
	assert.ErrorContains(t, err, "no name")

	_, err = workflows.Parse([]byte("users:\n  - name: Nobody\n"))
	assert.ErrorContains(t, err, "email")
}

func TestLoad(t *testing.T) {
	cat, err := workflows.Load("")
	require.NoError(t, err)
	assert.Len(t, cat.Workflows, 6)

	path := filepath.Join(t.TempDir(), "wf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workflows:\n  - name: Payroll\n"), 0o600))
	cat, err = workflows.Load(path)
	require.NoError(t, err)
	require.Len(t, cat.Workflows, 1)
	assert.Equal(t, "payroll", cat.Workflows[0].Slug)

	_, err = workflows.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSeed_Idempotent(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "tally.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	cat, err := workflows.Default()
	require.NoError(t, err)

	res, err := workflows.Seed(ctx, s, cat, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, workflows.SeedResult{Workflows: 6, Users: 4}, res)

	res, err = workflows.Seed(ctx, s, cat, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, workflows.SeedResult{}, res)

	all, err := s.ListWorkflows(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 6)

	mc, err := s.WorkflowByName(ctx, "Model Change Control")
	require.NoError(t, err)
	require.NotNil(t, mc)
	assert.Equal(t, models.WorkflowModelChange, mc.Slug)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 4)
}

func TestSeed_SkipsUsersWhenDisabledOrPopulated(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "tally.db"), zerolog.Nop())
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()
	cat, err := workflows.Default()
	require.NoError(t, err)

	res, err := workflows.Seed(ctx, s, cat, false, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Users)

	_, err = s.CreateUser(ctx, models.User{Name: "Existing", Email: "existing@example.com"})
	require.NoError(t, err)
	res, err = workflows.Seed(ctx, s, cat, true, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Users)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}
