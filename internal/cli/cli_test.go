package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/tally/internal/models"
)

func setupEnv(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "tally.db")
	t.Setenv("DB_PATH", db)
	t.Setenv("EXTRACTOR_PROVIDER", "none")
	return db
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNewRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd("1.2.3")
	assert.Equal(t, "1.2.3", root.Version)

	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"classify", "process", "tasks", "messages", "users", "corrections"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}
	assert.NotNil(t, root.PersistentFlags().Lookup("db"))
}

func TestClassify_JSON(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "classify", "--json", "Blocked", "on", "payment", "from", "Acme")
	require.NoError(t, err)

	var ext models.Extraction
	require.NoError(t, json.Unmarshal([]byte(out), &ext), out)
	assert.Equal(t, models.ActionBlock, ext.Action)
	assert.Equal(t, "payment from Acme", ext.BlockedBy)

	out, err = run(t, "messages")
	require.NoError(t, err)
	assert.Contains(t, out, "no messages")
}

func TestClassify_Text(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "classify", "Blocked on payment from Acme")
	require.NoError(t, err)
	assert.Contains(t, out, "type:        task")
	assert.Contains(t, out, "blocked by:  payment from Acme")
}

func TestProcess_ThenInspect(t *testing.T) {
	db := setupEnv(t)

	out, err := run(t, "process", "--user", "alice@example.com", "I am starting Humana Invoice October 2025")
	require.NoError(t, err)
	assert.Contains(t, out, "created")
	assert.Contains(t, out, "INV-0001")

	out, err = run(t, "--db", db, "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "invoice-generation")
	assert.Contains(t, out, "INV-0001")

	out, err = run(t, "tasks", "--json", "--workflow", "invoice-generation")
	require.NoError(t, err)
	var tasks []models.Task
	require.NoError(t, json.Unmarshal([]byte(out), &tasks))
	require.Len(t, tasks, 1)

	out, err = run(t, "tasks", "search", "Humana")
	require.NoError(t, err)
	assert.Contains(t, out, tasks[0].ID)

	out, err = run(t, "tasks", "search", "payroll")
	require.NoError(t, err)
	assert.Contains(t, out, tasks[0].ID, "open tasks always rank")

	out, err = run(t, "tasks", "search", "to", "of")
	require.NoError(t, err)
	assert.Contains(t, out, "no matching tasks")

	out, err = run(t, "messages")
	require.NoError(t, err)
	assert.Contains(t, out, "Humana Invoice October 2025")
}

func TestProcess_UnknownEmail(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "process", "--user", "ghost@example.com", "Start the Acme invoice")
	assert.ErrorContains(t, err, "ghost@example.com")
}

func TestTasks_RejectsUnknownStatus(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "tasks", "--status", "doing")
	assert.ErrorContains(t, err, `unknown status "doing"`)
}

func TestUsersAndCorrections(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "alice@example.com")

	out, err = run(t, "corrections")
	require.NoError(t, err)
	assert.Contains(t, out, "no corrections")
}

func TestProviderOverride_Rejected(t *testing.T) {
	setupEnv(t)
	_, err := run(t, "--provider", "gemini", "users")
	assert.Error(t, err)
}

func TestOneLine(t *testing.T) {
	assert.Equal(t, "a b c", oneLine("a\n b\tc", 10))
	assert.Equal(t, "abcd…", oneLine("abcdefgh", 5))
}
