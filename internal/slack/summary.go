package slack

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/tally/internal/intake"
	"github.com/p-blackswan/tally/internal/models"
)

const maxTitle = 60

// truncate shortens s to max runes, appending "…" if truncated.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// Summary is the one-line thread reply for a processed message. Messages
// that touched no task get no reply.
func Summary(res *intake.Result) string {
	var parts []string
	if len(res.Created) > 0 {
		parts = append(parts, "Created "+list(res.Created, false))
	}
	if len(res.Updated) > 0 {
		parts = append(parts, "Updated "+list(res.Updated, true))
	}
	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, " · ")
}

func list(tasks []models.Task, withStatus bool) string {
	items := make([]string, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, label(t, withStatus))
	}
	return strings.Join(items, ", ")
}

func label(t models.Task, withStatus bool) string {
	out := "*" + truncate(t.Title, maxTitle) + "*"
	if id, ok := t.Metadata.String(models.MetaShortID); ok {
		out = fmt.Sprintf("%s (%s)", out, id)
	}
	if withStatus {
		out = fmt.Sprintf("%s → %s", out, strings.ReplaceAll(string(t.Status), "_", " "))
	}
	return out
}
