// Package matcher resolves free-text task references against the task pool.
package matcher

import (
	"encoding/json"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/p-blackswan/tally/internal/models"
)

// Scoring weights for FindByReference.
const (
	PhraseScore   = 100
	TitleScore    = 10
	MetadataScore = 5
	ActiveScore   = 2
)

// Scored is a task with its reference score.
type Scored struct {
	Task  models.Task `json:"task"`
	Score int         `json:"score"`
}

// Score rates how well task matches the reference phrase. Tokens of two
// characters or fewer are ignored. Any todo or in-progress task earns the
// active bonus once the phrase has a usable term, textual evidence or not.
func Score(phrase string, task models.Task) int {
	phrase = strings.ToLower(strings.TrimSpace(phrase))
	terms := searchTerms(phrase)
	if len(terms) == 0 {
		return 0
	}

	title := strings.ToLower(task.Title)
	meta := metadataBlob(task.Metadata)

	score := 0
	if strings.Contains(title, phrase) {
		score += PhraseScore
	}
	for _, term := range terms {
		if strings.Contains(title, term) {
			score += TitleScore
		}
		if strings.Contains(meta, term) {
			score += MetadataScore
		}
	}
	if task.Status.Active() {
		score += ActiveScore
	}
	return score
}

// Rank scores every task against phrase and returns the matches best-first.
// Ties keep repository order.
func Rank(phrase string, tasks []models.Task) []Scored {
	var out []Scored
	for _, t := range tasks {
		if s := Score(phrase, t); s > 0 {
			out = append(out, Scored{Task: t, Score: s})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// FindByReference returns the tasks matching phrase, best-first. A phrase
// with no usable terms matches nothing.
func FindByReference(phrase string, tasks []models.Task) []models.Task {
	ranked := Rank(phrase, tasks)
	if len(ranked) == 0 {
		return nil
	}
	out := make([]models.Task, len(ranked))
	for i, r := range ranked {
		out[i] = r.Task
	}
	return out
}

// FindBySimilarTitle returns the first task, in repository order, sharing at
// least two significant words (longer than three characters) with title.
func FindBySimilarTitle(title string, tasks []models.Task) (models.Task, bool) {
	words := significantWords(title)
	if len(words) < 2 {
		return models.Task{}, false
	}
	for _, t := range tasks {
		if commonWords(words, significantWords(t.Title)) >= 2 {
			return t, true
		}
	}
	return models.Task{}, false
}

func searchTerms(phrase string) []string {
	var terms []string
	for _, f := range strings.Fields(phrase) {
		if utf8.RuneCountInString(f) > 2 {
			terms = append(terms, f)
		}
	}
	return terms
}

func significantWords(s string) map[string]bool {
	out := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(s)) {
		if utf8.RuneCountInString(f) > 3 {
			out[f] = true
		}
	}
	return out
}

func commonWords(a, b map[string]bool) int {
	n := 0
	for w := range a {
		if b[w] {
			n++
		}
	}
	return n
}

func metadataBlob(md models.Metadata) string {
	if len(md) == 0 {
		return "{}"
	}
	raw, err := json.Marshal(md)
	if err != nil {
		return ""
	}
	return strings.ToLower(string(raw))
}
