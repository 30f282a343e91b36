// Package dates turns free-text deadline expressions into absolute times.
package dates

import (
	"regexp"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

var isoDate = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

// "may" is read as the month only next to a day or year, or after a
// preposition that introduces a date.
var (
	mayWord   = regexp.MustCompile(`(?i)\bmay\b`)
	mayBefore = regexp.MustCompile(`(?i)(?:\b(?:\d+|` + en.ORDINAL_WORDS_PATTERN + `)(?:\s+of)?|\b(?:in|by|on|of|until|till|before|after|since|during|through|early|mid|late))\s+$`)
	mayAfter  = regexp.MustCompile(`(?i)^\s*(?:\d|` + en.ORDINAL_WORDS_PATTERN + `)`)
)

// Resolver finds the first date expression in a string. All results are in
// UTC; relative expressions are anchored on the resolver's clock.
type Resolver struct {
	parser *when.Parser
	now    func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the reference time used for relative expressions.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// New returns a Resolver with the English and common rule sets.
func New(opts ...Option) *Resolver {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	w.Use(maskModalMay)

	r := &Resolver{parser: w, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the first recognised date in text. It never fails: text
// without a date, or that the grammar chokes on, yields ok=false.
func (r *Resolver) Resolve(text string) (t time.Time, ok bool) {
	if r == nil || text == "" {
		return time.Time{}, false
	}
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	base := r.now().UTC()

	isoIdx, isoTime, isoOK := -1, time.Time{}, false
	if loc := isoDate.FindStringSubmatchIndex(text); loc != nil {
		if parsed, err := time.Parse("2006-01-02", text[loc[2]:loc[3]]); err == nil {
			isoIdx, isoTime, isoOK = loc[0], parsed.UTC(), true
		}
	}

	res, err := r.parser.Parse(text, base)
	if err != nil || res == nil {
		return isoTime, isoOK
	}
	if isoOK && isoIdx <= res.Index {
		return isoTime, true
	}
	return res.Time.UTC(), true
}

// ResolvePtr is Resolve for optional fields.
func (r *Resolver) ResolvePtr(text string) *time.Time {
	t, ok := r.Resolve(text)
	if !ok {
		return nil
	}
	return &t
}

// maskModalMay blanks every "may" that is not used as a month, keeping
// offsets intact.
func maskModalMay(text string) (string, error) {
	locs := mayWord.FindAllStringIndex(text, -1)
	if locs == nil {
		return text, nil
	}
	b := []byte(text)
	for _, loc := range locs {
		if mayBefore.MatchString(text[:loc[0]]) || mayAfter.MatchString(text[loc[1]:]) {
			continue
		}
		copy(b[loc[0]:loc[1]], "   ")
	}
	return string(b), nil
}
