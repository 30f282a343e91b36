package naming

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/p-blackswan/tally/internal/models"
)

var monthNames = []string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

var (
	titleYearRe  = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)
	titleMonthRe = regexp.MustCompile(`(?i)\b(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b`)
)

var dueDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"01/02/2006",
	"January 2, 2006",
	"Jan 2, 2006",
}

// formatAmount renders n with thousands separators and at most three
// fraction digits: 25000 -> "25,000", 1234.5 -> "1,234.5".
func formatAmount(n float64) string {
	neg := n < 0
	n = math.Round(math.Abs(n)*1000) / 1000
	s := strconv.FormatFloat(n, 'f', -1, 64)

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

// monthNumber accepts a full month name, an abbreviation of at least three
// letters, or a 1-2 digit number.
func monthNumber(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if len(s) <= 2 && n >= 1 && n <= 12 {
			return n, true
		}
		return 0, false
	}
	if len(s) < 3 {
		return 0, false
	}
	s = strings.TrimSuffix(s, ".")
	for i, name := range monthNames {
		if strings.HasPrefix(name, s) {
			return i + 1, true
		}
	}
	return 0, false
}

func validYear(s string) (int, bool) {
	if len(s) != 4 {
		return 0, false
	}
	y, err := strconv.Atoi(s)
	if err != nil || y < 1900 || y > 2999 {
		return 0, false
	}
	return y, true
}

// monthTag derives a YYYY-MM tag. Sources are tried in order: year and month
// metadata, a year and month name in the raw title, then a dueDate field.
func monthTag(rawTitle string, md models.Metadata) (string, bool) {
	if ys, ok := md.String(models.MetaYear); ok {
		if ms, ok := md.String(models.MetaMonth); ok {
			y, yok := validYear(ys)
			m, mok := monthNumber(ms)
			if yok && mok {
				return yearMonth(y, m), true
			}
		}
	}

	if ym := titleYearRe.FindStringSubmatch(rawTitle); ym != nil {
		if mm := titleMonthRe.FindStringSubmatch(rawTitle); mm != nil {
			y, yok := validYear(ym[1])
			m, mok := monthNumber(mm[1])
			if yok && mok {
				return yearMonth(y, m), true
			}
		}
	}

	if due, ok := md.String(models.MetaDueDate); ok {
		for _, layout := range dueDateLayouts {
			if t, err := time.Parse(layout, due); err == nil {
				return yearMonth(t.Year(), int(t.Month())), true
			}
		}
	}
	return "", false
}

func yearMonth(y, m int) string {
	return strconv.Itoa(y) + "-" + twoDigits(m)
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// wordSimilarity is the share of words of a found in b, over the longer of
// the two word counts.
func wordSimilarity(a, b string) float64 {
	wa := strings.Fields(strings.ToLower(a))
	wb := strings.Fields(strings.ToLower(b))
	longest := max(len(wa), len(wb))
	if longest == 0 {
		return 0
	}
	set := make(map[string]bool, len(wb))
	for _, w := range wb {
		set[w] = true
	}
	common := 0
	for _, w := range wa {
		if set[w] {
			common++
		}
	}
	return float64(common) / float64(longest)
}

func dedupe(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
