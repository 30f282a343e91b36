package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/p-blackswan/tally/internal/models"
)

var (
	invoiceNumberRe = regexp.MustCompile(`(?i)\bINV-\d+\b`)
	entityRe        = regexp.MustCompile(`\b[A-Z][A-Za-z]+(?:\s+[A-Z][A-Za-z]+)*\b`)
	listSeparatorRe = regexp.MustCompile(`(?i)^\s*(?:,\s*(?:and\s+)?|and\s+|&\s*)$`)
	paidRe          = regexp.MustCompile(`(?i)\b(?:paid|received|cleared)\b`)
	monthRe         = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\b`)
	yearRe          = regexp.MustCompile(`\b(20\d{2})\b`)
	versionRe       = regexp.MustCompile(`(?i)\bv(?:ersion)?\s*(\d+(?:\.\d+)*)\b`)
	modelNameRe     = regexp.MustCompile(`\b((?:[A-Z][\w-]*\s+)*[A-Z][\w-]*)\s+(?:[Mm]odel)\b`)
	categoryRe      = []*regexp.Regexp{
		regexp.MustCompile(`\(([\w][\w\s-]*)\)`),
		regexp.MustCompile(`(?i)\bas\s+(?:an?\s+)?([\w-]+)\s+(?:vendor|supplier)\b`),
		regexp.MustCompile(`(?i)\bcategory\s*[:=]?\s*([\w-]+)`),
	}
	departmentRe = regexp.MustCompile(`(?i)\b(finance|sales|marketing|engineering|operations|hr|legal|product|support|it)\s+(?:dept|department|team|budget)\b`)

	amountRes = []*regexp.Regexp{
		regexp.MustCompile(`\$\s?(\d[\d,]*(?:\.\d+)?)\s?([kKmM])?\b`),
		regexp.MustCompile(`\b(\d{1,3}(?:,\d{3})+(?:\.\d+)?)\b()`),
		regexp.MustCompile(`(?i)\b(\d[\d,]*(?:\.\d+)?)\s?([km])?\s?(?:usd|dollars)\b`),
	}
)

// nonEntityWords are capitalised words that start sentences or name the
// workflow itself rather than a counterparty.
var nonEntityWords = map[string]bool{
	"i": true, "we": true, "the": true, "a": true, "an": true, "please": true,
	"create": true, "created": true, "creating": true, "add": true, "added": true,
	"start": true, "started": true, "starting": true, "begin": true, "began": true,
	"generate": true, "generated": true, "generating": true, "processing": true,
	"prepare": true, "prepared": true, "preparing": true, "need": true, "working": true,
	"update": true, "updated": true, "change": true, "changed": true,
	"complete": true, "completed": true, "done": true, "finished": true, "closed": true,
	"blocked": true, "stuck": true, "waiting": true, "pass": true, "hand": true,
	"assign": true, "transfer": true, "give": true, "onboard": true, "reconcile": true,
	"send": true, "fix": true, "review": true, "note": true, "fyi": true,
	"invoice": true, "invoices": true, "payment": true, "payments": true, "bill": true,
	"billing": true, "close": true, "financial": true, "monthly": true, "annual": true,
	"budget": true, "planning": true, "plan": true, "model": true, "forecast": true,
	"vendor": true, "supplier": true, "inv": true, "po": true, "q": true,
	"january": true, "february": true, "march": true, "april": true, "may": true,
	"june": true, "july": true, "august": true, "september": true, "october": true,
	"november": true, "december": true,
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

type span struct {
	text       string
	start, end int
}

// entities returns capitalised word runs with non-entity words and directory
// names cut out. A run broken by a non-entity word yields several spans.
func entities(text string, users []models.User) []span {
	people := make(map[string]bool, len(users)*2)
	for _, u := range users {
		people[strings.ToLower(u.Name)] = true
		for _, part := range strings.Fields(u.Name) {
			if len(part) >= 3 {
				people[strings.ToLower(part)] = true
			}
		}
	}

	var out []span
	for _, loc := range entityRe.FindAllStringIndex(text, -1) {
		var cur []string
		curStart, pos := -1, loc[0]
		flush := func(end int) {
			if len(cur) == 0 {
				return
			}
			name := strings.Join(cur, " ")
			if !people[strings.ToLower(name)] {
				out = append(out, span{text: name, start: curStart, end: end})
			}
			cur, curStart = nil, -1
		}
		lastEnd := loc[0]
		for _, w := range strings.Fields(text[loc[0]:loc[1]]) {
			idx := strings.Index(text[pos:loc[1]], w) + pos
			pos = idx + len(w)
			lw := strings.ToLower(w)
			if nonEntityWords[lw] || people[lw] {
				flush(lastEnd)
				continue
			}
			if curStart < 0 {
				curStart = idx
			}
			cur = append(cur, w)
			lastEnd = pos
		}
		flush(lastEnd)
	}
	return out
}

// detectBatch finds several distinct work items named together: first a set
// of invoice numbers, then counterparties joined by commas, "and" or "&".
func detectBatch(text string, users []models.User) []string {
	if nums := uniqueUpper(invoiceNumberRe.FindAllString(text, -1)); len(nums) >= 2 {
		return nums
	}

	spans := entities(text, users)
	var best []string
	for i := 0; i < len(spans); {
		group := []string{spans[i].text}
		j := i + 1
		for ; j < len(spans); j++ {
			if !listSeparatorRe.MatchString(text[spans[j-1].end:spans[j].start]) {
				break
			}
			group = append(group, spans[j].text)
		}
		if group = uniqueFold(group); len(group) >= 2 && len(group) > len(best) {
			best = group
		}
		i = j
	}
	return best
}

// extractMetadata pulls the fields the given workflow cares about.
func extractMetadata(text, workflow string, users []models.User) models.Metadata {
	md := models.Metadata{}
	if workflow == "" {
		return md
	}

	switch workflow {
	case models.WorkflowInvoiceGeneration, models.WorkflowPaymentReconciliation:
		if inv := invoiceNumberRe.FindString(text); inv != "" {
			md[models.MetaInvoiceNumber] = strings.ToUpper(inv)
		}
		if ents := entities(text, users); len(ents) > 0 {
			md[models.MetaCustomerName] = ents[0].text
		}
		if amount, ok := extractAmount(text); ok {
			md[models.MetaAmount] = amount
		}
		if paidRe.MatchString(text) {
			md[models.MetaPaid] = true
		}
		addMonthYear(md, text)
	case models.WorkflowMonthlyClose:
		addMonthYear(md, text)
	case models.WorkflowModelChange:
		if m := versionRe.FindStringSubmatch(text); m != nil {
			md[models.MetaVersion] = m[1]
		}
		if m := modelNameRe.FindStringSubmatch(text); m != nil {
			if name := trimNonEntity(m[1]); name != "" {
				md[models.MetaModelName] = name
			}
		}
	case models.WorkflowVendorOnboarding:
		if ents := entities(text, users); len(ents) > 0 {
			md[models.MetaVendorName] = ents[0].text
		}
		for _, re := range categoryRe {
			if m := re.FindStringSubmatch(text); m != nil {
				md[models.MetaCategory] = strings.TrimSpace(m[1])
				break
			}
		}
	case models.WorkflowAnnualPlanning:
		if m := yearRe.FindStringSubmatch(text); m != nil {
			year, _ := strconv.Atoi(m[1])
			md[models.MetaYear] = float64(year)
		}
		if m := departmentRe.FindStringSubmatch(text); m != nil {
			md[models.MetaDepartment] = departmentLabel(m[1])
		}
	}
	return md
}

func addMonthYear(md models.Metadata, text string) {
	if m := monthRe.FindStringSubmatch(text); m != nil {
		md[models.MetaMonth] = strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:])
	}
	if m := yearRe.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		md[models.MetaYear] = float64(year)
	}
}

// extractAmount prefers "$"-prefixed figures, then figures with thousands
// separators, then figures followed by a currency word. Bare numbers are
// ignored so years and document numbers are not read as money.
func extractAmount(text string) (float64, bool) {
	for _, re := range amountRes {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			continue
		}
		switch strings.ToLower(m[2]) {
		case "k":
			v *= 1_000
		case "m":
			v *= 1_000_000
		}
		return v, true
	}
	return 0, false
}

func trimNonEntity(s string) string {
	words := strings.Fields(s)
	for len(words) > 0 && nonEntityWords[strings.ToLower(words[0])] {
		words = words[1:]
	}
	return strings.Join(words, " ")
}

func departmentLabel(s string) string {
	switch l := strings.ToLower(s); l {
	case "hr", "it":
		return strings.ToUpper(l)
	default:
		return strings.ToUpper(l[:1]) + l[1:]
	}
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}

func uniqueUpper(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToUpper(s)
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func uniqueFold(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		k := strings.ToLower(s)
		if !seen[k] {
			seen[k] = true
			out = append(out, s)
		}
	}
	return out
}
