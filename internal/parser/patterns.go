package parser

import (
	"regexp"

	"github.com/p-blackswan/tally/internal/models"
)

// greetingPatterns short-circuit small talk before any scoring.
var greetingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:hi|hello|hey|yo|howdy|hiya)\b`),
	regexp.MustCompile(`(?i)^(?:thanks|thank you|thx|ty|cheers)\b`),
	regexp.MustCompile(`(?i)^(?:ok|okay|k|sure|yes|yep|yeah|no|nope|cool|nice|great|lol)\b[\s.!]*$`),
	regexp.MustCompile(`(?i)^good\s+(?:morning|afternoon|evening|night)\b`),
}

// actionRule is one row of the action table. Rules are tried in declaration
// order and the first rule with a matching pattern wins. Capture group 1, when
// present, is the subject of the action.
type actionRule struct {
	action   models.Action
	weight   float64
	patterns []*regexp.Regexp
}

const subject = `(?:(?:i|we)(?:['’](?:m|re|ve)| am| are| have)?\s+)?`

var actionRules = []actionRule{
	{
		action: models.ActionCreate,
		weight: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^` + subject + `(?:create|created|creating|add|added|adding|start|started|starting|begin|began|beginning|working on|generate|generated|generating|processing|prepare|prepared|preparing|need to|needs to)\s+(.+)`),
		},
	},
	{
		action: models.ActionUpdate,
		weight: 0.8,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^` + subject + `(?:update|updated|updating|change|changed|changing|modify|modified|modifying)\s+(.+)`),
		},
	},
	{
		action: models.ActionComplete,
		weight: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^` + subject + `(?:complete|completed|done|finished|closed)\s+(?:with\s+)?(.+)`),
			regexp.MustCompile(`(?i)^(.+?)\s+(?:is\s+|are\s+)?(?:complete|completed|done|finished)[.!]*$`),
		},
	},
	{
		action: models.ActionBlock,
		weight: 0.85,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^` + subject + `(?:blocked|block|stuck|waiting)(?:\s+(?:on|for|by))?\s+(.+)`),
			regexp.MustCompile(`(?i)^(.+?)\s+(?:is\s+|are\s+)?(?:blocked|stuck)(?:\s+(?:on|by)\s+.+)?$`),
		},
	},
	{
		action: models.ActionHandoff,
		weight: 0.9,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^` + subject + `(?:pass|passing|hand|handing|assign|assigning|transfer|transferring|give|giving)\s+(.+?)\s+(?:over\s+)?to\s+(.+)`),
		},
	},
	{
		action: models.ActionComment,
		weight: 0.3,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:note|fyi|update|heads up|just|actually)\s*:\s*(.+)`),
		},
	},
}

const (
	defaultAction = models.ActionCreate
	defaultWeight = 0.5

	indicatorBoost = 0.1
	maxBoost       = 0.3
)

// indicatorFamilies each add indicatorBoost once when any pattern matches.
var indicatorFamilies = []struct {
	name     string
	patterns []*regexp.Regexp
}{
	{"finance", []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:invoic\w*|bill|billing|payments?|reconcil\w*|budget\w*|forecast\w*|ledger|accruals?|journal entr\w+|receipts?|vendors?|suppliers?|payroll|close the books)\b`),
	}},
	{"document-number", []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:INV|PO)-?\d+\b`),
	}},
	{"currency", []*regexp.Regexp{
		regexp.MustCompile(`\$\s?\d`),
		regexp.MustCompile(`(?i)\b\d[\d,]*(?:\.\d+)?\s?(?:k|m)?\s?(?:usd|dollars)\b`),
	}},
	{"obligation", []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:need to|needs to|must|have to|has to|should|required|please)\b`),
	}},
	{"deadline", []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(?:by|due|before|until)\s+(?:today|tonight|tomorrow|eod|eow|end of|next|this|monday|tuesday|wednesday|thursday|friday|saturday|sunday|\d)`),
		regexp.MustCompile(`(?i)\b(?:asap|deadline|eod|eow)\b`),
	}},
}

// keywordRule maps a lowercase substring to a value. Tables are scanned in
// order and the first contained keyword wins.
type keywordRule[T any] struct {
	keyword string
	value   T
}

// Matching is plain substring containment, so "undone" reads as "done".
var statusKeywords = []keywordRule[models.Status]{
	{"todo", models.StatusTodo},
	{"to do", models.StatusTodo},
	{"pending", models.StatusTodo},
	{"in progress", models.StatusInProgress},
	{"working", models.StatusInProgress},
	{"active", models.StatusInProgress},
	{"blocked", models.StatusBlocked},
	{"stuck", models.StatusBlocked},
	{"waiting", models.StatusBlocked},
	{"complete", models.StatusCompleted},
	{"completed", models.StatusCompleted},
	{"done", models.StatusCompleted},
	{"finished", models.StatusCompleted},
	{"cancelled", models.StatusCancelled},
	{"canceled", models.StatusCancelled},
}

var priorityKeywords = []keywordRule[models.Priority]{
	{"urgent", models.PriorityUrgent},
	{"critical", models.PriorityUrgent},
	{"asap", models.PriorityUrgent},
	{"high", models.PriorityHigh},
	{"important", models.PriorityHigh},
	{"medium", models.PriorityMedium},
	{"normal", models.PriorityMedium},
	{"low", models.PriorityLow},
	{"minor", models.PriorityLow},
}

// workflowRules are tried in order; the first workflow with a matching
// pattern wins.
var workflowRules = []struct {
	workflow string
	patterns []*regexp.Regexp
}{
	{models.WorkflowInvoiceGeneration, []*regexp.Regexp{
		regexp.MustCompile(`(?i)invoice|invoicing|billing|bill`),
		regexp.MustCompile(`(?i)INV-\d+`),
	}},
	{models.WorkflowPaymentReconciliation, []*regexp.Regexp{
		regexp.MustCompile(`(?i)payment|reconcil|matching|paid|receipt`),
		regexp.MustCompile(`(?i)bank|transaction`),
	}},
	{models.WorkflowMonthlyClose, []*regexp.Regexp{
		regexp.MustCompile(`(?i)month(?:ly)?\s+close|clos(?:e|ing)\s+(?:the\s+)?(?:month|books)`),
		regexp.MustCompile(`(?i)end\s+of\s+month|\beom\b`),
		regexp.MustCompile(`(?i)financial\s+close`),
	}},
	{models.WorkflowVendorOnboarding, []*regexp.Regexp{
		regexp.MustCompile(`(?i)vendor|supplier`),
		regexp.MustCompile(`(?i)onboard`),
	}},
	{models.WorkflowModelChange, []*regexp.Regexp{
		regexp.MustCompile(`(?i)model|forecast`),
		regexp.MustCompile(`(?i)change\s+control|\bversion\b|approval`),
	}},
	{models.WorkflowAnnualPlanning, []*regexp.Regexp{
		regexp.MustCompile(`(?i)annual|yearly|year-end`),
		regexp.MustCompile(`(?i)plan(?:ning)?|budget`),
	}},
}

var blockerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:blocked|block|stuck|waiting)\s+(?:on|for|by)\s+(.+)`),
	regexp.MustCompile(`(?i)(?:blocked|stuck)(?:\s+because\s+|\s+-\s+|\s*:\s+)(.+)`),
}

// Title cleanup, applied in order.
var (
	titleLeading = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^` + subject + `(?:create|created|creating|add|added|adding|start|started|starting|begin|began|beginning|complete|completed|done|finished|closed|update|updated|updating|working on|need to|needs to|generate|generated|generating|processing|prepare|prepared|preparing)\s+(?:with\s+)?`),
		regexp.MustCompile(`(?i)^` + subject + `(?:blocked|block|stuck|waiting)(?:\s+(?:on|for|by))?\s+`),
		regexp.MustCompile(`(?i)^(?:the|a|an)\s+`),
	}
	titleTrailing = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\s+(?:for|by|to|on)\s+(?:me|you|us|them)[.!]*$`),
		regexp.MustCompile(`(?i)\s+(?:(?:by|due|before)\s+)?(?:today|tomorrow|this week|next week)[.!]*$`),
		regexp.MustCompile(`(?i)\s+(?:is\s+|are\s+)?(?:complete|completed|done|finished|blocked|stuck)[.!]*$`),
	}
)

const (
	maxTitleLen      = 200
	fallbackTitleLen = 100
)
