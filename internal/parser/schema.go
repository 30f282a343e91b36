package parser

import (
	"encoding/json"
	"strings"

	"github.com/p-blackswan/tally/internal/llm"
)

const extractionToolName = "extract_task_info"

// extractionTool builds the tool schema. workflowTypes is the vocabulary
// offered for workflowType; "general" is always allowed.
func extractionTool(workflowTypes []string) llm.ToolSchema {
	strs := func(desc string) map[string]any {
		return map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": desc}
	}
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}
	enum := func(desc string, values ...string) map[string]any {
		return map[string]any{"type": "string", "enum": values, "description": desc}
	}

	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"isTask": map[string]any{
				"type":        "boolean",
				"description": "Whether this requires tracking (new task, update, or comment on existing work). False for general questions, observations or casual conversation.",
			},
			"confidence": map[string]any{
				"type":        "number",
				"minimum":     0,
				"maximum":     1,
				"description": "0.0 to 1.0. Low (0.1-0.3) for vague messages, medium (0.4-0.6) for possible tasks, high (0.7-1.0) for clear actionable work.",
			},
			"messageType": enum("task=new work to create or complete, comment=note about existing task, question=asking for help, observation=noting an issue, conversation=casual chat",
				"task", "comment", "question", "observation", "conversation"),
			"action": enum("create=new task, update=modify existing, complete=mark done, block=mark blocked, handoff=reassign, comment=add note, rename=change title, retag=change tags",
				"create", "update", "complete", "block", "handoff", "comment", "rename", "retag"),
			"taskTitle":     str("Clear, concise title for new tasks. Omit for comments or questions about existing tasks."),
			"taskReference": str(`Keywords from the referenced task for comments, questions and updates (e.g. "Humana invoice", "October close").`),
			"commentText":   str("For comments, questions and observations: the text to attach to the related task."),
			"newTaskTitle":  str("For rename: the new title."),
			"newTags":       strs("For retag: the new tags."),
			"assigneeNames": strs("Names of people assigned or mentioned."),
			"deadline":      str(`Natural-language deadline if mentioned (e.g. "tomorrow", "Friday", "October 31").`),
			"status":        enum("Task status", "todo", "in_progress", "blocked", "completed", "cancelled"),
			"priority":      enum("Priority level", "low", "medium", "high", "urgent"),
			"workflowType":  str("One of: " + strings.Join(withGeneral(workflowTypes), ", ")),
			"blockedBy":     str("What is blocking the task, if blocked."),
			"batchItems":    strs(`Separate items when several are mentioned (e.g. "invoices for Acme and TechCorp").`),
			"metadata": map[string]any{
				"type":        "object",
				"description": "Finance metadata: invoiceNumber, customerName, amount, paid, month, year, version, modelName, vendorName, category, department, dueDate.",
			},
			"reasoning": str("Brief explanation of the classification."),
		},
		"required": []string{"isTask", "confidence", "messageType", "reasoning"},
	}

	raw, _ := json.Marshal(schema)
	return llm.ToolSchema{
		Name:        extractionToolName,
		Description: "Analyzes a message in a finance team chat to determine intent and extract task information, telling questions, comments and observations apart from actual work items.",
		InputSchema: raw,
	}
}

func withGeneral(types []string) []string {
	out := make([]string, 0, len(types)+1)
	hasGeneral := false
	for _, t := range types {
		if t == "general" {
			hasGeneral = true
		}
		out = append(out, t)
	}
	if !hasGeneral {
		out = append(out, "general")
	}
	return out
}
