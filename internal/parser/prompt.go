package parser

import (
	"fmt"
	"strings"

	"github.com/p-blackswan/tally/internal/models"
)

const systemPrompt = "You classify messages in a finance team's task tracker chat. Understand intent and nuance, and be strict: only clear, actionable work with enough detail gets high confidence."

const guidance = `Guidance:

1. Message types:
   - task: clear actionable work ("I'm starting the Humana invoice", "Generate TechCorp invoice")
   - comment: remark about existing work ("the invoice has some issues", "this looks good")
   - question: asking for help ("how can I not do this?", "what's the amount?")
   - observation: noting a problem without a clear action ("will have some issue")
   - conversation: casual chat ("hey", "thanks", "good morning")
   Only comment, question and observation are linked to existing tasks. Tasks create or update work.

2. Vague messages get LOW confidence (0.1-0.3): "combine the invoice with october", "the invoice".

3. Observation vs task: "invoice will have some issue" is an observation (0.3); "fix the invoice issue" is a task (0.9).

4. For comments and questions about existing work, put keywords of the task in taskReference and the remark itself in commentText.

5. Clear tasks (0.8-1.0): "I am starting Humana Invoice October 2025", "Generated invoice for TechCorp $25k", "Blocked on payment from Acme".

6. Rename and retag:
   - "rename the Humana invoice to Humana Q4 Invoice" -> task/rename, taskReference "Humana invoice", newTaskTitle "Humana Q4 Invoice"
   - "tag the TechCorp payment as urgent and high-value" -> task/retag, taskReference "TechCorp payment", newTags ["urgent", "high-value"]

Examples:
- "hey how are you" -> conversation, 0.05
- "I am starting Humana Invoice October 2025" -> task/create, 0.95
- "combine the invoice with october" -> observation, 0.2
- "how can I not do this?" -> question, 0.5, taskReference from context
- "the TechCorp invoice looks wrong" -> comment, 0.7, taskReference "TechCorp invoice"
- "Waiting on Acme payment" -> task/block, 0.9`

// buildInstruction renders the user turn for one message.
func buildInstruction(req Request, workflowNames []string) string {
	var b strings.Builder

	names := make([]string, 0, len(req.Users))
	for _, u := range req.Users {
		names = append(names, u.Name)
	}

	b.WriteString("Context:\n")
	fmt.Fprintf(&b, "- Team members: %s\n", strings.Join(names, ", "))
	fmt.Fprintf(&b, "- Finance workflows: %s\n", strings.Join(workflowNames, ", "))

	if len(req.Conversation) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, line := range req.Conversation {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	if len(req.OpenTasks) > 0 {
		b.WriteString("\nRecent active tasks:\n")
		for _, t := range req.OpenTasks {
			fmt.Fprintf(&b, "- %q (%s)\n", t.Title, t.Status)
		}
	}

	fmt.Fprintf(&b, "\nAnalyze this message:\n%q\n\n", req.Text)
	b.WriteString(guidance)
	return b.String()
}

// ConversationLine formats a message the way the instruction expects it.
func ConversationLine(m models.Message) string {
	return m.UserName + ": " + m.Content
}
