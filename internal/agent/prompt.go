package agent

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultInstructions is the system prompt used when no instructions file is configured
const DefaultInstructions = `You summarize business meetings, with a focus on sales calls.

From the transcript you receive, produce:
1. A short executive summary.
2. The key points that were discussed.
3. Every decision that was made, with its rationale and stakeholders when stated.
4. Action items, with the owner, due date and priority (high, medium or low) whenever the transcript gives them.
5. Risks, blockers and concerns that were raised.
6. Next steps and required follow-ups.
7. The names of attendees who are mentioned.

Keep the wording brief and concrete. Put actionable items and risks first.
The result feeds follow-up emails, CRM updates, team notifications and executive reports.

Reply with one JSON object and nothing else, shaped like this:
{
  "title": "meeting title",
  "summary": "executive summary",
  "key_points": ["..."],
  "action_items": [{"description": "...", "owner": "...", "due_date": "...", "priority": "..."}],
  "decisions": [{"decision": "...", "rationale": "...", "stakeholders": ["..."]}],
  "risks": ["..."],
  "next_steps": ["..."],
  "attendees_mentioned": ["..."],
  "metadata": {}
}
`

// buildUserPrompt renders the meeting into the user message.
// Additional context keys are sorted so the prompt is stable.
func buildUserPrompt(req Request) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Meeting: %s\n", req.Title)
	fmt.Fprintf(&b, "Meeting ID: %s\n", req.MeetingID)

	if len(req.AdditionalContext) > 0 {
		keys := make([]string, 0, len(req.AdditionalContext))
		for k := range req.AdditionalContext {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteString("\n\nAdditional Context:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %v\n", k, req.AdditionalContext[k])
		}
	}

	b.WriteString("\n\nTranscript:\n")
	b.WriteString(req.Transcript)
	b.WriteString("\n\nPlease provide a comprehensive summary of this meeting.")

	return b.String()
}
