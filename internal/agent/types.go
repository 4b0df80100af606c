package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Request carries one meeting to summarize
type Request struct {
	TaskID            string         `json:"task_id"`
	MeetingID         string         `json:"meeting_id"`
	Title             string         `json:"title"`
	Transcript        string         `json:"transcript"`
	AdditionalContext map[string]any `json:"additional_context,omitempty"`
}

// Validate checks the fields the prompt cannot do without
func (r Request) Validate() error {
	var missing []string
	if strings.TrimSpace(r.MeetingID) == "" {
		missing = append(missing, "meeting_id")
	}
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Transcript) == "" {
		missing = append(missing, "transcript")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrInvalidRequest, strings.Join(missing, ", "))
	}
	return nil
}

// ActionItem is a follow-up task extracted from the meeting.
// Optional fields serialize as null when unknown.
type ActionItem struct {
	Description string  `json:"description"`
	Owner       *string `json:"owner"`
	DueDate     *string `json:"due_date"`
	Priority    *string `json:"priority"`
}

// UnmarshalJSON accepts either a bare string or an object
func (a *ActionItem) UnmarshalJSON(data []byte) error {
	if s, ok := asString(data); ok {
		*a = ActionItem{Description: s}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*a = ActionItem{Description: compact(data)}
		return nil
	}

	*a = ActionItem{
		Description: text(raw["description"]),
		Owner:       optionalText(raw["owner"]),
		DueDate:     optionalText(raw["due_date"]),
		Priority:    optionalText(raw["priority"]),
	}
	if a.Description == "" {
		a.Description = text(raw["task"])
	}
	return nil
}

// Decision is a decision recorded during the meeting
type Decision struct {
	Decision     string     `json:"decision"`
	Rationale    *string    `json:"rationale"`
	Stakeholders StringList `json:"stakeholders"`
}

// UnmarshalJSON accepts either a bare string or an object
func (d *Decision) UnmarshalJSON(data []byte) error {
	if s, ok := asString(data); ok {
		*d = Decision{Decision: s, Stakeholders: StringList{}}
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		*d = Decision{Decision: compact(data), Stakeholders: StringList{}}
		return nil
	}

	*d = Decision{
		Decision:     text(raw["decision"]),
		Rationale:    optionalText(raw["rationale"]),
		Stakeholders: StringList{},
	}
	if s, ok := raw["stakeholders"]; ok {
		if err := json.Unmarshal(s, &d.Stakeholders); err != nil {
			return err
		}
	}
	return nil
}

// StringList decodes a JSON array of anything into strings.
// A single string becomes a one-element list and null becomes empty.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*l = StringList{}
		return nil
	}
	if s, ok := asString(trimmed); ok {
		*l = StringList{s}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		*l = StringList{compact(trimmed)}
		return nil
	}

	out := make(StringList, 0, len(items))
	for _, item := range items {
		if s := text(item); s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// MeetingSummary is the structured result produced by the agent
type MeetingSummary struct {
	Title              string         `json:"title"`
	Summary            string         `json:"summary"`
	KeyPoints          StringList     `json:"key_points"`
	ActionItems        []ActionItem   `json:"action_items"`
	Decisions          []Decision     `json:"decisions"`
	Risks              StringList     `json:"risks"`
	NextSteps          StringList     `json:"next_steps"`
	AttendeesMentioned StringList     `json:"attendees_mentioned"`
	Metadata           map[string]any `json:"metadata"`
}

// UnmarshalJSON decodes model output field by field. Text fields accept any
// JSON value, and list fields accept a single element in place of an array.
func (s *MeetingSummary) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := MeetingSummary{
		Title:   text(raw["title"]),
		Summary: text(raw["summary"]),
	}

	lists := map[string]*StringList{
		"key_points":          &out.KeyPoints,
		"risks":               &out.Risks,
		"next_steps":          &out.NextSteps,
		"attendees_mentioned": &out.AttendeesMentioned,
	}
	for key, target := range lists {
		if value, ok := raw[key]; ok {
			if err := target.UnmarshalJSON(value); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}

	var err error
	if out.ActionItems, err = decodeList[ActionItem](raw["action_items"]); err != nil {
		return fmt.Errorf("action_items: %w", err)
	}
	if out.Decisions, err = decodeList[Decision](raw["decisions"]); err != nil {
		return fmt.Errorf("decisions: %w", err)
	}

	// Non-object metadata is dropped; the agent fills in its own keys afterwards.
	if value, ok := raw["metadata"]; ok {
		_ = json.Unmarshal(value, &out.Metadata)
	}

	*s = out
	return nil
}

// decodeList decodes an array of T, wrapping a lone value into a one-element slice
func decodeList[T any](data json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var item T
	if err := json.Unmarshal(trimmed, &item); err != nil {
		return nil, err
	}
	return []T{item}, nil
}

// normalize replaces nil collections so they serialize as [] and {}
func (s *MeetingSummary) normalize() {
	if s.KeyPoints == nil {
		s.KeyPoints = StringList{}
	}
	if s.ActionItems == nil {
		s.ActionItems = []ActionItem{}
	}
	if s.Decisions == nil {
		s.Decisions = []Decision{}
	}
	for i := range s.Decisions {
		if s.Decisions[i].Stakeholders == nil {
			s.Decisions[i].Stakeholders = StringList{}
		}
	}
	if s.Risks == nil {
		s.Risks = StringList{}
	}
	if s.NextSteps == nil {
		s.NextSteps = StringList{}
	}
	if s.AttendeesMentioned == nil {
		s.AttendeesMentioned = StringList{}
	}
	if s.Metadata == nil {
		s.Metadata = map[string]any{}
	}
}

// parseSummary decodes model output leniently. A missing title falls back
// to fallbackTitle.
func parseSummary(content, fallbackTitle string) (*MeetingSummary, error) {
	content = stripCodeFence(content)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	var summary MeetingSummary
	if err := json.Unmarshal([]byte(content), &summary); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}
	if _, ok := raw["title"]; !ok || strings.TrimSpace(summary.Title) == "" {
		summary.Title = fallbackTitle
	}

	summary.normalize()
	return &summary, nil
}

// stripCodeFence removes a surrounding ```json fence some models add
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "```"))
}

func asString(data []byte) (string, bool) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

// text renders any JSON value as a string; null and absent become ""
func text(data json.RawMessage) string {
	if len(data) == 0 {
		return ""
	}
	if s, ok := asString(data); ok {
		return strings.TrimSpace(s)
	}
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return ""
	}
	return compact(data)
}

func optionalText(data json.RawMessage) *string {
	s := text(data)
	if s == "" {
		return nil
	}
	return &s
}

func compact(data []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return strings.TrimSpace(string(data))
	}
	return buf.String()
}
