// Package dispatch routes a research query to a tool and assembles the prompt
// for it from conversation memory, saved resources and recent history. Running the tool is left to the
// caller.
package dispatch

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/paperclip/paperclip/internal/common"
	"github.com/paperclip/paperclip/internal/server/models"
)

var ErrUnknownTool = errors.New("unknown tool")

// Plan is the routing decision for one query.
type Plan struct {
	Tool    Tool   `json:"tool"`
	Query   string `json:"query"`
	Context string `json:"context"`
	Prompt  string `json:"prompt"`
}

// Dispatcher is stateless apart from its limits and safe for concurrent use.
type Dispatcher struct {
	historyLimit    int
	maxContextChars int
}

func New(historyLimit, maxContextChars int) *Dispatcher {
	return &Dispatcher{historyLimit: historyLimit, maxContextChars: maxContextChars}
}

type planOptions struct {
	tool      string
	memory    []*models.MemoryItem
	resources []*models.Resource
}

type PlanOption func(*planOptions)

// WithTool forces the named tool instead of keyword routing.
func WithTool(name string) PlanOption {
	return func(o *planOptions) {
		o.tool = name
	}
}

// WithMemory adds the conversation's key facts to the prompt.
func WithMemory(items []*models.MemoryItem) PlanOption {
	return func(o *planOptions) {
		o.memory = items
	}
}

// WithResources adds the conversation's saved resources to the prompt.
func WithResources(resources []*models.Resource) PlanOption {
	return func(o *planOptions) {
		o.resources = resources
	}
}

// Select picks the tool with the most keyword hits in query. Single-word
// keywords must match a whole word, phrases match anywhere. Ties go to the
// earlier tool in the catalog and no hits at all means general.
func Select(query string) Tool {
	tokens := tokenize(query)
	words := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		words[t] = struct{}{}
	}
	normalized := " " + strings.Join(tokens, " ") + " "

	best, bestScore := catalog[len(catalog)-1], 0
	for _, tool := range catalog {
		score := 0
		for _, kw := range tool.keywords {
			if strings.Contains(kw, " ") {
				if strings.Contains(normalized, " "+kw+" ") {
					score++
				}
				continue
			}
			if _, ok := words[kw]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = tool, score
		}
	}
	return best
}

// Plan routes query and builds its prompt. history must be in chronological
// order; only the newest historyLimit messages are considered, blank ones
// among them are skipped and the oldest lines are dropped until the context
// fits maxContextChars. Memory and resource blocks, when given, precede the
// history block; Plan.Context holds the history alone.
func (d *Dispatcher) Plan(query string, history []*models.Message, opts ...PlanOption) (*Plan, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, common.ErrEmptyQuery
	}

	var o planOptions
	for _, opt := range opts {
		opt(&o)
	}

	tool := Select(query)
	if o.tool != "" {
		t, ok := Lookup(o.tool)
		if !ok {
			return nil, ErrUnknownTool
		}
		tool = t
	}

	context := d.buildContext(history)

	var b strings.Builder
	b.WriteString(tool.SystemPrompt)
	b.WriteString("\n\n")
	for _, block := range []struct{ header, body string }{
		{"Conversation memory (key facts):\n", memoryBlock(o.memory)},
		{"Resources saved to this conversation:\n", resourceBlock(o.resources)},
		{"Recent chat history:\n", context},
	} {
		if block.body == "" {
			continue
		}
		b.WriteString(block.header)
		b.WriteString(block.body)
		b.WriteString("\n\n")
	}
	b.WriteString("User: ")
	b.WriteString(query)

	return &Plan{Tool: tool, Query: query, Context: context, Prompt: b.String()}, nil
}

func (d *Dispatcher) buildContext(history []*models.Message) string {
	if d.historyLimit <= 0 || len(history) == 0 {
		return ""
	}
	if len(history) > d.historyLimit {
		history = history[len(history)-d.historyLimit:]
	}

	lines := make([]string, 0, len(history))
	for _, m := range history {
		content := strings.TrimSpace(m.Content)
		if content == "" {
			continue
		}
		lines = append(lines, roleLabel(m.Role)+": "+content)
	}

	// Total counts the newline between lines.
	total := 0
	for _, l := range lines {
		total += utf8.RuneCountInString(l) + 1
	}
	total--
	for len(lines) > 0 && total > d.maxContextChars {
		total -= utf8.RuneCountInString(lines[0]) + 1
		lines = lines[1:]
	}
	return strings.Join(lines, "\n")
}

func memoryBlock(items []*models.MemoryItem) string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		key, value := strings.TrimSpace(it.Key), strings.TrimSpace(it.Value)
		if key == "" || value == "" {
			continue
		}
		lines = append(lines, "- "+key+": "+value)
	}
	return strings.Join(lines, "\n")
}

func resourceBlock(resources []*models.Resource) string {
	lines := make([]string, 0, len(resources))
	for _, r := range resources {
		content := strings.TrimSpace(r.Content)
		if content == "" {
			continue
		}
		lines = append(lines, "["+strings.TrimSpace(r.Title)+"]: "+content)
	}
	return strings.Join(lines, "\n")
}

func roleLabel(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case common.RoleUser:
		return "User"
	case common.RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
