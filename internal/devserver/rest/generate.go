package rest

import (
	"strings"
	"unicode"

	"github.com/steveyegge/projectsync/internal/model"
)

// maxGeneratedTitle bounds a suggestion's title; longer text moves to the
// description.
const maxGeneratedTitle = 80

// GenerateTasks proposes one task per bullet or line of description. A
// single paragraph is split into sentences instead. The result is
// deterministic so that clients can be tested against it.
func GenerateTasks(description string) []model.TaskInput {
	var items []string
	for _, line := range strings.Split(description, "\n") {
		if item := trimBullet(line); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 1 {
		items = splitSentences(items[0])
	}

	out := make([]model.TaskInput, 0, len(items))
	for _, item := range items {
		in := model.TaskInput{
			Title:    item,
			Status:   model.StatusTodo,
			Priority: guessPriority(item),
		}
		if len(item) > maxGeneratedTitle {
			cut := strings.LastIndexByte(item[:maxGeneratedTitle], ' ')
			if cut <= 0 {
				cut = maxGeneratedTitle
			}
			in.Title = strings.TrimSpace(item[:cut]) + "..."
			in.Description = item
		}
		out = append(out, in)
	}
	return out
}

func trimBullet(line string) string {
	line = strings.TrimSpace(line)
	line = strings.TrimLeft(line, "-*•")
	// numbered lists: "1." or "2)"
	if i := strings.IndexFunc(line, func(r rune) bool { return !unicode.IsDigit(r) }); i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		line = line[i+1:]
	}
	return strings.TrimSpace(line)
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?', ';':
			if i+1 == len(text) || text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); len(s) > 1 {
					out = append(out, strings.TrimRight(s, ".;"))
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

func guessPriority(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "urgent"), strings.Contains(lower, "asap"), strings.Contains(lower, "critical"):
		return model.PriorityUrgent
	case strings.Contains(lower, "important"), strings.Contains(lower, "must"):
		return model.PriorityHigh
	case strings.Contains(lower, "maybe"), strings.Contains(lower, "nice to have"), strings.Contains(lower, "later"):
		return model.PriorityLow
	}
	return model.PriorityMedium
}
