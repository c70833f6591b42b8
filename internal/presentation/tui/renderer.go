package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
)

// NewRenderer returns a function that renders markdown using glamour,
// auto-detecting a light or dark terminal background.
func NewRenderer() func(string) (string, error) {
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
	)

	return func(markdown string) (string, error) {
		return r.Render(markdown)
	}
}

var statusMarks = map[domain.ItemStatus]string{
	domain.ItemPending:    "[ ]",
	domain.ItemInProgress: "[~]",
	domain.ItemWaiting:    "[?]",
	domain.ItemCompleted:  "[x]",
	domain.ItemFailed:     "[!]",
	domain.ItemSkipped:    "[-]",
}

// TodoMarkdown formats a todo list as markdown for terminal rendering.
func TodoMarkdown(goal string, todo *domain.TodoList) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", goal)
	if todo == nil || len(todo.Items) == 0 {
		b.WriteString("_no plan yet_\n")
		return b.String()
	}
	for _, item := range todo.Items {
		mark, ok := statusMarks[item.Status]
		if !ok {
			mark = "[ ]"
		}
		fmt.Fprintf(&b, "- %s %s", mark, item.Content)
		if item.SkipReason != "" {
			fmt.Fprintf(&b, " _(skipped: %s)_", item.SkipReason)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// CheckpointMarkdown formats an open checkpoint as markdown.
func CheckpointMarkdown(cp *domain.Checkpoint) string {
	if cp == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "### 等待确认\n\n%s\n", cp.Reason)
	if len(cp.Options) > 0 {
		b.WriteString("\n")
		for i, opt := range cp.Options {
			fmt.Fprintf(&b, "%d. %s\n", i+1, opt.Label)
		}
	}
	return b.String()
}
