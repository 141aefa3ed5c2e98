package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gobby-dev/gobby/internal/types"
)

var (
	idStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("13"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	truncateStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)

	statusStyles = map[types.Status]lipgloss.Style{
		types.StatusOpen:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		types.StatusInProgress: lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		types.StatusClosed:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}

	priorityStyles = [5]lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true), // P0
		lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("8")), // P4
	}
)

// printJSON emits v as indented JSON, the --json contract for every
// command.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// taskLine renders one task as a single list row.
func taskLine(t *types.Task) string {
	var b strings.Builder
	b.WriteString(idStyle.Render(t.ID))
	b.WriteString(" ")
	b.WriteString(priorityStyles[t.Priority].Render(fmt.Sprintf("[P%d]", t.Priority)))
	b.WriteString(" ")
	b.WriteString(statusStyles[t.Status].Render(string(t.Status)))
	b.WriteString(" ")
	b.WriteString(titleStyle.Render(t.Title))
	if len(t.Labels) > 0 {
		b.WriteString(" ")
		b.WriteString(labelStyle.Render("(" + strings.Join(t.Labels, ", ") + ")"))
	}
	if t.Assignee != "" {
		b.WriteString(" ")
		b.WriteString(dimStyle.Render("@" + t.Assignee))
	}
	return b.String()
}

// printTask renders the full detail view of one task.
func printTask(w io.Writer, t *types.Task, blockers, blocking []*types.Task) {
	fmt.Fprintln(w, taskLine(t))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("  project: %s  type: %s  created: %s  updated: %s",
		t.ProjectID, t.Type,
		t.CreatedAt.Format("2006-01-02 15:04"),
		t.UpdatedAt.Format("2006-01-02 15:04"))))
	if t.ParentTaskID != "" {
		fmt.Fprintln(w, dimStyle.Render("  parent: ")+idStyle.Render(t.ParentTaskID))
	}
	if t.DiscoveredInSessionID != "" {
		fmt.Fprintln(w, dimStyle.Render("  discovered in session: "+t.DiscoveredInSessionID))
	}
	if t.ClosedReason != "" {
		fmt.Fprintln(w, dimStyle.Render("  closed: ")+t.ClosedReason)
	}
	if t.Description != "" {
		fmt.Fprintln(w)
		for _, line := range strings.Split(t.Description, "\n") {
			fmt.Fprintln(w, "  "+line)
		}
	}
	if len(blockers) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Blocked by:"))
		for _, b := range blockers {
			fmt.Fprintln(w, "  "+taskLine(b))
		}
	}
	if len(blocking) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("Blocking:"))
		for _, b := range blocking {
			fmt.Fprintln(w, "  "+taskLine(b))
		}
	}
}

// printTree renders dependency tree nodes with box-drawing connectors.
// Nodes arrive in walk order with depth attached, so rendering is a
// single pass tracking which ancestors still have siblings below.
func printTree(w io.Writer, nodes []*types.TreeNode) {
	for i, n := range nodes {
		var prefix strings.Builder
		for d := 1; d < n.Depth; d++ {
			if hasSiblingBelow(nodes, i, d) {
				prefix.WriteString("│   ")
			} else {
				prefix.WriteString("    ")
			}
		}
		if n.Depth > 0 {
			if hasSiblingBelow(nodes, i, n.Depth) {
				prefix.WriteString("├── ")
			} else {
				prefix.WriteString("└── ")
			}
		}
		line := prefix.String() + taskLine(&n.Task)
		if n.Truncated {
			line += " " + truncateStyle.Render("…")
		}
		fmt.Fprintln(w, line)
	}
}

// hasSiblingBelow reports whether another node at the given depth appears
// after index i before the walk pops above that depth.
func hasSiblingBelow(nodes []*types.TreeNode, i, depth int) bool {
	for j := i + 1; j < len(nodes); j++ {
		if nodes[j].Depth < depth {
			return false
		}
		if nodes[j].Depth == depth {
			return true
		}
	}
	return false
}
