package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

// Renderer formats plans, step results and approval prompts for the
// terminal, matching the gateway's task lifecycle rather than a ReAct
// tool-call transcript.
type Renderer struct {
	glamour *glamour.TermRenderer
	width   int
}

func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 80
	}
	r, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width-4),
	)
	return &Renderer{glamour: r, width: width}
}

func (r *Renderer) RenderMarkdown(md string) string {
	if r.glamour == nil {
		return md
	}
	out, err := r.glamour.Render(md)
	if err != nil {
		return md
	}
	return strings.TrimSpace(out)
}

// RenderPlan summarizes the plan the planner produced before execution.
func (r *Renderer) RenderPlan(summary string, stepCount int) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	return fmt.Sprintf("%s\n  %s\n  %s %d\n",
		titleStyle.Render("◇ plan"),
		summary,
		labelStyle.Render("steps:"), stepCount,
	)
}

// RenderStepResult renders one executed plan step's outcome.
func (r *Renderer) RenderStepResult(sr entity.StepResult) string {
	var icon string
	switch sr.Status {
	case entity.StepSuccess:
		icon = lipgloss.NewStyle().Foreground(colorGreen).Render("✓")
	case entity.StepBlocked:
		icon = lipgloss.NewStyle().Foreground(colorYellow).Render("⊘")
	default:
		icon = lipgloss.NewStyle().Foreground(colorRed).Render("✗")
	}
	idStyle := lipgloss.NewStyle().Foreground(colorCyan)
	body := sr.Content
	if sr.Error != "" {
		body = sr.Error
	}
	return fmt.Sprintf("  %s %s %s", icon, idStyle.Render(sr.StepID), body)
}

// RenderTaskResult renders the final outcome of a handle_task call.
func (r *Renderer) RenderTaskResult(result *entity.TaskResult) string {
	var sb strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true)
	switch result.Status {
	case entity.TaskSuccess:
		statusStyle = statusStyle.Foreground(colorGreen)
	case entity.TaskBlocked, entity.TaskDenied:
		statusStyle = statusStyle.Foreground(colorRed)
	case entity.TaskAwaitingApproval:
		statusStyle = statusStyle.Foreground(colorYellow)
	default:
		statusStyle = statusStyle.Foreground(colorGray)
	}

	sb.WriteString(statusStyle.Render(fmt.Sprintf("[%s]", result.Status)))
	sb.WriteString("\n")

	if result.PlanSummary != "" {
		sb.WriteString(r.RenderPlan(result.PlanSummary, len(result.StepResults)))
	}
	for _, sr := range result.StepResults {
		sb.WriteString(r.RenderStepResult(sr))
		sb.WriteString("\n")
	}
	if result.Reason != "" {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorGray).Render("  reason: " + result.Reason))
		sb.WriteString("\n")
	}
	if result.ApprovalID != "" {
		sb.WriteString(lipgloss.NewStyle().Foreground(colorYellow).Render("  approval id: " + result.ApprovalID))
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderThinking renders a thinking indicator.
func (r *Renderer) RenderThinking(frame string) string {
	style := lipgloss.NewStyle().Foreground(colorDimCyan).Italic(true)
	return style.Render(fmt.Sprintf("  %s running task...", frame))
}
