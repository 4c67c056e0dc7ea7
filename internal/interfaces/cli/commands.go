package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SlashCommand represents a parsed slash command.
type SlashCommand struct {
	Name string
	Args []string
}

// ParseSlashCommand parses a slash command from user input.
func ParseSlashCommand(input string) *SlashCommand {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil
	}

	parts := strings.Fields(input)
	name := strings.TrimPrefix(parts[0], "/")
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return &SlashCommand{Name: name, Args: args}
}

// CommandResult is the output of executing a slash command.
type CommandResult struct {
	Output  string
	IsQuit  bool
	IsReset bool
}

// ExecuteCommand handles slash commands local to the REPL — it never
// touches the gateway itself (that only happens via handle_task).
func ExecuteCommand(cmd *SlashCommand, info BannerInfo) CommandResult {
	switch cmd.Name {
	case "help", "h":
		return CommandResult{Output: renderHelp()}
	case "exit", "quit", "q":
		return CommandResult{IsQuit: true}
	case "new", "reset":
		return CommandResult{Output: "session history cleared", IsReset: true}
	case "status", "s":
		return CommandResult{Output: renderStatus(info)}
	case "version":
		return CommandResult{Output: fmt.Sprintf("sentinelgate-cli v%s", appVersion)}
	default:
		return CommandResult{Output: fmt.Sprintf("unknown command: /%s — try /help", cmd.Name)}
	}
}

func renderHelp() string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	cmdStyle := lipgloss.NewStyle().Foreground(colorGreen)
	descStyle := lipgloss.NewStyle().Foreground(colorGray)

	cmds := []struct {
		name string
		desc string
	}{
		{"/help", "show this help"},
		{"/status", "show planner/worker/policy status"},
		{"/new", "clear local session history"},
		{"/approve <id>", "approve a pending plan"},
		{"/deny <id> [reason]", "deny a pending plan"},
		{"/version", "version info"},
		{"/exit", "quit"},
	}

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ available commands"))
	sb.WriteString("\n\n")

	for _, c := range cmds {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			cmdStyle.Render(fmt.Sprintf("%-20s", c.name)),
			descStyle.Render(c.desc),
		))
	}

	return sb.String()
}

func renderStatus(info BannerInfo) string {
	titleStyle := lipgloss.NewStyle().Foreground(colorCyan).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)

	var sb strings.Builder
	sb.WriteString(titleStyle.Render("◇ status"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("planner:"), valueStyle.Render(info.PlannerModel)))
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("worker: "), valueStyle.Render(info.WorkerModel)))
	sb.WriteString(fmt.Sprintf("  %s %s\n", labelStyle.Render("policy: "), valueStyle.Render(info.PolicyPath)))

	return sb.String()
}
