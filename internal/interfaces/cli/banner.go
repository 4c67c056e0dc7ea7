package cli

import (
	"fmt"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
)

const appVersion = "0.2.0"

// brand colors
var (
	colorCyan    = lipgloss.Color("#00D7FF")
	colorDimCyan = lipgloss.Color("#00AFAF")
	colorGray    = lipgloss.Color("#6C6C6C")
	colorWhite   = lipgloss.Color("#FFFFFF")
	colorDim     = lipgloss.Color("#4E4E4E")
	colorGreen   = lipgloss.Color("#00FF87")
	colorYellow  = lipgloss.Color("#FFD75F")
	colorRed     = lipgloss.Color("#FF5F5F")
)

// Logo lines — clean block font, no box-drawing corners
var logoLines = []string{
	" ███████ ███████ ███    ██ ████████ ██ ███    ██ ███████ ██      ",
	" ██      ██      ████   ██    ██    ██ ████   ██ ██      ██      ",
	" ███████ █████   ██ ██  ██    ██    ██ ██ ██  ██ █████   ██      ",
	"      ██ ██      ██  ██ ██    ██    ██ ██  ██ ██ ██      ██      ",
	" ███████ ███████ ██   ████    ██    ██ ██   ████ ███████ ███████ ",
}

// Gradient colors top→bottom (cyan → blue → violet)
var logoGradient = []lipgloss.Color{
	lipgloss.Color("#00FFFF"),
	lipgloss.Color("#00CFFF"),
	lipgloss.Color("#009FFF"),
	lipgloss.Color("#006FFF"),
	lipgloss.Color("#5F5FFF"),
}

// BannerInfo carries dynamic stats shown in the welcome banner.
type BannerInfo struct {
	PlannerModel string
	WorkerModel  string
	PolicyPath   string
	Workspace    string
}

// RenderBanner returns the styled welcome banner with gradient logo.
func RenderBanner(info BannerInfo, width int) string {
	labelStyle := lipgloss.NewStyle().Foreground(colorGray)
	valueStyle := lipgloss.NewStyle().Foreground(colorWhite)
	tipStyle := lipgloss.NewStyle().Foreground(colorDim)
	versionStyle := lipgloss.NewStyle().Foreground(colorDimCyan)

	var logo string
	if width >= 70 {
		for i, line := range logoLines {
			c := logoGradient[i%len(logoGradient)]
			logo += lipgloss.NewStyle().Foreground(c).Bold(true).Render(line) + "\n"
		}
	} else {
		logo = lipgloss.NewStyle().Foreground(colorCyan).Bold(true).Render(" ◇  S E N T I N E L G A T E") + "\n"
	}

	ver := versionStyle.Render(fmt.Sprintf("  v%s", appVersion))

	plannerLine := fmt.Sprintf("  %s %s", labelStyle.Render("Planner "), valueStyle.Render(info.PlannerModel))
	workerLine := fmt.Sprintf("  %s %s", labelStyle.Render("Worker  "), valueStyle.Render(info.WorkerModel))
	policyLine := fmt.Sprintf("  %s %s", labelStyle.Render("Policy  "), valueStyle.Render(info.PolicyPath))

	ws := info.Workspace
	if ws == "" {
		ws, _ = os.Getwd()
	}
	wsLine := fmt.Sprintf("  %s %s", labelStyle.Render("Path    "), valueStyle.Render(ws))
	envLine := fmt.Sprintf("  %s %s/%s", labelStyle.Render("Env     "), labelStyle.Render(runtime.GOOS), labelStyle.Render(runtime.GOARCH))

	tips := tipStyle.Render("  Enter to submit · /help for commands · Ctrl+C to quit")

	return fmt.Sprintf("\n%s%s\n\n%s\n%s\n%s\n%s\n%s\n\n%s\n",
		logo, ver,
		plannerLine, workerLine, policyLine, wsLine, envLine,
		tips,
	)
}
