package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/CherryPod/sentinel-sub000/internal/domain/orchestrator"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
)

// ─── ANSI Helpers ───

const (
	reset    = "\033[0m"
	cyanBold = "\033[96m\033[1m"
	yellow   = "\033[93m"
	redBold  = "\033[91m\033[1m"
	dimText  = "\033[90m"
	clearLn  = "\033[2K\r"
)

// Braille spinner frames
var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// REPLConfig holds CLI runtime config.
type REPLConfig struct {
	Info       BannerInfo
	SourceKey  string
	InitPrompt string
}

// RunREPL starts the interactive REPL loop, submitting every line to
// handle_task and rendering the result. Plans awaiting human approval are
// decided via /approve and /deny, not re-submitted.
func RunREPL(orch *orchestrator.Orchestrator, approvals *service.ApprovalManager, cfg REPLConfig) error {
	w := termWidth()
	fmt.Println(RenderBanner(cfg.Info, w))

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "\001\033[1;36m\002❯\001\033[0m\002 ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("readline init: %w", err)
	}
	defer rl.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Printf("\n%sbye%s\n", dimText, reset)
		rl.Close()
		os.Exit(0)
	}()

	if cfg.InitPrompt != "" {
		submitTask(orch, cfg, cfg.InitPrompt)
	}

	for {
		input, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF {
				fmt.Printf("%sbye%s\n", dimText, reset)
				return nil
			}
			return nil
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if cmd := ParseSlashCommand(input); cmd != nil {
			if handleApprovalCommand(approvals, cmd) {
				continue
			}
			result := ExecuteCommand(cmd, cfg.Info)
			if result.IsQuit {
				fmt.Printf("%sbye%s\n", dimText, reset)
				return nil
			}
			if result.Output != "" {
				fmt.Println(result.Output)
			}
			continue
		}

		submitTask(orch, cfg, input)
	}
}

func handleApprovalCommand(approvals *service.ApprovalManager, cmd *SlashCommand) bool {
	switch cmd.Name {
	case "approve":
		if len(cmd.Args) == 0 {
			fmt.Println("usage: /approve <approval_id>")
			return true
		}
		decide(approvals, cmd.Args[0], true, "")
		return true
	case "deny":
		if len(cmd.Args) == 0 {
			fmt.Println("usage: /deny <approval_id> [reason]")
			return true
		}
		reason := strings.Join(cmd.Args[1:], " ")
		decide(approvals, cmd.Args[0], false, reason)
		return true
	}
	return false
}

func decide(approvals *service.ApprovalManager, approvalID string, granted bool, reason string) {
	accepted, err := approvals.Submit(context.Background(), approvalID, granted, reason, "cli")
	if err != nil {
		fmt.Printf("%s✗ %s%s\n", redBold, err, reset)
		return
	}
	if !accepted {
		fmt.Printf("%s✗ approval already decided or expired%s\n", redBold, reset)
		return
	}
	fmt.Println("decision recorded")
}

func submitTask(orch *orchestrator.Orchestrator, cfg REPLConfig, text string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT)
		select {
		case <-ch:
			cancel()
			fmt.Printf("\n%s⏹ interrupted%s\n", yellow, reset)
		case <-ctx.Done():
		}
	}()

	spinner := newSpinner()
	spinner.Update("running task...")

	result, err := orch.HandleTask(ctx, orchestrator.Request{
		UserText:     text,
		SourceKey:    cfg.SourceKey,
		ApprovalMode: orchestrator.ApprovalAuto,
	})
	spinner.Stop()

	if err != nil {
		fmt.Printf("%s✗ %s%s\n", redBold, err, reset)
		return
	}

	renderer := NewRenderer(termWidth())
	fmt.Println(renderer.RenderTaskResult(result))
}

// ─── Braille Spinner ───

type asyncSpinner struct {
	mu      sync.Mutex
	running bool
	msg     string
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func newSpinner() *asyncSpinner {
	return &asyncSpinner{}
}

func (s *asyncSpinner) Update(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msg = msg
	if !s.running {
		s.running = true
		s.stopCh = make(chan struct{})
		s.doneCh = make(chan struct{})
		go s.run()
	}
}

func (s *asyncSpinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	doneCh := s.doneCh
	s.mu.Unlock()

	<-doneCh
	fmt.Print(clearLn)
}

func (s *asyncSpinner) run() {
	defer close(s.doneCh)

	frame := 0
	ticker := time.NewTicker(80 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			msg := s.msg
			s.mu.Unlock()

			f := spinnerFrames[frame%len(spinnerFrames)]
			fmt.Printf("%s%s%s %s%s%s", clearLn, cyanBold, f, dimText, msg, reset)
			frame++
		}
	}
}

// ─── Helpers ───

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
