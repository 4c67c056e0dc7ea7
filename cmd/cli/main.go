package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/application"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/config"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/logger"
	"github.com/CherryPod/sentinel-sub000/internal/interfaces/cli"
)

const (
	cliVersion = "0.2.0"
	cliName    = "sentinelgate"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName + " [message]",
		Short: "sentinelgate — defence-in-depth LLM orchestration gateway",
		Long:  "sentinelgate CLI — submit tasks to the gateway's orchestrator and review/approve plans interactively",
		Args:  cobra.ArbitraryArgs,
		RunE:  runInteractive,
	}

	rootCmd.Flags().StringP("source", "s", "cli", "source key attached to submitted tasks")
	rootCmd.Flags().StringP("workspace", "w", "", "workspace directory shown in the banner")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "start the full gateway service (HTTP + websocket)",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "diagnose environment and configuration",
		RunE:  runDoctor,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ─── CLI Interactive Mode (default) ───

func runInteractive(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{
		Level:      "error",
		Format:     "console",
		OutputPath: "/dev/null",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	workspace, _ := os.Getwd()
	if w, _ := cmd.Flags().GetString("workspace"); w != "" {
		workspace = w
	}
	sourceKey, _ := cmd.Flags().GetString("source")

	fmt.Print("\033[90m⏳ initializing...\033[0m")
	app, err := application.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("\ninitialization failed: %w", err)
	}
	fmt.Print("\r\033[2K")

	initPrompt := ""
	if len(args) > 0 {
		initPrompt = strings.Join(args, " ")
	}

	replCfg := cli.REPLConfig{
		Info: cli.BannerInfo{
			PlannerModel: cfg.PlannerModel,
			WorkerModel:  cfg.WorkerModel,
			PolicyPath:   cfg.Policy.DocumentPath,
			Workspace:    workspace,
		},
		SourceKey:  sourceKey,
		InitPrompt: initPrompt,
	}

	return cli.RunREPL(app.Orchestrator(), app.Approvals(), replCfg)
}

// ─── Gateway Server Mode ───

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logger.NewLogger(logger.Config{
		Level:      "info",
		Format:     "json",
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("starting sentinel gateway", zap.String("version", cliVersion))

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("failed to start application", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	log.Info("application stopped successfully")
	return nil
}

// ─── Doctor ───

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("◇ sentinelgate doctor v%s\n\n", cliVersion)

	checks := []struct {
		name  string
		check func() (string, bool)
	}{
		{"config file", checkConfig},
		{"policy document", checkPolicy},
		{"LLM providers", checkProviders},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.check()
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("all checks passed")
	} else {
		fmt.Println("issues found, see marks above")
	}
	return nil
}

func checkConfig() (string, bool) {
	path := os.Getenv("HOME") + "/.sentinelgate/config.yaml"
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	return "not found: ~/.sentinelgate/config.yaml", false
}

func checkPolicy() (string, bool) {
	cfg, err := config.Load()
	if err != nil {
		return "config failed to load", false
	}
	if cfg.Policy.DocumentPath == "" {
		return "no policy.document_path configured", false
	}
	if _, err := os.Stat(cfg.Policy.DocumentPath); err != nil {
		return cfg.Policy.DocumentPath + " not found", false
	}
	return cfg.Policy.DocumentPath, true
}

func checkProviders() (string, bool) {
	cfg, err := config.Load()
	if err != nil {
		return "config failed to load", false
	}
	if len(cfg.Providers) == 0 {
		return "no providers configured", false
	}
	return fmt.Sprintf("%d configured", len(cfg.Providers)), true
}
