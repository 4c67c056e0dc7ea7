// Package sidecar implements orchestrator.ToolExecutor against the
// process-level sandbox, gating every call through the policy engine before
// it reaches a real process. Tool names are the fixed set the original
// Python sidecar (tools/sidecar.py) exposed over its Unix-socket protocol —
// read_file, write_file, run_command — re-dispatched here as direct in-
// process calls onto sandbox.ProcessSandbox instead of a second process
// hop, since the Go binary already runs with the isolation the sidecar
// process existed to provide.
package sidecar

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/policy"
	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/sandbox"
	appErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
)

// PolicySource returns the currently active compiled policy engine. Satisfied
// by *policyfile.Loader — kept as an interface here so the executor always
// reads the hot-reloaded engine rather than a snapshot taken at construction.
type PolicySource interface {
	Engine() *policy.Engine
}

// Executor runs the fixed tool set (read_file, write_file, run_command)
// behind the policy engine and tags every result into the provenance graph
// as Untrusted — tool output is adversary-influenced by definition.
type Executor struct {
	sandbox *sandbox.ProcessSandbox
	policy  PolicySource
	logger  *zap.Logger
}

func NewExecutor(sb *sandbox.ProcessSandbox, policySource PolicySource, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{sandbox: sb, policy: policySource, logger: logger}
}

// Execute implements orchestrator.ToolExecutor.
func (e *Executor) Execute(ctx context.Context, toolName string, args map[string]any) (*entity.TaggedData, error) {
	switch toolName {
	case "read_file":
		return e.readFile(ctx, args)
	case "write_file":
		return e.writeFile(ctx, args)
	case "run_command":
		return e.runCommand(ctx, args)
	default:
		return nil, appErrors.NewToolError(toolName, fmt.Errorf("unknown tool %q", toolName))
	}
}

func (e *Executor) readFile(ctx context.Context, args map[string]any) (*entity.TaggedData, error) {
	path, _ := args["path"].(string)
	check := e.policy.Engine().CheckFileRead(path)
	if !check.Allowed() {
		return nil, appErrors.NewToolBlockedError("read_file", check.Reason)
	}

	content, err := os.ReadFile(check.ResolvedPath)
	if err != nil {
		return nil, appErrors.NewToolError("read_file", err)
	}

	return entity.NewTaggedData(
		newDataID("read_file"),
		string(content),
		valueobject.Untrusted,
		valueobject.SourceFile,
		path,
		nil,
	)
}

func (e *Executor) writeFile(ctx context.Context, args map[string]any) (*entity.TaggedData, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)
	check := e.policy.Engine().CheckFileWrite(path)
	if !check.Allowed() {
		return nil, appErrors.NewToolBlockedError("write_file", check.Reason)
	}

	if err := os.WriteFile(check.ResolvedPath, []byte(content), 0644); err != nil {
		return nil, appErrors.NewToolError("write_file", err)
	}

	return entity.NewTaggedData(
		newDataID("write_file"),
		fmt.Sprintf("wrote %d bytes to %s", len(content), check.ResolvedPath),
		valueobject.Untrusted,
		valueobject.SourceTool,
		path,
		nil,
	)
}

func (e *Executor) runCommand(ctx context.Context, args map[string]any) (*entity.TaggedData, error) {
	command, _ := args["command"].(string)
	check := e.policy.Engine().CheckCommand(command)
	if !check.Allowed() {
		return nil, appErrors.NewToolBlockedError("run_command", check.Reason)
	}

	result, err := e.sandbox.ExecuteShell(ctx, command)
	if err != nil && result == nil {
		return nil, appErrors.NewToolError("run_command", err)
	}

	output := result.Stdout
	if result.Stderr != "" {
		output += "\n" + result.Stderr
	}

	return entity.NewTaggedData(
		newDataID("run_command"),
		output,
		valueobject.Untrusted,
		valueobject.SourceTool,
		command,
		nil,
	)
}

func newDataID(kind string) string {
	return kind + "-" + uuid.NewString()
}
