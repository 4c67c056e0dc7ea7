package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
)

// Worker adapts a service.LLMClient (normally a *Router, fed by the same
// provider factories the agent loop used) to scanpipeline.WorkerClient. The
// worker model is untrusted by design — its output is always routed through
// the scan pipeline before anything downstream sees it.
type Worker struct {
	client service.LLMClient
	logger *zap.Logger
}

func NewWorker(client service.LLMClient, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{client: client, logger: logger}
}

// Generate implements scanpipeline.WorkerClient. marker is opaque to the
// worker — spotlighting wraps it into the prompt text before this is
// called, so the call here is a plain single-turn completion.
func (w *Worker) Generate(ctx context.Context, prompt, model, marker string) (string, error) {
	resp, err := w.client.Generate(ctx, &service.LLMRequest{
		Messages: []service.LLMMessage{{Role: "user", Content: prompt}},
		Model:    model,
	})
	if err != nil {
		w.logger.Warn("worker model call failed", zap.Error(err), zap.String("model", model))
		return "", err
	}
	return resp.Content, nil
}

// planResponse is the wire shape the planner model is instructed to emit.
// It mirrors entity.Plan/PlanStep but with a JSON-friendly tagged union.
type planResponse struct {
	Summary string     `json:"summary"`
	Steps   []planStep `json:"steps"`
}

type planStep struct {
	ID           string         `json:"id"`
	Kind         string         `json:"kind"` // "llm_task" | "tool_call"
	Desc         string         `json:"desc"`
	OutputVar    string         `json:"output_var"`
	Prompt       string         `json:"prompt,omitempty"`
	InputVars    []string       `json:"input_vars,omitempty"`
	ExpectsCode  bool           `json:"expects_code,omitempty"`
	OutputFormat string         `json:"output_format,omitempty"`
	ToolName     string         `json:"tool_name,omitempty"`
	Args         map[string]any `json:"args,omitempty"`
}

const plannerSystemPrompt = `You are the planning stage of a defence-in-depth task orchestrator.
Decompose the user's request into an ordered list of steps. Each step is
either an "llm_task" (delegates a sub-task to an untrusted worker model) or
a "tool_call" (invokes one of: read_file, write_file, run_command).
Respond with ONLY a JSON object of the shape:
{"summary": "...", "steps": [{"id": "s1", "kind": "llm_task", "desc": "...", "output_var": "answer", "prompt": "..."}]}
No prose, no markdown fences — the response must parse as JSON.`

// Planner adapts a service.LLMClient into orchestrator.Planner. Unlike the
// worker, the planner model is trusted — its output becomes plan structure,
// not plan data — so the model used here should be a stronger, directly
// operator-controlled model rather than the worker pool.
type Planner struct {
	client service.LLMClient
	model  string
	logger *zap.Logger
}

func NewPlanner(client service.LLMClient, model string, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{client: client, model: model, logger: logger}
}

func (p *Planner) Plan(ctx context.Context, userText string) (*entity.Plan, error) {
	resp, err := p.client.Generate(ctx, &service.LLMRequest{
		Messages: []service.LLMMessage{
			{Role: "system", Content: plannerSystemPrompt},
			{Role: "user", Content: userText},
		},
		Model: p.model,
	})
	if err != nil {
		return nil, fmt.Errorf("planner model call failed: %w", err)
	}

	raw := strings.TrimSpace(resp.Content)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var parsed planResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("planner response was not valid JSON: %w", err)
	}

	plan := &entity.Plan{Summary: parsed.Summary}
	for _, s := range parsed.Steps {
		switch s.Kind {
		case "tool_call":
			plan.Steps = append(plan.Steps, &entity.ToolCall{
				ID: s.ID, Desc: s.Desc, ToolName: s.ToolName,
				Args: s.Args, OutputVarName: s.OutputVar,
			})
		default:
			plan.Steps = append(plan.Steps, &entity.LlmTask{
				ID: s.ID, Desc: s.Desc, Prompt: s.Prompt,
				OutputVarName: s.OutputVar, InputVars: s.InputVars,
				ExpectsCode: s.ExpectsCode, OutputFormat: s.OutputFormat,
			})
		}
	}
	return plan, nil
}
