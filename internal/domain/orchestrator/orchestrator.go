// Package orchestrator drives a single task end-to-end: resolve the
// session, run multi-turn conversation analysis and input scanning on the
// request, obtain a plan, optionally hold it for human approval, then
// execute each step through the scan pipeline or the tool executor,
// publishing a linear task_id-tagged event sequence throughout.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/conversation"
	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/eventbus"
	"github.com/CherryPod/sentinel-sub000/internal/domain/scanpipeline"
	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
	"github.com/CherryPod/sentinel-sub000/internal/domain/valueobject"
	appErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
)

// ApprovalMode selects whether a plan executes immediately or is held for
// a human decision before any step runs.
type ApprovalMode string

const (
	ApprovalAuto ApprovalMode = "auto"
	ApprovalFull ApprovalMode = "full"
)

// Planner decomposes a user request into an ordered Plan.
type Planner interface {
	Plan(ctx context.Context, userText string) (*entity.Plan, error)
}

// ToolExecutor runs a named tool and returns its result tagged into the
// provenance graph. Implemented in infrastructure against the policy
// engine and the sidecar/sandbox process boundary.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, args map[string]any) (*entity.TaggedData, error)
}

// Request bundles handle_task's arguments. SourceKey and SessionID are
// both optional; SessionID (when present) takes precedence for lookup,
// but a fresh session still binds under SourceKey.
type Request struct {
	UserText     string
	SourceKey    string
	SessionID    string
	TaskID       string
	ApprovalMode ApprovalMode
}

// Config toggles orchestrator-wide behaviour.
type Config struct {
	// ConversationEnabled gates both running the conversation analyser
	// and populating TaskResult.Conversation. False fully disables the
	// conversation field, not just the scoring.
	ConversationEnabled bool
}

// Orchestrator composes the planner, scan pipeline, session store,
// conversation analyser, approval manager, and tool executor into the
// single entry point that drives one task through its lifecycle.
type Orchestrator struct {
	planner   Planner
	pipeline  *scanpipeline.Pipeline
	sessions  *service.SessionStore
	analyzer  *conversation.Analyzer
	approvals *service.ApprovalManager
	tools     ToolExecutor
	bus       *eventbus.Bus
	cfg       Config
	logger    *zap.Logger
}

func New(
	planner Planner,
	pipeline *scanpipeline.Pipeline,
	sessions *service.SessionStore,
	analyzer *conversation.Analyzer,
	approvals *service.ApprovalManager,
	tools ToolExecutor,
	bus *eventbus.Bus,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if bus == nil {
		bus = eventbus.New()
	}
	return &Orchestrator{
		planner: planner, pipeline: pipeline, sessions: sessions,
		analyzer: analyzer, approvals: approvals, tools: tools,
		bus: bus, cfg: cfg, logger: logger,
	}
}

// HandleTask drives req through Planning → AwaitingApproval? → Executing
// → {Success | Blocked | Error}.
func (o *Orchestrator) HandleTask(ctx context.Context, req Request) (*entity.TaskResult, error) {
	taskID := req.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	logger := o.logger.With(zap.String("task_id", taskID))
	defer o.bus.UnsubscribeAll(taskID)

	o.bus.Publish(taskID, "started", nil)

	sm := service.NewTaskStateMachine(0, logger)

	session := o.resolveSession(req)

	if session.IsLocked() {
		return o.finish(taskID, sm, &entity.TaskResult{
			TaskID: taskID,
			Status: entity.TaskBlocked,
			Reason: "session locked",
		}), nil
	}

	var convInfo *entity.ConversationInfo
	if o.cfg.ConversationEnabled && o.analyzer != nil {
		analysis := o.analyzer.Analyze(session, req.UserText)
		convInfo = &entity.ConversationInfo{
			SessionID:  session.ID(),
			TurnNumber: session.TurnCount() + 1,
			RiskScore:  analysis.TotalScore,
			Action:     string(analysis.Action),
			Warnings:   analysis.Warnings,
		}
		if analysis.Action == conversation.ActionBlock {
			session.AddTurn(req.UserText, entity.TurnBlocked)
			_ = sm.Transition(service.TaskBlocked)
			return o.finish(taskID, sm, &entity.TaskResult{
				TaskID:       taskID,
				Status:       entity.TaskBlocked,
				Reason:       "conversation analysis blocked the request",
				Conversation: convInfo,
			}), nil
		}
	}

	inputScan, err := o.pipeline.ScanInput(ctx, req.UserText)
	if err != nil {
		return nil, err
	}
	if !inputScan.IsClean() {
		session.AddTurn(req.UserText, entity.TurnBlocked)
		_ = sm.Transition(service.TaskBlocked)
		return o.finish(taskID, sm, &entity.TaskResult{
			TaskID:       taskID,
			Status:       entity.TaskBlocked,
			Reason:       "request blocked by input security scan",
			Conversation: convInfo,
		}), nil
	}

	plan, err := o.planner.Plan(ctx, req.UserText)
	if err != nil {
		session.AddTurn(req.UserText, entity.TurnError)
		_ = sm.Transition(service.TaskError)
		return o.finish(taskID, sm, &entity.TaskResult{
			TaskID:       taskID,
			Status:       entity.TaskError,
			Reason:       fmt.Sprintf("planning failed: %v", err),
			Conversation: convInfo,
		}), nil
	}
	o.bus.Publish(taskID, "planned", plan.Summary)

	if req.ApprovalMode == ApprovalFull {
		_ = sm.Transition(service.TaskAwaitingApproval)
		approvalID, err := o.approvals.Request(ctx, plan, req.SourceKey, req.UserText)
		if err != nil {
			return nil, err
		}
		return o.finish(taskID, sm, &entity.TaskResult{
			TaskID:       taskID,
			Status:       entity.TaskAwaitingApproval,
			PlanSummary:  plan.Summary,
			ApprovalID:   approvalID,
			Conversation: convInfo,
		}), nil
	}

	_ = sm.Transition(service.TaskExecuting)
	stepResults, outcome, reason := o.executePlan(ctx, taskID, sm, plan, req.UserText)

	var finalStatus entity.TaskStatus
	var turnStatus entity.TurnStatus
	switch outcome {
	case service.TaskBlocked:
		finalStatus = entity.TaskBlocked
		turnStatus = entity.TurnBlocked
	case service.TaskError:
		finalStatus = entity.TaskError
		turnStatus = entity.TurnError
	default:
		finalStatus = entity.TaskSuccess
		turnStatus = entity.TurnSuccess
	}
	_ = sm.Transition(outcome)
	session.AddTurn(req.UserText, turnStatus)

	result := &entity.TaskResult{
		TaskID:       taskID,
		Status:       finalStatus,
		PlanSummary:  plan.Summary,
		StepResults:  stepResults,
		Reason:       reason,
		Conversation: convInfo,
	}
	o.bus.Publish(taskID, "completed", finalStatus)
	return o.finish(taskID, sm, result), nil
}

func (o *Orchestrator) finish(taskID string, sm *service.TaskStateMachine, result *entity.TaskResult) *entity.TaskResult {
	o.logger.Debug("task finished",
		zap.String("task_id", taskID),
		zap.String("status", string(result.Status)),
		zap.String("state", string(sm.State())),
	)
	return result
}

func (o *Orchestrator) resolveSession(req Request) *entity.Session {
	key := req.SessionID
	if key == "" {
		key = req.SourceKey
	}
	if key != "" {
		if sess := o.sessions.Get(key); sess != nil {
			return sess
		}
	}
	return o.sessions.GetOrCreate(req.SourceKey)
}

// executePlan runs each step in order, resolving $var references from
// previously bound output variables. It stops on the first blocked or
// errored step (the "stop per plan policy" choice this gateway makes).
func (o *Orchestrator) executePlan(
	ctx context.Context,
	taskID string,
	sm *service.TaskStateMachine,
	plan *entity.Plan,
	userText string,
) ([]entity.StepResult, service.TaskState, string) {
	vars := make(map[string]*entity.TaggedData)
	results := make([]entity.StepResult, 0, len(plan.Steps))

	for i, step := range plan.Steps {
		sm.SetStep(i + 1)

		var stepResult entity.StepResult
		var stepErr error

		switch s := step.(type) {
		case *entity.LlmTask:
			stepResult, stepErr = o.executeLlmTask(ctx, s, i, userText, vars)
		case *entity.ToolCall:
			sm.RecordToolExec(s.ToolName)
			stepResult, stepErr = o.executeToolCall(ctx, s, vars)
		default:
			stepErr = fmt.Errorf("unknown plan step kind for step %q", step.StepID())
		}

		if stepErr != nil {
			if appErrors.IsSecurityViolation(stepErr) {
				stepResult = entity.StepResult{StepID: step.StepID(), Status: entity.StepBlocked, Error: stepErr.Error()}
				results = append(results, stepResult)
				o.bus.Publish(taskID, "step_blocked", stepResult)
				return results, service.TaskBlocked, stepErr.Error()
			}
			stepResult = entity.StepResult{StepID: step.StepID(), Status: entity.StepError, Error: stepErr.Error()}
			results = append(results, stepResult)
			o.bus.Publish(taskID, "step_blocked", stepResult)
			return results, service.TaskError, stepErr.Error()
		}

		results = append(results, stepResult)
		o.bus.Publish(taskID, "step_completed", stepResult)
	}

	return results, service.TaskSuccess, ""
}

func (o *Orchestrator) executeLlmTask(ctx context.Context, step *entity.LlmTask, index int, userText string, vars map[string]*entity.TaggedData) (entity.StepResult, error) {
	prompt, untrustedData, hadChainedInput := resolveLlmInputs(step, vars)

	userInput := ""
	if index == 0 {
		userInput = userText
	}

	tagged, err := o.pipeline.ProcessWithWorker(ctx, scanpipeline.ProcessRequest{
		Prompt:        prompt,
		UntrustedData: untrustedData,
		UserInput:     userInput,
		SkipInputScan: hadChainedInput,
	})
	if err != nil {
		return entity.StepResult{}, err
	}

	vars[step.OutputVarName] = tagged
	return entity.StepResult{
		StepID:  step.ID,
		Status:  entity.StepSuccess,
		DataID:  tagged.ID(),
		Content: tagged.Content(),
	}, nil
}

func (o *Orchestrator) executeToolCall(ctx context.Context, step *entity.ToolCall, vars map[string]*entity.TaggedData) (entity.StepResult, error) {
	if o.tools == nil {
		return entity.StepResult{}, fmt.Errorf("tool call step %q has no tool executor configured", step.ID)
	}
	resolvedArgs := resolveArgs(step.Args, vars)

	tagged, err := o.tools.Execute(ctx, step.ToolName, resolvedArgs)
	if err != nil {
		return entity.StepResult{}, err
	}

	vars[step.OutputVarName] = tagged
	return entity.StepResult{
		StepID:  step.ID,
		Status:  entity.StepSuccess,
		DataID:  tagged.ID(),
		Content: tagged.Content(),
	}, nil
}

// resolveLlmInputs substitutes trusted $var references directly into the
// prompt and collects untrusted input vars' content separately, so it can
// be spotlighted and sandwiched rather than blended inline with planner-
// authored instructions.
func resolveLlmInputs(step *entity.LlmTask, vars map[string]*entity.TaggedData) (prompt string, untrustedData string, hadChainedInput bool) {
	prompt = step.Prompt
	var untrustedParts []string

	for _, name := range step.InputVars {
		tagged, ok := vars[name]
		if !ok {
			continue
		}
		hadChainedInput = true
		if tagged.TrustLevel() == valueobject.Untrusted {
			untrustedParts = append(untrustedParts, tagged.Content())
			continue
		}
		prompt = strings.ReplaceAll(prompt, "$"+name, tagged.Content())
	}

	return prompt, strings.Join(untrustedParts, "\n\n"), hadChainedInput
}

func resolveArgs(args map[string]any, vars map[string]*entity.TaggedData) map[string]any {
	resolved := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok && strings.HasPrefix(s, "$") {
			if tagged, ok := vars[s[1:]]; ok {
				resolved[k] = tagged.Content()
				continue
			}
		}
		resolved[k] = v
	}
	return resolved
}
