package persistence

import (
	"encoding/json"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	domainErrors "github.com/CherryPod/sentinel-sub000/pkg/errors"
)

// planStepJSON is the wire shape for one entity.PlanStep. Kind is the
// discriminant; the LlmTask- or ToolCall-specific fields are left zero on
// the variant that doesn't use them.
type planStepJSON struct {
	Kind          entity.StepKind `json:"kind"`
	ID            string          `json:"id"`
	Desc          string          `json:"desc"`
	OutputVarName string          `json:"output_var_name"`

	Prompt       string   `json:"prompt,omitempty"`
	ExpectsCode  bool     `json:"expects_code,omitempty"`
	OutputFormat string   `json:"output_format,omitempty"`
	InputVars    []string `json:"input_vars,omitempty"`

	ToolName string         `json:"tool_name,omitempty"`
	Args     map[string]any `json:"args,omitempty"`
}

type planJSON struct {
	Summary string         `json:"summary"`
	Steps   []planStepJSON `json:"steps"`
}

func encodePlan(plan *entity.Plan) (string, error) {
	if plan == nil {
		return "", nil
	}
	wire := planJSON{Summary: plan.Summary}
	for _, step := range plan.Steps {
		switch s := step.(type) {
		case *entity.LlmTask:
			wire.Steps = append(wire.Steps, planStepJSON{
				Kind: entity.StepKindLlmTask, ID: s.ID, Desc: s.Desc,
				OutputVarName: s.OutputVarName, Prompt: s.Prompt,
				ExpectsCode: s.ExpectsCode, OutputFormat: s.OutputFormat,
				InputVars: s.InputVars,
			})
		case *entity.ToolCall:
			wire.Steps = append(wire.Steps, planStepJSON{
				Kind: entity.StepKindToolCall, ID: s.ID, Desc: s.Desc,
				OutputVarName: s.OutputVarName, ToolName: s.ToolName, Args: s.Args,
			})
		}
	}
	out, err := json.Marshal(wire)
	if err != nil {
		return "", domainErrors.NewInternalError("failed to encode plan: " + err.Error())
	}
	return string(out), nil
}

func decodePlan(raw string) (*entity.Plan, error) {
	if raw == "" {
		return nil, nil
	}
	var wire planJSON
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, domainErrors.NewInternalError("failed to decode plan: " + err.Error())
	}

	plan := &entity.Plan{Summary: wire.Summary}
	for _, s := range wire.Steps {
		switch s.Kind {
		case entity.StepKindLlmTask:
			plan.Steps = append(plan.Steps, &entity.LlmTask{
				ID: s.ID, Desc: s.Desc, OutputVarName: s.OutputVarName,
				Prompt: s.Prompt, ExpectsCode: s.ExpectsCode,
				OutputFormat: s.OutputFormat, InputVars: s.InputVars,
			})
		case entity.StepKindToolCall:
			plan.Steps = append(plan.Steps, &entity.ToolCall{
				ID: s.ID, Desc: s.Desc, OutputVarName: s.OutputVarName,
				ToolName: s.ToolName, Args: s.Args,
			})
		}
	}
	return plan, nil
}
