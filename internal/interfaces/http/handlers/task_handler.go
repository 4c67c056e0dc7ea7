package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
	"github.com/CherryPod/sentinel-sub000/internal/domain/orchestrator"
	"github.com/CherryPod/sentinel-sub000/internal/infrastructure/monitoring"
)

// TaskHandler exposes the orchestrator's handle_task entry point over HTTP.
type TaskHandler struct {
	orch    *orchestrator.Orchestrator
	monitor *monitoring.Monitor
	tracer  *monitoring.Tracer
	logger  *zap.Logger
}

func NewTaskHandler(orch *orchestrator.Orchestrator, monitor *monitoring.Monitor, tracer *monitoring.Tracer, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{orch: orch, monitor: monitor, tracer: tracer, logger: logger}
}

// SubmitTaskRequest is the handle_task request body.
type SubmitTaskRequest struct {
	Text         string `json:"text" binding:"required"`
	SourceKey    string `json:"source_key"`
	SessionID    string `json:"session_id"`
	ApprovalMode string `json:"approval_mode"` // "auto" (default) or "full"
}

// SubmitTask runs a user request through the full orchestrator pipeline:
// conversation analysis, input scanning, planning, optional human approval,
// step execution, and output scanning.
func (h *TaskHandler) SubmitTask(c *gin.Context) {
	var req SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := orchestrator.ApprovalAuto
	if req.ApprovalMode == string(orchestrator.ApprovalFull) {
		mode = orchestrator.ApprovalFull
	}

	h.monitor.IncPlannerCall()

	ctx, span := h.tracer.StartSpan(c.Request.Context(), "handle_task")
	monitoring.SetAttribute(span, "source_key", req.SourceKey)

	result, err := h.orch.HandleTask(ctx, orchestrator.Request{
		UserText:     req.Text,
		SourceKey:    req.SourceKey,
		SessionID:    req.SessionID,
		ApprovalMode: mode,
	})
	h.tracer.EndSpan(span, err)
	if err != nil {
		h.monitor.IncError()
		h.logger.Error("handle_task failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("X-Trace-ID", span.TraceID)
	h.recordStepMetrics(result)
	c.JSON(http.StatusOK, result)
}

func (h *TaskHandler) recordStepMetrics(result *entity.TaskResult) {
	for _, sr := range result.StepResults {
		h.monitor.IncStepExecutionTotal()
		if sr.Status == entity.StepSuccess {
			h.monitor.IncStepExecutionSuccess()
		} else {
			h.monitor.IncStepExecutionFailed()
		}
	}
}
