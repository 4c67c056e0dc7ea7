package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/CherryPod/sentinel-sub000/internal/domain/service"
)

// ApprovalHandler exposes the human-in-the-loop approval queue over HTTP:
// inspecting a pending plan and submitting the human's decision.
type ApprovalHandler struct {
	approvals *service.ApprovalManager
	logger    *zap.Logger
}

func NewApprovalHandler(approvals *service.ApprovalManager, logger *zap.Logger) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals, logger: logger}
}

// GetApproval returns the pending (or decided) approval record for review.
func (h *ApprovalHandler) GetApproval(c *gin.Context) {
	id := c.Param("id")
	record, err := h.approvals.Check(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "approval not found or expired"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// SubmitApprovalRequest is the human decision body.
type SubmitApprovalRequest struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason"`
	By      string `json:"by" binding:"required"`
}

// SubmitApproval records the first decision for an approval id — later
// submissions for the same id are rejected, per ApprovalRepository's
// idempotent first-decision-wins contract.
func (h *ApprovalHandler) SubmitApproval(c *gin.Context) {
	id := c.Param("id")
	var req SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	accepted, err := h.approvals.Submit(c.Request.Context(), id, req.Granted, req.Reason, req.By)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !accepted {
		c.JSON(http.StatusConflict, gin.H{"error": "approval already decided or expired"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "recorded"})
}
