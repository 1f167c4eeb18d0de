package controller

import (
	"net/http"
	"strconv"
	"time"

	"orchestrator-service/src/models"
	"orchestrator-service/src/service"
	"orchestrator-service/src/utils"

	"github.com/gin-gonic/gin"
)

// SessionController exposes the read-only admin surface over live and
// finished sessions.
type SessionController struct {
	Service *service.SessionService
}

func NewSessionController(service *service.SessionService) *SessionController {
	return &SessionController{
		Service: service,
	}
}

// ActiveSessionResponse is the wire shape for one live session.
type ActiveSessionResponse struct {
	SessionID     string              `json:"session_id"`
	PayerID       string              `json:"payer_id"`
	ProviderID    string              `json:"provider_id"`
	Kind          models.SessionKind  `json:"session_kind"`
	IsFree        bool                `json:"is_free"`
	State         models.SessionState `json:"state"`
	MaxMinutes    int                 `json:"max_minutes"`
	RatePerMinute string              `json:"rate_per_minute"`
	RequestedAt   string              `json:"requested_at"`
	StartedAt     string              `json:"started_at,omitempty"`
}

// ListActive returns all sessions currently held in memory.
func (sc *SessionController) ListActive(ctx *gin.Context) {
	sessions := sc.Service.ListActive()

	responses := make([]ActiveSessionResponse, 0, len(sessions))
	for _, session := range sessions {
		resp := ActiveSessionResponse{
			SessionID:     session.SessionID,
			PayerID:       session.PayerID,
			ProviderID:    session.ProviderID,
			Kind:          session.Kind,
			IsFree:        session.IsFree,
			State:         session.State,
			MaxMinutes:    session.MaxMinutes,
			RatePerMinute: session.RatePerMinute.String(),
			RequestedAt:   session.RequestedAt.Format(time.RFC3339),
		}
		if session.StartedAt != nil {
			resp.StartedAt = session.StartedAt.Format(time.RFC3339)
		}
		responses = append(responses, resp)
	}

	ctx.JSON(http.StatusOK, gin.H{"sessions": responses})
}

// GetHistory returns finished sessions, newest first. Pagination via
// ?limit= and ?offset= query parameters.
func (sc *SessionController) GetHistory(ctx *gin.Context) {
	limit, err := queryInt(ctx, "limit", 50)
	if err != nil {
		utils.SendError(ctx, http.StatusBadRequest, "Bad Request", "invalid limit parameter: "+err.Error(), "/sessions")
		return
	}
	offset, err := queryInt(ctx, "offset", 0)
	if err != nil {
		utils.SendError(ctx, http.StatusBadRequest, "Bad Request", "invalid offset parameter: "+err.Error(), "/sessions")
		return
	}

	records, svcErr := sc.Service.GetHistory(ctx.Request.Context(), limit, offset)
	if svcErr != nil {
		utils.SendServiceError(ctx, svcErr, "/sessions")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"sessions": records})
}

// GetRecord returns the final record for one finished session.
func (sc *SessionController) GetRecord(ctx *gin.Context) {
	sessionID := ctx.Param("session_id")

	record, err := sc.Service.GetRecord(ctx.Request.Context(), sessionID)
	if err != nil {
		utils.SendServiceError(ctx, err, "/sessions/"+sessionID)
		return
	}

	ctx.JSON(http.StatusOK, record)
}

// GetLedger returns all ledger entries written for a session.
func (sc *SessionController) GetLedger(ctx *gin.Context) {
	sessionID := ctx.Param("session_id")

	entries, err := sc.Service.GetLedger(ctx.Request.Context(), sessionID)
	if err != nil {
		utils.SendServiceError(ctx, err, "/sessions/"+sessionID+"/ledger")
		return
	}

	ctx.JSON(http.StatusOK, gin.H{"session_id": sessionID, "entries": entries})
}

func queryInt(ctx *gin.Context, name string, fallback int) (int, error) {
	raw := ctx.Query(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return fallback, nil
	}
	return value, nil
}
