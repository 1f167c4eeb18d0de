package ws

import (
	"errors"
	"log/slog"
	"net/http"

	"orchestrator-service/src/models"
	"orchestrator-service/src/orchestrator"
	"orchestrator-service/src/presence"
	"orchestrator-service/src/schemas"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Parties connect from mobile apps and the web client; origin policy
	// is enforced upstream at the gateway.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler owns the websocket endpoint: it upgrades party connections,
// binds them to the presence registry and feeds inbound events to the
// orchestrator.
type Handler struct {
	Orchestrator *orchestrator.Orchestrator
	Presence     *presence.Registry
}

// NewHandler creates the websocket handler.
func NewHandler(orch *orchestrator.Orchestrator, registry *presence.Registry) *Handler {
	return &Handler{
		Orchestrator: orch,
		Presence:     registry,
	}
}

// Serve upgrades the connection and runs the read loop until disconnect.
func (h *Handler) Serve(ctx *gin.Context) {
	conn, err := upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade websocket connection", "error", err)
		return
	}

	client := NewClient(conn)
	defer h.teardown(client)

	for {
		var event schemas.InboundEvent
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("Websocket read failed", "party_id", client.partyID, "error", err)
			}
			return
		}
		h.dispatch(ctx, client, event)
	}
}

// teardown unbinds presence and lets the orchestrator resolve any session
// the party was in.
func (h *Handler) teardown(client *Client) {
	if client.partyID != "" {
		h.Presence.Unregister(client.partyID, client)
		h.Orchestrator.Disconnect(client.partyID, client)
	}
	client.Close()
}

func (h *Handler) dispatch(ctx *gin.Context, client *Client, event schemas.InboundEvent) {
	// Every event except register requires a bound identity.
	if event.Type != schemas.EventRegister && client.partyID == "" {
		h.sendError(client, "register before sending session events")
		return
	}

	switch event.Type {
	case schemas.EventRegister:
		if event.PartyID == "" {
			h.sendError(client, "register requires party_id")
			return
		}
		client.partyID = event.PartyID
		h.Presence.Register(event.PartyID, client)
		slog.Info("Party registered", "party_id", event.PartyID, "party_type", event.PartyType)

	case schemas.EventRequestSession:
		kind, err := models.ParseSessionKind(event.SessionKind)
		if err != nil {
			h.sendError(client, err.Error())
			return
		}
		_, err = h.Orchestrator.RequestSession(ctx.Request.Context(), client.partyID, event.ProviderID, kind, client)
		if err != nil {
			h.sendFailure(client, "", err)
		}

	case schemas.EventAcceptSession:
		if err := h.Orchestrator.Accept(ctx.Request.Context(), event.SessionID, client.partyID, client); err != nil {
			h.sendFailure(client, event.SessionID, err)
		}

	case schemas.EventRejectSession:
		if err := h.Orchestrator.Reject(ctx.Request.Context(), event.SessionID, client.partyID); err != nil {
			h.sendFailure(client, event.SessionID, err)
		}

	case schemas.EventEndSession:
		if err := h.Orchestrator.End(ctx.Request.Context(), event.SessionID, client.partyID); err != nil {
			h.sendFailure(client, event.SessionID, err)
		}

	default:
		h.sendError(client, "unknown event type: "+event.Type)
	}
}

// sendFailure maps an orchestrator error onto the wire: admission
// rejections become session_rejected with the human-readable reason,
// everything else a session_error. No failure is ever bare.
func (h *Handler) sendFailure(client *Client, sessionID string, err error) {
	switch {
	case errors.Is(err, models.ErrPartyUnavailable), errors.Is(err, models.ErrInsufficientBalance):
		if sendErr := client.Send(schemas.NewSessionRejected(sessionID, err.Error())); sendErr != nil {
			slog.Warn("Failed to send rejection event", "party_id", client.partyID, "error", sendErr)
		}
	default:
		h.sendError(client, err.Error())
	}
}

func (h *Handler) sendError(client *Client, message string) {
	if err := client.Send(schemas.NewSessionError(message)); err != nil {
		slog.Warn("Failed to send error event", "party_id", client.partyID, "error", err)
	}
}
