package collab

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// docUpdate is the one structured inbound message the relay understands.
// Text frames that parse as this envelope are persisted through the
// document store; everything else is relayed opaquely.
type docUpdate struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// docStateFrame wraps the authoritative state broadcast after a persisted
// update.
type docStateFrame struct {
	Type string `json:"type"`
	*DocumentState
}

// Handler serves the collaboration websocket endpoint.
type Handler struct {
	gate     *Gate
	registry *Registry
	docs     *DocumentStore
	log      zerolog.Logger
}

func NewHandler(gate *Gate, registry *Registry, docs *DocumentStore, log zerolog.Logger) *Handler {
	return &Handler{
		gate:     gate,
		registry: registry,
		docs:     docs,
		log:      log,
	}
}

// Collaborate upgrades the connection, authorizes it and runs the relay
// loop. Unauthorized connections are closed with a policy-violation code
// and never reach the registry.
func (h *Handler) Collaborate(c *gin.Context) {
	credential := c.Query("token")
	roomUUID := c.Query("room_uuid")
	inviteLink := c.Query("invite_link")
	roomPassword := c.Query("room_password")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newWSConn(conn)

	perm, err := h.gate.Authorize(c.Request.Context(), credential, roomUUID, inviteLink, roomPassword)
	if err != nil {
		h.log.Info().Err(err).Str("room_id", roomUUID).Str("op", "connect").Msg("connection rejected")
		_ = client.Close(websocket.ClosePolicyViolation, "access denied")
		return
	}

	h.registry.Connect(roomUUID, client, perm.UserID)
	defer func() {
		h.registry.Disconnect(roomUUID, client)
		_ = conn.Close()
	}()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.ClosePolicyViolation) {
				h.log.Warn().Err(err).
					Str("room_id", roomUUID).
					Uint64("user_id", perm.UserID).
					Str("op", "read").
					Msg("websocket read error")
			}
			return
		}

		switch messageType {
		case websocket.TextMessage:
			if h.handleDocUpdate(c, roomUUID, perm.UserID, payload) {
				continue
			}
			h.registry.Broadcast(roomUUID, websocket.TextMessage, payload, client)
		case websocket.BinaryMessage:
			h.registry.Broadcast(roomUUID, websocket.BinaryMessage, payload, client)
		}
	}
}

// handleDocUpdate persists a document update and broadcasts the resulting
// authoritative state to every member, sender included, so clients can use
// the version to detect staleness. Returns false when the payload is not a
// document update and should be relayed as-is.
func (h *Handler) handleDocUpdate(c *gin.Context, roomUUID string, userID uint64, payload []byte) bool {
	var update docUpdate
	if err := json.Unmarshal(payload, &update); err != nil || update.Type != "doc_update" {
		return false
	}

	state, err := h.docs.Write(c.Request.Context(), roomUUID, userID, update.Content)
	if err != nil {
		h.log.Warn().Err(err).
			Str("room_id", roomUUID).
			Uint64("user_id", userID).
			Str("op", "doc_update").
			Msg("document write failed")
		return true
	}

	frame, err := json.Marshal(docStateFrame{Type: "doc_state", DocumentState: state})
	if err != nil {
		h.log.Warn().Err(err).Str("room_id", roomUUID).Msg("doc state encode failed")
		return true
	}

	h.registry.Broadcast(roomUUID, websocket.TextMessage, frame, nil)
	return true
}
