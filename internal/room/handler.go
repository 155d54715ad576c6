package room

import (
	"collabroom/internal/collab"
	"collabroom/internal/errors"
	"collabroom/internal/invite"
	"collabroom/internal/user"
	"context"
	defError "errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Inviter issues and redeems invite links. Satisfied by invite.Service.
type Inviter interface {
	Issue(ctx context.Context, roomUUID, permissions string) (link, password string, err error)
	Redeem(ctx context.Context, link, password string) (roomUUID, permissions string, err error)
}

// GrantStore manages invited users' permissions. Satisfied by collab.Grants.
type GrantStore interface {
	Grant(ctx context.Context, roomUUID string, userID uint64, permission string) error
	Revoke(ctx context.Context, roomUUID string, userID uint64) error
}

// Authorizer resolves a credential into a room permission. Satisfied by
// collab.Gate.
type Authorizer interface {
	Authorize(ctx context.Context, credential, roomUUID, inviteLink, roomPassword string) (*collab.Permission, error)
}

// Evictor force-closes a user's live connections in a room. Satisfied by
// collab.Registry.
type Evictor interface {
	DisconnectUser(roomID string, userID uint64) int
}

// UserDirectory resolves usernames for eviction. Satisfied by user.Service.
type UserDirectory interface {
	GetByUsername(username string) (*user.User, error)
}

// Handler handles HTTP requests for rooms
type Handler struct {
	service Service
	invites Inviter
	grants  GrantStore
	gate    Authorizer
	evictor Evictor
	users   UserDirectory
}

func NewHandler(service Service, invites Inviter, grants GrantStore, gate Authorizer, evictor Evictor, users UserDirectory) *Handler {
	return &Handler{
		service: service,
		invites: invites,
		grants:  grants,
		gate:    gate,
		evictor: evictor,
		users:   users,
	}
}

type CreateRequest struct {
	Name    string `json:"name" binding:"required,min=1,max=255"`
	Content string `json:"content"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	room, err := h.service.CreateRoom(userID.(uint64), form.Name, form.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, room.ToInfo())
}

func (h *Handler) MyRooms(c *gin.Context) {
	userID, _ := c.Get("user_id")

	rooms, err := h.service.ListOwned(userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	infos := make([]Info, 0, len(rooms))
	for i := range rooms {
		infos = append(infos, rooms[i].ToInfo())
	}
	c.JSON(http.StatusOK, gin.H{"rooms": infos})
}

func (h *Handler) Show(c *gin.Context) {
	userID, _ := c.Get("user_id")

	room, err := h.service.GetOwnedRoom(c.Param("uuid"), userID.(uint64))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room.ToInfo())
}

type UpdateRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1,max=255"`
	Content *string `json:"content"`
}

func (h *Handler) Update(c *gin.Context) {
	var form UpdateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	room, err := h.service.UpdateRoom(c.Param("uuid"), userID.(uint64), form.Name, form.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, room.ToInfo())
}

type InviteRequest struct {
	Permissions string `json:"permissions" binding:"required,permission"`
}

// Invite issues a time-boxed invite link for a room. Owner only.
func (h *Handler) Invite(c *gin.Context) {
	var form InviteRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	roomUUID := c.Param("uuid")

	if _, err := h.service.GetOwnedRoom(roomUUID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	link, password, err := h.invites.Issue(c.Request.Context(), roomUUID, form.Permissions)
	if err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"invite_link":   link,
		"room_password": password,
		"permissions":   form.Permissions,
	})
}

type JoinRequest struct {
	RoomPassword string `json:"room_password" binding:"required"`
}

// Join redeems an invite link for the authenticated user and records the
// granted permission for 24 hours.
func (h *Handler) Join(c *gin.Context) {
	var form JoinRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")

	roomUUID, permissions, err := h.invites.Redeem(c.Request.Context(), c.Param("link"), form.RoomPassword)
	if err != nil {
		if defError.Is(err, invite.ErrLinkNotFound) {
			c.Error(errors.NotFound("Invite link unknown or expired", err))
			return
		}
		if defError.Is(err, invite.ErrPasswordMismatch) {
			c.Error(errors.Forbidden("Invalid room password", err))
			return
		}
		c.Error(errors.Internal(err))
		return
	}

	if err := h.grants.Grant(c.Request.Context(), roomUUID, userID.(uint64), permissions); err != nil {
		c.Error(errors.Internal(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"room_uuid":   roomUUID,
		"permissions": permissions,
	})
}

type AccessRequest struct {
	RoomUUID string `json:"room_uuid" binding:"required,uuid4"`
}

// Access reports the caller's resolved permission on a room without side
// effects, mirroring what the websocket gate would decide.
func (h *Handler) Access(c *gin.Context) {
	var form AccessRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	token, _ := c.Get("jwt_token")

	perm, err := h.gate.Authorize(c.Request.Context(), token.(string), form.RoomUUID, "", "")
	if err != nil {
		c.Error(mapAccessError(err))
		return
	}

	c.JSON(http.StatusOK, perm)
}

type RemoveInvitedRequest struct {
	Username string `json:"username" binding:"required"`
}

// RemoveInvited revokes an invited user's grant and force-closes their live
// connections in the room. Owner only; evicting a user who already left
// succeeds with zero closed connections.
func (h *Handler) RemoveInvited(c *gin.Context) {
	var form RemoveInvitedRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID, _ := c.Get("user_id")
	roomUUID := c.Param("uuid")

	if _, err := h.service.GetOwnedRoom(roomUUID, userID.(uint64)); err != nil {
		c.Error(err)
		return
	}

	target, err := h.users.GetByUsername(form.Username)
	if err != nil {
		c.Error(err)
		return
	}

	if err := h.grants.Revoke(c.Request.Context(), roomUUID, target.ID); err != nil {
		c.Error(errors.Internal(err))
		return
	}

	closed := h.evictor.DisconnectUser(roomUUID, target.ID)

	c.JSON(http.StatusOK, gin.H{"evicted_connections": closed})
}

func mapAccessError(err error) *errors.APIError {
	switch {
	case defError.Is(err, collab.ErrUnauthenticated):
		return errors.Unauthorized("Invalid credential", err)
	case defError.Is(err, collab.ErrRoomNotFound):
		return errors.NotFound("Room not found", err)
	case defError.Is(err, collab.ErrForbidden):
		return errors.Forbidden("No permission on this room", err)
	default:
		return errors.Internal(err)
	}
}
