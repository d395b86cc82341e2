package chathandler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"roomchatgo/internal/presence"
	"roomchatgo/internal/services/chat"
)

type Handler struct {
	svc          chat.IChatService
	historyLimit int
}

func New(svc chat.IChatService, historyLimit int) *Handler {
	return &Handler{svc: svc, historyLimit: historyLimit}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/rooms", h.rooms)
	r.GET("/rooms/:slug/members", h.members)
	r.GET("/rooms/:slug/messages", h.history)
	r.GET("/presence", h.presence)
}

// @Summary		List rooms
// @Description	Returns every room with its metadata, in boot order.
// @Tags			Rooms
// @Success		200	{array}	presence.RoomMetadata
// @Router			/rooms [get]
func (h *Handler) rooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Rooms())
}

// @Summary		Room members
// @Description	Returns the online users currently occupying a room.
// @Tags			Rooms
// @Param			slug	path		string	true	"Room slug"	default(geral)
// @Success		200		{object}	RoomMembersResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{slug}/members [get]
func (h *Handler) members(c *gin.Context) {
	slug := c.Param("slug")
	members, err := h.svc.RoomMembers(slug)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, RoomMembersResponse{Room: slug, Members: members, Count: len(members)})
}

// @Summary		Room history
// @Description	Returns the last N messages of a room, oldest first.
// @Tags			Rooms
// @Param			slug	path		string	true	"Room slug"				default(geral)
// @Param			limit	query		int		false	"Max messages (0-500)"	minimum(0)	maximum(500)
// @Success		200		{array}		msglog.Message
// @Failure		400		{object}	ErrorResponse
// @Failure		404		{object}	ErrorResponse
// @Failure		500		{object}	ErrorResponse
// @Router			/rooms/{slug}/messages [get]
func (h *Handler) history(c *gin.Context) {
	var q HistoryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if q.Limit == 0 {
		q.Limit = h.historyLimit
	}

	msgs, err := h.svc.History(c.Request.Context(), c.Param("slug"), q.Limit)
	if err != nil {
		if errors.Is(err, presence.ErrRoomNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// @Summary		Presence snapshot
// @Description	Returns online users globally and per room, with counts.
// @Tags			Presence
// @Success		200	{object}	chat.UsersUpdatedBody
// @Router			/presence [get]
func (h *Handler) presence(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}
