package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mvoronin/parlor/internal/domain"
	"github.com/mvoronin/parlor/internal/engine"
)

// AdminController exposes the hosting-application surface of the
// engine over plain HTTP: room listings and out-of-band notifies.
type AdminController struct {
	Engine *engine.Engine
}

type roomSummary struct {
	ID    domain.RoomID   `json:"id"`
	Users []domain.UserID `json:"users"`
}

func (a *AdminController) ListRooms(c *gin.Context) {
	ids := a.Engine.ListRooms()
	rooms := make([]roomSummary, 0, len(ids))
	for _, id := range ids {
		rooms = append(rooms, roomSummary{ID: id, Users: a.Engine.ListRoomUsers(id)})
	}
	c.JSON(http.StatusOK, gin.H{"rooms": rooms})
}

func (a *AdminController) ListRoomUsers(c *gin.Context) {
	room := domain.RoomID(c.Param("room"))
	c.JSON(http.StatusOK, gin.H{
		"room":  room,
		"users": a.Engine.ListRoomUsers(room),
	})
}

type notifyRequest struct {
	Event string `json:"event" binding:"required"`
	Data  any    `json:"data"`
}

func (a *AdminController) NotifyRoom(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event"})
		return
	}
	room := domain.RoomID(c.Param("room"))
	delivered := a.Engine.SendToRoom(room, req.Event, req.Data)
	c.JSON(http.StatusOK, gin.H{"room": room, "delivered": delivered})
}

func (a *AdminController) NotifyUser(c *gin.Context) {
	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event"})
		return
	}
	user := domain.UserID(c.Param("user"))
	if !a.Engine.SendToUser(user, req.Event, req.Data) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not connected"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "delivered": true})
}
