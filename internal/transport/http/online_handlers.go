package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/core"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// OnlineUserResponse represents an online user in API responses.
type OnlineUserResponse struct {
	ID       int64  `json:"id"`
	Login    string `json:"login"`
	Username string `json:"username"`
	City     string `json:"city,omitempty"`
}

// OnlineResponse lists the users currently connected.
type OnlineResponse struct {
	Count int                  `json:"count"`
	Users []OnlineUserResponse `json:"users"`
}

// OnlineHandlers serves presence information.
type OnlineHandlers struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewOnlineHandlers creates presence handlers.
func NewOnlineHandlers(hub *core.Hub, logger *zerolog.Logger) *OnlineHandlers {
	return &OnlineHandlers{hub: hub, log: logger}
}

// ListOnline returns a snapshot of online users.
// GET /api/online
func (h *OnlineHandlers) ListOnline(c *gin.Context) {
	users := h.hub.Online()

	response := OnlineResponse{
		Count: len(users),
		Users: make([]OnlineUserResponse, 0, len(users)),
	}
	for _, u := range users {
		response.Users = append(response.Users, OnlineUserResponse{
			ID:       u.ID,
			Login:    u.Login,
			Username: u.Username,
			City:     u.City,
		})
	}

	h.log.Debug().Str("subject", c.GetString(ContextKeySubject)).Int("online", response.Count).Msg("online users listed")
	c.JSON(http.StatusOK, response)
}
