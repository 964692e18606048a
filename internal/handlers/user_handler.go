package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmacart-backend/internal/middleware"
	"pharmacart-backend/internal/store"
	"pharmacart-backend/pkg/utils"
)

type UserHandler struct {
	users *store.UserStore
}

func NewUserHandler(users *store.UserStore) *UserHandler {
	return &UserHandler{users: users}
}

func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.users.GetByID(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Profile fetched", user)
}
