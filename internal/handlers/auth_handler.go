package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/store"
	"pharmacart-backend/pkg/utils"
)

type AuthHandler struct {
	users *store.UserStore
}

func NewAuthHandler(users *store.UserStore) *AuthHandler {
	return &AuthHandler{users: users}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var input models.RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		utils.APIResponse(c, http.StatusInternalServerError, false, "Failed to process password", nil)
		return
	}

	user := models.User{
		FullName:     input.FullName,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		// Self-registration is customer only; staff accounts are seeded.
		RoleID: models.RoleCustomer,
		Phone:  input.Phone,
	}

	if err := h.users.Create(c.Request.Context(), &user); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			utils.APIResponse(c, http.StatusBadRequest, false, "Email or phone number already registered", nil)
			return
		}
		respondError(c, err)
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Registration successful, please log in", gin.H{
		"id":        user.ID,
		"full_name": user.FullName,
		"email":     user.Email,
	})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var input models.LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	user, err := h.users.GetByEmail(c.Request.Context(), input.Email)
	if err != nil || !utils.CheckPassword(input.Password, user.PasswordHash) {
		utils.APIResponse(c, http.StatusUnauthorized, false, "Incorrect email or password", nil)
		return
	}

	// Keep the device token fresh so payment pushes reach this device.
	if input.FCMToken != "" && input.FCMToken != user.FCMToken {
		if err := h.users.SaveFCMToken(c.Request.Context(), user.ID, input.FCMToken); err != nil {
			respondError(c, err)
			return
		}
	}

	token, err := utils.GenerateToken(user.ID, user.RoleID)
	if err != nil {
		utils.APIResponse(c, http.StatusInternalServerError, false, "Failed to generate token", nil)
		return
	}

	utils.APIResponse(c, http.StatusOK, true, "Login successful", gin.H{
		"token": token,
		"user": gin.H{
			"id":        user.ID,
			"full_name": user.FullName,
			"role_id":   user.RoleID,
			"email":     user.Email,
		},
	})
}
