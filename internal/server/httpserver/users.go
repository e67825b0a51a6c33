package httpserver

import (
	"net/http"

	"github.com/dmitrijs2005/todoapi/internal/common"
	"github.com/dmitrijs2005/todoapi/internal/server/models"
	"github.com/dmitrijs2005/todoapi/internal/server/services"
	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	Username string `form:"username" binding:"required,min=3,max=20,username"`
	Email    string `form:"email" binding:"required,min=8,max=70,email"`
	Password string `form:"password" binding:"required,min=6,max=100,strongpassword"`
	FullName string `form:"fullName" binding:"required,min=4,max=30,fullname"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=6,max=100,strongpassword"`
}

type updateProfileRequest struct {
	Username *string `json:"username" binding:"omitempty,min=3,max=20,username"`
	Email    *string `json:"email" binding:"omitempty,min=8,max=70,email"`
	FullName *string `json:"fullName" binding:"omitempty,min=4,max=30,fullname"`
}

type sessionResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}

func (h *handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBind(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	avatar, err := readAvatar(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	user, err := h.users.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	}, avatar)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusCreated, user, "User registered successfully")
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	session, err := h.users.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, session.Tokens)
	respond(c, http.StatusOK, sessionResponse{
		User:         &session.User,
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *handler) logout(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	if err := h.users.Logout(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}

	h.clearAuthCookies(c)
	respond(c, http.StatusOK, nil, "User logged out successfully")
}

// refreshToken accepts the refresh token from the cookie first and falls
// back to the JSON body.
func (h *handler) refreshToken(c *gin.Context) {
	token, _ := c.Cookie(common.RefreshTokenCookieName)
	if token == "" {
		var req refreshRequest
		if c.Request.ContentLength != 0 {
			_ = c.ShouldBindJSON(&req)
		}
		token = req.RefreshToken
	}
	if token == "" {
		_ = c.Error(common.NewError(common.ErrorUnauthorized, "Unauthorized request"))
		return
	}

	session, err := h.users.RefreshToken(c.Request.Context(), token)
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.setAuthCookies(c, session.Tokens)
	respond(c, http.StatusOK, sessionResponse{
		AccessToken:  session.Tokens.AccessToken,
		RefreshToken: session.Tokens.RefreshToken,
	}, "Access token refreshed")
}

func (h *handler) changePassword(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	if err := h.users.ChangePassword(c.Request.Context(), id, req.OldPassword, req.NewPassword); err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, nil, "Password changed successfully")
}

func (h *handler) currentUser(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	user, err := h.users.CurrentUser(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, user, "Current user fetched successfully")
}

func (h *handler) updateProfile(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	user, err := h.users.UpdateProfile(c.Request.Context(), id, models.ProfileUpdate{
		Username: req.Username,
		Email:    req.Email,
		FullName: req.FullName,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, user, "Account details updated successfully")
}

func (h *handler) updateAvatar(c *gin.Context) {
	id, ok := userID(c)
	if !ok {
		return
	}

	avatar, err := readAvatar(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if avatar == nil {
		_ = c.Error(common.ValidationError("Avatar file is required",
			common.FieldError{Field: "avatar", Message: "Avatar file is required"}))
		return
	}

	user, err := h.users.UpdateAvatar(c.Request.Context(), id, avatar)
	if err != nil {
		_ = c.Error(err)
		return
	}

	respond(c, http.StatusOK, user, "Avatar updated successfully")
}
