package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/thesis-workflow-api/internal/middleware"
	"github.com/noah-isme/thesis-workflow-api/internal/models"
	appErrors "github.com/noah-isme/thesis-workflow-api/pkg/errors"
	"github.com/noah-isme/thesis-workflow-api/pkg/response"
)

// AuthHandler exposes the current session to the front end.
type AuthHandler struct {
	cookieName string
}

// NewAuthHandler constructs the handler. cookieName is cleared on logout.
func NewAuthHandler(cookieName string) *AuthHandler {
	return &AuthHandler{cookieName: cookieName}
}

// Me godoc
// @Summary Describe the current session
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	access, ok := middleware.AccessFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	response.JSON(c, http.StatusOK, models.MeResponse{Principal: access.Principal, Grant: access.Grant}, nil)
}

// Logout godoc
// @Summary End the current session
// @Tags Auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	sess := middleware.SessionFromContext(c)
	if sess == nil {
		response.Error(c, appErrors.ErrAuthenticationRequired)
		return
	}
	if err := sess.ClearUser(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	if h.cookieName != "" {
		c.SetCookie(h.cookieName, "", -1, "/", "", true, true)
	}
	response.NoContent(c)
}
