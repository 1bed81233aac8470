package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hikeclub/internal/middleware"
	"hikeclub/internal/models"
	"hikeclub/internal/policy"
	"hikeclub/internal/services"
	"hikeclub/internal/utils"
)

const adminUsersPath = "/admin/users"

type AdminHandler struct {
	users      *services.UserService
	authorizer *middleware.Authorizer
	logger     *zap.Logger
}

func NewAdminHandler(users *services.UserService, authorizer *middleware.Authorizer, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{users: users, authorizer: authorizer, logger: logger}
}

// UserLoader resolves the :id route parameter.
func (h *AdminHandler) UserLoader(c *gin.Context) (policy.Resource, error) {
	id, ok := utils.ParseID(c.Param("id"))
	if !ok {
		return nil, services.ErrRecordNotFound
	}
	u, err := h.users.Find(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Users lists the accounts the viewer may manage.
func (h *AdminHandler) Users(c *gin.Context) {
	scope := h.authorizer.Policy(c).Accessible(policy.ActionRead, policy.KindUser)
	users, err := h.users.List(c.Request.Context(), scope)
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		RenderError(c, http.StatusInternalServerError, "Unable to load users.")
		return
	}
	Render(c, http.StatusOK, "admin/users.html", gin.H{
		"Users": users,
		"Roles": models.Roles,
	})
}

func (h *AdminHandler) UpdateRole(c *gin.Context) {
	target, _ := middleware.Loaded[*models.User](c)
	actor := middleware.CurrentUser(c)

	role, err := models.ParseRole(c.PostForm("role"))
	if err != nil {
		redirectWith(c, middleware.FlashAlert, "Failed to update role.", adminUsersPath)
		return
	}

	err = h.users.UpdateRole(c.Request.Context(), actor, target, role)
	switch {
	case err == nil:
		redirectWith(c, middleware.FlashNotice, "Role updated to "+role.Humanize()+" for "+target.DisplayName(), adminUsersPath)
	case errors.Is(err, policy.ErrSelfActionBlocked):
		redirectWith(c, middleware.FlashAlert, "You cannot edit your own profile here.", adminUsersPath)
	case errors.Is(err, services.ErrRoleCeiling):
		redirectWith(c, middleware.FlashAlert, err.Error()+".", adminUsersPath)
	default:
		h.logger.Error("role update failed", zap.Uint("user_id", target.ID), zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Failed to update role.", adminUsersPath)
	}
}

func (h *AdminHandler) Destroy(c *gin.Context) {
	target, _ := middleware.Loaded[*models.User](c)
	if err := h.users.Destroy(c.Request.Context(), target); err != nil {
		h.logger.Error("user deletion failed", zap.Uint("user_id", target.ID), zap.Error(err))
		redirectWith(c, middleware.FlashAlert, "Failed to delete user.", adminUsersPath)
		return
	}
	redirectWith(c, middleware.FlashNotice, "User "+target.DisplayName()+" deleted.", adminUsersPath)
}
