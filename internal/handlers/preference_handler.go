package handlers

import (
	"net/http"

	"notifyhub_backend/internal/services"
	"notifyhub_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

type PreferenceHandler struct {
	*BaseHandler
	preferenceService services.PreferenceService
}

func NewPreferenceHandler(base *BaseHandler, preferenceService services.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{
		BaseHandler:       base,
		preferenceService: preferenceService,
	}
}

func (h *PreferenceHandler) RegisterRoutes(r *gin.RouterGroup) {
	preferences := r.Group("/preferences")
	{
		preferences.GET("", h.GetPreferences)
		preferences.PUT("", h.UpdatePreferences)
	}
}

func (h *PreferenceHandler) GetPreferences(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	response, err := h.preferenceService.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *PreferenceHandler) UpdatePreferences(c *gin.Context) {
	userID, ok := h.RequireUserID(c)
	if !ok {
		return
	}

	var req dto.UpdatePreferencesRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	response, err := h.preferenceService.UpdatePreferences(c.Request.Context(), userID, &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, response)
}
