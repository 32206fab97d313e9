package handlers

import (
	"net/http"

	"notifyhub_backend/internal/services"
	"notifyhub_backend/internal/services/dto"

	"github.com/gin-gonic/gin"
)

// DispatchHandler принимает запросы на доставку от внутренних систем.
type DispatchHandler struct {
	*BaseHandler
	dispatchService services.DispatchService
}

func NewDispatchHandler(base *BaseHandler, dispatchService services.DispatchService) *DispatchHandler {
	return &DispatchHandler{
		BaseHandler:     base,
		dispatchService: dispatchService,
	}
}

func (h *DispatchHandler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.POST("/dispatch", h.Dispatch)
	}
}

func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req dto.DispatchRequest
	if !h.BindAndValidate_JSON(c, &req) {
		return
	}

	response, err := h.dispatchService.Dispatch(c.Request.Context(), &req)
	if err != nil {
		h.HandleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if response.Grouped {
		status = http.StatusOK
	}
	c.JSON(status, response)
}
