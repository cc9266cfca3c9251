package appointment

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the appointment API. Writes go through admin.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	appointments := rg.Group("/appointments")
	{
		appointments.POST("", admin, h.Create)
		appointments.GET("", h.List)
		appointments.PATCH("/:id/status", admin, h.UpdateStatus)
		appointments.DELETE("/:id", admin, h.Delete)
	}
}
