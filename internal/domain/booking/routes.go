package booking

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the booking API. admin guards the operations reserved for staff.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, admin gin.HandlerFunc) {
	bookings := rg.Group("/bookings")
	{
		bookings.POST("/pending", h.Submit)
		bookings.GET("/pending", h.listStage(StagePending))
		bookings.DELETE("/pending/:id", h.deleteStage(StagePending))

		bookings.POST("/approved", admin, h.Approve)
		bookings.GET("/approved", h.listStage(StageApproved))
		bookings.DELETE("/approved/:id", admin, h.deleteStage(StageApproved))

		bookings.POST("/finished", admin, h.Finish)
		bookings.GET("/finished", h.listStage(StageFinished))
		bookings.DELETE("/finished/:id", admin, h.deleteStage(StageFinished))

		bookings.GET("/cancellation-requests/pending", h.ListPendingCancellations)
		bookings.GET("/cancelled", h.ListCancelled)
		bookings.DELETE("/cancelled/:id", admin, h.deleteStage(StageCancelled))

		bookings.GET("/:id", h.Get)
		bookings.PUT("/:id", h.Update)
		bookings.GET("/:id/sagas", h.Sagas)
		bookings.POST("/:id/cancellation-request", h.RequestCancellation)
		bookings.PUT("/:id/cancel-approve", admin, h.resolve(DecisionApprove))
		bookings.PUT("/:id/cancel-reject", admin, h.resolve(DecisionReject))
	}
}
