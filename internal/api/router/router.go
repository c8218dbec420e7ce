package router

import (
	"github.com/wb-go/wbf/ginext"

	"github.com/vetrovmax/notify-dispatcher/internal/api/handlers/analytics"
	"github.com/vetrovmax/notify-dispatcher/internal/api/handlers/deadletter"
	"github.com/vetrovmax/notify-dispatcher/internal/api/handlers/notification"
)

func New(
	notifHandler *notification.Handler,
	dlqHandler *deadletter.Handler,
	analyticsHandler *analytics.Handler,
) *ginext.Engine {
	e := ginext.New("")
	e.Use(ginext.Logger())
	e.Use(ginext.Recovery())

	api := e.Group("/api")

	notifications := api.Group("/notifications")
	notifications.POST("", notifHandler.Create)
	notifications.GET("/:id/status", notifHandler.GetStatus)

	dlq := api.Group("/dlq")
	dlq.GET("/:subscription", dlqHandler.Peek)
	dlq.POST("/replay/:subscription", dlqHandler.Replay)

	stats := api.Group("/analytics")
	stats.GET("/summary", analyticsHandler.Summary)
	stats.GET("/by-channel", analyticsHandler.ByChannel)
	stats.GET("/recent", analyticsHandler.Recent)
	stats.GET("/summary/:tenantId", analyticsHandler.TenantSummary)

	return e
}
