/*
 * @Description: HTTP路由注册
 * @Author: 青澜
 * @Date: 2025-09-17 16:30:12
 * @LastEditTime: 2026-04-08 16:05:47
 * @LastEditors: 青澜
 */
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/qinglan-dev/qinglan-app/internal/app/middleware"
	delivery_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/delivery"
	media_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/media"
	monitor_handler "github.com/qinglan-dev/qinglan-app/pkg/handler/monitor"
	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"
)

// SetupRouter 注册全部HTTP路由。
// API 路由走 CORS；投递路由 /d 全部挂边缘访问防护。
func SetupRouter(
	engine *gin.Engine,
	mediaHandler *media_handler.Handler,
	monitorHandler *monitor_handler.Handler,
	deliveryHandler *delivery_handler.Handler,
	guardSvc guard.EdgeAccessGuardService,
) {
	engine.Use(middleware.Cors())

	apiGroup := engine.Group("/api")
	{
		apiGroup.POST("/media", mediaHandler.Upload)
		apiGroup.GET("/media/:id", mediaHandler.Get)

		monitorGroup := apiGroup.Group("/monitor")
		{
			monitorGroup.GET("/cdn", monitorHandler.GetCDNStatus)
			monitorGroup.GET("/alerts", monitorHandler.GetAlerts)
			monitorGroup.GET("/access", monitorHandler.GetAccessLog)
		}
	}

	deliveryGroup := engine.Group("/d", middleware.AccessGuard(guardSvc))
	{
		deliveryGroup.GET("/*path", deliveryHandler.Serve)
	}
}
