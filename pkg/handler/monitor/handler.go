/*
 * @Description: 健康监控与告警的HTTP接口
 * @Author: 青澜
 * @Date: 2025-09-17 15:08:41
 * @LastEditTime: 2026-04-08 14:50:19
 * @LastEditors: 青澜
 */
package monitor

import (
	"strconv"

	"github.com/qinglan-dev/qinglan-app/pkg/response"
	"github.com/qinglan-dev/qinglan-app/pkg/service/alert"
	"github.com/qinglan-dev/qinglan-app/pkg/service/cdnmonitor"
	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"

	"github.com/gin-gonic/gin"
)

// Handler 处理监控相关的HTTP请求。
type Handler struct {
	monitorSvc cdnmonitor.CDNMonitorService
	alertSvc   alert.AlertService
	guardSvc   guard.EdgeAccessGuardService
}

// NewHandler 创建监控接口处理器。
func NewHandler(monitorSvc cdnmonitor.CDNMonitorService, alertSvc alert.AlertService, guardSvc guard.EdgeAccessGuardService) *Handler {
	return &Handler{monitorSvc: monitorSvc, alertSvc: alertSvc, guardSvc: guardSvc}
}

// GetCDNStatus 处理 GET /api/monitor/cdn，返回整体与各域名的健康快照。
func (h *Handler) GetCDNStatus(c *gin.Context) {
	response.Success(c, h.monitorSvc.Snapshot(), "ok")
}

// GetAlerts 处理 GET /api/monitor/alerts。
// 默认只返回未解除的告警，?all=true 返回全部。
func (h *Handler) GetAlerts(c *gin.Context) {
	if c.Query("all") == "true" {
		response.Success(c, h.alertSvc.List(), "ok")
		return
	}
	response.Success(c, h.alertSvc.ListUnresolved(), "ok")
}

// GetAccessLog 处理 GET /api/monitor/access，返回最近的边缘访问决策。
func (h *Handler) GetAccessLog(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	response.Success(c, h.guardSvc.RecentDecisions(limit), "ok")
}
