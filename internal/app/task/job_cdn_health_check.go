/*
 * @Description: CDN投递域名健康探测任务
 * @Author: 青澜
 * @Date: 2025-09-16 11:05:52
 * @LastEditTime: 2026-04-08 09:58:13
 * @LastEditors: 青澜
 */
package task

import (
	"context"
	"log/slog"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/service/cdnmonitor"
)

// CDNHealthCheckJob 周期性地对全部投递域名执行一轮探测。
type CDNHealthCheckJob struct {
	monitorSvc cdnmonitor.CDNMonitorService
	logger     *slog.Logger
}

// NewCDNHealthCheckJob 创建CDN健康探测任务。
func NewCDNHealthCheckJob(monitorSvc cdnmonitor.CDNMonitorService, logger *slog.Logger) *CDNHealthCheckJob {
	return &CDNHealthCheckJob{monitorSvc: monitorSvc, logger: logger}
}

func (j *CDNHealthCheckJob) Name() string { return "CDNHealthCheckJob" }

// Run 执行一轮探测。整轮有上限时长，超时由探测内部的 context 截断。
func (j *CDNHealthCheckJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	j.monitorSvc.RunProbeCycle(ctx)

	snap := j.monitorSvc.Snapshot()
	j.logger.Info("CDN probe cycle finished",
		slog.String("aggregate", string(snap.Aggregate)),
		slog.Int("domains", len(snap.Domains)),
	)
}
