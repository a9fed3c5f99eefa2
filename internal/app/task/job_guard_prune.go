/*
 * @Description: 边缘防护限流窗口清理任务
 * @Author: 青澜
 * @Date: 2025-09-16 11:18:30
 * @LastEditTime: 2026-04-08 10:04:27
 * @LastEditors: 青澜
 */
package task

import (
	"log/slog"

	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"
)

// GuardPruneJob 清理防护层中已过期的限流窗口。
// 清理只发生在这里，请求路径上永远不做遍历。
type GuardPruneJob struct {
	guardSvc guard.EdgeAccessGuardService
	logger   *slog.Logger
}

// NewGuardPruneJob 创建防护清理任务。
func NewGuardPruneJob(guardSvc guard.EdgeAccessGuardService, logger *slog.Logger) *GuardPruneJob {
	return &GuardPruneJob{guardSvc: guardSvc, logger: logger}
}

func (j *GuardPruneJob) Name() string { return "GuardPruneJob" }

func (j *GuardPruneJob) Run() {
	pruned := j.guardSvc.Prune()
	if pruned > 0 {
		j.logger.Info("Pruned stale rate-limit windows", slog.Int("count", pruned))
	}
}
