/*
 * @Description: 定时任务调度器
 * @Author: 青澜
 * @Date: 2025-09-16 10:48:33
 * @LastEditTime: 2026-04-08 10:22:18
 * @LastEditors: 青澜
 */
package task

import (
	"log/slog"
	"os"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/service/cdnmonitor"
	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"

	"github.com/robfig/cron/v3"
)

// Scheduler 封装 cron 实例与全部周期任务的依赖。
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger

	cfg        *config.Config
	monitorSvc cdnmonitor.CDNMonitorService
	guardSvc   guard.EdgeAccessGuardService
}

// NewScheduler 创建调度器。所有任务都套上 panic 恢复与执行日志装饰器，
// 上一轮还没跑完时推迟而不是并发执行。
func NewScheduler(cfg *config.Config, monitorSvc cdnmonitor.CDNMonitorService, guardSvc guard.EdgeAccessGuardService) *Scheduler {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("system", "cron")

	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(
			NewPanicRecoveryWrapper(logger),
			NewLoggingWrapper(logger),
			cron.DelayIfStillRunning(cron.DefaultLogger),
		),
	)

	return &Scheduler{
		cron:       c,
		logger:     logger,
		cfg:        cfg,
		monitorSvc: monitorSvc,
		guardSvc:   guardSvc,
	}
}

// RegisterJobs 注册全部周期任务。
func (s *Scheduler) RegisterJobs() {
	s.logger.Info("Registering all periodic jobs...")

	probeCron := s.cfg.GetString(config.KeyCDNProbeIntervalCron)
	if probeCron == "" {
		probeCron = "0 * * * * *" // 每分钟整点
	}
	if _, err := s.cron.AddJob(probeCron, NewCDNHealthCheckJob(s.monitorSvc, s.logger)); err != nil {
		s.logger.Error("Failed to add 'CDNHealthCheckJob'", slog.Any("error", err))
		os.Exit(1)
	}
	s.logger.Info("-> Successfully registered 'CDNHealthCheckJob'", "schedule", probeCron)

	if _, err := s.cron.AddJob("0 */5 * * * *", NewGuardPruneJob(s.guardSvc, s.logger)); err != nil {
		s.logger.Error("Failed to add 'GuardPruneJob'", slog.Any("error", err))
		os.Exit(1)
	}
	s.logger.Info("-> Successfully registered 'GuardPruneJob'", "schedule", "every 5 minutes")
}

// Start 在后台启动调度器。
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Scheduler started")
}

// Stop 停止调度器并等待在途任务结束。
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Scheduler stopped gracefully")
}
