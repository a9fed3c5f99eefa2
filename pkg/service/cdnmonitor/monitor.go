/*
 * @Description: CDN投递域名健康监控服务
 * @Author: 青澜
 * @Date: 2025-09-12 10:05:27
 * @LastEditTime: 2026-04-05 09:47:51
 * @LastEditors: 青澜
 */
package cdnmonitor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/service/alert"

	"golang.org/x/time/rate"
)

const (
	// latencyWindowCap 是每个域名保留的滚动延迟样本上限。
	latencyWindowCap = 30
	// maxConcurrentProbes 限制同一周期内并行探测的域名数。
	maxConcurrentProbes = 4
)

// Snapshot 是一次对外暴露的监控视图。
type Snapshot struct {
	Aggregate model.DomainStatus      `json:"aggregate"`
	Domains   []*model.CDNDomainState `json:"domains"`
}

// CDNMonitorService 定义投递域名健康监控的契约。
// 探测只在周期任务里发生，请求路径上的读取永远走内存快照。
type CDNMonitorService interface {
	// RunProbeCycle 对全部域名执行一轮探测并重新评估状态与告警。
	// 由调度器周期调用，也可手动触发。
	RunProbeCycle(ctx context.Context)

	// Snapshot 返回当前聚合状态与各域名状态的拷贝。
	Snapshot() *Snapshot
}

type cdnMonitorServiceImpl struct {
	mu      sync.RWMutex
	domains []*model.CDNDomainState

	httpClient       *http.Client
	probePath        string
	probeTimeout     time.Duration
	latencyThreshold time.Duration

	limiter  *rate.Limiter
	alertSvc alert.AlertService
}

// NewCDNMonitorService 创建CDN健康监控服务实例。
// httpClient 为 nil 时使用内置客户端；测试时可注入 httpmock 的客户端。
func NewCDNMonitorService(cfg *config.Config, alertSvc alert.AlertService, httpClient *http.Client) CDNMonitorService {
	probeTimeout := time.Duration(cfg.GetInt(config.KeyCDNProbeTimeoutMS)) * time.Millisecond
	if probeTimeout <= 0 {
		probeTimeout = 5 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: probeTimeout}
	}

	probePath := cfg.GetString(config.KeyCDNProbePath)
	if probePath == "" {
		probePath = "/.well-known/health"
	}

	latencyThreshold := time.Duration(cfg.GetInt(config.KeyCDNLatencyThresholdMS)) * time.Millisecond
	if latencyThreshold <= 0 {
		latencyThreshold = 800 * time.Millisecond
	}

	var domains []*model.CDNDomainState
	if primary := cfg.GetString(config.KeyCDNPrimaryDomain); primary != "" {
		domains = append(domains, &model.CDNDomainState{
			Domain: primary,
			Role:   model.DomainRolePrimary,
			Status: model.DomainStatusUnknown,
		})
	}
	for _, backup := range cfg.GetStringSlice(config.KeyCDNBackupDomains) {
		domains = append(domains, &model.CDNDomainState{
			Domain: backup,
			Role:   model.DomainRoleBackup,
			Status: model.DomainStatusUnknown,
		})
	}

	return &cdnMonitorServiceImpl{
		domains:          domains,
		httpClient:       httpClient,
		probePath:        probePath,
		probeTimeout:     probeTimeout,
		latencyThreshold: latencyThreshold,
		limiter:          rate.NewLimiter(rate.Limit(10), maxConcurrentProbes),
		alertSvc:         alertSvc,
	}
}

func (s *cdnMonitorServiceImpl) RunProbeCycle(ctx context.Context) {
	s.mu.RLock()
	domains := make([]*model.CDNDomainState, len(s.domains))
	copy(domains, s.domains)
	s.mu.RUnlock()

	if len(domains) == 0 {
		return
	}

	type probeOutcome struct {
		available bool
		latency   time.Duration
	}
	outcomes := make([]probeOutcome, len(domains))

	sem := make(chan struct{}, maxConcurrentProbes)
	var wg sync.WaitGroup

	for i, d := range domains {
		wg.Add(1)
		go func(idx int, domain string) {
			defer wg.Done()

			if err := s.limiter.Wait(ctx); err != nil {
				return
			}

			sem <- struct{}{}
			defer func() { <-sem }()

			latency, err := s.probe(ctx, domain)
			outcomes[idx] = probeOutcome{available: err == nil, latency: latency}
		}(i, d.Domain)
	}
	wg.Wait()

	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	now := time.Now()
	var availableCount int
	var latencyBreached bool

	for i, d := range s.domains {
		out := outcomes[i]
		d.Available = out.available
		d.LastProbedAt = now

		if out.available {
			availableCount++
			d.LastLatency = out.latency
			d.LatencyWindow = append(d.LatencyWindow, out.latency)
			if len(d.LatencyWindow) > latencyWindowCap {
				d.LatencyWindow = d.LatencyWindow[len(d.LatencyWindow)-latencyWindowCap:]
			}
			if d.AvgLatency() > s.latencyThreshold {
				d.Status = model.DomainStatusDegraded
				latencyBreached = true
			} else {
				d.Status = model.DomainStatusHealthy
			}
		} else {
			d.Status = model.DomainStatusDown
		}
	}

	aggregate := aggregateStatus(availableCount, len(s.domains))
	s.mu.Unlock()

	s.reconcileAlerts(ctx, aggregate, latencyBreached)
}

// probe 对单个域名执行一次健康探测，返回往返延迟。
func (s *cdnMonitorServiceImpl) probe(ctx context.Context, domain string) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
	defer cancel()

	url := domain
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "https://" + url
	}
	url += s.probePath

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		return latency, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return latency, fmt.Errorf("探测返回 %d", resp.StatusCode)
	}
	return latency, nil
}

// reconcileAlerts 根据本周期的评估结果推进告警状态。
func (s *cdnMonitorServiceImpl) reconcileAlerts(ctx context.Context, aggregate model.DomainStatus, latencyBreached bool) {
	if s.alertSvc == nil {
		return
	}

	switch aggregate {
	case model.DomainStatusDown:
		s.alertSvc.Raise(ctx, model.AlertCategoryAvailability, model.AlertSeverityCritical,
			"CDN整体不可用：过半投递域名探测失败")
	case model.DomainStatusDegraded:
		s.alertSvc.Raise(ctx, model.AlertCategoryAvailability, model.AlertSeverityWarning,
			"CDN整体降级：部分投递域名探测失败")
	default:
		s.alertSvc.Resolve(ctx, model.AlertCategoryAvailability)
	}

	if latencyBreached {
		s.alertSvc.Raise(ctx, model.AlertCategoryLatency, model.AlertSeverityWarning,
			"投递域名平均延迟超出阈值")
	} else {
		s.alertSvc.Resolve(ctx, model.AlertCategoryLatency)
	}
}

func (s *cdnMonitorServiceImpl) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	domains := make([]*model.CDNDomainState, 0, len(s.domains))
	var availableCount, probedCount int
	for _, d := range s.domains {
		copied := *d
		domains = append(domains, &copied)
		if d.Available {
			availableCount++
		}
		if d.Status != model.DomainStatusUnknown {
			probedCount++
		}
	}

	aggregate := model.DomainStatusUnknown
	if probedCount > 0 {
		aggregate = aggregateStatus(availableCount, len(s.domains))
	}

	return &Snapshot{
		Aggregate: aggregate,
		Domains:   domains,
	}
}

// aggregateStatus 按可用域名占比折算整体健康状况。
func aggregateStatus(available, total int) model.DomainStatus {
	if total == 0 {
		return model.DomainStatusUnknown
	}
	ratio := float64(available) / float64(total)
	switch {
	case ratio >= 0.8:
		return model.DomainStatusHealthy
	case ratio >= 0.5:
		return model.DomainStatusDegraded
	default:
		return model.DomainStatusDown
	}
}
