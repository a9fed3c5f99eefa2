/*
 * @Description: 投递域名健康状态模型
 * @Author: 青澜
 * @Date: 2025-10-11 19:02:45
 * @LastEditTime: 2026-05-07 11:28:36
 * @LastEditors: 青澜
 */
package model

import "time"

// DomainRole 区分主投递域名与备用域名。
type DomainRole string

const (
	DomainRolePrimary DomainRole = "primary"
	DomainRoleBackup  DomainRole = "backup"
)

// DomainStatus 是单个域名的三态健康状况。
// 状态机：unknown → {healthy, degraded, down}，每个探测周期重新评估，没有终态。
type DomainStatus string

const (
	DomainStatusUnknown  DomainStatus = "unknown"
	DomainStatusHealthy  DomainStatus = "healthy"
	DomainStatusDegraded DomainStatus = "degraded"
	DomainStatusDown     DomainStatus = "down"
)

// CDNDomainState 保存一个投递域名的最近探测结果。
// 仅由健康监控器在探测周期内修改。
type CDNDomainState struct {
	Domain        string          `json:"domain"`
	Role          DomainRole      `json:"role"`
	Available     bool            `json:"available"`
	LastLatency   time.Duration   `json:"last_latency_ms"`
	LatencyWindow []time.Duration `json:"-"` // 滚动延迟样本窗口
	Status        DomainStatus    `json:"status"`
	LastProbedAt  time.Time       `json:"last_probed_at"`
}

// AvgLatency 返回滚动窗口内的平均延迟；窗口为空时返回 0。
func (s *CDNDomainState) AvgLatency() time.Duration {
	if len(s.LatencyWindow) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range s.LatencyWindow {
		sum += d
	}
	return sum / time.Duration(len(s.LatencyWindow))
}
