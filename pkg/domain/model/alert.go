/*
 * @Description: 告警事件模型
 * @Author: 青澜
 * @Date: 2025-10-11 19:15:20
 * @LastEditTime: 2026-05-07 11:30:02
 * @LastEditors: 青澜
 */
package model

import "time"

// AlertCategory 标识告警的来源类别。
type AlertCategory string

const (
	AlertCategoryAvailability AlertCategory = "availability"
	AlertCategoryLatency      AlertCategory = "latency"
	AlertCategorySecurity     AlertCategory = "security"
)

// AlertSeverity 标识告警级别。
type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

// AlertEvent 在阈值被跨越时由监控器或防护层创建。
// 同一类别存在未解决告警时不会重复创建；告警只能被显式解决或保持打开，从不删除。
type AlertEvent struct {
	ID         string        `json:"id"` // uuid
	Category   AlertCategory `json:"category"`
	Severity   AlertSeverity `json:"severity"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"created_at"`
	Resolved   bool          `json:"resolved"`
	ResolvedAt *time.Time    `json:"resolved_at,omitempty"`
}
