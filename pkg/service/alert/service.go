/*
 * @Description: 进程内告警服务，负责去重、解除与通知分发
 * @Author: 青澜
 * @Date: 2025-09-11 09:15:33
 * @LastEditTime: 2026-04-03 16:42:19
 * @LastEditors: 青澜
 */
package alert

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	"github.com/google/uuid"
)

// Notifier 把告警事件投递到外部通道（日志、webhook、IM 等）。
// 实现不得阻塞调用方过久，耗时投递应自行异步化。
type Notifier interface {
	Notify(ctx context.Context, event *model.AlertEvent)
}

// LogNotifier 是默认通知器，把告警写入进程日志。
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, event *model.AlertEvent) {
	log.Printf("[告警] category=%s severity=%s message=%s", event.Category, event.Severity, event.Message)
}

// AlertService 定义告警生命周期的契约。
// 同一类别最多存在一条未解除的告警：状态恶化时恰好触发一次，
// 恢复时解除，再次恶化才会产生新事件。
type AlertService interface {
	// Raise 尝试产生一条告警。若该类别已有未解除告警则去重，
	// 返回 raised=false 且不通知。
	Raise(ctx context.Context, category model.AlertCategory, severity model.AlertSeverity, message string) (event *model.AlertEvent, raised bool)

	// Resolve 解除指定类别的全部未解除告警，返回解除数量。
	Resolve(ctx context.Context, category model.AlertCategory) int

	// List 返回全部告警事件（含已解除），按产生时间排列。
	List() []*model.AlertEvent

	// ListUnresolved 只返回未解除的告警。
	ListUnresolved() []*model.AlertEvent
}

type alertServiceImpl struct {
	mu       sync.Mutex
	events   []*model.AlertEvent
	notifier Notifier
}

// NewAlertService 创建告警服务实例。notifier 为 nil 时使用 LogNotifier。
func NewAlertService(notifier Notifier) AlertService {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &alertServiceImpl{notifier: notifier}
}

func (s *alertServiceImpl) Raise(ctx context.Context, category model.AlertCategory, severity model.AlertSeverity, message string) (*model.AlertEvent, bool) {
	s.mu.Lock()
	for _, e := range s.events {
		if e.Category == category && !e.Resolved {
			s.mu.Unlock()
			return e, false
		}
	}

	event := &model.AlertEvent{
		ID:        uuid.NewString(),
		Category:  category,
		Severity:  severity,
		Message:   message,
		CreatedAt: time.Now(),
	}
	s.events = append(s.events, event)
	s.mu.Unlock()

	// 通知在锁外进行，避免慢通知器阻塞后续告警判定
	s.notifier.Notify(ctx, event)
	return event, true
}

func (s *alertServiceImpl) Resolve(_ context.Context, category model.AlertCategory) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var resolved int
	for _, e := range s.events {
		if e.Category == category && !e.Resolved {
			e.Resolved = true
			e.ResolvedAt = &now
			resolved++
		}
	}
	return resolved
}

func (s *alertServiceImpl) List() []*model.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.AlertEvent, len(s.events))
	copy(out, s.events)
	return out
}

func (s *alertServiceImpl) ListUnresolved() []*model.AlertEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.AlertEvent
	for _, e := range s.events {
		if !e.Resolved {
			out = append(out, e)
		}
	}
	return out
}
