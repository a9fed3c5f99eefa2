package alert

import (
	"context"
	"sync"
	"testing"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

type captureNotifier struct {
	mu     sync.Mutex
	events []*model.AlertEvent
}

func (n *captureNotifier) Notify(_ context.Context, event *model.AlertEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.events)
}

func TestRaise_同类别未解除时去重(t *testing.T) {
	notifier := &captureNotifier{}
	svc := NewAlertService(notifier)
	ctx := context.Background()

	_, raised := svc.Raise(ctx, model.AlertCategoryAvailability, model.AlertSeverityCritical, "主域名不可用")
	if !raised {
		t.Fatal("首次告警应成功产生")
	}

	_, raised = svc.Raise(ctx, model.AlertCategoryAvailability, model.AlertSeverityCritical, "主域名仍不可用")
	if raised {
		t.Error("同类别未解除时不应产生新告警")
	}
	if notifier.count() != 1 {
		t.Errorf("通知次数应为 1, got %d", notifier.count())
	}
}

func TestRaise_不同类别互不影响(t *testing.T) {
	svc := NewAlertService(nil)
	ctx := context.Background()

	if _, raised := svc.Raise(ctx, model.AlertCategoryAvailability, model.AlertSeverityCritical, "可用性告警"); !raised {
		t.Fatal("可用性告警应产生")
	}
	if _, raised := svc.Raise(ctx, model.AlertCategoryLatency, model.AlertSeverityWarning, "延迟告警"); !raised {
		t.Error("延迟类别应独立于可用性类别")
	}
}

func TestResolve_解除后可再次告警(t *testing.T) {
	notifier := &captureNotifier{}
	svc := NewAlertService(notifier)
	ctx := context.Background()

	svc.Raise(ctx, model.AlertCategoryLatency, model.AlertSeverityWarning, "延迟超阈值")

	if n := svc.Resolve(ctx, model.AlertCategoryLatency); n != 1 {
		t.Fatalf("应解除 1 条告警, got %d", n)
	}

	event, raised := svc.Raise(ctx, model.AlertCategoryLatency, model.AlertSeverityWarning, "延迟再次超阈值")
	if !raised {
		t.Fatal("解除后的再次恶化应产生新告警")
	}
	if event.Resolved {
		t.Error("新告警不应处于已解除状态")
	}
	if notifier.count() != 2 {
		t.Errorf("通知次数应为 2, got %d", notifier.count())
	}
}

func TestRaise_并发下同类别只产生一条(t *testing.T) {
	svc := NewAlertService(&captureNotifier{})
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	raisedCh := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, raised := svc.Raise(ctx, model.AlertCategorySecurity, model.AlertSeverityWarning, "异常访问")
			raisedCh <- raised
		}()
	}
	wg.Wait()
	close(raisedCh)

	var count int
	for raised := range raisedCh {
		if raised {
			count++
		}
	}
	if count != 1 {
		t.Errorf("并发下应恰好产生一条告警, got %d", count)
	}
	if len(svc.ListUnresolved()) != 1 {
		t.Errorf("未解除告警应为 1 条, got %d", len(svc.ListUnresolved()))
	}
}
