package storagerouter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/qinglan-dev/qinglan-app/internal/infra/storage"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// fakeProvider 按预设的失败次数响应上传。
type fakeProvider struct {
	name      string
	failTimes int // 前 N 次上传失败
	calls     int
}

func (f *fakeProvider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*storage.UploadResult, error) {
	f.calls++
	if f.calls <= f.failTimes {
		return nil, fmt.Errorf("provider %s temporary failure #%d", f.name, f.calls)
	}
	return &storage.UploadResult{
		ObjectKey:   objectKey,
		URL:         fmt.Sprintf("fake://%s/%s", f.name, objectKey),
		DeliveryURL: fmt.Sprintf("https://cdn.example.com/%s", objectKey),
		Size:        int64(128),
	}, nil
}

func (f *fakeProvider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	return false, nil
}

func (f *fakeProvider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return fmt.Sprintf("https://cdn.example.com/%s", objectKey), nil
}

func newTestRouter(providers map[string]*fakeProvider, order ...string) *storageRouterServiceImpl {
	policies := make([]*model.StoragePolicy, 0, len(order))
	for i, name := range order {
		policies = append(policies, &model.StoragePolicy{
			Name:     name,
			Type:     constant.PolicyTypeLocal,
			Priority: i,
		})
	}
	return &storageRouterServiceImpl{
		policies:       policies,
		maxRetries:     3,
		backoffBase:    time.Millisecond,
		attemptTimeout: time.Second,
		providerFor: func(p *model.StoragePolicy) (storage.IStorageProvider, error) {
			return providers[p.Name], nil
		},
	}
}

func TestUpload_主存储成功不触碰备用(t *testing.T) {
	primary := &fakeProvider{name: "primary"}
	backup := &fakeProvider{name: "backup"}
	router := newTestRouter(map[string]*fakeProvider{"primary": primary, "backup": backup}, "primary", "backup")

	outcome, err := router.Upload(context.Background(), []byte("data"), "abc/original.jpg")
	if err != nil {
		t.Fatalf("上传失败: %v", err)
	}
	if outcome.ProviderUsed != "primary" {
		t.Errorf("应使用主存储, got %s", outcome.ProviderUsed)
	}
	if backup.calls != 0 {
		t.Errorf("备用存储被调用了 %d 次", backup.calls)
	}
}

func TestUpload_主存储耗尽后切换备用(t *testing.T) {
	primary := &fakeProvider{name: "primary", failTimes: 99}
	backup := &fakeProvider{name: "backup"}
	router := newTestRouter(map[string]*fakeProvider{"primary": primary, "backup": backup}, "primary", "backup")

	outcome, err := router.Upload(context.Background(), []byte("data"), "abc/original.jpg")
	if err != nil {
		t.Fatalf("上传失败: %v", err)
	}
	if outcome.ProviderUsed != "backup" {
		t.Errorf("应切换到备用存储, got %s", outcome.ProviderUsed)
	}
	if primary.calls != 3 {
		t.Errorf("主存储应恰好重试 3 次, got %d", primary.calls)
	}
}

func TestUpload_瞬时失败在重试内恢复(t *testing.T) {
	primary := &fakeProvider{name: "primary", failTimes: 2}
	router := newTestRouter(map[string]*fakeProvider{"primary": primary}, "primary")

	outcome, err := router.Upload(context.Background(), []byte("data"), "abc/original.jpg")
	if err != nil {
		t.Fatalf("上传失败: %v", err)
	}
	if outcome.ProviderUsed != "primary" {
		t.Errorf("应在主存储上恢复, got %s", outcome.ProviderUsed)
	}
	if primary.calls != 3 {
		t.Errorf("应在第 3 次尝试成功, got %d", primary.calls)
	}
}

func TestUpload_全部耗尽返回聚合错误(t *testing.T) {
	primary := &fakeProvider{name: "primary", failTimes: 99}
	backup := &fakeProvider{name: "backup", failTimes: 99}
	router := newTestRouter(map[string]*fakeProvider{"primary": primary, "backup": backup}, "primary", "backup")

	_, err := router.Upload(context.Background(), []byte("data"), "abc/original.jpg")
	if !errors.Is(err, constant.ErrStorageExhausted) {
		t.Fatalf("应返回 ErrStorageExhausted, got %v", err)
	}
	for _, name := range []string{"primary", "backup"} {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("聚合错误应包含策略 %s 的失败原因: %v", name, err)
		}
	}
	if !constant.IsRetryable(err) {
		t.Error("存储耗尽应被判定为可重试")
	}
}

func TestUpload_取消后立即停止(t *testing.T) {
	primary := &fakeProvider{name: "primary", failTimes: 99}
	backup := &fakeProvider{name: "backup"}
	router := newTestRouter(map[string]*fakeProvider{"primary": primary, "backup": backup}, "primary", "backup")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := router.Upload(ctx, []byte("data"), "abc/original.jpg")
	if !errors.Is(err, constant.ErrStorageExhausted) {
		t.Fatalf("应返回 ErrStorageExhausted, got %v", err)
	}
	if backup.calls != 0 {
		t.Errorf("取消后不应继续尝试备用存储, got %d 次调用", backup.calls)
	}
}
