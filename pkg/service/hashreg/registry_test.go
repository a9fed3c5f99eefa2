package hashreg

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// memBlobRepo 是 BlobRepository 的内存实现，模拟 upsert 语义。
type memBlobRepo struct {
	mu    sync.Mutex
	blobs map[string]*model.ContentBlob
}

func newMemBlobRepo() *memBlobRepo {
	return &memBlobRepo{blobs: make(map[string]*model.ContentBlob)}
}

func (r *memBlobRepo) CreateOrIncrementRef(ctx context.Context, blob *model.ContentBlob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.blobs[blob.Hash]; ok {
		existing.RefCount++
		existing.LastRef = time.Now()
		*blob = *existing
		return false, nil
	}

	blob.ID = uint(len(r.blobs) + 1)
	blob.RefCount = 1
	blob.FirstSeen = time.Now()
	blob.LastRef = blob.FirstSeen
	stored := *blob
	r.blobs[blob.Hash] = &stored
	return true, nil
}

func (r *memBlobRepo) FindByHash(ctx context.Context, hash string) (*model.ContentBlob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if blob, ok := r.blobs[hash]; ok {
		copied := *blob
		return &copied, nil
	}
	return nil, nil
}

func TestLookupOrRegister(t *testing.T) {
	payload := []byte("hello qinglan")
	wantHash := ComputeHash(payload)

	tests := []struct {
		name      string
		data      []byte
		mimeType  string
		wantIsNew bool
		wantErr   error
	}{
		{"空内容应返回校验错误", nil, "image/png", false, constant.ErrEmptyPayload},
		{"首次登记返回isNew", payload, "image/png", true, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewHashRegistryService(newMemBlobRepo(), nil)
			blob, isNew, err := svc.LookupOrRegister(context.Background(), tt.data, tt.mimeType)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("错误不符: got %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			if isNew != tt.wantIsNew {
				t.Errorf("isNew 不符: got %v, want %v", isNew, tt.wantIsNew)
			}
			if blob.Hash != wantHash {
				t.Errorf("哈希不符: got %s, want %s", blob.Hash, wantHash)
			}
			if blob.RefCount != 1 {
				t.Errorf("引用计数应为 1, got %d", blob.RefCount)
			}
		})
	}
}

func TestLookupOrRegister_重复内容累加引用(t *testing.T) {
	svc := NewHashRegistryService(newMemBlobRepo(), nil)
	payload := []byte("same bytes twice")

	_, isNew, err := svc.LookupOrRegister(context.Background(), payload, "image/jpeg")
	if err != nil || !isNew {
		t.Fatalf("首次登记异常: isNew=%v, err=%v", isNew, err)
	}

	blob, isNew, err := svc.LookupOrRegister(context.Background(), payload, "image/jpeg")
	if err != nil {
		t.Fatalf("二次登记失败: %v", err)
	}
	if isNew {
		t.Error("相同内容的二次登记不应返回 isNew")
	}
	if blob.RefCount != 2 {
		t.Errorf("引用计数应为 2, got %d", blob.RefCount)
	}
}

func TestLookupOrRegister_并发相同内容只产生一条记录(t *testing.T) {
	repo := newMemBlobRepo()
	svc := NewHashRegistryService(repo, nil)
	payload := []byte("concurrent identical upload")

	const workers = 16
	var wg sync.WaitGroup
	newCount := make(chan bool, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, isNew, err := svc.LookupOrRegister(context.Background(), payload, "image/png")
			if err != nil {
				t.Errorf("并发登记失败: %v", err)
				return
			}
			newCount <- isNew
		}()
	}
	wg.Wait()
	close(newCount)

	var news int
	for isNew := range newCount {
		if isNew {
			news++
		}
	}
	if news != 1 {
		t.Errorf("应恰好有一次登记返回 isNew, got %d", news)
	}

	blob, _ := repo.FindByHash(context.Background(), ComputeHash(payload))
	if blob == nil || blob.RefCount != workers {
		t.Fatalf("引用计数应为 %d, got %+v", workers, blob)
	}
}

func TestFindByHash_未登记返回nil(t *testing.T) {
	svc := NewHashRegistryService(newMemBlobRepo(), nil)
	blob, err := svc.FindByHash(context.Background(), ComputeHash([]byte("never seen")))
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if blob != nil {
		t.Errorf("未登记的哈希应返回 nil, got %+v", blob)
	}
}
