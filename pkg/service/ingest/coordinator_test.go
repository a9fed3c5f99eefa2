package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/idgen"
	"github.com/qinglan-dev/qinglan-app/pkg/service/hashreg"
	"github.com/qinglan-dev/qinglan-app/pkg/service/storagerouter"
	"github.com/qinglan-dev/qinglan-app/pkg/service/variant"

	"github.com/disintegration/imaging"
)

func TestMain(m *testing.M) {
	if err := idgen.InitSqidsEncoder(); err != nil {
		panic(err)
	}
	m.Run()
}

// ---- 测试替身 ----

type memBlobRepo struct {
	mu    sync.Mutex
	blobs map[string]*model.ContentBlob
}

func newMemBlobRepo() *memBlobRepo {
	return &memBlobRepo{blobs: make(map[string]*model.ContentBlob)}
}

func (r *memBlobRepo) CreateOrIncrementRef(_ context.Context, blob *model.ContentBlob) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.blobs[blob.Hash]; ok {
		existing.RefCount++
		*blob = *existing
		return false, nil
	}
	blob.ID = uint(len(r.blobs) + 1)
	blob.RefCount = 1
	blob.FirstSeen = time.Now()
	stored := *blob
	r.blobs[blob.Hash] = &stored
	return true, nil
}

func (r *memBlobRepo) FindByHash(_ context.Context, hash string) (*model.ContentBlob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.blobs[hash]; ok {
		copied := *b
		return &copied, nil
	}
	return nil, nil
}

type memAssetRepo struct {
	mu     sync.Mutex
	assets map[uint]*model.MediaAsset
	nextID uint
}

func newMemAssetRepo() *memAssetRepo {
	return &memAssetRepo{assets: make(map[uint]*model.MediaAsset)}
}

func (r *memAssetRepo) Create(_ context.Context, asset *model.MediaAsset) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	asset.ID = r.nextID
	asset.CreatedAt = time.Now()
	asset.UpdatedAt = asset.CreatedAt
	stored := *asset
	r.assets[asset.ID] = &stored
	return nil
}

func (r *memAssetRepo) FindByID(_ context.Context, id uint) (*model.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a, ok := r.assets[id]; ok {
		copied := *a
		return &copied, nil
	}
	return nil, nil
}

func (r *memAssetRepo) FindByContentHash(_ context.Context, hash string) ([]*model.MediaAsset, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*model.MediaAsset
	for _, a := range r.assets {
		if a.ContentHash == hash {
			copied := *a
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memAssetRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.assets)
}

// fakeRouter 记录每次上传的对象键，可按键前缀注入失败。
type fakeRouter struct {
	mu       sync.Mutex
	uploaded []string
	failKeys []string // 对象键包含任一子串即失败
}

func (f *fakeRouter) Upload(_ context.Context, data []byte, objectKey string) (*storagerouter.UploadOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, frag := range f.failKeys {
		if strings.Contains(objectKey, frag) {
			return nil, fmt.Errorf("%w: 模拟全部策略失败", constant.ErrStorageExhausted)
		}
	}
	f.uploaded = append(f.uploaded, objectKey)
	return &storagerouter.UploadOutcome{
		ObjectKey:    objectKey,
		URL:          "local://" + objectKey,
		DeliveryURL:  "https://cdn.example.com/" + objectKey,
		ProviderUsed: "primary",
		Size:         int64(len(data)),
	}, nil
}

func (f *fakeRouter) Policies() []*model.StoragePolicy { return nil }

func (f *fakeRouter) setFailKeys(keys []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failKeys = keys
}

func (f *fakeRouter) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploaded)
}

// fakeProcessor 返回预设的变体与失败，不做真实的图像处理。
type fakeProcessor struct {
	result *variant.Result
	err    error
}

func (f *fakeProcessor) Process(_ context.Context, _ []byte, mimeType string) (*variant.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return &variant.Result{}, nil
	}
	return f.result, nil
}

// ---- 测试环境 ----

type testEnv struct {
	svc       IngestionCoordinatorService
	router    *fakeRouter
	assetRepo *memAssetRepo
}

func newTestEnv(processor variant.VariantProcessorService, router *fakeRouter) *testEnv {
	assetRepo := newMemAssetRepo()
	registry := hashreg.NewHashRegistryService(newMemBlobRepo(), nil)

	svc := &ingestionCoordinatorServiceImpl{
		allowedTypes: map[string]struct{}{"image/png": {}, "image/jpeg": {}},
		registry:     registry,
		processor:    processor,
		router:       router,
		assetRepo:    assetRepo,
		colorSvc:     nil,
	}
	return &testEnv{svc: svc, router: router, assetRepo: assetRepo}
}

func defaultProcessor() *fakeProcessor {
	return &fakeProcessor{result: &variant.Result{
		SourceWidth:  800,
		SourceHeight: 600,
		Variants: []*variant.ProcessedVariant{
			{Label: "thumbnail", Format: "png", Width: 320, Height: 240, Data: []byte("thumb")},
			{Label: "small", Format: "png", Width: 640, Height: 480, Data: []byte("small")},
		},
	}}
}

func makeTestPNG(t *testing.T, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: seed, G: 100, B: 200, A: 255})
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		t.Fatalf("生成测试图片失败: %v", err)
	}
	return buf.Bytes()
}

// ---- 测试 ----

func TestIngest_空内容与类型校验(t *testing.T) {
	env := newTestEnv(defaultProcessor(), &fakeRouter{})

	if _, err := env.svc.Ingest(context.Background(), nil, "a.png", nil); !errors.Is(err, constant.ErrEmptyPayload) {
		t.Errorf("空内容应返回 ErrEmptyPayload, got %v", err)
	}

	if _, err := env.svc.Ingest(context.Background(), []byte("plain text content here"), "a.txt", nil); !errors.Is(err, constant.ErrUnsupportedMediaType) {
		t.Errorf("文本类型应返回 ErrUnsupportedMediaType, got %v", err)
	}

	if env.router.uploadCount() != 0 {
		t.Errorf("校验失败不应触发任何上传, got %d", env.router.uploadCount())
	}
}

func TestIngest_新内容全量路径(t *testing.T) {
	env := newTestEnv(defaultProcessor(), &fakeRouter{})
	data := makeTestPNG(t, 1)
	wantHash := hashreg.ComputeHash(data)

	asset, err := env.svc.Ingest(context.Background(), data, "photo.png", map[string]string{"album": "travel"})
	if err != nil {
		t.Fatalf("摄取失败: %v", err)
	}

	if asset.Status != model.AssetStatusCompleted {
		t.Errorf("状态应为 completed, got %s", asset.Status)
	}
	if asset.ContentHash != wantHash {
		t.Errorf("内容哈希不符: got %s", asset.ContentHash)
	}
	if asset.PublicID == "" {
		t.Error("应生成公共ID")
	}
	if len(asset.Variants) != 2 {
		t.Fatalf("应有 2 个变体, got %d", len(asset.Variants))
	}

	// 原件 + 2 个变体 = 3 次上传，对象键均以哈希为前缀
	if env.router.uploadCount() != 3 {
		t.Fatalf("应上传 3 个对象, got %d", env.router.uploadCount())
	}
	for _, key := range env.router.uploaded {
		if !strings.HasPrefix(key, wantHash+"/") {
			t.Errorf("对象键应以内容哈希为前缀: %s", key)
		}
	}

	if asset.Metadata["width"] != "800" || asset.Metadata["height"] != "600" {
		t.Errorf("应补充图片尺寸元数据: %v", asset.Metadata)
	}
	if asset.Metadata["album"] != "travel" {
		t.Errorf("调用方元数据应保留: %v", asset.Metadata)
	}
}

func TestIngest_重复内容走去重快路径(t *testing.T) {
	env := newTestEnv(defaultProcessor(), &fakeRouter{})
	data := makeTestPNG(t, 2)

	first, err := env.svc.Ingest(context.Background(), data, "first.png", nil)
	if err != nil {
		t.Fatalf("首次摄取失败: %v", err)
	}
	uploadsAfterFirst := env.router.uploadCount()

	second, err := env.svc.Ingest(context.Background(), data, "second.png", nil)
	if err != nil {
		t.Fatalf("二次摄取失败: %v", err)
	}

	if env.router.uploadCount() != uploadsAfterFirst {
		t.Errorf("去重路径不应有任何存储写入: %d -> %d", uploadsAfterFirst, env.router.uploadCount())
	}
	if second.PublicID == first.PublicID {
		t.Error("重复上传应产生新资产（新公共ID）")
	}
	if second.ContentHash != first.ContentHash {
		t.Error("两个资产应指向同一内容哈希")
	}
	if second.Status != model.AssetStatusCompleted {
		t.Errorf("去重资产状态应为 completed, got %s", second.Status)
	}
	if len(second.Variants) != len(first.Variants) {
		t.Errorf("去重资产应克隆变体: got %d, want %d", len(second.Variants), len(first.Variants))
	}
	if second.OriginalURL != first.OriginalURL {
		t.Error("去重资产应复用原件投递URL")
	}
}

func TestIngest_原件写入失败不创建资产(t *testing.T) {
	router := &fakeRouter{failKeys: []string{"/original"}}
	env := newTestEnv(defaultProcessor(), router)

	_, err := env.svc.Ingest(context.Background(), makeTestPNG(t, 3), "photo.png", nil)
	if !errors.Is(err, constant.ErrStorageExhausted) {
		t.Fatalf("应返回 ErrStorageExhausted, got %v", err)
	}
	if env.assetRepo.count() != 0 {
		t.Errorf("原件失败后不应持久化资产, got %d", env.assetRepo.count())
	}
}

func TestIngest_原件失败后重传同内容可修复(t *testing.T) {
	router := &fakeRouter{failKeys: []string{"/original"}}
	env := newTestEnv(defaultProcessor(), router)
	data := makeTestPNG(t, 7)

	if _, err := env.svc.Ingest(context.Background(), data, "photo.png", nil); !errors.Is(err, constant.ErrStorageExhausted) {
		t.Fatalf("首次摄取应因原件写入失败而失败, got %v", err)
	}
	if env.assetRepo.count() != 0 {
		t.Fatalf("失败的摄取不应持久化资产")
	}

	// 存储恢复后重传同一份字节：哈希已登记，但不能走去重快路径，
	// 必须重走全量写入把缺失的物理对象补齐
	router.setFailKeys(nil)
	asset, err := env.svc.Ingest(context.Background(), data, "retry.png", nil)
	if err != nil {
		t.Fatalf("重传失败: %v", err)
	}

	if asset.Status != model.AssetStatusCompleted {
		t.Errorf("重传后状态应为 completed, got %s", asset.Status)
	}
	if asset.OriginalURL == "" {
		t.Error("重传后应补齐原件投递URL")
	}
	if len(asset.Variants) != 2 {
		t.Errorf("重传应生成全部变体, got %d", len(asset.Variants))
	}
	// 原件 + 2 个变体，全部物理写入
	if env.router.uploadCount() != 3 {
		t.Errorf("重传应执行 3 次存储写入, got %d", env.router.uploadCount())
	}
}

func TestIngest_变体写入失败只降级状态(t *testing.T) {
	router := &fakeRouter{failKeys: []string{"/small"}}
	env := newTestEnv(defaultProcessor(), router)

	asset, err := env.svc.Ingest(context.Background(), makeTestPNG(t, 4), "photo.png", nil)
	if err != nil {
		t.Fatalf("变体失败不应使整次摄取失败: %v", err)
	}
	if asset.Status != model.AssetStatusPartiallyFailed {
		t.Errorf("状态应为 partially-failed, got %s", asset.Status)
	}
	if len(asset.Variants) != 1 || asset.Variants[0].Label != "thumbnail" {
		t.Errorf("成功的变体应保留: %+v", asset.Variants)
	}
}

func TestIngest_变体派生失败计入降级(t *testing.T) {
	processor := &fakeProcessor{result: &variant.Result{
		SourceWidth:  800,
		SourceHeight: 600,
		Variants: []*variant.ProcessedVariant{
			{Label: "thumbnail", Format: "png", Width: 320, Height: 240, Data: []byte("thumb")},
		},
		Failures: []variant.FailedVariant{{Label: "small", Reason: "编码失败"}},
	}}
	env := newTestEnv(processor, &fakeRouter{})

	asset, err := env.svc.Ingest(context.Background(), makeTestPNG(t, 5), "photo.png", nil)
	if err != nil {
		t.Fatalf("摄取失败: %v", err)
	}
	if asset.Status != model.AssetStatusPartiallyFailed {
		t.Errorf("派生失败应降级状态, got %s", asset.Status)
	}
}

func TestGetAsset_公共ID往返(t *testing.T) {
	env := newTestEnv(defaultProcessor(), &fakeRouter{})

	created, err := env.svc.Ingest(context.Background(), makeTestPNG(t, 6), "photo.png", nil)
	if err != nil {
		t.Fatalf("摄取失败: %v", err)
	}

	got, err := env.svc.GetAsset(context.Background(), created.PublicID)
	if err != nil {
		t.Fatalf("查询失败: %v", err)
	}
	if got.ContentHash != created.ContentHash {
		t.Errorf("查询结果不符: %+v", got)
	}

	if _, err := env.svc.GetAsset(context.Background(), "not-a-real-id"); !errors.Is(err, constant.ErrInvalidPublicID) {
		t.Errorf("非法公共ID应返回 ErrInvalidPublicID, got %v", err)
	}
}
