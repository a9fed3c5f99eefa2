/*
 * @Description: 内容哈希注册表服务，负责内容寻址与去重
 * @Author: 青澜
 * @Date: 2025-09-08 09:21:40
 * @LastEditTime: 2026-04-03 10:18:27
 * @LastEditors: 青澜
 */
package hashreg

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/repository"
	"github.com/qinglan-dev/qinglan-app/pkg/idgen"

	"github.com/gabriel-vasile/mimetype"
	"github.com/redis/go-redis/v9"
)

const (
	blobCacheKeyPrefix = "qinglan:blob:"
	blobCacheTTL       = time.Hour
)

// HashRegistryService 定义内容哈希注册表的契约。
// 哈希是整个子系统的去重主键：同一份字节序列，无论被上传多少次、
// 由多少个并发请求同时提交，都只对应一条内容块记录。
type HashRegistryService interface {
	// LookupOrRegister 计算 payload 的 SHA-256，原子地登记或累加引用。
	// 返回登记后的内容块与 isNew（本次调用是否创建了新记录）。
	// 空 payload 返回 constant.ErrEmptyPayload。
	LookupOrRegister(ctx context.Context, data []byte, mimeType string) (*model.ContentBlob, bool, error)

	// FindByHash 按哈希查询内容块，未登记时返回 nil, nil。
	// 查询优先走缓存，缓存不可用时自动退化为直查数据库。
	FindByHash(ctx context.Context, hash string) (*model.ContentBlob, error)
}

type hashRegistryServiceImpl struct {
	blobRepo repository.BlobRepository
	redisCli *redis.Client // 可为 nil，此时缓存整体停用
}

// NewHashRegistryService 创建内容哈希注册表服务实例。
func NewHashRegistryService(blobRepo repository.BlobRepository, redisCli *redis.Client) HashRegistryService {
	return &hashRegistryServiceImpl{
		blobRepo: blobRepo,
		redisCli: redisCli,
	}
}

// ComputeHash 计算内容的 SHA-256 十六进制摘要。
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (s *hashRegistryServiceImpl) LookupOrRegister(ctx context.Context, data []byte, mimeType string) (*model.ContentBlob, bool, error) {
	if len(data) == 0 {
		return nil, false, constant.ErrEmptyPayload
	}

	hash := ComputeHash(data)

	blob := &model.ContentBlob{
		Hash:     hash,
		URL:      hash + "/original" + extensionFor(mimeType),
		Size:     int64(len(data)),
		MimeType: mimeType,
	}

	isNew, err := s.blobRepo.CreateOrIncrementRef(ctx, blob)
	if err != nil {
		return nil, false, fmt.Errorf("登记内容块失败: %w", err)
	}
	fillPublicID(blob)

	// 缓存写入尽力而为，失败不影响主流程
	s.cacheBlob(ctx, blob)

	return blob, isNew, nil
}

func (s *hashRegistryServiceImpl) FindByHash(ctx context.Context, hash string) (*model.ContentBlob, error) {
	if cached := s.cachedBlob(ctx, hash); cached != nil {
		return cached, nil
	}

	blob, err := s.blobRepo.FindByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("查询内容块失败: %w", err)
	}
	if blob != nil {
		fillPublicID(blob)
		s.cacheBlob(ctx, blob)
	}
	return blob, nil
}

// fillPublicID 为内容块补齐对外短 ID。公共 ID 不落库，读取时现算。
func fillPublicID(blob *model.ContentBlob) {
	if blob.PublicID != "" {
		return
	}
	if id, err := idgen.GeneratePublicID(blob.ID, idgen.EntityTypeContentBlob); err == nil {
		blob.PublicID = id
	}
}

// cacheBlob 把内容块写入Redis缓存。
func (s *hashRegistryServiceImpl) cacheBlob(ctx context.Context, blob *model.ContentBlob) {
	if s.redisCli == nil {
		return
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return
	}
	if err := s.redisCli.Set(ctx, blobCacheKeyPrefix+blob.Hash, data, blobCacheTTL).Err(); err != nil {
		log.Printf("[哈希注册表] 写入缓存失败: hash=%s, err=%v", blob.Hash, err)
	}
}

// cachedBlob 尝试从Redis读取内容块，任何失败都按缓存未命中处理。
func (s *hashRegistryServiceImpl) cachedBlob(ctx context.Context, hash string) *model.ContentBlob {
	if s.redisCli == nil {
		return nil
	}
	data, err := s.redisCli.Get(ctx, blobCacheKeyPrefix+hash).Bytes()
	if err != nil {
		return nil
	}
	var blob model.ContentBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil
	}
	return &blob
}

// extensionFor 根据 MIME 类型推断对象键使用的扩展名。
func extensionFor(mimeType string) string {
	if m := mimetype.Lookup(mimeType); m != nil && m.Extension() != "" {
		return m.Extension()
	}
	return ".bin"
}
