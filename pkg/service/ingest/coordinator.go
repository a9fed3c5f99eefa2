/*
 * @Description: 摄取协调服务，编排校验、去重、变体派生与多存储写入
 * @Author: 青澜
 * @Date: 2025-09-15 09:30:44
 * @LastEditTime: 2026-04-07 11:18:36
 * @LastEditors: 青澜
 */
package ingest

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/repository"
	"github.com/qinglan-dev/qinglan-app/pkg/idgen"
	"github.com/qinglan-dev/qinglan-app/pkg/service/hashreg"
	"github.com/qinglan-dev/qinglan-app/pkg/service/storagerouter"
	"github.com/qinglan-dev/qinglan-app/pkg/service/utility"
	"github.com/qinglan-dev/qinglan-app/pkg/service/variant"

	"github.com/gabriel-vasile/mimetype"
)

// IngestionCoordinatorService 定义媒体摄取的入口契约。
// 协调器不实现任何算法，只负责把注册表、变体处理器与存储路由
// 按固定顺序编排起来，并保证同一内容哈希至多一次物理写入。
type IngestionCoordinatorService interface {
	// Ingest 处理一次完整的上传。
	// 重复内容走去重快路径：只新建资产记录，不做任何存储写入与变体派生。
	Ingest(ctx context.Context, data []byte, fileName string, metadata map[string]string) (*model.MediaAsset, error)

	// GetAsset 按公共ID查询资产。未找到返回 constant.ErrNotFound。
	GetAsset(ctx context.Context, publicID string) (*model.MediaAsset, error)
}

type ingestionCoordinatorServiceImpl struct {
	allowedTypes map[string]struct{}
	registry     hashreg.HashRegistryService
	processor    variant.VariantProcessorService
	router       storagerouter.StorageRouterService
	assetRepo    repository.MediaAssetRepository
	colorSvc     *utility.ColorService
}

// NewIngestionCoordinatorService 创建摄取协调服务实例。
func NewIngestionCoordinatorService(
	cfg *config.Config,
	registry hashreg.HashRegistryService,
	processor variant.VariantProcessorService,
	router storagerouter.StorageRouterService,
	assetRepo repository.MediaAssetRepository,
	colorSvc *utility.ColorService,
) IngestionCoordinatorService {
	allowed := make(map[string]struct{})
	for _, t := range cfg.GetStringSlice(config.KeyIngestAllowedTypes) {
		if t = strings.TrimSpace(strings.ToLower(t)); t != "" {
			allowed[t] = struct{}{}
		}
	}

	return &ingestionCoordinatorServiceImpl{
		allowedTypes: allowed,
		registry:     registry,
		processor:    processor,
		router:       router,
		assetRepo:    assetRepo,
		colorSvc:     colorSvc,
	}
}

func (s *ingestionCoordinatorServiceImpl) Ingest(ctx context.Context, data []byte, fileName string, metadata map[string]string) (*model.MediaAsset, error) {
	if len(data) == 0 {
		return nil, constant.ErrEmptyPayload
	}

	// 以字节嗅探结果为准，不信任客户端申报的类型
	sniffed := mimetype.Detect(data)
	mimeType := strings.ToLower(sniffed.String())
	if idx := strings.Index(mimeType, ";"); idx >= 0 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}
	if _, ok := s.allowedTypes[mimeType]; !ok {
		return nil, fmt.Errorf("%w: %s", constant.ErrUnsupportedMediaType, mimeType)
	}

	blob, isNew, err := s.registry.LookupOrRegister(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	if !isNew {
		asset, cloned, err := s.ingestDuplicate(ctx, blob, fileName, metadata)
		if err != nil {
			return nil, err
		}
		if cloned {
			return asset, nil
		}
		// 哈希已登记但没有任何资产带着原件投递URL——说明此前的
		// 原件写入失败过。对象键由内容寻址决定，重走全量路径是幂等的。
		log.Printf("[摄取] 命中已登记哈希但原件缺失，回退全量写入: hash=%s", blob.Hash)
	}
	return s.ingestNew(ctx, data, blob, mimeType, sniffed.Extension(), fileName, metadata)
}

// ingestDuplicate 是去重快路径：复用已有资产的投递信息，零存储写入。
// 找不到带原件投递URL的同哈希资产时返回 cloned=false，由调用方回退全量路径。
func (s *ingestionCoordinatorServiceImpl) ingestDuplicate(ctx context.Context, blob *model.ContentBlob, fileName string, metadata map[string]string) (*model.MediaAsset, bool, error) {
	log.Printf("[摄取] 命中内容去重: hash=%s, refCount=%d", blob.Hash, blob.RefCount)

	siblings, err := s.assetRepo.FindByContentHash(ctx, blob.Hash)
	if err != nil {
		return nil, false, fmt.Errorf("查询同哈希资产失败: %w", err)
	}

	// 变体与投递URL从最早的完整同哈希资产克隆，物理对象早已就位。
	// 只认 completed 资产：partially-failed 的变体不全，克隆会把缺口传染下去，
	// 这类哈希交给全量路径按确定性对象键补齐。
	// FindByContentHash 不带变体，选中后按ID回读完整资产。
	var source *model.MediaAsset
	for _, candidate := range siblings {
		if candidate.OriginalURL == "" || candidate.Status != model.AssetStatusCompleted {
			continue
		}
		sibling, err := s.assetRepo.FindByID(ctx, candidate.ID)
		if err != nil {
			return nil, false, fmt.Errorf("回读同哈希资产失败: %w", err)
		}
		if sibling == nil || sibling.OriginalURL == "" {
			continue
		}
		source = sibling
		break
	}
	if source == nil {
		return nil, false, nil
	}

	asset := &model.MediaAsset{
		ContentHash: blob.Hash,
		FileName:    fileName,
		OriginalURL: source.OriginalURL,
		Status:      model.AssetStatusCompleted,
		Metadata:    metadata,
	}
	if asset.Metadata == nil {
		asset.Metadata = make(map[string]string)
	}
	for k, v := range source.Metadata {
		if _, exists := asset.Metadata[k]; !exists {
			asset.Metadata[k] = v
		}
	}
	for _, v := range source.Variants {
		asset.Variants = append(asset.Variants, &model.MediaVariant{
			Label:       v.Label,
			Format:      v.Format,
			Width:       v.Width,
			Height:      v.Height,
			Size:        v.Size,
			DeliveryURL: v.DeliveryURL,
		})
	}

	if err := s.finalize(ctx, asset); err != nil {
		return nil, false, err
	}
	return asset, true, nil
}

// ingestNew 是全量慢路径：派生变体、写入存储、落库。
// 原件上传失败是致命的（资产不创建）；单个变体上传失败只降级资产状态。
func (s *ingestionCoordinatorServiceImpl) ingestNew(ctx context.Context, data []byte, blob *model.ContentBlob, mimeType, ext, fileName string, metadata map[string]string) (*model.MediaAsset, error) {
	result, err := s.processor.Process(ctx, data, mimeType)
	if err != nil {
		return nil, err
	}

	originalKey := blob.Hash + "/original" + ext
	originalOutcome, err := s.router.Upload(ctx, data, originalKey)
	if err != nil {
		return nil, fmt.Errorf("原件写入失败: %w", err)
	}

	asset := &model.MediaAsset{
		ContentHash: blob.Hash,
		FileName:    fileName,
		OriginalURL: originalOutcome.DeliveryURL,
		Status:      model.AssetStatusCompleted,
		Metadata:    s.enrichMetadata(data, mimeType, result, metadata),
	}

	failedUploads := len(result.Failures)
	for _, v := range result.Variants {
		variantKey := blob.Hash + "/" + v.Label + variant.ExtensionForFormat(v.Format)
		outcome, upErr := s.router.Upload(ctx, v.Data, variantKey)
		if upErr != nil {
			log.Printf("[摄取] 变体写入失败: hash=%s, label=%s, err=%v", blob.Hash, v.Label, upErr)
			failedUploads++
			continue
		}
		asset.Variants = append(asset.Variants, &model.MediaVariant{
			Label:       v.Label,
			Format:      v.Format,
			Width:       v.Width,
			Height:      v.Height,
			Size:        outcome.Size,
			DeliveryURL: outcome.DeliveryURL,
		})
	}

	if failedUploads > 0 {
		asset.Status = model.AssetStatusPartiallyFailed
	}

	if err := s.finalize(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// enrichMetadata 在调用方元数据之上补充图片尺寸与主色调。
func (s *ingestionCoordinatorServiceImpl) enrichMetadata(data []byte, mimeType string, result *variant.Result, metadata map[string]string) map[string]string {
	enriched := make(map[string]string, len(metadata)+3)
	for k, v := range metadata {
		enriched[k] = v
	}

	if result.SourceWidth > 0 {
		enriched["width"] = strconv.Itoa(result.SourceWidth)
		enriched["height"] = strconv.Itoa(result.SourceHeight)
	}

	if s.colorSvc != nil && strings.HasPrefix(mimeType, "image/") {
		if color, err := s.colorSvc.GetPrimaryColor(data); err == nil {
			enriched["primary_color"] = color
		} else {
			log.Printf("[摄取] 主色调提取失败: %v", err)
		}
	}
	return enriched
}

// finalize 落库并生成公共ID。
func (s *ingestionCoordinatorServiceImpl) finalize(ctx context.Context, asset *model.MediaAsset) error {
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return fmt.Errorf("持久化资产失败: %w", err)
	}

	publicID, err := idgen.GeneratePublicID(asset.ID, idgen.EntityTypeMediaAsset)
	if err != nil {
		return fmt.Errorf("生成公共ID失败: %w", err)
	}
	asset.PublicID = publicID
	return nil
}

func (s *ingestionCoordinatorServiceImpl) GetAsset(ctx context.Context, publicID string) (*model.MediaAsset, error) {
	dbID, entityType, err := idgen.DecodePublicID(publicID)
	if err != nil || entityType != idgen.EntityTypeMediaAsset {
		return nil, constant.ErrInvalidPublicID
	}

	asset, err := s.assetRepo.FindByID(ctx, dbID)
	if err != nil {
		return nil, fmt.Errorf("查询资产失败: %w", err)
	}
	if asset == nil {
		return nil, constant.ErrNotFound
	}

	asset.PublicID = publicID
	return asset, nil
}
