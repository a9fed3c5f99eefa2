/*
 * @Description: 存储提供者路由服务，按优先级推进并带重试与退避
 * @Author: 青澜
 * @Date: 2025-09-10 14:25:51
 * @LastEditTime: 2026-04-03 15:02:44
 * @LastEditors: 青澜
 */
package storagerouter

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/qinglan-dev/qinglan-app/internal/infra/storage"
	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	"github.com/hashicorp/go-multierror"
)

// UploadOutcome 是一次成功路由上传的结果。
type UploadOutcome struct {
	ObjectKey    string
	URL          string
	DeliveryURL  string
	ProviderUsed string // 实际写入成功的策略名
	Size         int64
}

// StorageRouterService 定义多存储路由的契约。
// 上传按策略优先级顺序推进：主存储的全部重试耗尽后才轮到下一个备用，
// 任何一次成功立即返回；全部耗尽返回 constant.ErrStorageExhausted，
// 其中聚合了每个策略的失败原因。
type StorageRouterService interface {
	Upload(ctx context.Context, data []byte, objectKey string) (*UploadOutcome, error)

	// Policies 返回按优先级排序的策略列表（0 为主存储）。
	Policies() []*model.StoragePolicy
}

type storageRouterServiceImpl struct {
	policies       []*model.StoragePolicy
	maxRetries     int
	backoffBase    time.Duration
	attemptTimeout time.Duration

	// 测试可注入假的提供者工厂
	providerFor func(*model.StoragePolicy) (storage.IStorageProvider, error)
}

// NewStorageRouterService 创建存储路由服务实例。
// policies 必须已按 Priority 升序排列（LoadPoliciesFromConfig 保证这一点）。
func NewStorageRouterService(cfg *config.Config, policies []*model.StoragePolicy) StorageRouterService {
	maxRetries := cfg.GetInt(config.KeyStorageMaxRetries)
	if maxRetries <= 0 {
		maxRetries = 3
	}
	backoffBase := time.Duration(cfg.GetInt(config.KeyStorageBackoffBaseMS)) * time.Millisecond
	if backoffBase <= 0 {
		backoffBase = 200 * time.Millisecond
	}
	attemptTimeout := time.Duration(cfg.GetInt(config.KeyStorageAttemptTimeMS)) * time.Millisecond
	if attemptTimeout <= 0 {
		attemptTimeout = 30 * time.Second
	}

	return &storageRouterServiceImpl{
		policies:       policies,
		maxRetries:     maxRetries,
		backoffBase:    backoffBase,
		attemptTimeout: attemptTimeout,
		providerFor:    storage.NewProviderForPolicy,
	}
}

func (s *storageRouterServiceImpl) Policies() []*model.StoragePolicy {
	return s.policies
}

func (s *storageRouterServiceImpl) Upload(ctx context.Context, data []byte, objectKey string) (*UploadOutcome, error) {
	if len(s.policies) == 0 {
		return nil, fmt.Errorf("%w: 未配置任何存储策略", constant.ErrStorageExhausted)
	}

	var merr *multierror.Error

	for _, policy := range s.policies {
		provider, err := s.providerFor(policy)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("策略 %s: %w", policy.Name, err))
			continue
		}

		res, lastErr := s.uploadWithRetry(ctx, provider, policy, data, objectKey)
		if lastErr == nil {
			return &UploadOutcome{
				ObjectKey:    res.ObjectKey,
				URL:          res.URL,
				DeliveryURL:  res.DeliveryURL,
				ProviderUsed: policy.Name,
				Size:         res.Size,
			}, nil
		}

		log.Printf("[存储路由] 策略耗尽: policy=%s, objectKey=%s, err=%v", policy.Name, objectKey, lastErr)
		merr = multierror.Append(merr, fmt.Errorf("策略 %s: %w", policy.Name, lastErr))

		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %v", constant.ErrStorageExhausted, merr)
}

// uploadWithRetry 在单个策略内做有界重试。
// 退避从 backoffBase 起逐次翻倍，等待期间响应取消。
func (s *storageRouterServiceImpl) uploadWithRetry(ctx context.Context, provider storage.IStorageProvider, policy *model.StoragePolicy, data []byte, objectKey string) (*storage.UploadResult, error) {
	var lastErr error

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.backoffBase << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
		res, err := provider.Upload(attemptCtx, bytes.NewReader(data), policy, objectKey)
		cancel()

		if err == nil {
			return res, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, lastErr
		}
	}
	return nil, fmt.Errorf("%w: %v", constant.ErrProviderUnavailable, lastErr)
}
