/*
 * @Description: 内容块仓库接口（持久化边界的窄契约）
 * @Author: 青澜
 * @Date: 2025-09-05 16:10:27
 * @LastEditTime: 2026-02-11 09:55:13
 * @LastEditors: 青澜
 */
package repository

import (
	"context"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// BlobRepository 定义内容块的持久化契约。
// 本子系统不规定底层存储，只要求 CreateOrIncrementRef 在并发的
// 相同内容上传下保持原子：同一 hash 绝不产生两行记录。
type BlobRepository interface {
	// CreateOrIncrementRef 若 hash 不存在则创建引用计数为 1 的新记录并返回 isNew=true；
	// 否则原子地把引用计数加一、刷新最后引用时间，返回 isNew=false。
	// 实现必须用单条 upsert 语句或唯一约束+重试来消解并发冲突。
	CreateOrIncrementRef(ctx context.Context, blob *model.ContentBlob) (isNew bool, err error)

	// FindByHash 根据内容哈希查找。未找到时返回 nil, nil。
	FindByHash(ctx context.Context, hash string) (*model.ContentBlob, error)
}
