/*
 * @Description: 媒体资产仓库接口
 * @Author: 青澜
 * @Date: 2025-09-05 16:18:42
 * @LastEditTime: 2026-02-11 10:01:36
 * @LastEditors: 青澜
 */
package repository

import (
	"context"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// MediaAssetRepository 定义媒体资产及其变体的持久化契约。
type MediaAssetRepository interface {
	// Create 持久化一个新资产及其全部变体行，回填数据库ID与时间戳。
	Create(ctx context.Context, asset *model.MediaAsset) error

	// FindByID 根据数据库ID查找资产（含变体）。未找到时返回 nil, nil。
	FindByID(ctx context.Context, id uint) (*model.MediaAsset, error)

	// FindByContentHash 返回指向同一内容哈希的所有资产。
	FindByContentHash(ctx context.Context, hash string) ([]*model.MediaAsset, error)
}
