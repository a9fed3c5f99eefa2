/*
 * @Description: 媒体资产仓库的 SQL 实现
 * @Author: 青澜
 * @Date: 2025-09-06 11:22:14
 * @LastEditTime: 2026-03-15 22:18:09
 * @LastEditors: 青澜
 */
package sqldb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/repository"
)

// sqlMediaAssetRepository 是 MediaAssetRepository 接口的 database/sql 实现。
type sqlMediaAssetRepository struct {
	db         *sql.DB
	driverName string
}

// NewSQLMediaAssetRepository 是 sqlMediaAssetRepository 的构造函数。
func NewSQLMediaAssetRepository(db *sql.DB, driverName string) repository.MediaAssetRepository {
	return &sqlMediaAssetRepository{db: db, driverName: driverName}
}

// rebind 把 '?' 占位符改写为 postgres 的 '$n' 形式。
func (r *sqlMediaAssetRepository) rebind(query string) string {
	if r.driverName != "postgres" {
		return query
	}
	out := make([]byte, 0, len(query)+8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			out = append(out, fmt.Sprintf("$%d", n)...)
			continue
		}
		out = append(out, query[i])
	}
	return string(out)
}

// Create 在一个事务中持久化资产行与全部变体行。
func (r *sqlMediaAssetRepository) Create(ctx context.Context, asset *model.MediaAsset) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开启事务失败: %w", err)
	}
	defer func() {
		if v := recover(); v != nil {
			_ = tx.Rollback()
			panic(v)
		}
	}()

	now := time.Now()
	asset.CreatedAt = now
	asset.UpdatedAt = now

	metaJSON, err := json.Marshal(asset.Metadata)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("序列化资产元数据失败: %w", err)
	}

	if r.driverName == "postgres" || r.driverName == "sqlite3" {
		row := tx.QueryRowContext(ctx, r.rebind(`
			INSERT INTO media_assets (content_hash, file_name, original_url, status, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			asset.ContentHash, asset.FileName, asset.OriginalURL, string(asset.Status), string(metaJSON), now, now)
		if err := row.Scan(&asset.ID); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("插入媒体资产失败: %w", err)
		}
	} else {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO media_assets (content_hash, file_name, original_url, status, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			asset.ContentHash, asset.FileName, asset.OriginalURL, string(asset.Status), string(metaJSON), now, now)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("插入媒体资产失败: %w", err)
		}
		lastID, err := res.LastInsertId()
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("读取资产自增ID失败: %w", err)
		}
		asset.ID = uint(lastID)
	}

	for _, v := range asset.Variants {
		v.AssetID = asset.ID
		_, err := tx.ExecContext(ctx, r.rebind(`
			INSERT INTO media_variants (asset_id, label, format, width, height, size, delivery_url)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			v.AssetID, v.Label, v.Format, v.Width, v.Height, v.Size, v.DeliveryURL)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("插入媒体变体 '%s' 失败: %w", v.Label, err)
		}
	}

	return tx.Commit()
}

// FindByID 根据数据库ID查找资产及其变体。未找到时返回 nil, nil。
func (r *sqlMediaAssetRepository) FindByID(ctx context.Context, id uint) (*model.MediaAsset, error) {
	asset := &model.MediaAsset{}
	var status string
	var metaJSON []byte

	err := r.db.QueryRowContext(ctx, r.rebind(`
		SELECT id, content_hash, file_name, original_url, status, metadata, created_at, updated_at
		FROM media_assets WHERE id = ?`), id).Scan(
		&asset.ID, &asset.ContentHash, &asset.FileName, &asset.OriginalURL,
		&status, &metaJSON, &asset.CreatedAt, &asset.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询媒体资产失败: %w", err)
	}

	asset.Status = model.AssetStatus(status)
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &asset.Metadata); err != nil {
			return nil, fmt.Errorf("解析资产元数据失败: %w", err)
		}
	}

	variants, err := r.loadVariants(ctx, asset.ID)
	if err != nil {
		return nil, err
	}
	asset.Variants = variants
	return asset, nil
}

// FindByContentHash 返回指向同一内容哈希的所有资产（不含变体，用于审计查询）。
func (r *sqlMediaAssetRepository) FindByContentHash(ctx context.Context, hash string) ([]*model.MediaAsset, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, content_hash, file_name, original_url, status, created_at, updated_at
		FROM media_assets WHERE content_hash = ? ORDER BY id`), hash)
	if err != nil {
		return nil, fmt.Errorf("按内容哈希查询资产失败: %w", err)
	}
	defer rows.Close()

	var assets []*model.MediaAsset
	for rows.Next() {
		a := &model.MediaAsset{}
		var status string
		if err := rows.Scan(&a.ID, &a.ContentHash, &a.FileName, &a.OriginalURL, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("扫描资产行失败: %w", err)
		}
		a.Status = model.AssetStatus(status)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// loadVariants 加载一个资产的全部变体行。
func (r *sqlMediaAssetRepository) loadVariants(ctx context.Context, assetID uint) ([]*model.MediaVariant, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(`
		SELECT id, asset_id, label, format, width, height, size, delivery_url
		FROM media_variants WHERE asset_id = ? ORDER BY id`), assetID)
	if err != nil {
		return nil, fmt.Errorf("查询媒体变体失败: %w", err)
	}
	defer rows.Close()

	var variants []*model.MediaVariant
	for rows.Next() {
		v := &model.MediaVariant{}
		if err := rows.Scan(&v.ID, &v.AssetID, &v.Label, &v.Format, &v.Width, &v.Height, &v.Size, &v.DeliveryURL); err != nil {
			return nil, fmt.Errorf("扫描变体行失败: %w", err)
		}
		variants = append(variants, v)
	}
	return variants, rows.Err()
}
