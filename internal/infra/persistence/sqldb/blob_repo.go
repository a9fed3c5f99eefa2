/*
 * @Description: 内容块仓库的 SQL 实现（原子 upsert 自增引用计数）
 * @Author: 青澜
 * @Date: 2025-09-06 10:05:33
 * @LastEditTime: 2026-03-15 22:10:41
 * @LastEditors: 青澜
 */
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/repository"
)

// sqlBlobRepository 是 BlobRepository 接口的 database/sql 实现。
// 并发的相同内容上传通过单条 upsert 语句消解冲突：同一 hash 绝不产生两行。
type sqlBlobRepository struct {
	db         *sql.DB
	driverName string
}

// NewSQLBlobRepository 是 sqlBlobRepository 的构造函数。
func NewSQLBlobRepository(db *sql.DB, driverName string) repository.BlobRepository {
	return &sqlBlobRepository{db: db, driverName: driverName}
}

// CreateOrIncrementRef 插入新内容块或原子地自增已有块的引用计数。
// isNew 通过 upsert 后的引用计数判定：本子系统的引用计数单调不减且从 1 起步，
// 因此 ref_count == 1 等价于本次调用创建了该行。
func (r *sqlBlobRepository) CreateOrIncrementRef(ctx context.Context, blob *model.ContentBlob) (bool, error) {
	now := time.Now()

	switch r.driverName {
	case "postgres":
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO content_blobs (hash, url, size, mime_type, ref_count, first_seen, last_ref)
			VALUES ($1, $2, $3, $4, 1, $5, $5)
			ON CONFLICT (hash) DO UPDATE
			SET ref_count = content_blobs.ref_count + 1, last_ref = EXCLUDED.last_ref
			RETURNING id, url, size, mime_type, ref_count, first_seen, last_ref`,
			blob.Hash, blob.URL, blob.Size, blob.MimeType, now)
		return r.scanUpserted(row, blob)

	case "sqlite3":
		row := r.db.QueryRowContext(ctx, `
			INSERT INTO content_blobs (hash, url, size, mime_type, ref_count, first_seen, last_ref)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON CONFLICT (hash) DO UPDATE
			SET ref_count = ref_count + 1, last_ref = excluded.last_ref
			RETURNING id, url, size, mime_type, ref_count, first_seen, last_ref`,
			blob.Hash, blob.URL, blob.Size, blob.MimeType, now, now)
		return r.scanUpserted(row, blob)

	case "mysql":
		res, err := r.db.ExecContext(ctx, `
			INSERT INTO content_blobs (hash, url, size, mime_type, ref_count, first_seen, last_ref)
			VALUES (?, ?, ?, ?, 1, ?, ?)
			ON DUPLICATE KEY UPDATE ref_count = ref_count + 1, last_ref = VALUES(last_ref)`,
			blob.Hash, blob.URL, blob.Size, blob.MimeType, now, now)
		if err != nil {
			return false, fmt.Errorf("内容块 upsert 失败: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return false, fmt.Errorf("读取 upsert 影响行数失败: %w", err)
		}
		// MySQL 不支持 RETURNING，回读一次拿到最终状态。
		// isNew 必须取自 upsert 本身的影响行数而不是回读的 ref_count：
		// 两个并发的相同上传回读时都可能看到 ref_count=2。
		stored, err := r.FindByHash(ctx, blob.Hash)
		if err != nil {
			return false, err
		}
		if stored == nil {
			return false, fmt.Errorf("内容块 upsert 后未找到记录 (hash=%s)", blob.Hash)
		}
		*blob = *stored
		return mysqlUpsertInserted(affected), nil

	default:
		return false, fmt.Errorf("不支持的数据库驱动: %s", r.driverName)
	}
}

// mysqlUpsertInserted 根据 ON DUPLICATE KEY UPDATE 的影响行数判定是否插入了新行：
// 插入影响 1 行，更新影响 2 行。引用计数每次都会变化，不会出现 0。
func mysqlUpsertInserted(rowsAffected int64) bool {
	return rowsAffected == 1
}

// scanUpserted 读取 RETURNING 结果并回填领域对象。
func (r *sqlBlobRepository) scanUpserted(row *sql.Row, blob *model.ContentBlob) (bool, error) {
	err := row.Scan(&blob.ID, &blob.URL, &blob.Size, &blob.MimeType, &blob.RefCount, &blob.FirstSeen, &blob.LastRef)
	if err != nil {
		return false, fmt.Errorf("内容块 upsert 失败: %w", err)
	}
	return blob.RefCount == 1, nil
}

// FindByHash 根据内容哈希查找内容块。未找到时返回 nil, nil。
func (r *sqlBlobRepository) FindByHash(ctx context.Context, hash string) (*model.ContentBlob, error) {
	query := `SELECT id, hash, url, size, mime_type, ref_count, first_seen, last_ref
		FROM content_blobs WHERE hash = ?`
	if r.driverName == "postgres" {
		query = `SELECT id, hash, url, size, mime_type, ref_count, first_seen, last_ref
			FROM content_blobs WHERE hash = $1`
	}

	blob := &model.ContentBlob{}
	err := r.db.QueryRowContext(ctx, query, hash).Scan(
		&blob.ID, &blob.Hash, &blob.URL, &blob.Size, &blob.MimeType,
		&blob.RefCount, &blob.FirstSeen, &blob.LastRef)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询内容块失败: %w", err)
	}
	return blob, nil
}
