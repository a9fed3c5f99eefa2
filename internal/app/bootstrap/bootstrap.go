/*
 * @Description: 数据库初始化引导程序（幂等建表）
 * @Author: 青澜
 * @Date: 2025-09-06 14:02:51
 * @LastEditTime: 2026-03-16 09:12:30
 * @LastEditors: 青澜
 */
package bootstrap

import (
	"database/sql"
	"fmt"
	"log"
)

type Bootstrapper struct {
	db         *sql.DB
	driverName string
}

func NewBootstrapper(db *sql.DB, driverName string) *Bootstrapper {
	return &Bootstrapper{db: db, driverName: driverName}
}

// InitializeDatabase 创建本子系统需要的三张表。
// 所有语句均为幂等，可在每次启动时安全执行。
func (b *Bootstrapper) InitializeDatabase() error {
	log.Println("--- 开始执行数据库初始化引导程序 ---")

	for _, stmt := range b.schemaStatements() {
		if _, err := b.db.Exec(stmt); err != nil {
			return fmt.Errorf("数据库 schema 创建/更新失败: %w", err)
		}
	}

	log.Println("--- 数据库 Schema 同步成功 ---")
	return nil
}

// schemaStatements 返回与当前驱动方言匹配的建表语句。
func (b *Bootstrapper) schemaStatements() []string {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	switch b.driverName {
	case "postgres":
		pk = "BIGSERIAL PRIMARY KEY"
	case "mysql":
		pk = "BIGINT UNSIGNED PRIMARY KEY AUTO_INCREMENT"
	}

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS content_blobs (
			id %s,
			hash VARCHAR(64) NOT NULL,
			url TEXT NOT NULL,
			size BIGINT NOT NULL,
			mime_type VARCHAR(128) NOT NULL,
			ref_count BIGINT NOT NULL DEFAULT 1,
			first_seen TIMESTAMP NOT NULL,
			last_ref TIMESTAMP NOT NULL,
			CONSTRAINT uq_content_blobs_hash UNIQUE (hash)
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS media_assets (
			id %s,
			content_hash VARCHAR(64) NOT NULL,
			file_name VARCHAR(512) NOT NULL,
			original_url TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, pk),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS media_variants (
			id %s,
			asset_id BIGINT NOT NULL,
			label VARCHAR(32) NOT NULL,
			format VARCHAR(16) NOT NULL,
			width INT NOT NULL,
			height INT NOT NULL,
			size BIGINT NOT NULL,
			delivery_url TEXT NOT NULL
		)`, pk),
	}

	// MySQL 不支持 CREATE INDEX IF NOT EXISTS，索引在首次建表后人工维护
	if b.driverName != "mysql" {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_media_assets_content_hash ON media_assets (content_hash)`,
			`CREATE INDEX IF NOT EXISTS idx_media_variants_asset_id ON media_variants (asset_id)`,
		)
	}
	return stmts
}
