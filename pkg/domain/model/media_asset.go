/*
 * @Description: 媒体资产与派生变体的领域模型
 * @Author: 青澜
 * @Date: 2025-09-05 15:34:51
 * @LastEditTime: 2026-02-11 09:40:27
 * @LastEditors: 青澜
 */
package model

import "time"

// AssetStatus 表示资产的处理状态。
// 状态只允许 pending → completed 或 pending → partially-failed，永不回到 pending。
type AssetStatus string

const (
	AssetStatusPending         AssetStatus = "pending"
	AssetStatusCompleted       AssetStatus = "completed"
	AssetStatusPartiallyFailed AssetStatus = "partially-failed"
)

// MediaAsset 是一次上传产生的逻辑资产。
// 多个资产可以指向同一个 ContentBlob（内容去重），每次上传调用都会创建新资产。
type MediaAsset struct {
	ID          uint              `json:"-"`
	PublicID    string            `json:"id"`
	ContentHash string            `json:"content_hash"`
	FileName    string            `json:"file_name"`
	OriginalURL string            `json:"original_url"`
	Status      AssetStatus       `json:"status"`
	Variants    []*MediaVariant   `json:"variants"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// MediaVariant 是从原始字节派生出的一个尺寸/格式变体。
// 一经创建不可变；资产的变体集合由阶梯策略固定，只会单调补全，绝不原地重试。
type MediaVariant struct {
	ID          uint   `json:"-"`
	AssetID     uint   `json:"-"`
	Label       string `json:"label"`  // thumbnail / small / medium / large
	Format      string `json:"format"` // jpeg / png / webp ...
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Size        int64  `json:"size"`
	DeliveryURL string `json:"delivery_url"`
}
