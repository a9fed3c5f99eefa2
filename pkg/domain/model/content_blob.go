/*
 * @Description: 内容块领域模型（内容寻址去重的核心实体）
 * @Author: 青澜
 * @Date: 2025-09-05 15:20:08
 * @LastEditTime: 2026-02-11 09:32:54
 * @LastEditors: 青澜
 */
package model

import "time"

// ContentBlob 代表一份按内容寻址的物理字节数据。
// Hash 是字节内容的 SHA-256 摘要，全库唯一；只要还有资产引用它，
// RefCount 就必须 ≥ 1。除引用计数与最后引用时间外，其余字段一经创建不再变化。
// 本子系统从不物理删除 ContentBlob（垃圾回收不在范围内）。
type ContentBlob struct {
	ID        uint      `json:"-"`
	PublicID  string    `json:"id"` // sqids 编码的对外ID
	Hash      string    `json:"hash"`
	URL       string    `json:"url"` // 规范存储URL
	Size      int64     `json:"size"`
	MimeType  string    `json:"mime_type"`
	RefCount  int64     `json:"ref_count"`
	FirstSeen time.Time `json:"first_seen"`
	LastRef   time.Time `json:"last_referenced"`
}
