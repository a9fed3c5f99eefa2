/*
 * @Description: 访问决策的有界环形缓冲区
 * @Author: 青澜
 * @Date: 2025-09-13 16:02:27
 * @LastEditTime: 2026-04-06 11:05:44
 * @LastEditors: 青澜
 */
package guard

import (
	"sync"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// accessLogRing 固定容量的环形缓冲区，写满后覆盖最旧记录。
// 只服务于近期行为观察，不做持久化。
type accessLogRing struct {
	mu      sync.Mutex
	records []model.AccessDecisionRecord
	next    int
	full    bool
}

func newAccessLogRing(capacity int) *accessLogRing {
	if capacity <= 0 {
		capacity = 1000
	}
	return &accessLogRing{records: make([]model.AccessDecisionRecord, capacity)}
}

// Append 追加一条决策记录。
func (r *accessLogRing) Append(record model.AccessDecisionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records[r.next] = record
	r.next = (r.next + 1) % len(r.records)
	if r.next == 0 {
		r.full = true
	}
}

// Recent 按从新到旧的顺序返回最近 n 条记录。
func (r *accessLogRing) Recent(n int) []model.AccessDecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	size := r.size()
	if n > size {
		n = size
	}
	out := make([]model.AccessDecisionRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := (r.next - 1 - i + len(r.records)) % len(r.records)
		out = append(out, r.records[idx])
	}
	return out
}

// Len 返回当前持有的记录数。
func (r *accessLogRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size()
}

func (r *accessLogRing) size() int {
	if r.full {
		return len(r.records)
	}
	return r.next
}
