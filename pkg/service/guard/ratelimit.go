/*
 * @Description: 按IP的固定窗口频率限制器
 * @Author: 青澜
 * @Date: 2025-09-13 11:22:40
 * @LastEditTime: 2026-04-06 10:12:33
 * @LastEditors: 青澜
 */
package guard

import (
	"sync"
	"time"
)

type windowCounter struct {
	windowStart time.Time
	count       int
}

// slidingWindowLimiter 以固定长度的时间窗口统计每个IP的请求数。
// 窗口起点随第一个请求固定，过期后整体重置，保证"窗口内恰好放行 N 个"
// 的可预期语义。清理过期窗口由周期任务负责，请求路径上只做读写。
type slidingWindowLimiter struct {
	mu      sync.Mutex
	windows map[string]*windowCounter
	limit   int
	window  time.Duration

	now func() time.Time // 测试可注入时钟
}

func newSlidingWindowLimiter(limit int, window time.Duration) *slidingWindowLimiter {
	return &slidingWindowLimiter{
		windows: make(map[string]*windowCounter),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// Allow 登记一次请求并判定是否放行。
func (l *slidingWindowLimiter) Allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[ip]
	if !ok || now.Sub(w.windowStart) >= l.window {
		l.windows[ip] = &windowCounter{windowStart: now, count: 1}
		return true
	}

	w.count++
	return w.count <= l.limit
}

// RecentCount 返回该IP当前窗口内已登记的请求数。
func (l *slidingWindowLimiter) RecentCount(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[ip]
	if !ok || l.now().Sub(w.windowStart) >= l.window {
		return 0
	}
	return w.count
}

// Prune 移除已过期的窗口，返回清理数量。
func (l *slidingWindowLimiter) Prune() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var pruned int
	for ip, w := range l.windows {
		if now.Sub(w.windowStart) >= l.window {
			delete(l.windows, ip)
			pruned++
		}
	}
	return pruned
}
