/*
 * @Description: 边缘访问决策记录模型
 * @Author: 青澜
 * @Date: 2025-10-24 16:08:33
 * @LastEditTime: 2026-05-07 11:31:40
 * @LastEditors: 青澜
 */
package model

import "time"

// AccessDecision 是防护管线对一次请求给出的结论。
type AccessDecision string

const (
	DecisionAllowed     AccessDecision = "allowed"
	DecisionBlocked     AccessDecision = "blocked"
	DecisionRateLimited AccessDecision = "rate-limited"
)

// AccessDecisionRecord 记录一次防护决策，追加进有界环形缓冲区。
type AccessDecisionRecord struct {
	IP        string         `json:"ip"`
	UserAgent string         `json:"user_agent"`
	Referrer  string         `json:"referrer"`
	Path      string         `json:"path"`
	Timestamp time.Time      `json:"timestamp"`
	Decision  AccessDecision `json:"decision"`
	Reason    string         `json:"reason"`
}
