/*
 * @Description: 加权信号的请求异常评分器
 * @Author: 青澜
 * @Date: 2025-09-13 14:38:12
 * @LastEditTime: 2026-04-06 10:40:58
 * @LastEditors: 青澜
 */
package guard

import (
	"strings"
)

// botUAPatterns 命中即视为自动化客户端。全部按小写匹配。
var botUAPatterns = []string{
	"bot", "spider", "crawler", "curl", "wget",
	"python-requests", "scrapy", "httpclient", "go-http-client",
}

// sensitivePathPatterns 是与媒体投递无关、典型的探测目标。
var sensitivePathPatterns = []string{
	"/etc/", ".env", ".git", "/.ssh", "wp-admin", "wp-login", "/admin",
}

// anomalyWeights 各信号的评分权重，全部来自配置。
type anomalyWeights struct {
	ShortUA       float64
	BotUA         float64
	HighFreq      float64
	PathTraversal float64
	SensitivePath float64
}

// anomalyScorer 对单次请求做加法评分，超过阈值即判定异常。
// 各信号相互独立，命中多个信号时分数叠加。
type anomalyScorer struct {
	weights           anomalyWeights
	threshold         float64
	highFreqThreshold int
}

func newAnomalyScorer(weights anomalyWeights, threshold float64, highFreqThreshold int) *anomalyScorer {
	return &anomalyScorer{
		weights:           weights,
		threshold:         threshold,
		highFreqThreshold: highFreqThreshold,
	}
}

// Evaluate 计算请求的异常分数，返回分数与命中的信号描述。
// recentCount 是该IP当前窗口内的请求计数，由调用方从限流器取得。
func (a *anomalyScorer) Evaluate(userAgent, path string, recentCount int) (float64, []string) {
	var score float64
	var signals []string

	if len(strings.TrimSpace(userAgent)) < 10 {
		score += a.weights.ShortUA
		signals = append(signals, "UA缺失或过短")
	}

	lowerUA := strings.ToLower(userAgent)
	for _, pattern := range botUAPatterns {
		if strings.Contains(lowerUA, pattern) {
			score += a.weights.BotUA
			signals = append(signals, "UA疑似自动化客户端")
			break
		}
	}

	if a.highFreqThreshold > 0 && recentCount >= a.highFreqThreshold {
		score += a.weights.HighFreq
		signals = append(signals, "窗口内请求频率过高")
	}

	lowerPath := strings.ToLower(path)
	if strings.Contains(lowerPath, "..") || strings.Contains(lowerPath, "%2e%2e") {
		score += a.weights.PathTraversal
		signals = append(signals, "路径包含目录穿越")
	}

	for _, pattern := range sensitivePathPatterns {
		if strings.Contains(lowerPath, pattern) {
			score += a.weights.SensitivePath
			signals = append(signals, "路径命中敏感目标")
			break
		}
	}

	return score, signals
}

// IsAnomalous 判定分数是否越过阈值。
func (a *anomalyScorer) IsAnomalous(score float64) bool {
	return score > a.threshold
}
