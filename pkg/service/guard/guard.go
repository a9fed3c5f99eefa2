/*
 * @Description: 边缘访问防护服务，对投递请求做多级准入判定
 * @Author: 青澜
 * @Date: 2025-09-13 17:10:09
 * @LastEditTime: 2026-04-06 14:22:51
 * @LastEditors: 青澜
 */
package guard

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
	"github.com/qinglan-dev/qinglan-app/pkg/service/alert"
	"github.com/qinglan-dev/qinglan-app/pkg/util"
)

// rateLimitWindow 是频率限制的固定窗口长度。
const rateLimitWindow = time.Minute

// AccessRequest 是防护管线的输入。
type AccessRequest struct {
	IP        string
	UserAgent string
	Referrer  string
	Path      string
}

// Verdict 是防护管线的判定结果。
// Err 为 nil 表示放行；否则为对应的哨兵错误，Reasons 给出可读原因。
type Verdict struct {
	Decision model.AccessDecision
	Reasons  []string
	Err      error
}

// EdgeAccessGuardService 定义边缘访问防护的契约。
// 管线顺序固定：IP黑名单 → 防盗链 → 频率限制 → 异常评分，
// 任一级拒绝即短路。每次判定都会追加进有界访问日志。
type EdgeAccessGuardService interface {
	Check(ctx context.Context, req *AccessRequest) *Verdict

	// RecentDecisions 返回最近 n 条访问决策（从新到旧）。
	RecentDecisions(n int) []model.AccessDecisionRecord

	// Prune 清理过期的限流窗口，由周期任务调用，返回清理数量。
	Prune() int
}

type edgeAccessGuardServiceImpl struct {
	blockedIPs       map[string]struct{}
	hotlinkEnabled   bool
	allowedReferrers []string
	limiter          *slidingWindowLimiter
	anomalyEnabled   bool
	scorer           *anomalyScorer
	accessLog        *accessLogRing
	alertSvc         alert.AlertService
}

// NewEdgeAccessGuardService 创建边缘访问防护服务实例。
func NewEdgeAccessGuardService(cfg *config.Config, alertSvc alert.AlertService) EdgeAccessGuardService {
	blocked := make(map[string]struct{})
	for _, ip := range cfg.GetStringSlice(config.KeyGuardBlockedIPs) {
		ip = strings.TrimSpace(ip)
		if ip == "" {
			continue
		}
		if !util.IsValidIP(ip) {
			log.Printf("[访问防护] 跳过黑名单中的非法IP: %q", ip)
			continue
		}
		blocked[ip] = struct{}{}
	}

	limit := cfg.GetInt(config.KeyGuardRequestsPerMinute)
	if limit <= 0 {
		limit = 120
	}

	weights := anomalyWeights{
		ShortUA:       cfg.GetFloat64(config.KeyGuardWeightShortUA),
		BotUA:         cfg.GetFloat64(config.KeyGuardWeightBotUA),
		HighFreq:      cfg.GetFloat64(config.KeyGuardWeightHighFreq),
		PathTraversal: cfg.GetFloat64(config.KeyGuardWeightTraversal),
		SensitivePath: cfg.GetFloat64(config.KeyGuardWeightSensitive),
	}

	return &edgeAccessGuardServiceImpl{
		blockedIPs:       blocked,
		hotlinkEnabled:   cfg.GetBool(config.KeyGuardHotlinkEnable),
		allowedReferrers: cfg.GetStringSlice(config.KeyGuardAllowedReferrers),
		limiter:          newSlidingWindowLimiter(limit, rateLimitWindow),
		anomalyEnabled:   cfg.GetBool(config.KeyGuardAnomalyEnable),
		scorer: newAnomalyScorer(weights,
			cfg.GetFloat64(config.KeyGuardAnomalyThreshold),
			cfg.GetInt(config.KeyGuardHighFreqThreshold)),
		accessLog: newAccessLogRing(cfg.GetInt(config.KeyGuardAccessLogSize)),
		alertSvc:  alertSvc,
	}
}

func (s *edgeAccessGuardServiceImpl) Check(ctx context.Context, req *AccessRequest) *Verdict {
	verdict := s.evaluate(req)

	s.accessLog.Append(model.AccessDecisionRecord{
		IP:        req.IP,
		UserAgent: req.UserAgent,
		Referrer:  req.Referrer,
		Path:      req.Path,
		Timestamp: time.Now(),
		Decision:  verdict.Decision,
		Reason:    strings.Join(verdict.Reasons, "; "),
	})

	if verdict.Err != nil && s.alertSvc != nil {
		s.alertSvc.Raise(ctx, model.AlertCategorySecurity, model.AlertSeverityWarning,
			fmt.Sprintf("边缘访问拦截: ip=%s, 原因=%s", req.IP, strings.Join(verdict.Reasons, "; ")))
	}

	return verdict
}

// evaluate 依次执行各级判定，返回第一个拒绝结论。
func (s *edgeAccessGuardServiceImpl) evaluate(req *AccessRequest) *Verdict {
	if _, blocked := s.blockedIPs[req.IP]; blocked {
		return &Verdict{
			Decision: model.DecisionBlocked,
			Reasons:  []string{"来源IP在黑名单中"},
			Err:      constant.ErrIPBlocked,
		}
	}

	if s.hotlinkEnabled && req.Referrer != "" && !s.referrerAllowed(req.Referrer) {
		return &Verdict{
			Decision: model.DecisionBlocked,
			Reasons:  []string{"Referer来源不在允许列表"},
			Err:      constant.ErrHotlinkDenied,
		}
	}

	if !s.limiter.Allow(req.IP) {
		return &Verdict{
			Decision: model.DecisionRateLimited,
			Reasons:  []string{"窗口内请求数超过上限"},
			Err:      constant.ErrRateLimited,
		}
	}

	if s.anomalyEnabled {
		score, signals := s.scorer.Evaluate(req.UserAgent, req.Path, s.limiter.RecentCount(req.IP))
		if s.scorer.IsAnomalous(score) {
			return &Verdict{
				Decision: model.DecisionBlocked,
				Reasons:  signals,
				Err:      constant.ErrAnomalous,
			}
		}
	}

	return &Verdict{Decision: model.DecisionAllowed}
}

// referrerAllowed 判定 Referer 的来源站点是否在允许列表中。
// 列表条目匹配主机名本身或其任意子域。
func (s *edgeAccessGuardServiceImpl) referrerAllowed(referrer string) bool {
	parsed, err := url.Parse(referrer)
	if err != nil || parsed.Hostname() == "" {
		return false
	}
	host := strings.ToLower(parsed.Hostname())

	for _, allowed := range s.allowedReferrers {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

func (s *edgeAccessGuardServiceImpl) RecentDecisions(n int) []model.AccessDecisionRecord {
	return s.accessLog.Recent(n)
}

func (s *edgeAccessGuardServiceImpl) Prune() int {
	return s.limiter.Prune()
}
