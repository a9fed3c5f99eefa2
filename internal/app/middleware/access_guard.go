/*
 * @Description: 投递路由的边缘访问防护中间件
 * @Author: 青澜
 * @Date: 2025-09-17 09:42:55
 * @LastEditTime: 2026-04-08 11:10:36
 * @LastEditors: 青澜
 */
package middleware

import (
	"errors"
	"net/http"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/response"
	"github.com/qinglan-dev/qinglan-app/pkg/service/guard"
	"github.com/qinglan-dev/qinglan-app/pkg/util"

	"github.com/gin-gonic/gin"
)

// AccessGuard 把防护管线挂到投递路由上。
// 放行的请求继续向下执行，拒绝的请求带原因返回 403/429。
func AccessGuard(guardSvc guard.EdgeAccessGuardService) gin.HandlerFunc {
	return func(c *gin.Context) {
		verdict := guardSvc.Check(c.Request.Context(), &guard.AccessRequest{
			IP:        util.GetRealClientIP(c),
			UserAgent: c.Request.UserAgent(),
			Referrer:  c.Request.Referer(),
			Path:      c.Request.URL.Path,
		})

		if verdict.Err == nil {
			c.Next()
			return
		}

		status := http.StatusForbidden
		if errors.Is(verdict.Err, constant.ErrRateLimited) {
			status = http.StatusTooManyRequests
		}

		response.FailWithReasons(c, status, verdict.Err.Error(), verdict.Reasons)
		c.Abort()
	}
}
