// pkg/util/ip.go
package util

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealClientIP 获取客户端真实IP地址
// 优先级：X-Forwarded-For > X-Real-IP > CF-Connecting-IP > EO-Connecting-IP > RemoteAddr
func GetRealClientIP(c *gin.Context) string {
	// 1. X-Forwarded-For 可能包含多个IP，格式：client, proxy1, proxy2，取第一个
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		if ips := strings.Split(xff, ","); len(ips) > 0 {
			clientIP := strings.TrimSpace(ips[0])
			if ip := net.ParseIP(clientIP); ip != nil {
				return clientIP
			}
		}
	}

	// 2. X-Real-IP（Nginx 常用）
	if realIP := strings.TrimSpace(c.GetHeader("X-Real-IP")); realIP != "" {
		if ip := net.ParseIP(realIP); ip != nil {
			return realIP
		}
	}

	// 3. CF-Connecting-IP（Cloudflare）
	if cfIP := strings.TrimSpace(c.GetHeader("CF-Connecting-IP")); cfIP != "" {
		if ip := net.ParseIP(cfIP); ip != nil {
			return cfIP
		}
	}

	// 4. EO-Connecting-IP（腾讯云 EdgeOne）
	if eoIP := strings.TrimSpace(c.GetHeader("EO-Connecting-IP")); eoIP != "" {
		if ip := net.ParseIP(eoIP); ip != nil {
			return eoIP
		}
	}

	// 5. 最后使用 Gin 内置的 ClientIP（检查 RemoteAddr）
	return c.ClientIP()
}

// IsValidIP 验证IP地址是否有效
func IsValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
