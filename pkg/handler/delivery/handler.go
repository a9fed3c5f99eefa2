/*
 * @Description: 媒体投递接口，从本地存储回源
 * @Author: 青澜
 * @Date: 2025-09-17 15:40:26
 * @LastEditTime: 2026-04-08 15:05:33
 * @LastEditors: 青澜
 */
package delivery

import (
	"net/http"
	"os"
	"strings"

	"github.com/qinglan-dev/qinglan-app/internal/infra/storage"
	"github.com/qinglan-dev/qinglan-app/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler 处理 /d/*path 的媒体投递。
// CDN 域名回源到这里；对象键即内容哈希加变体名，不存在重名。
type Handler struct{}

// NewHandler 创建投递接口处理器。
func NewHandler() *Handler {
	return &Handler{}
}

// Serve 处理 GET /d/*path。
func (h *Handler) Serve(c *gin.Context) {
	objectKey := strings.TrimPrefix(c.Param("path"), "/")
	if objectKey == "" {
		response.Fail(c, http.StatusNotFound, "对象不存在")
		return
	}

	diskPath, err := storage.ResolveLocalPath(objectKey)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, "非法的对象路径")
		return
	}

	info, err := os.Stat(diskPath)
	if err != nil || info.IsDir() {
		response.Fail(c, http.StatusNotFound, "对象不存在")
		return
	}

	// 内容寻址的对象永不变更，可以放心长缓存
	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.File(diskPath)
}
