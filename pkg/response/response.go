/*
 * @Description: 统一的API返回结构
 * @Author: 青澜
 * @Date: 2025-09-03 09:55:40
 * @LastEditTime: 2025-11-21 20:14:08
 * @LastEditors: 青澜
 */
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 是统一的API返回结构体
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, Response{
		Code:    http.StatusOK,
		Message: message,
		Data:    data,
	})
}

// SuccessWithStatus 成功响应，但允许自定义 HTTP 状态码（例如 201 Created）。
func SuccessWithStatus(c *gin.Context, code int, data interface{}, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Fail 失败响应
func Fail(c *gin.Context, code int, message string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    nil,
	})
}

// FailWithReasons 失败响应，附带拒绝原因列表。
// 防护层的 403/429 使用它把命中的规则原因返回给调用方。
func FailWithReasons(c *gin.Context, code int, message string, reasons []string) {
	c.JSON(code, Response{
		Code:    code,
		Message: message,
		Data:    gin.H{"reasons": reasons},
	})
}
