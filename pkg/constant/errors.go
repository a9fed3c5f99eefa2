/*
 * @Description: 媒体子系统的标准错误定义
 * @Author: 青澜
 * @Date: 2025-09-03 10:22:41
 * @LastEditTime: 2026-04-18 16:40:12
 * @LastEditors: 青澜
 */
package constant

import "errors"

// 校验类错误（ValidationError）：立即拒绝，永不重试
var (
	// ErrEmptyPayload 表示上传的字节内容为空，可以由 Handler 转换为 400
	ErrEmptyPayload = errors.New("上传内容为空")

	// ErrUnsupportedMediaType 表示声明的内容类型不在允许列表中，可以由 Handler 转换为 400
	ErrUnsupportedMediaType = errors.New("不支持的媒体类型")

	// ErrUndecodableMedia 表示声明为图片但字节内容无法解码，可以由 Handler 转换为 400
	ErrUndecodableMedia = errors.New("无法解码的媒体内容")
)

// 安全类错误（SecurityError）：立即拒绝并记录触发原因
var (
	// ErrIPBlocked 表示来源IP在黑名单中，可以由 Handler 转换为 403
	ErrIPBlocked = errors.New("来源IP已被封禁")

	// ErrHotlinkDenied 表示防盗链校验失败，可以由 Handler 转换为 403
	ErrHotlinkDenied = errors.New("防盗链校验未通过")

	// ErrAnomalous 表示请求异常评分超过阈值，可以由 Handler 转换为 403
	ErrAnomalous = errors.New("请求被异常检测拦截")

	// ErrRateLimited 表示请求频率超过限制，可以由 Handler 转换为 429
	ErrRateLimited = errors.New("请求过于频繁")
)

// 存储类错误
var (
	// ErrStorageExhausted 表示所有存储提供者均写入失败，对本次摄取是致命的。
	// 调用方拿到它时应视为可重试（transient）错误。
	ErrStorageExhausted = errors.New("所有存储提供者均不可用")

	// ErrProviderUnavailable 表示单个存储提供者的一次瞬时失败，由路由器内部重试消化
	ErrProviderUnavailable = errors.New("存储提供者暂时不可用")
)

// 通用错误
var (
	// ErrNotFound 表示资源未找到，可以由 Handler 转换为 404
	ErrNotFound = errors.New("资源未找到")

	// ErrInternalServer 表示服务器内部错误，可以由 Handler 转换为 500
	ErrInternalServer = errors.New("内部服务器错误")

	// ErrInvalidPublicID 表示无效的公共ID，可以由 Handler 转换为 400
	ErrInvalidPublicID = errors.New("无效的公共ID")
)

// IsRetryable 判断错误是否值得调用方重新提交。
// 校验类与安全类错误重试没有意义；存储耗尽属于瞬时基础设施故障，可以稍后重试。
func IsRetryable(err error) bool {
	switch {
	case errors.Is(err, ErrStorageExhausted), errors.Is(err, ErrProviderUnavailable):
		return true
	default:
		return false
	}
}
