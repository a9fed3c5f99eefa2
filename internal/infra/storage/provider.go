/*
 * @Description: 定义了所有存储驱动需要遵守的接口和公共结构
 * @Author: 青澜
 * @Date: 2025-09-07 10:14:26
 * @LastEditTime: 2026-04-02 17:52:38
 * @LastEditors: 青澜
 */
package storage

import (
	"context"
	"io"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// UploadResult 封装了上传操作成功后的对象信息。
type UploadResult struct {
	ObjectKey   string // 存储端的完整对象键
	URL         string // 规范存储URL
	DeliveryURL string // 对外投递URL（走CDN域名）
	Size        int64
}

// IStorageProvider 定义了所有存储提供者必须实现的接口。
// objectKey 由调用方负责唯一性（内容哈希 + 变体标签），
// 同键重复上传是覆盖语义，因此所有实现都在键级别幂等。
type IStorageProvider interface {
	// Upload 将对象内容写入指定的存储策略。
	Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error)
	// IsExist 检查给定对象键是否已存在物理对象。
	IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error)
	// GetDownloadURL 为对象生成一个可公开访问的下载链接。
	GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error)
}

// buildObjectKey 将策略的 BasePath 前缀与调用方给出的相对键拼接为完整对象键。
// 对象键不以斜杠开头。
func buildObjectKey(policy *model.StoragePolicy, key string) string {
	basePath := strings.TrimPrefix(strings.TrimSuffix(policy.BasePath, "/"), "/")
	key = strings.TrimPrefix(key, "/")

	if basePath == "" {
		return key
	}
	if key == "" {
		return basePath
	}
	return basePath + "/" + key
}

// deliveryURL 用策略的投递域名拼出对外可访问的URL。
func deliveryURL(policy *model.StoragePolicy, objectKey string) string {
	base := strings.TrimSuffix(policy.DeliveryBase(), "/")
	if base == "" {
		return "/" + objectKey
	}
	return base + "/" + objectKey
}
