/*
 * @Description: 腾讯云COS存储提供者实现
 * @Author: 青澜
 * @Date: 2025-09-07 15:03:44
 * @LastEditTime: 2026-04-02 18:55:12
 * @LastEditors: 青澜
 */
package storage

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	cos "github.com/tencentyun/cos-go-sdk-v5"
)

// TencentCOSProvider 实现了 IStorageProvider 接口，用于处理与腾讯云COS的所有交互。
type TencentCOSProvider struct{}

// NewTencentCOSProvider 是 TencentCOSProvider 的构造函数。
func NewTencentCOSProvider() IStorageProvider {
	return &TencentCOSProvider{}
}

// getCOSClient 根据策略构建COS客户端。
// policy.Server 为存储桶访问域名，如 https://bucket-1250000000.cos.ap-shanghai.myqcloud.com
func (p *TencentCOSProvider) getCOSClient(policy *model.StoragePolicy) (*cos.Client, error) {
	if policy.AccessKey == "" {
		return nil, fmt.Errorf("腾讯云COS策略缺少SecretID")
	}
	if policy.SecretKey == "" {
		return nil, fmt.Errorf("腾讯云COS策略缺少SecretKey")
	}
	if policy.Server == "" {
		return nil, fmt.Errorf("腾讯云COS策略缺少访问域名配置")
	}

	u, err := url.Parse(policy.Server)
	if err != nil {
		return nil, fmt.Errorf("解析存储桶URL失败: %w", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Timeout: 100 * time.Second,
		Transport: &cos.AuthorizationTransport{
			SecretID:  policy.AccessKey,
			SecretKey: policy.SecretKey,
		},
	})
	return client, nil
}

// Upload 上传对象到腾讯云COS。
func (p *TencentCOSProvider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error) {
	client, err := p.getCOSClient(policy)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(policy, objectKey)

	if _, err := client.Object.Put(ctx, key, file, nil); err != nil {
		log.Printf("[腾讯云COS] 上传失败: objectKey=%s, err=%v", key, err)
		return nil, fmt.Errorf("上传文件到腾讯云COS失败: %w", err)
	}

	// Put 不返回对象大小，上传后用 Head 拿回 Content-Length
	var size int64
	if resp, headErr := client.Object.Head(ctx, key, nil); headErr == nil {
		size = resp.ContentLength
	}

	return &UploadResult{
		ObjectKey:   key,
		URL:         fmt.Sprintf("cos://%s/%s", policy.BucketName, key),
		DeliveryURL: deliveryURL(policy, key),
		Size:        size,
	}, nil
}

// IsExist 通过 Head 检查对象是否存在。
func (p *TencentCOSProvider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	client, err := p.getCOSClient(policy)
	if err != nil {
		return false, err
	}

	resp, err := client.Object.Head(ctx, buildObjectKey(policy, objectKey), nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, fmt.Errorf("检查腾讯云COS对象失败: %w", err)
	}
	return true, nil
}

// GetDownloadURL 返回走投递域名的公开链接。
func (p *TencentCOSProvider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return deliveryURL(policy, buildObjectKey(policy, objectKey)), nil
}
