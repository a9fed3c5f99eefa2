/*
 * @Description: 阿里云OSS存储提供者实现
 * @Author: 青澜
 * @Date: 2025-09-07 14:32:10
 * @LastEditTime: 2026-04-02 18:41:29
 * @LastEditors: 青澜
 */
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// AliOSSProvider 实现了 IStorageProvider 接口，用于处理与阿里云OSS的所有交互。
type AliOSSProvider struct{}

// NewAliOSSProvider 是 AliOSSProvider 的构造函数。
func NewAliOSSProvider() IStorageProvider {
	return &AliOSSProvider{}
}

// getOSSBucket 根据策略构建OSS客户端并定位存储桶。
// policy.Server 为区域Endpoint，如 https://oss-cn-shanghai.aliyuncs.com
func (p *AliOSSProvider) getOSSBucket(policy *model.StoragePolicy) (*oss.Bucket, error) {
	if policy.BucketName == "" {
		return nil, fmt.Errorf("阿里云OSS策略缺少存储桶名称")
	}
	if policy.AccessKey == "" {
		return nil, fmt.Errorf("阿里云OSS策略缺少AccessKey")
	}
	if policy.SecretKey == "" {
		return nil, fmt.Errorf("阿里云OSS策略缺少SecretKey")
	}
	if policy.Server == "" {
		return nil, fmt.Errorf("阿里云OSS策略缺少Endpoint配置")
	}

	client, err := oss.New(policy.Server, policy.AccessKey, policy.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("创建阿里云OSS客户端失败: %w", err)
	}

	bucket, err := client.Bucket(policy.BucketName)
	if err != nil {
		return nil, fmt.Errorf("获取阿里云OSS存储桶失败: %w", err)
	}
	return bucket, nil
}

// Upload 上传对象到阿里云OSS。
func (p *AliOSSProvider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error) {
	bucket, err := p.getOSSBucket(policy)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(policy, objectKey)

	// OSS SDK 不接收 context，读入内存以便同时得到准确的大小
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}

	if err := bucket.PutObject(key, bytes.NewReader(data)); err != nil {
		log.Printf("[阿里云OSS] 上传失败: objectKey=%s, err=%v", key, err)
		return nil, fmt.Errorf("上传文件到阿里云OSS失败: %w", err)
	}

	return &UploadResult{
		ObjectKey:   key,
		URL:         fmt.Sprintf("oss://%s/%s", policy.BucketName, key),
		DeliveryURL: deliveryURL(policy, key),
		Size:        int64(len(data)),
	}, nil
}

// IsExist 检查阿里云OSS中的对象是否存在。
func (p *AliOSSProvider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	bucket, err := p.getOSSBucket(policy)
	if err != nil {
		return false, err
	}

	exist, err := bucket.IsObjectExist(buildObjectKey(policy, objectKey))
	if err != nil {
		return false, fmt.Errorf("检查阿里云OSS对象失败: %w", err)
	}
	return exist, nil
}

// GetDownloadURL 返回走投递域名的公开链接。
func (p *AliOSSProvider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return deliveryURL(policy, buildObjectKey(policy, objectKey)), nil
}
