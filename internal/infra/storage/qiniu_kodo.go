/*
 * @Description: 七牛云Kodo存储提供者实现
 * @Author: 青澜
 * @Date: 2025-09-07 15:48:02
 * @LastEditTime: 2026-04-02 19:06:55
 * @LastEditors: 青澜
 */
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	"github.com/qiniu/go-sdk/v7/auth"
	qiniustorage "github.com/qiniu/go-sdk/v7/storage"
)

// QiniuKodoProvider 实现了 IStorageProvider 接口，用于处理与七牛云Kodo的所有交互。
type QiniuKodoProvider struct{}

// NewQiniuKodoProvider 是 QiniuKodoProvider 的构造函数。
func NewQiniuKodoProvider() IStorageProvider {
	return &QiniuKodoProvider{}
}

// getCredentials 获取七牛云认证凭证。
func (p *QiniuKodoProvider) getCredentials(policy *model.StoragePolicy) (*auth.Credentials, error) {
	if policy.AccessKey == "" {
		return nil, fmt.Errorf("七牛云策略缺少AccessKey")
	}
	if policy.SecretKey == "" {
		return nil, fmt.Errorf("七牛云策略缺少SecretKey")
	}
	return auth.New(policy.AccessKey, policy.SecretKey), nil
}

// getUploadConfig 根据策略的上传域名推断存储区域。
// policy.Server 形如 https://up-z2.qiniup.com，匹配不到时交给SDK自动探测。
func (p *QiniuKodoProvider) getUploadConfig(policy *model.StoragePolicy) *qiniustorage.Config {
	cfg := &qiniustorage.Config{
		UseHTTPS: true,
	}

	switch {
	case strings.Contains(policy.Server, "up-z0"):
		cfg.Region = &qiniustorage.ZoneHuadong
	case strings.Contains(policy.Server, "up-z1"):
		cfg.Region = &qiniustorage.ZoneHuabei
	case strings.Contains(policy.Server, "up-z2"):
		cfg.Region = &qiniustorage.ZoneHuanan
	case strings.Contains(policy.Server, "up-na0"):
		cfg.Region = &qiniustorage.ZoneBeimei
	case strings.Contains(policy.Server, "up-as0"):
		cfg.Region = &qiniustorage.ZoneXinjiapo
	}
	return cfg
}

// Upload 上传对象到七牛云Kodo。
// 上传策略的 Scope 指定到具体对象键，同键重传为覆盖语义。
func (p *QiniuKodoProvider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error) {
	if policy.BucketName == "" {
		return nil, fmt.Errorf("七牛云策略缺少存储空间名称")
	}

	mac, err := p.getCredentials(policy)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(policy, objectKey)

	putPolicy := qiniustorage.PutPolicy{
		Scope:      fmt.Sprintf("%s:%s", policy.BucketName, key),
		InsertOnly: 0,
	}
	upToken := putPolicy.UploadToken(mac)

	// 表单上传需要已知长度，读入内存
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取上传文件失败: %w", err)
	}

	formUploader := qiniustorage.NewFormUploader(p.getUploadConfig(policy))
	ret := qiniustorage.PutRet{}
	putExtra := qiniustorage.PutExtra{}

	err = formUploader.Put(ctx, &ret, upToken, key, bytes.NewReader(data), int64(len(data)), &putExtra)
	if err != nil {
		log.Printf("[七牛云] 上传失败: objectKey=%s, err=%v", key, err)
		return nil, fmt.Errorf("上传文件到七牛云失败: %w", err)
	}

	return &UploadResult{
		ObjectKey:   key,
		URL:         fmt.Sprintf("kodo://%s/%s", policy.BucketName, key),
		DeliveryURL: deliveryURL(policy, key),
		Size:        int64(len(data)),
	}, nil
}

// IsExist 通过 Stat 检查对象是否存在。
func (p *QiniuKodoProvider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	mac, err := p.getCredentials(policy)
	if err != nil {
		return false, err
	}

	bucketManager := qiniustorage.NewBucketManager(mac, p.getUploadConfig(policy))
	_, err = bucketManager.Stat(policy.BucketName, buildObjectKey(policy, objectKey))
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") ||
			strings.Contains(err.Error(), "612") {
			return false, nil
		}
		return false, fmt.Errorf("检查七牛云对象失败: %w", err)
	}
	return true, nil
}

// GetDownloadURL 返回走投递域名的公开链接。
func (p *QiniuKodoProvider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return deliveryURL(policy, buildObjectKey(policy, objectKey)), nil
}
