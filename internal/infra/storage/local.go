/*
 * @Description: 本地磁盘存储提供者实现
 * @Author: 青澜
 * @Date: 2025-09-07 10:40:12
 * @LastEditTime: 2026-04-02 18:06:54
 * @LastEditors: 青澜
 */
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

const localStorageRoot = "data/storage"

// LocalProvider 实现了 IStorageProvider 接口，把对象写入本地磁盘。
// policy.BasePath 相对于 localStorageRoot 解析。
type LocalProvider struct{}

// NewLocalProvider 是 LocalProvider 的构造函数。
func NewLocalProvider() IStorageProvider {
	return &LocalProvider{}
}

// diskPath 把对象键映射为磁盘上的绝对路径，并拒绝越出存储根目录的键。
func (p *LocalProvider) diskPath(policy *model.StoragePolicy, objectKey string) (string, error) {
	full := filepath.Join(localStorageRoot, buildObjectKey(policy, objectKey))
	cleaned := filepath.Clean(full)
	if !strings.HasPrefix(cleaned, filepath.Clean(localStorageRoot)+string(os.PathSeparator)) {
		return "", fmt.Errorf("对象键越出本地存储根目录: %s", objectKey)
	}
	return cleaned, nil
}

// Upload 将对象内容写入本地磁盘，同键覆盖。
func (p *LocalProvider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error) {
	path, err := p.diskPath(policy, objectKey)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return nil, fmt.Errorf("创建本地存储目录失败: %w", err)
	}

	// 先写临时文件再改名，避免并发读取到半截内容
	tmp, err := os.CreateTemp(filepath.Dir(path), ".qinglan-upload-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, file)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("写入本地文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("关闭临时文件失败: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("落盘改名失败: %w", err)
	}

	key := buildObjectKey(policy, objectKey)
	return &UploadResult{
		ObjectKey:   key,
		URL:         "local://" + key,
		DeliveryURL: deliveryURL(policy, key),
		Size:        size,
	}, nil
}

// IsExist 检查本地文件是否存在。
func (p *LocalProvider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	path, err := p.diskPath(policy, objectKey)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("检查本地文件失败: %w", err)
}

// GetDownloadURL 返回走投递域名的公开链接。
func (p *LocalProvider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return deliveryURL(policy, buildObjectKey(policy, objectKey)), nil
}

// ResolveLocalPath 把完整对象键映射为本地磁盘路径，供投递路由直接回源。
// 拒绝任何越出存储根目录的键。
func ResolveLocalPath(objectKey string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(localStorageRoot, objectKey))
	if !strings.HasPrefix(cleaned, filepath.Clean(localStorageRoot)+string(os.PathSeparator)) {
		return "", fmt.Errorf("对象键越出本地存储根目录: %s", objectKey)
	}
	return cleaned, nil
}
