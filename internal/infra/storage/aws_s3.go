/*
 * @Description: AWS S3存储提供者实现（使用aws-sdk-go-v2，兼容MinIO/Ceph RGW等S3兼容服务）
 * @Author: 青澜
 * @Date: 2025-09-07 11:05:49
 * @LastEditTime: 2026-04-02 18:20:31
 * @LastEditors: 青澜
 */
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// AWSS3Provider 实现了 IStorageProvider 接口，用于处理与AWS S3的所有交互。
type AWSS3Provider struct{}

// NewAWSS3Provider 是 AWSS3Provider 的构造函数。
func NewAWSS3Provider() IStorageProvider {
	return &AWSS3Provider{}
}

// getS3Client 根据策略构建 S3 客户端。
// policy.Server 可以是区域名（"us-west-2"）或完整 endpoint URL（S3兼容服务）。
func (p *AWSS3Provider) getS3Client(ctx context.Context, policy *model.StoragePolicy) (*s3.Client, error) {
	if policy.BucketName == "" {
		return nil, fmt.Errorf("AWS S3策略缺少存储桶名称")
	}
	if policy.AccessKey == "" || policy.SecretKey == "" {
		return nil, fmt.Errorf("AWS S3策略缺少访问凭证")
	}

	region := "us-east-1"
	var customEndpoint *string

	if policy.Server != "" {
		if strings.HasPrefix(policy.Server, "http") {
			parsedURL, err := url.Parse(policy.Server)
			if err == nil {
				customEndpoint = &policy.Server
				if strings.Contains(parsedURL.Host, "amazonaws.com") {
					parts := strings.Split(parsedURL.Host, ".")
					if len(parts) >= 4 && strings.HasPrefix(parts[1], "s3") {
						region = parts[2] // s3.us-west-2.amazonaws.com
					}
				}
			}
		} else {
			region = policy.Server
		}
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			policy.AccessKey, policy.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("创建AWS S3配置失败: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if customEndpoint != nil {
			o.BaseEndpoint = aws.String(*customEndpoint)
			o.UsePathStyle = true // 自定义endpoint通常需要path-style
		}
	})

	return client, nil
}

// Upload 上传对象到 AWS S3。
// 显式设置 ContentLength 与 ChecksumSHA256，避免第三方 S3 兼容服务的校验问题。
func (p *AWSS3Provider) Upload(ctx context.Context, file io.Reader, policy *model.StoragePolicy, objectKey string) (*UploadResult, error) {
	client, err := p.getS3Client(ctx, policy)
	if err != nil {
		return nil, err
	}

	key := buildObjectKey(policy, objectKey)

	fileContent, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("读取文件内容失败: %w", err)
	}
	contentLength := int64(len(fileContent))

	hash := sha256.Sum256(fileContent)
	checksumSHA256 := base64.StdEncoding.EncodeToString(hash[:])

	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:         aws.String(policy.BucketName),
		Key:            aws.String(key),
		Body:           bytes.NewReader(fileContent),
		ContentLength:  aws.Int64(contentLength),
		ChecksumSHA256: aws.String(checksumSHA256),
	})
	if err != nil {
		log.Printf("[AWS S3] 上传失败: objectKey=%s, err=%v", key, err)
		return nil, fmt.Errorf("上传文件到AWS S3失败: %w", err)
	}

	return &UploadResult{
		ObjectKey:   key,
		URL:         fmt.Sprintf("s3://%s/%s", policy.BucketName, key),
		DeliveryURL: deliveryURL(policy, key),
		Size:        contentLength,
	}, nil
}

// IsExist 通过 HeadObject 检查对象是否存在。
func (p *AWSS3Provider) IsExist(ctx context.Context, policy *model.StoragePolicy, objectKey string) (bool, error) {
	client, err := p.getS3Client(ctx, policy)
	if err != nil {
		return false, err
	}

	_, err = client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(policy.BucketName),
		Key:    aws.String(buildObjectKey(policy, objectKey)),
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, fmt.Errorf("检查S3对象失败: %w", err)
	}
	return true, nil
}

// GetDownloadURL 返回走投递域名的公开链接。
func (p *AWSS3Provider) GetDownloadURL(ctx context.Context, policy *model.StoragePolicy, objectKey string) (string, error) {
	return deliveryURL(policy, buildObjectKey(policy, objectKey)), nil
}
