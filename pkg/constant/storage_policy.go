/*
 * @Description: 存储提供者类型常量
 * @Author: 青澜
 * @Date: 2025-09-03 11:02:17
 * @LastEditTime: 2025-12-20 18:11:45
 * @LastEditors: 青澜
 */
package constant

// StoragePolicyType 标识一条存储策略背后的对象存储实现。
type StoragePolicyType string

const (
	// PolicyTypeLocal 本地磁盘存储
	PolicyTypeLocal StoragePolicyType = "local"
	// PolicyTypeAwsS3 AWS S3 及所有 S3 兼容服务（MinIO、Ceph RGW 等）
	PolicyTypeAwsS3 StoragePolicyType = "aws_s3"
	// PolicyTypeAliOSS 阿里云对象存储
	PolicyTypeAliOSS StoragePolicyType = "ali_oss"
	// PolicyTypeTencentCOS 腾讯云对象存储
	PolicyTypeTencentCOS StoragePolicyType = "tencent_cos"
	// PolicyTypeQiniuKodo 七牛云对象存储
	PolicyTypeQiniuKodo StoragePolicyType = "qiniu_kodo"
)

// IsValidPolicyType 检查给定的类型字符串是否为受支持的存储提供者。
func IsValidPolicyType(t string) bool {
	switch StoragePolicyType(t) {
	case PolicyTypeLocal, PolicyTypeAwsS3, PolicyTypeAliOSS, PolicyTypeTencentCOS, PolicyTypeQiniuKodo:
		return true
	}
	return false
}
