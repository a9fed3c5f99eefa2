/*
 * @Description: 存储策略模型
 * @Author: 青澜
 * @Date: 2025-09-05 15:48:22
 * @LastEditTime: 2026-03-02 22:05:17
 * @LastEditors: 青澜
 */
package model

import (
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
)

// StoragePolicy 描述一个可写入的对象存储目的地。
// 路由器按 Priority 升序尝试，0 为主存储。
type StoragePolicy struct {
	ID         uint
	Name       string
	Type       constant.StoragePolicyType
	Priority   int    // 0 = 主存储，1..N = 备用顺序
	Server     string // endpoint 或区域（各提供者语义见对应驱动）
	BucketName string
	AccessKey  string
	SecretKey  string
	BasePath   string // 对象键的基础前缀
	BaseURL    string // 生成下载/投递URL时使用的访问域名
	CDNDomain  string // 可选：绑定的CDN加速域名，留空则使用 BaseURL
}

// DeliveryBase 返回对外投递链接应当使用的域名。
func (p *StoragePolicy) DeliveryBase() string {
	if p.CDNDomain != "" {
		return p.CDNDomain
	}
	return p.BaseURL
}
