/*
 * @Description: 按存储策略类型选择对应的存储提供者
 * @Author: 青澜
 * @Date: 2025-09-07 16:10:33
 * @LastEditTime: 2026-04-02 19:12:40
 * @LastEditors: 青澜
 */
package storage

import (
	"fmt"

	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// NewProviderForPolicy 根据策略类型返回对应的存储提供者实例。
// 提供者自身无状态，连接信息全部来自调用时传入的策略。
func NewProviderForPolicy(policy *model.StoragePolicy) (IStorageProvider, error) {
	switch policy.Type {
	case constant.PolicyTypeLocal:
		return NewLocalProvider(), nil
	case constant.PolicyTypeAwsS3:
		return NewAWSS3Provider(), nil
	case constant.PolicyTypeAliOSS:
		return NewAliOSSProvider(), nil
	case constant.PolicyTypeTencentCOS:
		return NewTencentCOSProvider(), nil
	case constant.PolicyTypeQiniuKodo:
		return NewQiniuKodoProvider(), nil
	default:
		return nil, fmt.Errorf("不支持的存储策略类型: %s", policy.Type)
	}
}
