/*
 * @Description: 从配置装载存储策略
 * @Author: 青澜
 * @Date: 2025-09-10 15:40:18
 * @LastEditTime: 2026-04-03 15:21:02
 * @LastEditors: 青澜
 */
package storagerouter

import (
	"fmt"
	"log"

	"github.com/qinglan-dev/qinglan-app/pkg/config"
	"github.com/qinglan-dev/qinglan-app/pkg/constant"
	"github.com/qinglan-dev/qinglan-app/pkg/domain/model"
)

// LoadPoliciesFromConfig 按 Storage.ProviderOrder 的顺序装载存储策略。
// 顺序中的每个名字对应一个 [Policy_<名字>] 配置段，首个为主存储。
// 类型非法的条目跳过并记录日志，不让单条坏配置拖垮启动。
func LoadPoliciesFromConfig(cfg *config.Config) ([]*model.StoragePolicy, error) {
	names := cfg.GetStringSlice(config.KeyStorageProviderOrder)
	if len(names) == 0 {
		return nil, fmt.Errorf("存储配置缺少 %s", config.KeyStorageProviderOrder)
	}

	policies := make([]*model.StoragePolicy, 0, len(names))
	for i, name := range names {
		section := "Policy_" + name
		typeStr := cfg.GetString(section + ".Type")
		if !constant.IsValidPolicyType(typeStr) {
			log.Printf("[存储路由] 跳过非法策略: name=%s, type=%q", name, typeStr)
			continue
		}

		policies = append(policies, &model.StoragePolicy{
			ID:         uint(i + 1),
			Name:       name,
			Type:       constant.StoragePolicyType(typeStr),
			Priority:   i,
			Server:     cfg.GetString(section + ".Server"),
			BucketName: cfg.GetString(section + ".Bucket"),
			AccessKey:  cfg.GetString(section + ".AccessKey"),
			SecretKey:  cfg.GetString(section + ".SecretKey"),
			BasePath:   cfg.GetString(section + ".BasePath"),
			BaseURL:    cfg.GetString(section + ".BaseURL"),
			CDNDomain:  cfg.GetString(section + ".CDNDomain"),
		})
	}

	if len(policies) == 0 {
		return nil, fmt.Errorf("存储配置中没有任何合法策略")
	}
	return policies, nil
}
