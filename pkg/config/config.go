/*
 * @Description: 统一配置管理（手动加载 ini + 环境变量覆盖）
 * @Author: 青澜
 * @Date: 2025-09-03 09:40:12
 * @LastEditTime: 2026-06-09 14:25:33
 * @LastEditors: 青澜
 */
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-ini/ini"
	"github.com/spf13/viper"
)

const (
	KeyServerPort  = "System.Port"
	KeyServerDebug = "System.Debug"

	KeyDBType     = "Database.Type"
	KeyDBHost     = "Database.Host"
	KeyDBPort     = "Database.Port"
	KeyDBUser     = "Database.User"
	KeyDBPassword = "Database.Password"
	KeyDBName     = "Database.Name"

	KeyRedisAddr     = "Redis.Addr"
	KeyRedisPassword = "Redis.Password"
	KeyRedisDB       = "Redis.DB"

	// 摄取与变体生成
	KeyIngestAllowedTypes = "Ingest.AllowedTypes" // 逗号分隔的 MIME 允许列表
	KeyVariantWebpEnable  = "Ingest.WebpVariants"

	// 存储路由
	KeyStorageProviderOrder = "Storage.ProviderOrder" // 逗号分隔，首个为主存储
	KeyStorageMaxRetries    = "Storage.MaxRetries"
	KeyStorageBackoffBaseMS = "Storage.BackoffBaseMS"
	KeyStorageAttemptTimeMS = "Storage.AttemptTimeoutMS"

	// CDN 健康监控
	KeyCDNPrimaryDomain      = "CDN.PrimaryDomain"
	KeyCDNBackupDomains      = "CDN.BackupDomains" // 逗号分隔
	KeyCDNProbePath          = "CDN.ProbePath"
	KeyCDNProbeTimeoutMS     = "CDN.ProbeTimeoutMS"
	KeyCDNProbeIntervalCron  = "CDN.ProbeCron"
	KeyCDNLatencyThresholdMS = "CDN.LatencyThresholdMS"

	// 边缘访问防护
	KeyGuardHotlinkEnable      = "Guard.HotlinkProtection"
	KeyGuardAllowedReferrers   = "Guard.AllowedReferrers" // 逗号分隔的来源 Origin
	KeyGuardRequestsPerMinute  = "Guard.RequestsPerMinute"
	KeyGuardAnomalyEnable      = "Guard.AnomalyDetection"
	KeyGuardAnomalyThreshold   = "Guard.AnomalyThreshold"
	KeyGuardBlockedIPs         = "Guard.BlockedIPs" // 逗号分隔
	KeyGuardAccessLogSize      = "Guard.AccessLogSize"
	KeyGuardWeightShortUA      = "Guard.WeightShortUA"
	KeyGuardWeightBotUA        = "Guard.WeightBotUA"
	KeyGuardWeightHighFreq     = "Guard.WeightHighFreq"
	KeyGuardWeightTraversal    = "Guard.WeightPathTraversal"
	KeyGuardWeightSensitive    = "Guard.WeightSensitivePath"
	KeyGuardHighFreqThreshold  = "Guard.HighFreqThreshold"
)

// allKeys 列出所有已知配置键，用于环境变量覆盖扫描。
var allKeys = []string{
	KeyServerPort, KeyServerDebug,
	KeyDBType, KeyDBHost, KeyDBPort, KeyDBUser, KeyDBPassword, KeyDBName,
	KeyRedisAddr, KeyRedisPassword, KeyRedisDB,
	KeyIngestAllowedTypes, KeyVariantWebpEnable,
	KeyStorageProviderOrder, KeyStorageMaxRetries, KeyStorageBackoffBaseMS, KeyStorageAttemptTimeMS,
	KeyCDNPrimaryDomain, KeyCDNBackupDomains, KeyCDNProbePath, KeyCDNProbeTimeoutMS,
	KeyCDNProbeIntervalCron, KeyCDNLatencyThresholdMS,
	KeyGuardHotlinkEnable, KeyGuardAllowedReferrers, KeyGuardRequestsPerMinute,
	KeyGuardAnomalyEnable, KeyGuardAnomalyThreshold, KeyGuardBlockedIPs, KeyGuardAccessLogSize,
	KeyGuardWeightShortUA, KeyGuardWeightBotUA, KeyGuardWeightHighFreq,
	KeyGuardWeightTraversal, KeyGuardWeightSensitive, KeyGuardHighFreqThreshold,
}

type Config struct {
	vp *viper.Viper
}

// NewConfig 手动加载配置：先读 data/conf.ini 作为默认值，再用环境变量覆盖。
// 环境变量命名规则：QINGLAN_ + 段名_键名 全大写，例如 QINGLAN_CDN_PRIMARYDOMAIN。
func NewConfig() (*Config, error) {
	vp := viper.New()
	filePath := "data/conf.ini"

	iniCfg, err := ini.Load(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("提示: 未找到 %s，将创建默认配置文件。", filePath)
			if werr := createDefaultConfigFile(filePath); werr != nil {
				log.Printf("警告: 创建默认配置文件失败: %v，将仅依赖环境变量或内部默认值。", werr)
			} else {
				log.Printf("✅ 已创建默认配置文件: %s", filePath)
				iniCfg, err = ini.Load(filePath)
				if err != nil {
					log.Printf("警告: 重新加载配置文件失败: %v", err)
				}
			}
		} else {
			return nil, fmt.Errorf("错误: 解析配置文件 '%s' 失败: %w", filePath, err)
		}
	}

	if iniCfg != nil {
		for _, section := range iniCfg.Sections() {
			for _, key := range section.Keys() {
				viperKey := fmt.Sprintf("%s.%s", section.Name(), key.Name())
				if section.Name() == "DEFAULT" {
					viperKey = key.Name()
				}
				vp.Set(viperKey, key.Value())
			}
		}
		log.Println("从 data/conf.ini 文件加载了默认配置。")
	}

	envReplacer := strings.NewReplacer(".", "_")
	envPrefix := "QINGLAN"

	for _, key := range allKeys {
		envVarName := fmt.Sprintf("%s_%s", envPrefix, envReplacer.Replace(strings.ToUpper(key)))
		if value, found := os.LookupEnv(envVarName); found {
			vp.Set(key, value)
			log.Printf("发现环境变量: %s, 已覆盖配置 '%s'。", envVarName, key)
		}
	}

	applyDefaults(vp)

	log.Println("✅ 配置加载器初始化完成。")
	return &Config{vp: vp}, nil
}

// applyDefaults 为未出现在文件与环境变量中的键写入内部默认值。
// 所有防护权重与阈值都在这里集中定义，避免散落在业务代码里的魔法数字。
func applyDefaults(vp *viper.Viper) {
	defaults := map[string]interface{}{
		KeyServerPort:             "8091",
		KeyStorageProviderOrder:   "local",
		"Policy_local.Type":       "local",
		"Policy_local.BasePath":   "data/storage",
		KeyIngestAllowedTypes:     "image/jpeg,image/png,image/gif,image/webp,image/bmp",
		KeyVariantWebpEnable:      true,
		KeyStorageMaxRetries:      3,
		KeyStorageBackoffBaseMS:   200,
		KeyStorageAttemptTimeMS:   30000,
		KeyCDNProbePath:           "/.well-known/health",
		KeyCDNProbeTimeoutMS:      5000,
		KeyCDNProbeIntervalCron:   "0 */1 * * * *",
		KeyCDNLatencyThresholdMS:  800,
		KeyGuardHotlinkEnable:     false,
		KeyGuardRequestsPerMinute: 120,
		KeyGuardAnomalyEnable:     true,
		KeyGuardAnomalyThreshold:  0.5,
		KeyGuardAccessLogSize:     1000,
		KeyGuardWeightShortUA:     0.2,
		KeyGuardWeightBotUA:       0.3,
		KeyGuardWeightHighFreq:    0.25,
		KeyGuardWeightTraversal:   0.35,
		KeyGuardWeightSensitive:   0.3,
		KeyGuardHighFreqThreshold: 100,
	}
	for k, v := range defaults {
		if !vp.IsSet(k) {
			vp.Set(k, v)
		}
	}
}

func (c *Config) GetString(key string) string {
	return c.vp.GetString(key)
}

func (c *Config) GetInt(key string) int {
	return c.vp.GetInt(key)
}

func (c *Config) GetBool(key string) bool {
	return c.vp.GetBool(key)
}

func (c *Config) GetFloat64(key string) float64 {
	return c.vp.GetFloat64(key)
}

// GetStringSlice 解析逗号分隔的列表配置，空元素被丢弃。
func (c *Config) GetStringSlice(key string) []string {
	raw := c.vp.GetString(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// createDefaultConfigFile 创建默认的配置文件
func createDefaultConfigFile(filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}

	defaultConfig := `[System]
Port = 8091
Debug = false

[Database]
Type = sqlite
Name = qinglan_app.db

# Redis 配置（可选）
# 不配置 Addr 时内容哈希查询将直接落库
[Redis]
Addr =
Password =
DB = 0

[Ingest]
AllowedTypes = image/jpeg,image/png,image/gif,image/webp,image/bmp
WebpVariants = true

[Storage]
# 首个为主存储，其余为按序回退的备用存储
ProviderOrder = local
MaxRetries = 3
BackoffBaseMS = 200
AttemptTimeoutMS = 30000

[CDN]
PrimaryDomain =
BackupDomains =
ProbePath = /.well-known/health
ProbeTimeoutMS = 5000
ProbeCron = 0 */1 * * * *
LatencyThresholdMS = 800

[Guard]
HotlinkProtection = false
AllowedReferrers =
RequestsPerMinute = 120
AnomalyDetection = true
AnomalyThreshold = 0.5
BlockedIPs =
AccessLogSize = 1000

# ProviderOrder 中的每个名字对应一个 [Policy_<名字>] 段
[Policy_local]
Type = local
BasePath = data/storage
BaseURL = http://localhost:8091/d
`

	if err := os.WriteFile(filePath, []byte(defaultConfig), 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}
