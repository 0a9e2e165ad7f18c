// internal/pkg/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config 是整个服务的配置树，从 YAML 文件加载，
// 关键字段允许用环境变量覆盖（容器部署时无需改文件）。
type Config struct {
	Service  ServiceConfig `yaml:"service"`
	MySQL    MySQLConfig   `yaml:"mysql"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Jaeger   JaegerConfig  `yaml:"jaeger"`
	Nacos    NacosConfig   `yaml:"nacos"`
	Features FeatureFlags  `yaml:"features"`
}

type ServiceConfig struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

type MySQLConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr string `yaml:"addr"`
	// CatalogCacheTTLSeconds 是目录读缓存的过期时间，0 表示禁用缓存
	CatalogCacheTTLSeconds int `yaml:"catalogCacheTtlSeconds"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	// ChangeTopic 承载分区变更事件，推送网关从这里消费
	ChangeTopic   string `yaml:"changeTopic"`
	ConsumerGroup string `yaml:"consumerGroup"`
}

type JaegerConfig struct {
	Endpoint string `yaml:"endpoint"`
}

type NacosConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServerAddrs string `yaml:"serverAddrs"`
	Namespace   string `yaml:"namespace"`
	Group       string `yaml:"group"`
}

type FeatureFlags struct {
	// InMemoryStore 为 true 时不连 MySQL，跑进程内存储（demo / 本地开发）
	InMemoryStore bool `yaml:"inMemoryStore"`
	// ScreeningPolicy 是提交筛查的 CEL 表达式，空串表示不筛查
	ScreeningPolicy string `yaml:"screeningPolicy"`
}

var (
	current Config
	mu      sync.RWMutex
)

// Load 从 path 读取配置并应用环境变量覆盖。
// path 为空时依次尝试 AGRILINK_CONFIG 环境变量和 ./configs/config.yaml。
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("AGRILINK_CONFIG", "configs/config.yaml")
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		// 没有配置文件也能跑：默认值 + 环境变量
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	applyEnvOverrides(&cfg)

	mu.Lock()
	current = cfg
	mu.Unlock()
	return &cfg, nil
}

// Current 返回最近一次 Load 的配置快照。
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func defaults() Config {
	return Config{
		Service: ServiceConfig{Name: "marketplace-service", Port: 8080},
		Redis:   RedisConfig{Addr: "localhost:6379", CatalogCacheTTLSeconds: 30},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ChangeTopic:   "partition-change-topic",
			ConsumerGroup: "push-gateway",
		},
		Jaeger: JaegerConfig{Endpoint: "http://localhost:14268/api/traces"},
		Nacos:  NacosConfig{ServerAddrs: "localhost:8848", Group: "DEFAULT_GROUP"},
	}
}

func applyEnvOverrides(cfg *Config) {
	cfg.MySQL.DSN = getEnv("MYSQL_DSN", cfg.MySQL.DSN)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Jaeger.Endpoint)
	cfg.Nacos.ServerAddrs = getEnv("NACOS_SERVER_ADDRS", cfg.Nacos.ServerAddrs)
	cfg.Nacos.Namespace = getEnv("NACOS_NAMESPACE", cfg.Nacos.Namespace)
	cfg.Nacos.Group = getEnv("NACOS_GROUP", cfg.Nacos.Group)
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = splitAndTrim(brokers)
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
