// cmd/marketplace-service/main.go
package main

import (
	"context"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"agrilink/internal/pkg/bootstrap"
	"agrilink/internal/pkg/logger"
	"agrilink/internal/pkg/mq"
	"agrilink/internal/pkg/redisx"
	"agrilink/internal/service/marketplace/application"
	"agrilink/internal/service/marketplace/application/policy"
	"agrilink/internal/service/marketplace/domain"
	"agrilink/internal/service/marketplace/infrastructure/adapter"
	"agrilink/internal/service/marketplace/infrastructure/gormstore"
	"agrilink/internal/service/marketplace/infrastructure/memory"
	"agrilink/internal/service/marketplace/infrastructure/notify"
	"agrilink/internal/service/marketplace/interfaces"
)

const serviceName = "marketplace-service"

func main() {
	bootstrap.StartService(bootstrap.AppInfo{
		ServiceName: serviceName,
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			cfg := appCtx.Config

			// 1. 变更事件链路：进程内 Hub，可选地转发到 Kafka
			var forward domain.ChangePublisher
			if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.ChangeTopic != "" {
				writer := mq.NewWriter(cfg.Kafka.Brokers, cfg.Kafka.ChangeTopic)
				forward = adapter.NewChangeKafkaPublisher(writer)
			}
			hub := notify.NewHub(forward)

			// 2. 存储：默认 MySQL，开关打开时退化为进程内存储
			var store domain.Store
			if cfg.Features.InMemoryStore {
				logger.Ctx(nil).Warn().Msg("running with in-memory store, data will not survive restarts")
				store = memory.NewStore(hub)
			} else {
				db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{})
				if err != nil {
					logger.Ctx(nil).Fatal().Err(err).Msg("failed to connect to mysql")
				}
				if err := gormstore.AutoMigrate(db); err != nil {
					logger.Ctx(nil).Fatal().Err(err).Msg("failed to migrate marketplace schema")
				}
				store = gormstore.NewStore(db, hub)
			}

			// 3. 提交筛查策略（CEL 表达式，空串表示不筛查）
			var screener application.RequestScreener
			if cfg.Features.ScreeningPolicy != "" {
				s, err := policy.NewCELScreener(cfg.Features.ScreeningPolicy)
				if err != nil {
					logger.Ctx(nil).Fatal().Err(err).Msg("failed to compile screening policy")
				}
				screener = s
				logger.Ctx(nil).Info().Str("policy", cfg.Features.ScreeningPolicy).Msg("submission screening enabled")
			}

			// 4. 应用服务
			coordinator := application.NewReservationCoordinator(store)
			submission := application.NewRequestSubmissionService(store, screener)
			streams := application.NewPartitionStreams(store, hub)

			// 5. 目录读缓存（Redis 不可达时降级为直读存储）
			var catalog interfaces.CatalogBrowser
			if cfg.Redis.CatalogCacheTTLSeconds > 0 {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				redisClient, err := redisx.NewClient(ctx, cfg.Redis.Addr)
				if err != nil {
					logger.Ctx(nil).Warn().Err(err).Msg("redis unavailable, catalog cache disabled")
				} else {
					cache := adapter.NewCatalogCacheRedis(redisClient, store,
						time.Duration(cfg.Redis.CatalogCacheTTLSeconds)*time.Second)
					catalog = cache
					// 库存变更时让缓存失效
					events, _ := hub.SubscribeAll()
					go func() {
						for event := range events {
							cache.HandleChange(event)
						}
					}()
				}
			}

			handler := interfaces.NewMarketplaceHandler(coordinator, submission, streams, catalog)
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}
