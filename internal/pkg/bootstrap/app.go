// internal/pkg/bootstrap/app.go
package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"agrilink/internal/pkg/config"
	"agrilink/internal/pkg/logger"
	"agrilink/internal/pkg/nacos"
	"agrilink/internal/pkg/tracing"
)

// AppCtx 传给各服务的路由注册回调。
type AppCtx struct {
	Mux    *http.ServeMux
	Config config.Config
	Nacos  *nacos.Client
}

// AppInfo 包含启动一个服务所需的特定信息。
type AppInfo struct {
	ServiceName string
	Port        int
	// RegisterHandlers 允许每个服务注册自己的 HTTP 路由
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务器停止后、追踪器关闭前执行（后进先出）
	OnShutdown func(ctx context.Context)
}

// StartService 封装所有服务共用的启动和优雅关停逻辑：
// 配置加载、日志、追踪、可选的 Nacos 注册、HTTP 服务器、信号处理。
func StartService(info AppInfo) {
	// 1. 加载配置，初始化日志
	cfg, err := config.Load("")
	if err != nil {
		logger.Init(info.ServiceName)
		logger.Ctx(nil).Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(info.ServiceName)
	if info.Port == 0 {
		info.Port = cfg.Service.Port
	}

	// 2. 初始化 TracerProvider
	tp, err := tracing.InitTracerProvider(info.ServiceName, cfg.Jaeger.Endpoint)
	if err != nil {
		logger.Ctx(nil).Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	// 3. 可选的服务注册
	var namingClient *nacos.Client
	ip := ""
	if cfg.Nacos.Enabled {
		namingClient, err = nacos.NewNacosClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			logger.Ctx(nil).Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		ip, err = outboundIP()
		if err != nil {
			logger.Ctx(nil).Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Ctx(nil).Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	// 4. 创建并启动 HTTP Server
	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Config: *cfg, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(info.Port), Handler: mux}
	go func() {
		logger.Ctx(nil).Info().Msgf("%s listening on :%d", info.ServiceName, info.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Ctx(nil).Fatal().Err(err).Msgf("could not listen on %s", server.Addr)
		}
	}()

	// 5. 阻塞直到收到退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Ctx(nil).Info().Msgf("shutting down service %s", info.ServiceName)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 6. 按后进先出的顺序清理
	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(info.ServiceName, ip, info.Port); err != nil {
			logger.Ctx(nil).Error().Err(err).Msg("error deregistering from nacos")
		}
	}

	if err := server.Shutdown(ctx); err != nil {
		logger.Ctx(nil).Error().Err(err).Msg("error shutting down http server")
	}

	if info.OnShutdown != nil {
		info.OnShutdown(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		logger.Ctx(nil).Error().Err(err).Msg("error shutting down tracer provider")
	}

	logger.Ctx(nil).Info().Msgf("service %s gracefully shut down", info.ServiceName)
}

// outboundIP 取本机对外通信使用的 IP，用于服务注册。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
