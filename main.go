package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"easypay/bootstrap"
	btsConfig "easypay/config"
	"easypay/pkg/app"
	"easypay/pkg/config"
	"easypay/pkg/database"
	"easypay/pkg/logger"
	"easypay/pkg/queue"
	"easypay/pkg/redis"
)

// 加载应用程序的基础配置
func init() {
	btsConfig.Initialize()
}

// App 持有需要优雅关闭的组件
type App struct {
	server      *http.Server
	worker      *queue.Worker
	closeEvents func()
}

func main() {
	var env string
	flag.StringVar(&env, "env", "", "加载 .env 文件，例如 --env=testing 将加载 .env.testing 文件")
	flag.Parse()

	// 配置、日志、数据库、Redis
	config.InitConfig(env)
	bootstrap.SetupLogger()
	bootstrap.SetupDB()
	bootstrap.SetupRedis()

	// PG 客户端与事件
	client := bootstrap.SetupEasyPay()
	bus, closeEvents := bootstrap.SetupEvents()
	worker, eventQueue := bootstrap.SetupQueue(bus)

	// gin 在非本地环境使用 release 模式
	if !app.IsLocal() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	bootstrap.SetupRoute(router, bootstrap.Dependencies{
		Gateway: client,
		Bus:     bus,
		Queue:   eventQueue,
	})

	a := &App{
		server: &http.Server{
			Addr:              ":" + config.Get("app.port"),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		worker:      worker,
		closeEvents: closeEvents,
	}
	a.start()
}

// start 启动服务器并处理优雅关闭
func (a *App) start() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("Server", zap.String("action", "start"), zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Server", zap.String("action", "shutdown"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// 按依赖倒序关闭
	if err := a.server.Shutdown(ctx); err != nil {
		logger.Error("Server", zap.String("action", "shutdown"), zap.Error(err))
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	a.closeEvents()
	redis.Close()
	logger.LogIf(database.Close())

	logger.Info("Server", zap.String("action", "stopped"))
	_ = logger.Logger.Sync()
}
