package bootstrap

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"easypay/app/http/controllers/api/v1/admin"
	"easypay/app/http/controllers/api/v1/health"
	"easypay/app/http/controllers/api/v1/payment"
	"easypay/app/http/middlewares"
	"easypay/app/repositories"
	"easypay/app/services/dashboard"
	paymentsvc "easypay/app/services/payment"
	"easypay/pkg/database"
	"easypay/pkg/easypay"
	"easypay/pkg/events"
	"easypay/pkg/queue"
	"easypay/pkg/redis"
	"easypay/routes"
)

// Dependencies 组装控制器所需的组件
type Dependencies struct {
	Gateway *easypay.Client
	Bus     *events.Bus
	Queue   *queue.EventQueue // 可为 nil
}

// SetupRoute 路由初始化
func SetupRoute(router *gin.Engine, deps Dependencies) {
	// 注册全局中间件
	registerGlobalMiddleWare(router)

	repo := repositories.NewPaymentRepository(nil)
	service := paymentsvc.NewService(repo, deps.Gateway, deps.Bus)

	// 注册 API 路由
	routes.RegisterAPIRoutes(router, routes.Controllers{
		Payment:       payment.NewPaymentController(service),
		AdminPayments: admin.NewPaymentsController(service, repo),
		Dashboard:     admin.NewDashboardController(dashboard.NewService(repo), queueMonitor(deps.Queue)),
		Health:        health.NewHealthController(healthChecks()),
	})

	// 配置 404 路由处理器
	setup404Handler(router)
}

// queueMonitor 未开启队列时返回接口零值
func queueMonitor(q *queue.EventQueue) queue.Monitor {
	if q == nil {
		return nil
	}
	return q
}

// healthChecks 数据库必检，Redis 启用时一并检查
func healthChecks() map[string]health.Check {
	checks := map[string]health.Check{
		"database": database.Ping,
	}
	if rds := redis.GetRedis(redis.MainDB); rds != nil {
		checks["redis"] = func(context.Context) error { return rds.Ping() }
	}
	return checks
}

// registerGlobalMiddleWare 注册全局中间件
func registerGlobalMiddleWare(router *gin.Engine) {
	router.Use(
		middlewares.Logger(),
		middlewares.Recovery(),
	)
}

// setup404Handler 根据请求的 Accept 头返回文本或 JSON 格式的 404
func setup404Handler(router *gin.Engine) {
	router.NoRoute(func(c *gin.Context) {
		acceptString := c.Request.Header.Get("Accept")
		if strings.Contains(acceptString, "text/html") {
			c.String(http.StatusNotFound, "페이지를 찾을 수 없습니다")
		} else {
			c.JSON(http.StatusNotFound, gin.H{
				"status":  "error",
				"message": "정의되지 않은 경로입니다. URL과 요청 메서드를 확인해주세요",
			})
		}
	})
}
