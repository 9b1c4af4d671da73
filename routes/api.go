// Package routes 注册路由
package routes

import (
	"github.com/gin-gonic/gin"

	"easypay/app/http/controllers/api/v1/admin"
	"easypay/app/http/controllers/api/v1/health"
	"easypay/app/http/controllers/api/v1/payment"
	"easypay/app/http/middlewares"
	"easypay/pkg/config"
)

// 路由限流配置
const (
	// 💳 创建支付：每分钟每IP 30 请求
	CreatePaymentLimit = "30-M"
	// 🔁 PG 回跳与状态查询：每分钟每IP 300 请求
	CallbackLimit = "300-M"
)

// Controllers 路由使用的控制器，由 bootstrap 组装
type Controllers struct {
	Payment       *payment.PaymentController
	AdminPayments *admin.PaymentsController
	Dashboard     *admin.DashboardController
	Health        *health.HealthController
}

// RegisterAPIRoutes 注册所有 API 路由
func RegisterAPIRoutes(r *gin.Engine, ctrls Controllers) {
	// 挂在引擎上，未匹配路由的预检请求也能得到 204
	r.Use(middlewares.Cors())

	v1 := r.Group("/v1")

	v1.Use(
		middlewares.SecurityHeaders(),
		middlewares.LimitIP(config.GetString("app.api_rate_limit", "1000-H")),
	)

	// ❤️ 健康检查
	v1.GET("/health", ctrls.Health.Show)

	// 💳 买家支付
	paymentRoutes := v1.Group("/payments")
	{
		pc := ctrls.Payment

		// POST /v1/payments 创建并注册，返回认证页面地址
		paymentRoutes.POST("", middlewares.LimitPerRoute(CreatePaymentLimit), pc.Store)

		// PG 认证结束后回跳，测试环境 GET，生产环境 POST 表单
		paymentRoutes.GET("/callback", middlewares.LimitPerRoute(CallbackLimit), pc.Callback)
		paymentRoutes.POST("/callback", middlewares.LimitPerRoute(CallbackLimit), pc.Callback)

		// GET /v1/payments/:order_no 查询状态
		paymentRoutes.GET("/:order_no", middlewares.LimitPerRoute(CallbackLimit), pc.Show)
	}

	// 🛠 管理后台
	adminRoutes := v1.Group("/admin",
		middlewares.AdminAuth(),
		middlewares.LimitIP(config.GetString("app.admin_rate_limit", "600-M")),
	)
	{
		apc := ctrls.AdminPayments
		adminRoutes.GET("/payments", apc.Index)
		adminRoutes.GET("/payments/export", apc.Export)
		adminRoutes.POST("/payments/cancel", apc.BulkCancel)
		adminRoutes.POST("/payments/sync", apc.BulkSync)
		adminRoutes.GET("/payments/:id", apc.Show)
		adminRoutes.POST("/payments/:id/cancel", apc.Cancel)
		adminRoutes.POST("/payments/:id/sync", apc.Sync)

		dc := ctrls.Dashboard
		adminRoutes.GET("/dashboard", dc.Index)
		adminRoutes.GET("/dashboard/calendar", dc.Calendar)
		adminRoutes.GET("/queue/metrics", dc.QueueMetrics)
	}
}
