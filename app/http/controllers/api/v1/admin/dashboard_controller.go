package admin

import (
	"github.com/gin-gonic/gin"

	v1 "easypay/app/http/controllers/api/v1"
	"easypay/app/requests"
	"easypay/app/services/dashboard"
	"easypay/pkg/app"
	"easypay/pkg/logger"
	"easypay/pkg/queue"
	"easypay/pkg/response"
)

// DashboardController 统计
type DashboardController struct {
	v1.BaseAPIController
	service *dashboard.Service
	queue   queue.Monitor
}

// NewDashboardController monitor 为 nil 表示未开启异步事件队列
func NewDashboardController(service *dashboard.Service, monitor queue.Monitor) *DashboardController {
	return &DashboardController{
		service: service,
		queue:   monitor,
	}
}

// Index 汇总卡片、图表、环比
func (ctrl *DashboardController) Index(c *gin.Context) {
	query, err := requests.BindDashboardQuery(c)
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	stats, err := ctrl.service.Statistics(c.Request.Context(), query)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	logger.DebugJSON("Dashboard", "meta", stats.Meta)
	response.Data(c, stats)
}

// Calendar 月历
func (ctrl *DashboardController) Calendar(c *gin.Context) {
	year, month, err := requests.BindCalendarQuery(c, app.TimenowInTimezone())
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	days, err := ctrl.service.Calendar(c.Request.Context(), year, month)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	response.Data(c, gin.H{
		"year":  year,
		"month": int(month),
		"days":  days,
	})
}

// QueueMetrics 事件队列指标
func (ctrl *DashboardController) QueueMetrics(c *gin.Context) {
	if ctrl.queue == nil {
		response.Data(c, gin.H{"enabled": false})
		return
	}
	snapshot, err := queue.Refresh(c.Request.Context(), ctrl.queue)
	logger.LogWarnIf(err)
	response.Data(c, gin.H{
		"enabled": true,
		"metrics": snapshot,
	})
}
