// Package health 健康检查
package health

import (
	"context"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"easypay/pkg/logger"
	"easypay/pkg/response"
)

// Check 单项依赖检查，返回 nil 表示可用
type Check func(ctx context.Context) error

// HealthController 依次执行各项检查
type HealthController struct {
	checks map[string]Check
}

func NewHealthController(checks map[string]Check) *HealthController {
	return &HealthController{checks: checks}
}

// Show GET /v1/health
func (hc *HealthController) Show(c *gin.Context) {
	names := make([]string, 0, len(hc.checks))
	for name := range hc.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := hc.checks[name](c.Request.Context()); err != nil {
			logger.WarnString("Health", name, err.Error())
			results[name] = "down"
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	body := gin.H{
		"checks": results,
		"time":   time.Now().Unix(),
	}
	if !healthy {
		response.Unavailable(c, body)
		return
	}
	response.Data(c, body)
}
