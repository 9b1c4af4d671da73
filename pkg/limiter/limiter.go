// Package limiter 处理限流逻辑
package limiter

import (
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	limiterlib "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	sredis "github.com/ulule/limiter/v3/drivers/store/redis"

	"easypay/pkg/app"
	"easypay/pkg/config"
	"easypay/pkg/logger"
	"easypay/pkg/redis"
)

var (
	storeOnce sync.Once
	store     limiterlib.Store
	storeErr  error
)

// GetKeyIP 获取 Limitor 的 Key，IP
func GetKeyIP(c *gin.Context) string {
	return app.ClientIP(c)
}

// GetKeyRouteWithIP Limitor 的 Key，路由+IP，针对单个路由做限流
func GetKeyRouteWithIP(c *gin.Context) string {
	return routeToKeyString(c.FullPath()) + app.ClientIP(c)
}

// CheckRate 检测请求是否超额
// formatted 支持 "5-S"、"10-M"、"1000-H"、"2000-D"
func CheckRate(c *gin.Context, key string, formatted string) (limiterlib.Context, error) {

	// 实例化依赖的 limiter 包的 limiter.Rate 对象
	var context limiterlib.Context
	rate, err := limiterlib.NewRateFromFormatted(formatted)
	if err != nil {
		logger.LogIf(err)
		return context, err
	}

	s, err := getStore()
	if err != nil {
		logger.LogIf(err)
		return context, err
	}

	// 使用上面的初始化的 limiter.Rate 对象和存储对象
	limiterObj := limiterlib.New(s, rate)

	// 获取限流的结果
	if c.GetBool("limiter-once") {
		// Peek() 取结果，不增加访问次数
		return limiterObj.Peek(c, key)
	}

	// 确保多个路由组里调用 LimitIP 进行限流时，只增加一次访问次数。
	c.Set("limiter-once", true)

	// Get() 取结果且增加访问次数
	return limiterObj.Get(c, key)
}

// getStore Redis 可用时计数存放在 Redis，多个实例共享；否则使用进程内存
func getStore() (limiterlib.Store, error) {
	storeOnce.Do(func() {
		options := limiterlib.StoreOptions{
			// 为 limiter 设置前缀，保持 redis 里数据的整洁
			Prefix: config.GetString("app.name", "easypay") + ":limiter",
		}
		if rds := redis.GetRedis(redis.MainDB); rds != nil {
			store, storeErr = sredis.NewStoreWithOptions(rds.Client, options)
			return
		}
		store = memory.NewStoreWithOptions(options)
	})
	return store, storeErr
}

// routeToKeyString 辅助方法，将 URL 中的 / 格式为 -
func routeToKeyString(routeName string) string {
	routeName = strings.ReplaceAll(routeName, "/", "-")
	routeName = strings.ReplaceAll(routeName, ":", "_")
	return routeName
}
