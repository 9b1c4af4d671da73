// Package app 提供应用程序相关的辅助函数
package app

import (
	"time"

	"easypay/pkg/config"
)

// IsLocal 判断当前是否运行在本地环境
func IsLocal() bool {
	return config.Get("app.env") == "local"
}

// IsProduction 判断当前是否运行在生产环境
func IsProduction() bool {
	return config.Get("app.env") == "production"
}

// IsTesting 判断当前是否运行在测试环境
func IsTesting() bool {
	return config.Get("app.env") == "testing"
}

// Location 返回配置的时区，未配置或无法加载时使用 Asia/Seoul
func Location() *time.Location {
	loc, err := time.LoadLocation(config.GetString("app.timezone", "Asia/Seoul"))
	if err != nil {
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}

// TimenowInTimezone 获取当前时间（支持时区设置）
// 从配置文件读取 app.timezone 配置项来确定时区，结算日期（approvalReqDate 等）都基于此时间
func TimenowInTimezone() time.Time {
	return time.Now().In(Location())
}
