package app

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP 获取客户端真实 IP
//
// 依次检查 CF-Connecting-IP、X-Real-IP、X-Forwarded-For 的第一个地址，都没有时使用连接地址。
func ClientIP(c *gin.Context) string {
	for _, header := range []string{"CF-Connecting-IP", "X-Real-IP"} {
		if ip := validIP(c.GetHeader(header)); ip != "" {
			return ip
		}
	}

	if forwarded := c.GetHeader("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if ip := validIP(first); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(c.Request.RemoteAddr))
	if err != nil {
		return c.Request.RemoteAddr
	}
	return host
}

func validIP(s string) string {
	s = strings.TrimSpace(s)
	if net.ParseIP(s) == nil {
		return ""
	}
	return s
}
