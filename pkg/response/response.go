// Package response 提供统一的 HTTP 响应处理
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"easypay/pkg/logger"
)

// 预定义响应状态
const (
	Success = "success" // 成功状态
	Error   = "error"   // 错误状态
)

/* 标准响应结构
{
    "status": "success",
    "data": {},     // 成功时返回的数据
    "error": "",    // 错误码或错误信息
    "message": "",  // 提示信息
}
*/

// Response 统一响应结构体
type Response struct {
	Status  string      `json:"status"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ------------------ 🎯 成功响应系列 ------------------

// Data 响应 200 和数据
func Data(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Status: Success,
		Data:   data,
	})
}

// JSON 直接返回 JSON 数据
func JSON(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created 成功创建的响应
func Created(c *gin.Context, data interface{}, msg ...string) {
	c.JSON(http.StatusCreated, Response{
		Status:  Success,
		Message: getMsg("생성되었습니다", msg...),
		Data:    data,
	})
}

//  ------------------ 错误响应系列 ------------------

// Abort400 响应 400 错误
func Abort400(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Message: getMsg("잘못된 요청입니다", msg...),
	})
}

// Abort401 响应 401 错误
func Abort401(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
		Status:  Error,
		Message: getMsg("인증이 필요합니다", msg...),
	})
}

// Abort403 响应 403 错误
func Abort403(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusForbidden, Response{
		Status:  Error,
		Message: getMsg("권한이 없습니다", msg...),
	})
}

// Abort404 响应 404 错误
func Abort404(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusNotFound, Response{
		Status:  Error,
		Message: getMsg("결제 정보를 찾을 수 없습니다", msg...),
	})
}

// Conflict 响应 409，状态不允许该操作
func Conflict(c *gin.Context, code string, msg ...string) {
	c.AbortWithStatusJSON(http.StatusConflict, Response{
		Status:  Error,
		Error:   code,
		Message: getMsg("현재 상태에서 처리할 수 없습니다", msg...),
	})
}

// Unprocessable 响应 422，如取消金额不合法
func Unprocessable(c *gin.Context, code string, msg ...string) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, Response{
		Status:  Error,
		Error:   code,
		Message: getMsg("처리할 수 없는 요청입니다", msg...),
	})
}

// TooManyRequests 响应 429
func TooManyRequests(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, Response{
		Status:  Error,
		Error:   "Too Many Requests",
		Message: getMsg("요청이 너무 많습니다. 잠시 후 다시 시도해주세요", msg...),
	})
}

// GatewayRejected 响应 502，PG 返回了业务错误
func GatewayRejected(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusBadGateway, Response{
		Status:  Error,
		Error:   code,
		Message: getMsg("결제사 처리에 실패했습니다", message),
	})
}

// GatewayUnavailable 响应 503，PG 无法连接或超时
func GatewayUnavailable(c *gin.Context, err error) {
	logger.LogWarnIf(err)
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
		Status:  Error,
		Error:   "GATEWAY_UNAVAILABLE",
		Message: "결제사와 통신할 수 없습니다. 잠시 후 다시 시도해주세요",
	})
}

// Unavailable 响应 503，依赖服务不可用
func Unavailable(c *gin.Context, data interface{}, msg ...string) {
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, Response{
		Status:  Error,
		Error:   "SERVICE_UNAVAILABLE",
		Message: getMsg("서비스를 일시적으로 사용할 수 없습니다", msg...),
		Data:    data,
	})
}

// Abort500 响应 500 错误
func Abort500(c *gin.Context, msg ...string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Status:  Error,
		Message: getMsg("서버 오류가 발생했습니다", msg...),
	})
}

// BadRequest 响应 400 错误（带错误信息）
func BadRequest(c *gin.Context, err error, msg ...string) {
	logger.LogIf(err)
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Message: getMsg("요청 형식이 올바르지 않습니다", msg...),
		Error:   err.Error(),
	})
}

// ServerError 响应 500 错误（带错误信息）
func ServerError(c *gin.Context, err error, msg ...string) {
	logger.LogIf(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, Response{
		Status:  Error,
		Message: getMsg("서버 오류가 발생했습니다", msg...),
		Error:   err.Error(),
	})
}

// ValidationError 响应 400 表单验证错误
func ValidationError(c *gin.Context, errors map[string][]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Status:  Error,
		Message: "입력값을 확인해주세요",
		Data:    errors,
	})
}

// getMsg 获取消息内容
func getMsg(defaultMsg string, msg ...string) string {
	if len(msg) > 0 && msg[0] != "" {
		return msg[0]
	}
	return defaultMsg
}
