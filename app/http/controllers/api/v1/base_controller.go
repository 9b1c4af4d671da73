// Package v1 处理业务逻辑, 控制器 v1 版本
package v1

import (
	"errors"

	"github.com/gin-gonic/gin"

	"easypay/app/requests"
	paymentsvc "easypay/app/services/payment"
	"easypay/pkg/easypay"
	"easypay/pkg/response"
)

// BaseAPIController 基础控制器
type BaseAPIController struct {
}

// RespondError 把请求、服务层和 gateway 的错误映射为统一响应
func (ctrl *BaseAPIController) RespondError(c *gin.Context, err error) {
	var (
		validationErr requests.ValidationError
		rejected      *easypay.RejectedError
	)

	switch {
	case errors.As(err, &validationErr):
		response.ValidationError(c, validationErr.Errors)
	case errors.Is(err, paymentsvc.ErrPaymentNotFound):
		response.Abort404(c)
	case errors.Is(err, paymentsvc.ErrNotCancelable):
		response.Conflict(c, "NOT_CANCELABLE", "취소할 수 없는 결제입니다")
	case errors.Is(err, paymentsvc.ErrNotPending):
		response.Conflict(c, "NOT_PENDING", "이미 처리된 결제입니다")
	case errors.Is(err, paymentsvc.ErrAuthenticationFailed):
		response.Unprocessable(c, "AUTHENTICATION_FAILED", "결제 인증에 실패했습니다")
	case errors.Is(err, easypay.ErrInvalidCancelAmount):
		response.Unprocessable(c, "INVALID_CANCEL_AMOUNT", "취소 금액이 올바르지 않습니다")
	case errors.Is(err, easypay.ErrMissingTransactionID):
		response.Unprocessable(c, "MISSING_TRANSACTION_ID", "PG 거래번호가 없는 결제입니다")
	case errors.As(err, &rejected):
		response.GatewayRejected(c, rejected.Code, rejected.Message)
	case errors.Is(err, easypay.ErrGatewayUnavailable):
		response.GatewayUnavailable(c, err)
	default:
		response.ServerError(c, err)
	}
}

// BindError 请求体无法解析时返回 400，验证失败时返回字段错误
func (ctrl *BaseAPIController) BindError(c *gin.Context, err error) {
	var validationErr requests.ValidationError
	if errors.As(err, &validationErr) {
		response.ValidationError(c, validationErr.Errors)
		return
	}
	response.BadRequest(c, err)
}
