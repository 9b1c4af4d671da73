package easypay

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrGatewayUnavailable 网络错误、超时或非 2xx 响应，调用方可以退避重试
	ErrGatewayUnavailable = errors.New("easypay: gateway unavailable")
	// ErrInvalidCancelAmount 取消金额不合法，不会发出任何请求
	ErrInvalidCancelAmount = errors.New("easypay: invalid cancel amount")
	// ErrMissingTransactionID 记录没有 PG 交易号，无法取消
	ErrMissingTransactionID = errors.New("easypay: payment has no transaction id")
	// ErrConfiguration 客户端配置不完整
	ErrConfiguration = errors.New("easypay: not configured")
)

// RejectedError EasyPay 返回了非 0000 的业务结果码
type RejectedError struct {
	Op       string
	Code     string
	Message  string
	Response map[string]interface{}
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("easypay: %s rejected [%s] %s", e.Op, e.Code, e.Message)
}

// UnavailableError 传输层失败，errors.Is(err, ErrGatewayUnavailable) 为 true
type UnavailableError struct {
	Op         string
	Code       string
	StatusCode int
	Err        error
}

func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("easypay: %s unavailable: http status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("easypay: %s unavailable: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func (e *UnavailableError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

func newUnavailable(op string, statusCode int, err error) *UnavailableError {
	ue := &UnavailableError{Op: op, StatusCode: statusCode, Err: err, Code: "REQUEST_ERROR"}
	switch {
	case statusCode != 0:
		ue.Code = fmt.Sprintf("HTTP_%d", statusCode)
	case isTimeout(err):
		ue.Code = "TIMEOUT"
	}
	return ue
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// ErrorCode 从错误中提取对外展示的错误码
func ErrorCode(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Code
	}
	var unavailable *UnavailableError
	if errors.As(err, &unavailable) {
		return unavailable.Code
	}
	switch {
	case errors.Is(err, ErrInvalidCancelAmount):
		return "INVALID_CANCEL_AMOUNT"
	case errors.Is(err, ErrMissingTransactionID):
		return "NO_PG_TID"
	case err == nil:
		return ""
	}
	return "UNKNOWN"
}

// ErrorMessage 从错误中提取对外展示的错误信息
func ErrorMessage(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
