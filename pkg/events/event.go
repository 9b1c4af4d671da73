// Package events 支付状态迁移事件
//
// 业务代码在事务提交后发布事件，监听者之间互相隔离：
// 任何一个监听者返回错误或 panic 都只会被记录，不会影响其它监听者，也不会回滚支付状态。
package events

import (
	"time"

	"github.com/google/uuid"

	"easypay/app/models/payment"
	"easypay/pkg/app"
)

// Kind 事件类型
type Kind string

const (
	KindRegistered Kind = "payment.registered"
	KindApproved   Kind = "payment.approved"
	KindFailed     Kind = "payment.failed"
	KindCancelled  Kind = "payment.cancelled"
)

// 失败阶段
const (
	StageRegistration   = "registration"
	StageAuthentication = "authentication"
	StageApproval       = "approval"
)

// Approval 审批事件附带的数据
type Approval struct {
	TransactionID    string `json:"transaction_id"`
	PaymentMethod    string `json:"payment_method"`
	CardIssuer       string `json:"card_issuer"`
	MaskedCardNumber string `json:"masked_card_number"`
}

// Event 支付事件，Payment 为发布时刻的记录副本
type Event struct {
	ID         string           `json:"id"`
	Kind       Kind             `json:"kind"`
	Payment    *payment.Payment `json:"payment"`
	OccurredAt time.Time        `json:"occurred_at"`

	RedirectURL string    `json:"redirect_url,omitempty"`
	Approval    *Approval `json:"approval,omitempty"`

	Stage        string `json:"stage,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	CancelType   payment.CancelType `json:"cancel_type,omitempty"`
	CancelAmount int64              `json:"cancel_amount,omitempty"`
}

func newEvent(kind Kind, p *payment.Payment) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		Payment:    p.Clone(),
		OccurredAt: app.TimenowInTimezone(),
	}
}

// Registered 交易注册成功
func Registered(p *payment.Payment, redirectURL string) Event {
	e := newEvent(KindRegistered, p)
	e.RedirectURL = redirectURL
	return e
}

// Approved 审批成功
func Approved(p *payment.Payment) Event {
	e := newEvent(KindApproved, p)
	e.Approval = &Approval{
		TransactionID:    p.TransactionID,
		PaymentMethod:    p.PaymentMethod,
		CardIssuer:       p.CardIssuerName,
		MaskedCardNumber: p.CardNumberMasked,
	}
	return e
}

// Failed 支付失败
func Failed(p *payment.Payment, stage, code, message string) Event {
	e := newEvent(KindFailed, p)
	e.Stage = stage
	e.ErrorCode = code
	e.ErrorMessage = message
	return e
}

// Cancelled 全额或部分取消
func Cancelled(p *payment.Payment, cancelType payment.CancelType, amount int64) Event {
	e := newEvent(KindCancelled, p)
	e.CancelType = cancelType
	e.CancelAmount = amount
	return e
}
