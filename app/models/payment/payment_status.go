package payment

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Status 支付状态
type Status string

const (
	StatusPending   Status = "pending"   // 결제대기
	StatusCompleted Status = "completed" // 결제완료
	StatusFailed    Status = "failed"    // 결제실패
	StatusCancelled Status = "cancelled" // 취소
	StatusRefunded  Status = "refunded"  // 환불
)

// AllStatuses 按展示顺序排列的全部状态
var AllStatuses = []Status{StatusPending, StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded}

// transitions 合法的状态迁移，没有任何状态可以回到 Pending
var transitions = map[Status][]Status{
	StatusPending:   {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusCancelled, StatusRefunded},
}

// CanTransition 判断 from -> to 是否为合法迁移
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Valid 是否为已知状态
func (s Status) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// CancelType 取消类型
type CancelType string

const (
	CancelFull    CancelType = "full"
	CancelPartial CancelType = "partial"
)

// ApprovalData 审批结果中需要落库的部分
type ApprovalData struct {
	TransactionID    string
	ApprovedAmount   int64
	PaymentMethod    string
	CardIssuer       string
	MaskedCardNumber string
}

// CancelData 取消结果中需要落库的部分
type CancelData struct {
	Type          CancelType             `json:"type"`
	Amount        int64                  `json:"amount"`
	TransactionID string                 `json:"transaction_id"`
	CancelledAt   time.Time              `json:"cancelled_at"`
	Raw           map[string]interface{} `json:"raw,omitempty"`
}

// MarkApproved Pending -> Completed
//
// 非 Pending 状态调用时不做任何修改并返回 false，幂等由调用方在行锁内检查。
// 审批金额与本地金额不一致时设置 AmountMismatch，迁移照常完成。
func (p *Payment) MarkApproved(d ApprovalData, authorizationID string, now time.Time) bool {
	if !CanTransition(p.Status, StatusCompleted) {
		return false
	}

	p.Status = StatusCompleted
	if d.TransactionID != "" {
		p.TransactionID = d.TransactionID
	}
	if authorizationID != "" && p.AuthorizationID == "" {
		p.AuthorizationID = authorizationID
	}
	if p.PaidAt == nil {
		paidAt := now
		p.PaidAt = &paidAt
	}
	p.PaymentMethod = d.PaymentMethod
	p.CardIssuerName = d.CardIssuer
	p.CardNumberMasked = MaskCardNumber(d.MaskedCardNumber)
	p.ApprovedAmount = d.ApprovedAmount
	p.AmountMismatch = d.ApprovedAmount != p.Amount
	return true
}

// MarkFailed Pending -> Failed
func (p *Payment) MarkFailed() bool {
	if !CanTransition(p.Status, StatusFailed) {
		return false
	}
	p.Status = StatusFailed
	return true
}

// MarkCancelled 记录取消结果
//
// 全额取消：Completed -> Cancelled。
// 部分取消：状态保持 Completed，只累加已取消金额。
func (p *Payment) MarkCancelled(d CancelData) bool {
	if p.Status != StatusCompleted {
		return false
	}

	switch d.Type {
	case CancelPartial:
		p.CancelledAmount += d.Amount
	default:
		p.CancelledAmount = p.baseAmount()
		p.Status = StatusCancelled
	}

	if raw, err := json.Marshal(d); err == nil {
		p.CancelData = datatypes.JSON(raw)
	}
	return true
}

// MarkRefunded Completed -> Refunded，由 PG 状态同步触发
func (p *Payment) MarkRefunded() bool {
	if !CanTransition(p.Status, StatusRefunded) {
		return false
	}
	p.Status = StatusRefunded
	p.CancelledAmount = p.baseAmount()
	return true
}

// baseAmount 可取消金额的基数，优先使用 PG 审批金额
func (p *Payment) baseAmount() int64 {
	if p.ApprovedAmount > 0 {
		return p.ApprovedAmount
	}
	return p.Amount
}

// RemainingAmount 剩余可取消金额
func (p *Payment) RemainingAmount() int64 {
	remaining := p.baseAmount() - p.CancelledAmount
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsPaid 检查支付是否成功
func (p *Payment) IsPaid() bool {
	return p.Status == StatusCompleted
}

// IsPending 检查是否待支付
func (p *Payment) IsPending() bool {
	return p.Status == StatusPending
}

// IsCancelled 检查是否已取消或已退款
func (p *Payment) IsCancelled() bool {
	return p.Status == StatusCancelled || p.Status == StatusRefunded
}

// CanCancel 是否可以发起取消
func (p *Payment) CanCancel() bool {
	return p.Status == StatusCompleted && p.TransactionID != "" && p.RemainingAmount() > 0
}
