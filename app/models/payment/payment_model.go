// Package payment 存放支付记录 Model 相关逻辑
package payment

import (
	"time"

	"gorm.io/datatypes"
)

// Payment 支付记录模型
//
// 记录只由 gateway 响应驱动的状态迁移修改，本系统从不删除记录。
// 卡号在进入模型之前已经由 gateway 掩码，这里只保存掩码后的值。
type Payment struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNo string `gorm:"type:varchar(32);uniqueIndex" json:"order_no"` // shopOrderNo，对外使用的订单号

	// PG 交易信息，transaction_id 在审批前为空，设置后唯一
	TransactionID   string `gorm:"type:varchar(100);uniqueIndex:idx_payments_transaction_id,where:transaction_id <> ''" json:"transaction_id"`
	AuthorizationID string `gorm:"type:varchar(100)" json:"-"`

	// 金额（韩元），创建后不可修改
	Amount        int64 `gorm:"not null" json:"amount"`
	SupplyAmount  int64 `json:"supply_amount"`
	VatAmount     int64 `json:"vat_amount"`
	TaxFreeAmount int64 `json:"tax_free_amount"`
	TaxFree       bool  `gorm:"default:false" json:"tax_free"`

	Status           Status `gorm:"type:varchar(20);index" json:"status"`
	PaymentMethod    string `gorm:"type:varchar(20)" json:"payment_method"`
	CardIssuerName   string `gorm:"type:varchar(50)" json:"card_issuer_name"`
	CardNumberMasked string `gorm:"type:varchar(32)" json:"card_number_masked"`

	// 对账字段
	ApprovedAmount  int64 `json:"approved_amount"`
	CancelledAmount int64 `json:"cancelled_amount"`
	AmountMismatch  bool  `gorm:"index" json:"amount_mismatch"`

	GoodsName       string         `gorm:"type:varchar(100)" json:"goods_name"`
	ClientIP        string         `gorm:"type:varchar(45)" json:"client_ip"`
	ClientUserAgent string         `gorm:"type:varchar(500)" json:"client_user_agent"`
	CancelData      datatypes.JSON `json:"cancel_data,omitempty"`

	CreatedAt time.Time  `gorm:"index" json:"created_at"`
	PaidAt    *time.Time `gorm:"index" json:"paid_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// TableName 指定表名
func (Payment) TableName() string {
	return "payments"
}

// Clone 返回记录副本，事件载荷使用，避免监听者修改原记录
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	if p.PaidAt != nil {
		paidAt := *p.PaidAt
		c.PaidAt = &paidAt
	}
	if p.CancelData != nil {
		c.CancelData = append(datatypes.JSON(nil), p.CancelData...)
	}
	return &c
}
