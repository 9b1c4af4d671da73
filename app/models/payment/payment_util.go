package payment

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// MaxUserAgentLength client_user_agent 列的字符数上限
const MaxUserAgentLength = 500

var (
	// ErrInvalidAmount 金额必须大于 0
	ErrInvalidAmount = errors.New("amount must be greater than 0")
	// ErrImmutableAmount 金额创建后不可修改
	ErrImmutableAmount = errors.New("amount is immutable after creation")
)

// payMethodLabels EasyPay payMethodTypeCode
var payMethodLabels = map[string]string{
	"11": "신용카드",
	"21": "계좌이체",
	"22": "가상계좌",
	"31": "휴대폰",
	"41": "선불결제",
	"42": "도서상품권",
	"43": "컬처상품권",
	"44": "스마트문화상품권",
	"45": "해피머니",
	"46": "틴캐시",
	"50": "간편결제",
}

var statusLabels = map[Status]string{
	StatusPending:   "결제대기",
	StatusCompleted: "결제완료",
	StatusFailed:    "결제실패",
	StatusCancelled: "취소",
	StatusRefunded:  "환불",
}

// statusColors 与管理后台状态徽章一致
var statusColors = map[Status]string{
	StatusPending:   "#FFA500",
	StatusCompleted: "#4CAF50",
	StatusFailed:    "#F44336",
	StatusCancelled: "#9E9E9E",
	StatusRefunded:  "#2196F3",
}

var vatRate = decimal.RequireFromString("1.1")

// PayMethodLabel 结算方式名称
func PayMethodLabel(code string) string {
	if code == "" {
		return ""
	}
	if label, ok := payMethodLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("기타(%s)", code)
}

// Label 状态名称
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Color 状态图表颜色
func (s Status) Color() string {
	if color, ok := statusColors[s]; ok {
		return color
	}
	return "#999999"
}

// MaskCardNumber 卡号掩码，只保留前 4 位和后 4 位
//
//	MaskCardNumber("1234567890123456")    // "1234-****-****-3456"
//	MaskCardNumber("5433-33**-****-7890") // "5433-****-****-7890"
//	MaskCardNumber("1234-****-****-3456") // 原样返回
func MaskCardNumber(cardNo string) string {
	if cardNo == "" {
		return cardNo
	}

	digits := make([]byte, 0, len(cardNo))
	for i := 0; i < len(cardNo); i++ {
		if cardNo[i] >= '0' && cardNo[i] <= '9' {
			digits = append(digits, cardNo[i])
		}
	}

	// PG 已经掩码过的卡号保持原有格式，只把前 4 位和后 4 位以外的数字替换掉
	if strings.Contains(cardNo, "*") {
		return remask(cardNo, len(digits))
	}

	// 不足 8 位不是卡号
	if len(digits) < 8 {
		return cardNo
	}

	masked := make([]byte, len(digits))
	for i := range digits {
		if i < 4 || i >= len(digits)-4 {
			masked[i] = digits[i]
		} else {
			masked[i] = '*'
		}
	}

	var b strings.Builder
	for i := 0; i < len(masked); i += 4 {
		if i > 0 {
			b.WriteByte('-')
		}
		end := i + 4
		if end > len(masked) {
			end = len(masked)
		}
		b.Write(masked[i:end])
	}
	return b.String()
}

func remask(cardNo string, digitCount int) string {
	out := []byte(cardNo)
	seen := 0
	for i := range out {
		if out[i] < '0' || out[i] > '9' {
			continue
		}
		if seen >= 4 && seen < digitCount-4 {
			out[i] = '*'
		}
		seen++
	}
	return string(out)
}

// TruncateUserAgent 按字符截断到 MaxUserAgentLength，不切断多字节字符
func TruncateUserAgent(ua string) string {
	if utf8.RuneCountInString(ua) <= MaxUserAgentLength {
		return ua
	}
	return string([]rune(ua)[:MaxUserAgentLength])
}

// GenerateOrderNo 生成 12 位对外订单号
func GenerateOrderNo() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// CalculateTax 按韩国增值税 10% 拆分金额
// 应税：supply = round(amount / 1.1)，vat = amount - supply；免税：全部计入 tax_free
func (p *Payment) CalculateTax() {
	if p.Amount <= 0 {
		return
	}
	if p.TaxFree {
		p.SupplyAmount = 0
		p.VatAmount = 0
		p.TaxFreeAmount = p.Amount
		return
	}
	supply := decimal.NewFromInt(p.Amount).Div(vatRate).Round(0)
	p.SupplyAmount = supply.IntPart()
	p.VatAmount = p.Amount - p.SupplyAmount
	p.TaxFreeAmount = 0
}

// HasTaxInfo 是否携带税额拆分
func (p *Payment) HasTaxInfo() bool {
	return p.SupplyAmount > 0 || p.TaxFreeAmount > 0
}

// Validate 验证支付记录
func (p *Payment) Validate() error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Status != "" && !p.Status.Valid() {
		return fmt.Errorf("invalid payment status: %s", p.Status)
	}
	return nil
}

// BeforeCreate GORM 钩子，生成订单号、默认状态和税额
func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.OrderNo == "" {
		p.OrderNo = GenerateOrderNo()
	}
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.SupplyAmount == 0 || (p.VatAmount == 0 && !p.TaxFree) {
		p.CalculateTax()
	}
	p.ClientUserAgent = TruncateUserAgent(p.ClientUserAgent)
	return nil
}

// BeforeUpdate GORM 钩子，金额创建后不可修改
func (p *Payment) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("Amount") {
		return ErrImmutableAmount
	}
	return nil
}
