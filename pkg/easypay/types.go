package easypay

import (
	"net/http"
	"strings"
	"time"

	"easypay/app/models/payment"
)

const (
	// DefaultAPIURL 测试环境 API 地址
	DefaultAPIURL = "https://testpgapi.easypay.co.kr"
	// DefaultMallID 测试加盟店 ID
	DefaultMallID = "T0021792"
	// DefaultTimeout 默认请求超时
	DefaultTimeout = 30 * time.Second

	// ResultSuccess EasyPay 成功结果码
	ResultSuccess = "0000"

	receiptURLTest       = "https://testpgweb.easypay.co.kr/receipt/card?pgTid="
	receiptURLProduction = "https://pgweb.easypay.co.kr/receipt/card?pgTid="
)

// Mode 接入环境
type Mode string

const (
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

// DeviceType EasyPay deviceTypeCode
type DeviceType string

const (
	DevicePC     DeviceType = "PC"
	DeviceMobile DeviceType = "MOBILE"
)

// Config 客户端配置
type Config struct {
	MallID    string
	APIURL    string
	SecretKey string
	Timeout   time.Duration

	// Transport 可选，替换底层 http.RoundTripper
	Transport http.RoundTripper
}

// RegisterRequest 交易注册参数
type RegisterRequest struct {
	ReturnURL    string
	DeviceType   DeviceType
	GoodsName    string
	CustomerName string
	PayMethod    string // payMethodTypeCode，默认 11（信用卡）
}

// RegisterResult 交易注册结果
type RegisterResult struct {
	RedirectURL string
}

// ApprovalResult 审批结果，卡号已在边界处掩码
type ApprovalResult struct {
	TransactionID    string
	ApprovedAmount   int64
	PaymentMethod    string
	CardIssuer       string
	MaskedCardNumber string
}

// ApprovalData 转换为模型层的审批数据
func (r *ApprovalResult) ApprovalData() payment.ApprovalData {
	return payment.ApprovalData{
		TransactionID:    r.TransactionID,
		ApprovedAmount:   r.ApprovedAmount,
		PaymentMethod:    r.PaymentMethod,
		CardIssuer:       r.CardIssuer,
		MaskedCardNumber: r.MaskedCardNumber,
	}
}

// CancelRequest 取消参数，Amount 只对部分取消生效
type CancelRequest struct {
	Type   payment.CancelType
	Amount int64
	Reason string
}

// CancelResult 取消结果
type CancelResult struct {
	TransactionID   string
	Type            payment.CancelType
	CancelledAmount int64
	CancelledAt     time.Time
	Raw             map[string]interface{}
}

// CancelData 转换为模型层的取消数据
func (r *CancelResult) CancelData() payment.CancelData {
	return payment.CancelData{
		Type:          r.Type,
		Amount:        r.CancelledAmount,
		TransactionID: r.TransactionID,
		CancelledAt:   r.CancelledAt,
		Raw:           r.Raw,
	}
}

// RemoteStatus PG 端交易状态
type RemoteStatus struct {
	TransactionID string
	Amount        int64
	StatusName    string
	Cancelled     bool
	Refunded      bool
}

var mobilePatterns = []string{
	"mobile", "android", "iphone", "ipad", "ipod", "blackberry", "windows phone",
	"opera mini", "opera mobi", "webos", "palm", "symbian", "nokia", "samsung",
	"lg-", "htc", "mot-", "sonyericsson",
}

// DetectDeviceType 根据 User-Agent 判断 deviceTypeCode
func DetectDeviceType(userAgent string) DeviceType {
	ua := strings.ToLower(userAgent)
	for _, pattern := range mobilePatterns {
		if strings.Contains(ua, pattern) {
			return DeviceMobile
		}
	}
	return DevicePC
}
