package easypay

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cast"

	"easypay/app/models/payment"
	"easypay/pkg/app"
)

const (
	testBasePath       = "/api/ep9/trades/"
	productionBasePath = "/api/trades/"

	goodsNameMaxBytes = 80
)

// envelope 每个请求共有的标识字段
type envelope struct {
	MallID            string
	OrderNo           string
	ShopTransactionID string
	TransactionID     string // 记录上的 PG 交易号，可能为空
}

// schema 屏蔽测试环境与生产环境字段名差异
type schema interface {
	Mode() Mode
	RegisterPath() string
	ApprovePath() string
	CancelPath() string
	StatusPath() string

	RegisterBody(env envelope, p *payment.Payment, req RegisterRequest) map[string]interface{}
	ApproveBody(env envelope, authorizationID string, now time.Time) map[string]interface{}
	CancelBody(env envelope, req CancelRequest, now time.Time) map[string]interface{}
	StatusBody(env envelope, createdAt time.Time) map[string]interface{}

	ParseApproval(body map[string]interface{}) ApprovalResult
	ParseCancel(body map[string]interface{}) CancelResult
	ParseStatus(body map[string]interface{}) RemoteStatus
}

// newSchema 根据 API 地址选择字段映射，只有测试域名走测试映射
func newSchema(apiURL, secretKey string) schema {
	if strings.Contains(strings.ToLower(apiURL), "testpgapi") {
		return testSchema{}
	}
	return productionSchema{secretKey: secretKey}
}

func baseBody(env envelope) map[string]interface{} {
	return map[string]interface{}{
		"mallId":            env.MallID,
		"shopOrderNo":       env.OrderNo,
		"shopTransactionId": env.ShopTransactionID,
	}
}

func registerBody(env envelope, p *payment.Payment, req RegisterRequest) map[string]interface{} {
	body := baseBody(env)

	payMethod := req.PayMethod
	if payMethod == "" {
		payMethod = "11"
	}
	deviceType := req.DeviceType
	if deviceType == "" {
		deviceType = DevicePC
	}
	goodsName := req.GoodsName
	if goodsName == "" {
		goodsName = p.GoodsName
	}
	customerName := req.CustomerName
	if customerName == "" {
		customerName = lastRunes(p.OrderNo, 4)
	}

	body["amount"] = p.Amount
	body["payMethodTypeCode"] = payMethod
	body["currency"] = "00"
	body["clientTypeCode"] = "00"
	body["deviceTypeCode"] = string(deviceType)
	body["returnUrl"] = req.ReturnURL
	body["orderInfo"] = map[string]interface{}{
		"goodsName": truncateBytes(goodsName, goodsNameMaxBytes),
		"customerInfo": map[string]interface{}{
			"customerName": customerName,
		},
	}
	if p.HasTaxInfo() {
		body["taxInfo"] = map[string]interface{}{
			"taxAmount":  p.SupplyAmount + p.VatAmount,
			"freeAmount": p.TaxFreeAmount,
			"vatAmount":  p.VatAmount,
		}
	}
	return body
}

func approveBody(env envelope, authorizationID string, now time.Time) map[string]interface{} {
	body := baseBody(env)
	body["authorizationId"] = authorizationID
	body["approvalReqDate"] = now.Format("20060102")
	return body
}

func parseApproval(body map[string]interface{}, tidKey, issuerKey, cardNoKey string) ApprovalResult {
	approved := num(body, "paymentInfo", "approvalAmount")
	if approved == 0 {
		approved = num(body, "amount")
	}
	return ApprovalResult{
		TransactionID:    str(body, tidKey),
		ApprovedAmount:   approved,
		PaymentMethod:    str(body, "paymentInfo", "payMethodTypeCode"),
		CardIssuer:       str(body, "paymentInfo", "cardInfo", issuerKey),
		MaskedCardNumber: payment.MaskCardNumber(str(body, "paymentInfo", "cardInfo", cardNoKey)),
	}
}

// parseCancelTime 解析 YYYYMMDD + HHmmss，无法解析时返回零值
func parseCancelTime(date, clock string) time.Time {
	if date == "" {
		return time.Time{}
	}
	if clock == "" {
		clock = "000000"
	}
	t, err := time.ParseInLocation("20060102150405", date+clock, app.Location())
	if err != nil {
		return time.Time{}
	}
	return t
}

// testSchema /api/ep9/trades/
type testSchema struct{}

func (testSchema) Mode() Mode           { return ModeTest }
func (testSchema) RegisterPath() string { return testBasePath + "webpay" }
func (testSchema) ApprovePath() string  { return testBasePath + "approval" }
func (testSchema) CancelPath() string   { return testBasePath + "cancel" }
func (testSchema) StatusPath() string   { return testBasePath + "status" }

func (testSchema) RegisterBody(env envelope, p *payment.Payment, req RegisterRequest) map[string]interface{} {
	return registerBody(env, p, req)
}

func (testSchema) ApproveBody(env envelope, authorizationID string, now time.Time) map[string]interface{} {
	return approveBody(env, authorizationID, now)
}

func (testSchema) CancelBody(env envelope, req CancelRequest, now time.Time) map[string]interface{} {
	body := baseBody(env)
	body["pgTid"] = env.TransactionID
	body["cancelReqDate"] = now.Format("20060102")
	body["cancelReason"] = req.Reason
	if req.Type == payment.CancelPartial {
		body["cancelTypeCode"] = "41"
		body["cancelAmount"] = req.Amount
	} else {
		body["cancelTypeCode"] = "40"
	}
	return body
}

func (testSchema) StatusBody(env envelope, createdAt time.Time) map[string]interface{} {
	body := baseBody(env)
	body["transactionDate"] = createdAt.Format("20060102")
	if env.TransactionID != "" {
		body["pgTid"] = env.TransactionID
	}
	return body
}

func (testSchema) ParseApproval(body map[string]interface{}) ApprovalResult {
	return parseApproval(body, "pgTid", "cardName", "cardNo")
}

func (testSchema) ParseCancel(body map[string]interface{}) CancelResult {
	return CancelResult{
		TransactionID:   str(body, "pgTid"),
		CancelledAmount: num(body, "cancelAmount"),
		CancelledAt:     parseCancelTime(str(body, "cancelDate"), str(body, "cancelTime")),
		Raw:             body,
	}
}

func (testSchema) ParseStatus(body map[string]interface{}) RemoteStatus {
	name := str(body, "payStatusNm")
	return RemoteStatus{
		TransactionID: str(body, "pgTid"),
		Amount:        num(body, "amount"),
		StatusName:    name,
		Cancelled:     strings.EqualFold(str(body, "cancelYn"), "Y") || strings.Contains(name, "취소"),
		Refunded:      strings.Contains(name, "환불"),
	}
}

// productionSchema /api/trades/，每个请求附带 msgAuthValue
type productionSchema struct {
	secretKey string
}

// 生产环境 statusCode
const (
	prodStatusCancelled = "TS02"
	prodStatusRefunded  = "TS05"
)

func (productionSchema) Mode() Mode           { return ModeProduction }
func (productionSchema) RegisterPath() string { return productionBasePath + "webpay" }
func (productionSchema) ApprovePath() string  { return productionBasePath + "approval" }
func (productionSchema) CancelPath() string   { return productionBasePath + "revise" }
func (productionSchema) StatusPath() string   { return productionBasePath + "retrieveTransaction" }

func (s productionSchema) sign(env envelope, body map[string]interface{}) map[string]interface{} {
	ref := env.TransactionID
	if ref == "" {
		ref = env.ShopTransactionID
	}
	body["msgAuthValue"] = MessageAuthValue(s.secretKey, ref, env.OrderNo)
	return body
}

func (s productionSchema) RegisterBody(env envelope, p *payment.Payment, req RegisterRequest) map[string]interface{} {
	return s.sign(env, registerBody(env, p, req))
}

func (s productionSchema) ApproveBody(env envelope, authorizationID string, now time.Time) map[string]interface{} {
	return s.sign(env, approveBody(env, authorizationID, now))
}

func (s productionSchema) CancelBody(env envelope, req CancelRequest, now time.Time) map[string]interface{} {
	body := baseBody(env)
	body["pgCno"] = env.TransactionID
	body["reviseReqDate"] = now.Format("20060102")
	body["reviseMessage"] = req.Reason
	if req.Type == payment.CancelPartial {
		body["reviseTypeCode"] = "32"
		body["amount"] = req.Amount
	} else {
		body["reviseTypeCode"] = "40"
	}
	return s.sign(env, body)
}

func (s productionSchema) StatusBody(env envelope, createdAt time.Time) map[string]interface{} {
	body := baseBody(env)
	body["transactionDate"] = createdAt.Format("20060102")
	if env.TransactionID != "" {
		body["pgCno"] = env.TransactionID
	}
	return s.sign(env, body)
}

func (productionSchema) ParseApproval(body map[string]interface{}) ApprovalResult {
	return parseApproval(body, "pgCno", "issuerName", "cardMaskNo")
}

func (productionSchema) ParseCancel(body map[string]interface{}) CancelResult {
	amount := num(body, "reviseInfo", "amount")
	if amount == 0 {
		amount = num(body, "amount")
	}
	return CancelResult{
		TransactionID:   str(body, "pgCno"),
		CancelledAmount: amount,
		CancelledAt:     parseCancelTime(str(body, "reviseDate"), str(body, "reviseTime")),
		Raw:             body,
	}
}

func (productionSchema) ParseStatus(body map[string]interface{}) RemoteStatus {
	code := str(body, "statusCode")
	return RemoteStatus{
		TransactionID: str(body, "pgCno"),
		Amount:        num(body, "amount"),
		StatusName:    str(body, "statusMessage"),
		Cancelled:     code == prodStatusCancelled || strings.EqualFold(str(body, "cancelYn"), "Y"),
		Refunded:      code == prodStatusRefunded,
	}
}

// lookup 按路径读取嵌套字段
func lookup(body map[string]interface{}, path ...string) (interface{}, bool) {
	var cur interface{} = body
	for _, key := range path {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, cur != nil
}

func str(body map[string]interface{}, path ...string) string {
	v, ok := lookup(body, path...)
	if !ok {
		return ""
	}
	return cast.ToString(v)
}

func num(body map[string]interface{}, path ...string) int64 {
	v, ok := lookup(body, path...)
	if !ok {
		return 0
	}
	return cast.ToInt64(v)
}

func lastRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}

// truncateBytes 按字节截断，不切断多字节字符
func truncateBytes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := 0
	for i, r := range s {
		size := utf8.RuneLen(r)
		if i+size > max {
			break
		}
		cut = i + size
	}
	return s[:cut]
}
