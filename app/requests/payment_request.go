package requests

import (
	"github.com/gin-gonic/gin"
	"github.com/thedevsaddam/govalidator"
)

// MaxAmount 单笔支付金额上限（韩元）
const MaxAmount int64 = 100_000_000

// CreatePaymentRequest 创建支付
type CreatePaymentRequest struct {
	Amount       int64  `json:"amount"`
	GoodsName    string `json:"goods_name"`
	TaxFree      bool   `json:"tax_free"`
	CustomerName string `json:"customer_name"`
	PayMethod    string `json:"pay_method"`
}

// ValidateCreatePayment 验证创建支付请求
func ValidateCreatePayment(c *gin.Context) (*CreatePaymentRequest, error) {
	rules := govalidator.MapData{
		"amount":        []string{"required"},
		"goods_name":    []string{"required", "max:100"},
		"customer_name": []string{"max:30"},
		"pay_method":    []string{"in:11,21,22,31,41,42,43,44,45,46,50"},
	}
	messages := govalidator.MapData{
		"amount": []string{
			"required:결제 금액을 입력해주세요",
		},
		"goods_name": []string{
			"required:상품명을 입력해주세요",
			"max:상품명은 100자 이하로 입력해주세요",
		},
		"customer_name": []string{
			"max:고객명은 30자 이하로 입력해주세요",
		},
		"pay_method": []string{
			"in:지원하지 않는 결제수단입니다",
		},
	}

	req, err := ValidateRequest[CreatePaymentRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}

	// 金额范围
	if req.Amount <= 0 || req.Amount > MaxAmount {
		verr := ValidationError{}
		verr.Add("amount", "결제 금액은 1원 이상 1억원 이하여야 합니다")
		return nil, verr
	}
	return req, nil
}

// CallbackRequest EasyPay 认证页面回跳参数，GET 查询串或 POST 表单
type CallbackRequest struct {
	ShopOrderNo     string `form:"shopOrderNo"`
	AuthorizationID string `form:"authorizationId"`
	ResCd           string `form:"resCd"`
	ResMsg          string `form:"resMsg"`
}

// BindCallback 解析回跳参数，shopOrderNo 缺失时使用 order_no 查询参数
func BindCallback(c *gin.Context) (*CallbackRequest, error) {
	var req CallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		return nil, err
	}
	if req.ShopOrderNo == "" {
		req.ShopOrderNo = c.Query("order_no")
	}
	if req.ShopOrderNo == "" {
		verr := ValidationError{}
		verr.Add("shopOrderNo", "주문번호가 없습니다")
		return nil, verr
	}
	return &req, nil
}
