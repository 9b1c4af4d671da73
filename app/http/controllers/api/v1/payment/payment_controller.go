package payment

import (
	"errors"

	"github.com/gin-gonic/gin"

	v1 "easypay/app/http/controllers/api/v1"
	model "easypay/app/models/payment"
	"easypay/app/requests"
	paymentsvc "easypay/app/services/payment"
	"easypay/pkg/app"
	"easypay/pkg/config"
	"easypay/pkg/response"
)

// PaymentController 面向买家的支付接口
type PaymentController struct {
	v1.BaseAPIController
	service *paymentsvc.Service
}

// NewPaymentController 创建支付控制器
func NewPaymentController(service *paymentsvc.Service) *PaymentController {
	return &PaymentController{
		service: service,
	}
}

// Store 创建支付记录并向 PG 注册，返回认证页面地址
func (pc *PaymentController) Store(c *gin.Context) {
	request, err := requests.ValidateCreatePayment(c)
	if err != nil {
		pc.BindError(c, err)
		return
	}

	p, err := pc.service.Create(c.Request.Context(), paymentsvc.CreateInput{
		Amount:    request.Amount,
		GoodsName: request.GoodsName,
		TaxFree:   request.TaxFree,
		ClientIP:  app.ClientIP(c),
		UserAgent: model.TruncateUserAgent(c.Request.UserAgent()),
	})
	if err != nil {
		if errors.Is(err, model.ErrInvalidAmount) {
			response.Abort400(c, "결제 금액이 올바르지 않습니다")
			return
		}
		pc.RespondError(c, err)
		return
	}

	payMethod := request.PayMethod
	if payMethod == "" {
		payMethod = config.GetString("easypay.pay_method", "11")
	}

	redirectURL, err := pc.service.Register(c.Request.Context(), p.ID, paymentsvc.RegisterInput{
		ReturnURL:    config.GetString("easypay.return_url"),
		CustomerName: request.CustomerName,
		PayMethod:    payMethod,
	})
	if err != nil {
		pc.RespondError(c, err)
		return
	}

	response.Created(c, gin.H{
		"payment_id":   p.ID,
		"order_no":     p.OrderNo,
		"amount":       p.Amount,
		"redirect_url": redirectURL,
	}, "결제가 등록되었습니다")
}

// Callback PG 认证页面回跳，GET 与 POST 都会调用
func (pc *PaymentController) Callback(c *gin.Context) {
	request, err := requests.BindCallback(c)
	if err != nil {
		pc.BindError(c, err)
		return
	}

	p, err := pc.service.HandleCallback(c.Request.Context(), paymentsvc.Callback{
		OrderNo:         request.ShopOrderNo,
		AuthorizationID: request.AuthorizationID,
		ResCd:           request.ResCd,
		ResMsg:          request.ResMsg,
	})
	if err != nil {
		pc.RespondError(c, err)
		return
	}

	response.Data(c, present(p))
}

// Show 按订单号查询支付状态
func (pc *PaymentController) Show(c *gin.Context) {
	p, err := pc.service.GetByOrderNo(c.Request.Context(), c.Param("order_no"))
	if err != nil {
		pc.RespondError(c, err)
		return
	}
	response.Data(c, present(p))
}

// present 买家可见的字段
func present(p *model.Payment) gin.H {
	return gin.H{
		"order_no":           p.OrderNo,
		"status":             p.Status,
		"status_label":       p.Status.Label(),
		"amount":             p.Amount,
		"goods_name":         p.GoodsName,
		"payment_method":     p.PaymentMethod,
		"card_issuer_name":   p.CardIssuerName,
		"card_number_masked": p.CardNumberMasked,
		"paid_at":            p.PaidAt,
	}
}
