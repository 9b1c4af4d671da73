// Package admin 管理后台接口
package admin

import (
	"fmt"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	v1 "easypay/app/http/controllers/api/v1"
	model "easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/app/requests"
	"easypay/app/services/export"
	paymentsvc "easypay/app/services/payment"
	"easypay/pkg/app"
	"easypay/pkg/logger"
	"easypay/pkg/response"
)

// PaymentsController 支付记录管理
type PaymentsController struct {
	v1.BaseAPIController
	service *paymentsvc.Service
	repo    *repositories.PaymentRepository
}

// NewPaymentsController 创建控制器
func NewPaymentsController(service *paymentsvc.Service, repo *repositories.PaymentRepository) *PaymentsController {
	return &PaymentsController{
		service: service,
		repo:    repo,
	}
}

// Index 分页列表
func (ctrl *PaymentsController) Index(c *gin.Context) {
	filter, err := requests.BindPaymentFilter(c, app.Location())
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	payments, total, err := ctrl.repo.List(c.Request.Context(), filter)
	if err != nil {
		response.ServerError(c, err)
		return
	}
	counts, err := ctrl.repo.CountByStatus(c.Request.Context())
	if err != nil {
		response.ServerError(c, err)
		return
	}

	page, perPage := filter.Page, filter.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	response.Data(c, gin.H{
		"payments":      payments,
		"status_counts": counts,
		"pager": gin.H{
			"total":        total,
			"current_page": page,
			"per_page":     perPage,
			"last_page":    int(math.Max(1, math.Ceil(float64(total)/float64(perPage)))),
		},
	})
}

// Show 详情，附带收据地址和可取消余额
func (ctrl *PaymentsController) Show(c *gin.Context) {
	p, err := ctrl.service.Get(c.Request.Context(), cast.ToUint64(c.Param("id")))
	if err != nil {
		ctrl.RespondError(c, err)
		return
	}

	receiptURL := ""
	if p.TransactionID != "" && p.IsPaid() {
		receiptURL = ctrl.service.ReceiptURL(p.TransactionID)
	}

	response.Data(c, gin.H{
		"payment":              p,
		"status_label":         p.Status.Label(),
		"payment_method_label": model.PayMethodLabel(p.PaymentMethod),
		"remaining_amount":     p.RemainingAmount(),
		"can_cancel":           p.CanCancel(),
		"receipt_url":          receiptURL,
	})
}

// Cancel 单笔全额或部分取消
func (ctrl *PaymentsController) Cancel(c *gin.Context) {
	request, err := requests.ValidateCancelPayment(c)
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	id := cast.ToUint64(c.Param("id"))
	p, err := ctrl.service.Cancel(c.Request.Context(), id, paymentsvc.CancelInput{
		Type:   model.CancelType(request.Type),
		Amount: request.Amount,
		Reason: request.Reason,
	})
	if err != nil {
		ctrl.RespondError(c, err)
		return
	}

	logger.Warn("Admin",
		zap.String("action", "cancel"),
		zap.String("admin", c.GetString("admin_subject")),
		zap.Uint64("payment_id", id),
		zap.String("cancel_type", request.Type),
	)
	response.Data(c, p)
}

// Sync 单笔同步 PG 状态
func (ctrl *PaymentsController) Sync(c *gin.Context) {
	id := cast.ToUint64(c.Param("id"))
	changed, err := ctrl.service.Sync(c.Request.Context(), id)
	if err != nil {
		ctrl.RespondError(c, err)
		return
	}
	p, err := ctrl.service.Get(c.Request.Context(), id)
	if err != nil {
		ctrl.RespondError(c, err)
		return
	}
	response.Data(c, gin.H{"changed": changed, "payment": p})
}

// BulkCancel 批量全额取消
func (ctrl *PaymentsController) BulkCancel(c *gin.Context) {
	request, err := requests.ValidateBulkPayment(c)
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	result := ctrl.service.CancelMany(c.Request.Context(), request.IDs, request.Reason)

	logger.Warn("Admin",
		zap.String("action", "bulk_cancel"),
		zap.String("admin", c.GetString("admin_subject")),
		zap.Int("requested", len(request.IDs)),
		zap.Int("succeeded", len(result.Succeeded)),
		zap.Int("failed", len(result.Failed)),
	)
	response.Data(c, result)
}

// BulkSync 批量同步 PG 状态
func (ctrl *PaymentsController) BulkSync(c *gin.Context) {
	request, err := requests.ValidateBulkPayment(c)
	if err != nil {
		ctrl.BindError(c, err)
		return
	}
	response.Data(c, ctrl.service.SyncMany(c.Request.Context(), request.IDs))
}

// Export 按列表筛选条件导出 CSV
func (ctrl *PaymentsController) Export(c *gin.Context) {
	filter, err := requests.BindPaymentFilter(c, app.Location())
	if err != nil {
		ctrl.BindError(c, err)
		return
	}

	payments, err := ctrl.repo.FindAll(c.Request.Context(), filter)
	if err != nil {
		response.ServerError(c, err)
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, export.FileName(app.TimenowInTimezone())))
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, payments, app.Location()); err != nil {
		logger.LogIf(err)
		return
	}

	logger.Info("Admin",
		zap.String("action", "export"),
		zap.String("admin", c.GetString("admin_subject")),
		zap.Int("rows", len(payments)),
	)
}
