// Package payment 支付流程编排：注册、回调审批、失败、取消和状态同步
//
// 所有状态迁移都在 PaymentRepository.WithLock 的行锁事务内完成，
// 事件在事务提交之后发布，监听者看到的一定是已经落库的状态。
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	model "easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/pkg/app"
	"easypay/pkg/easypay"
	"easypay/pkg/events"
	"easypay/pkg/logger"
)

var (
	// ErrPaymentNotFound 支付记录不存在
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrNotCancelable 当前状态不能取消
	ErrNotCancelable = errors.New("payment is not cancelable")
	// ErrNotPending 只有待支付的记录可以注册或审批
	ErrNotPending = errors.New("payment is not pending")
	// ErrAuthenticationFailed 用户在 PG 认证页面未完成认证
	ErrAuthenticationFailed = errors.New("payment authentication failed")
)

// Gateway PG 客户端，*easypay.Client 实现了该接口
type Gateway interface {
	Register(ctx context.Context, p *model.Payment, req easypay.RegisterRequest) (*easypay.RegisterResult, error)
	Approve(ctx context.Context, p *model.Payment, authorizationID string) (*easypay.ApprovalResult, error)
	Cancel(ctx context.Context, p *model.Payment, req easypay.CancelRequest) (*easypay.CancelResult, error)
	QueryStatus(ctx context.Context, p *model.Payment) (*easypay.RemoteStatus, error)
	ReceiptURL(transactionID string) string
}

// Publisher 事件发布，*events.Bus 实现了该接口
type Publisher interface {
	Publish(ctx context.Context, e events.Event)
}

// CreateInput 创建支付记录参数
type CreateInput struct {
	Amount    int64
	GoodsName string
	TaxFree   bool
	ClientIP  string
	UserAgent string
}

// RegisterInput 交易注册参数，留空的字段使用默认值
type RegisterInput struct {
	ReturnURL    string
	CustomerName string
	PayMethod    string
	DeviceType   easypay.DeviceType
}

// Callback PG 认证页面回跳时携带的参数
type Callback struct {
	OrderNo         string
	AuthorizationID string
	ResCd           string
	ResMsg          string
}

// CancelInput 取消参数
type CancelInput struct {
	Type   model.CancelType
	Amount int64
	Reason string
}

// BulkResult 批量操作结果
type BulkResult struct {
	Succeeded []uint64          `json:"succeeded"`
	Skipped   []uint64          `json:"skipped"`
	Failed    map[uint64]string `json:"failed"`
}

// Service 支付服务
type Service struct {
	repo    *repositories.PaymentRepository
	gateway Gateway
	events  Publisher
	now     func() time.Time
}

// NewService 创建支付服务
func NewService(repo *repositories.PaymentRepository, gateway Gateway, publisher Publisher) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		events:  publisher,
		now:     app.TimenowInTimezone,
	}
}

// ReceiptURL 信用卡收据地址
func (s *Service) ReceiptURL(transactionID string) string {
	return s.gateway.ReceiptURL(transactionID)
}

// Get 根据 ID 获取支付记录
func (s *Service) Get(ctx context.Context, id uint64) (*model.Payment, error) {
	p, err := s.repo.Get(ctx, id)
	return p, notFound(err)
}

// GetByOrderNo 根据订单号获取支付记录
func (s *Service) GetByOrderNo(ctx context.Context, orderNo string) (*model.Payment, error) {
	p, err := s.repo.GetByOrderNo(ctx, orderNo)
	return p, notFound(err)
}

// Create 创建 Pending 状态的支付记录，订单号和税额由模型钩子生成
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Payment, error) {
	p := &model.Payment{
		Amount:          in.Amount,
		GoodsName:       in.GoodsName,
		TaxFree:         in.TaxFree,
		ClientIP:        in.ClientIP,
		ClientUserAgent: in.UserAgent,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	logger.Info("Payment",
		zap.String("action", "created"),
		zap.Uint64("payment_id", p.ID),
		zap.String("order_no", p.OrderNo),
		zap.Int64("amount", p.Amount),
	)
	return p, nil
}

// Register 向 PG 注册交易，返回认证页面地址
//
// PG 拒绝或不可用时记录迁移为 Failed 并发布 Failed 事件，原错误返回给调用方。
func (s *Service) Register(ctx context.Context, id uint64, in RegisterInput) (string, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !p.IsPending() {
		return "", ErrNotPending
	}

	deviceType := in.DeviceType
	if deviceType == "" {
		deviceType = easypay.DetectDeviceType(p.ClientUserAgent)
	}

	res, err := s.gateway.Register(ctx, p, easypay.RegisterRequest{
		ReturnURL:    in.ReturnURL,
		DeviceType:   deviceType,
		GoodsName:    p.GoodsName,
		CustomerName: in.CustomerName,
		PayMethod:    in.PayMethod,
	})
	if err != nil {
		if failErr := s.fail(ctx, p.ID, events.StageRegistration, easypay.ErrorCode(err), easypay.ErrorMessage(err)); failErr != nil {
			logger.LogIf(failErr)
		}
		return "", err
	}

	logger.Info("Payment",
		zap.String("action", "registered"),
		zap.Uint64("payment_id", p.ID),
		zap.String("order_no", p.OrderNo),
	)
	s.events.Publish(ctx, events.Registered(p, res.RedirectURL))
	return res.RedirectURL, nil
}

// HandleCallback 处理 PG 认证回跳
//
// 已完成的记录直接返回；resCd 不是 0000 或缺少 authorizationId 时迁移为 Failed，否则发起审批。
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (*model.Payment, error) {
	p, err := s.GetByOrderNo(ctx, cb.OrderNo)
	if err != nil {
		return nil, err
	}
	if p.IsPaid() {
		return p, nil
	}
	if !p.IsPending() {
		return p, ErrNotPending
	}

	// resCd 缺省时以 authorizationId 为准
	if (cb.ResCd != "" && cb.ResCd != easypay.ResultSuccess) || cb.AuthorizationID == "" {
		code := cb.ResCd
		if code == "" || code == easypay.ResultSuccess {
			code = "NO_AUTH_ID"
		}
		if err := s.fail(ctx, p.ID, events.StageAuthentication, code, cb.ResMsg); err != nil {
			return nil, err
		}
		failed, err := s.Get(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return failed, fmt.Errorf("%w: %s %s", ErrAuthenticationFailed, code, cb.ResMsg)
	}

	return s.Approve(ctx, p.ID, cb.AuthorizationID)
}

// Approve 在行锁内向 PG 请求审批
//
// 记录不是 Pending 时不发请求，直接返回当前记录，同一笔交易最多审批一次。
// 审批金额与本地金额不一致时记录错误日志，迁移照常完成。
func (s *Service) Approve(ctx context.Context, id uint64, authorizationID string) (*model.Payment, error) {
	var (
		result     *model.Payment
		event      *events.Event
		gatewayErr error
	)

	err := s.repo.WithLock(ctx, id, func(tx *repositories.PaymentRepository, p *model.Payment) error {
		result = p
		if !p.IsPending() {
			return nil
		}

		res, err := s.gateway.Approve(ctx, p, authorizationID)
		if err != nil {
			gatewayErr = err
			p.MarkFailed()
			if err := tx.Update(ctx, p); err != nil {
				return err
			}
			e := events.Failed(p, events.StageApproval, easypay.ErrorCode(err), easypay.ErrorMessage(err))
			event = &e
			return nil
		}

		data := res.ApprovalData()
		if data.ApprovedAmount != p.Amount {
			logger.Error("Payment",
				zap.String("action", "amount_mismatch"),
				zap.Uint64("payment_id", p.ID),
				zap.String("order_no", p.OrderNo),
				zap.String("transaction_id", data.TransactionID),
				zap.Int64("expected_amount", p.Amount),
				zap.Int64("approved_amount", data.ApprovedAmount),
			)
		}

		p.MarkApproved(data, authorizationID, s.now())
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		e := events.Approved(p)
		event = &e
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	if event != nil {
		logger.Info("Payment",
			zap.String("action", string(event.Kind)),
			zap.Uint64("payment_id", result.ID),
			zap.String("order_no", result.OrderNo),
			zap.String("transaction_id", result.TransactionID),
		)
		s.events.Publish(ctx, *event)
	}
	return result, gatewayErr
}

// fail 把 Pending 记录迁移为 Failed，其它状态不做修改
func (s *Service) fail(ctx context.Context, id uint64, stage, code, message string) error {
	var event *events.Event
	err := s.repo.WithLock(ctx, id, func(tx *repositories.PaymentRepository, p *model.Payment) error {
		if !p.MarkFailed() {
			return nil
		}
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		e := events.Failed(p, stage, code, message)
		event = &e
		return nil
	})
	if err != nil {
		return notFound(err)
	}

	if event != nil {
		logger.Warn("Payment",
			zap.String("action", "failed"),
			zap.Uint64("payment_id", event.Payment.ID),
			zap.String("order_no", event.Payment.OrderNo),
			zap.String("stage", stage),
			zap.String("error_code", code),
			zap.String("error_message", message),
		)
		s.events.Publish(ctx, *event)
	}
	return nil
}

// Cancel 在行锁内全额或部分取消
//
// 不可取消的记录返回 ErrNotCancelable，不会发出请求。PG 返回错误时记录保持不变。
func (s *Service) Cancel(ctx context.Context, id uint64, in CancelInput) (*model.Payment, error) {
	var (
		result *model.Payment
		event  *events.Event
	)

	err := s.repo.WithLock(ctx, id, func(tx *repositories.PaymentRepository, p *model.Payment) error {
		if !p.CanCancel() {
			return ErrNotCancelable
		}

		res, err := s.gateway.Cancel(ctx, p, easypay.CancelRequest{
			Type:   in.Type,
			Amount: in.Amount,
			Reason: in.Reason,
		})
		if err != nil {
			return err
		}

		p.MarkCancelled(res.CancelData())
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		result = p
		e := events.Cancelled(p, res.Type, res.CancelledAmount)
		event = &e
		return nil
	})
	if err != nil {
		logger.Warn("Payment",
			zap.String("action", "cancel_failed"),
			zap.Uint64("payment_id", id),
			zap.String("error_code", easypay.ErrorCode(err)),
			zap.Error(err),
		)
		return nil, notFound(err)
	}

	logger.Warn("Payment",
		zap.String("action", "cancelled"),
		zap.Uint64("payment_id", result.ID),
		zap.String("order_no", result.OrderNo),
		zap.String("transaction_id", result.TransactionID),
		zap.String("cancel_type", string(event.CancelType)),
		zap.Int64("cancel_amount", event.CancelAmount),
	)
	s.events.Publish(ctx, *event)
	return result, nil
}

// Sync 查询 PG 端状态并同步到本地，返回记录是否有变化
//
// 只有 Completed 的记录会被查询；PG 端已退款迁移为 Refunded，已取消迁移为 Cancelled。
func (s *Service) Sync(ctx context.Context, id uint64) (bool, error) {
	var event *events.Event

	err := s.repo.WithLock(ctx, id, func(tx *repositories.PaymentRepository, p *model.Payment) error {
		if p.Status != model.StatusCompleted || p.TransactionID == "" {
			return nil
		}

		remote, err := s.gateway.QueryStatus(ctx, p)
		if err != nil {
			return err
		}

		remaining := p.RemainingAmount()
		var changed bool
		switch {
		case remote.Refunded:
			changed = p.MarkRefunded()
		case remote.Cancelled:
			changed = p.MarkCancelled(model.CancelData{
				Type:          model.CancelFull,
				Amount:        remaining,
				TransactionID: p.TransactionID,
				CancelledAt:   s.now(),
				Raw: map[string]interface{}{
					"source":      "sync",
					"status_name": remote.StatusName,
				},
			})
		}
		if !changed {
			return nil
		}

		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		e := events.Cancelled(p, model.CancelFull, remaining)
		event = &e
		return nil
	})
	if err != nil {
		return false, notFound(err)
	}
	if event == nil {
		return false, nil
	}

	logger.Warn("Payment",
		zap.String("action", "synced"),
		zap.Uint64("payment_id", event.Payment.ID),
		zap.String("order_no", event.Payment.OrderNo),
		zap.String("status", string(event.Payment.Status)),
	)
	s.events.Publish(ctx, *event)
	return true, nil
}

// CancelMany 批量全额取消，不可取消的记录计入 Skipped
func (s *Service) CancelMany(ctx context.Context, ids []uint64, reason string) BulkResult {
	result := newBulkResult()
	for _, id := range ids {
		_, err := s.Cancel(ctx, id, CancelInput{Type: model.CancelFull, Reason: reason})
		switch {
		case err == nil:
			result.Succeeded = append(result.Succeeded, id)
		case errors.Is(err, ErrNotCancelable):
			result.Skipped = append(result.Skipped, id)
		default:
			result.Failed[id] = err.Error()
		}
	}
	return result
}

// SyncMany 批量同步，没有变化的记录计入 Skipped
func (s *Service) SyncMany(ctx context.Context, ids []uint64) BulkResult {
	result := newBulkResult()
	for _, id := range ids {
		changed, err := s.Sync(ctx, id)
		switch {
		case err != nil:
			result.Failed[id] = err.Error()
		case changed:
			result.Succeeded = append(result.Succeeded, id)
		default:
			result.Skipped = append(result.Skipped, id)
		}
	}
	return result
}

func newBulkResult() BulkResult {
	return BulkResult{
		Succeeded: []uint64{},
		Skipped:   []uint64{},
		Failed:    map[uint64]string{},
	}
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrPaymentNotFound
	}
	return err
}
