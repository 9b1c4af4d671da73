// Package easypay EasyPay (KICC) PG 客户端
//
// 测试环境与生产环境的接口路径和字段名不同，客户端在构造时根据 API 地址选择对应的
// schema，调用方只接触统一的 RegisterResult、ApprovalResult、CancelResult 和 RemoteStatus。
package easypay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"easypay/app/models/payment"
	"easypay/pkg/app"
	"easypay/pkg/logger"
)

const defaultCancelReason = "고객요청"

// Client EasyPay API 客户端，可以被多个 goroutine 共享
type Client struct {
	cfg    Config
	http   *resty.Client
	schema schema
	now    func() time.Time
}

// NewClient 创建客户端
//
// MallID 为空，或生产环境缺少 SecretKey 时返回 ErrConfiguration。
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")

	if cfg.MallID == "" {
		return nil, fmt.Errorf("%w: mall id is required", ErrConfiguration)
	}

	s := newSchema(cfg.APIURL, cfg.SecretKey)
	if s.Mode() == ModeProduction && cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: secret key is required in production", ErrConfiguration)
	}

	httpClient := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.Transport != nil {
		httpClient.SetTransport(cfg.Transport)
	}

	logger.Info("EasyPay",
		zap.String("mode", string(s.Mode())),
		zap.String("api_url", cfg.APIURL),
		zap.String("mall_id", cfg.MallID),
	)

	return &Client{
		cfg:    cfg,
		http:   httpClient,
		schema: s,
		now:    app.TimenowInTimezone,
	}, nil
}

// Mode 当前接入环境
func (c *Client) Mode() Mode {
	return c.schema.Mode()
}

// IsProduction 是否为生产环境
func (c *Client) IsProduction() bool {
	return c.schema.Mode() == ModeProduction
}

// MallID 加盟店 ID
func (c *Client) MallID() string {
	return c.cfg.MallID
}

// ReceiptURL 信用卡收据地址
func (c *Client) ReceiptURL(transactionID string) string {
	if transactionID == "" {
		return ""
	}
	if c.IsProduction() {
		return receiptURLProduction + transactionID
	}
	return receiptURLTest + transactionID
}

// Register 注册交易，返回用户跳转的认证页面地址
func (c *Client) Register(ctx context.Context, p *payment.Payment, req RegisterRequest) (*RegisterResult, error) {
	env := c.envelope(p)
	body := c.schema.RegisterBody(env, p, req)

	res, err := c.post(ctx, "register", c.schema.RegisterPath(), env, body)
	if err != nil {
		return nil, err
	}

	redirectURL := str(res, "authPageUrl")
	if redirectURL == "" {
		return nil, &RejectedError{Op: "register", Code: str(res, "resCd"), Message: "authPageUrl missing in response", Response: res}
	}
	return &RegisterResult{RedirectURL: redirectURL}, nil
}

// Approve 用认证阶段返回的 authorizationId 请求审批
func (c *Client) Approve(ctx context.Context, p *payment.Payment, authorizationID string) (*ApprovalResult, error) {
	env := c.envelope(p)
	body := c.schema.ApproveBody(env, authorizationID, c.now())

	res, err := c.post(ctx, "approve", c.schema.ApprovePath(), env, body)
	if err != nil {
		return nil, err
	}

	result := c.schema.ParseApproval(res)
	return &result, nil
}

// Cancel 全额或部分取消
//
// 前置条件不满足时直接返回错误，不会发出请求：
// 没有 PG 交易号返回 ErrMissingTransactionID；部分取消金额不在 (0, 剩余金额] 内，
// 或全额取消显式指定的金额与剩余金额不一致时返回 ErrInvalidCancelAmount。
func (c *Client) Cancel(ctx context.Context, p *payment.Payment, req CancelRequest) (*CancelResult, error) {
	if p.TransactionID == "" {
		return nil, ErrMissingTransactionID
	}

	remaining := p.RemainingAmount()
	switch req.Type {
	case payment.CancelPartial:
		if req.Amount <= 0 || req.Amount > remaining {
			return nil, fmt.Errorf("%w: %d (remaining %d)", ErrInvalidCancelAmount, req.Amount, remaining)
		}
	case payment.CancelFull, "":
		req.Type = payment.CancelFull
		if remaining <= 0 || (req.Amount != 0 && req.Amount != remaining) {
			return nil, fmt.Errorf("%w: full cancel of %d (remaining %d)", ErrInvalidCancelAmount, req.Amount, remaining)
		}
	default:
		return nil, fmt.Errorf("%w: unknown cancel type %q", ErrInvalidCancelAmount, req.Type)
	}
	if req.Reason == "" {
		req.Reason = defaultCancelReason
	}

	env := c.envelope(p)
	body := c.schema.CancelBody(env, req, c.now())

	res, err := c.post(ctx, "cancel", c.schema.CancelPath(), env, body)
	if err != nil {
		return nil, err
	}

	result := c.schema.ParseCancel(res)
	result.Type = req.Type
	if result.TransactionID == "" {
		result.TransactionID = p.TransactionID
	}
	if result.CancelledAmount == 0 {
		if req.Type == payment.CancelPartial {
			result.CancelledAmount = req.Amount
		} else {
			result.CancelledAmount = remaining
		}
	}
	if result.CancelledAt.IsZero() {
		result.CancelledAt = c.now()
	}
	return &result, nil
}

// QueryStatus 查询 PG 端交易状态，只读
func (c *Client) QueryStatus(ctx context.Context, p *payment.Payment) (*RemoteStatus, error) {
	env := c.envelope(p)
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = c.now()
	}
	body := c.schema.StatusBody(env, createdAt.In(app.Location()))

	res, err := c.post(ctx, "status", c.schema.StatusPath(), env, body)
	if err != nil {
		return nil, err
	}

	status := c.schema.ParseStatus(res)
	if status.TransactionID == "" {
		status.TransactionID = p.TransactionID
	}
	return &status, nil
}

func (c *Client) envelope(p *payment.Payment) envelope {
	return envelope{
		MallID:            c.cfg.MallID,
		OrderNo:           p.OrderNo,
		ShopTransactionID: newShopTransactionID(),
		TransactionID:     p.TransactionID,
	}
}

// post 发送请求并检查 resCd
func (c *Client) post(ctx context.Context, op, path string, env envelope, body map[string]interface{}) (map[string]interface{}, error) {
	start := time.Now()
	logger.Info("EasyPay",
		zap.String("op", op),
		zap.String("endpoint", path),
		zap.String("mall_id", env.MallID),
		zap.String("order_no", env.OrderNo),
		zap.String("shop_transaction_id", env.ShopTransactionID),
	)

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		Post(path)
	if err != nil {
		ue := newUnavailable(op, 0, err)
		logger.Error("EasyPay",
			zap.String("op", op),
			zap.String("order_no", env.OrderNo),
			zap.String("error_code", ue.Code),
			zap.Error(err),
		)
		return nil, ue
	}

	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		logger.Error("EasyPay",
			zap.String("op", op),
			zap.String("order_no", env.OrderNo),
			zap.Int("http_status", resp.StatusCode()),
		)
		return nil, newUnavailable(op, resp.StatusCode(), nil)
	}

	var res map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(resp.Body()))
	decoder.UseNumber()
	if err := decoder.Decode(&res); err != nil {
		logger.Error("EasyPay",
			zap.String("op", op),
			zap.String("order_no", env.OrderNo),
			zap.String("error", "invalid json response"),
		)
		return nil, newUnavailable(op, 0, fmt.Errorf("decode response: %w", err))
	}

	resCd := str(res, "resCd")
	logger.Info("EasyPay",
		zap.String("op", op),
		zap.String("order_no", env.OrderNo),
		zap.String("res_cd", resCd),
		zap.String("res_msg", str(res, "resMsg")),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resCd != ResultSuccess {
		return nil, &RejectedError{Op: op, Code: resCd, Message: str(res, "resMsg"), Response: res}
	}
	return res, nil
}

// newShopTransactionID 每个请求唯一的 32 位十六进制 shopTransactionId
func newShopTransactionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
