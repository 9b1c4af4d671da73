package requests

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"github.com/thedevsaddam/govalidator"

	"easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/app/services/dashboard"
)

const dateLayout = "2006-01-02"

// CancelPaymentRequest 单笔取消
type CancelPaymentRequest struct {
	Type   string `json:"type"`
	Amount int64  `json:"amount"`
	Reason string `json:"reason"`
}

// ValidateCancelPayment 验证取消请求，部分取消必须指定金额
func ValidateCancelPayment(c *gin.Context) (*CancelPaymentRequest, error) {
	rules := govalidator.MapData{
		"type":   []string{"in:full,partial"},
		"reason": []string{"max:100"},
	}
	messages := govalidator.MapData{
		"type": []string{
			"in:취소 유형은 full 또는 partial 이어야 합니다",
		},
		"reason": []string{
			"max:취소 사유는 100자 이하로 입력해주세요",
		},
	}

	req, err := ValidateRequest[CancelPaymentRequest](c, rules, messages)
	if err != nil {
		return nil, err
	}
	if req.Type == "" {
		req.Type = "full"
	}
	if req.Type == "partial" && req.Amount <= 0 {
		verr := ValidationError{}
		verr.Add("amount", "부분 취소 금액을 입력해주세요")
		return nil, verr
	}
	if req.Amount < 0 {
		verr := ValidationError{}
		verr.Add("amount", "취소 금액이 올바르지 않습니다")
		return nil, verr
	}
	return req, nil
}

// BulkPaymentRequest 批量取消或同步
type BulkPaymentRequest struct {
	IDs    []uint64 `json:"ids" binding:"required,min=1,max=100,dive,gt=0"`
	Reason string   `json:"reason" binding:"max=100"`
}

// ValidateBulkPayment 验证批量请求，使用 gin 的 binding 标签
func ValidateBulkPayment(c *gin.Context) (*BulkPaymentRequest, error) {
	var req BulkPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// PaymentListQuery 列表和导出的查询参数
type PaymentListQuery struct {
	Status        string `form:"status"`
	PaymentMethod string `form:"payment_method"`
	Query         string `form:"q"`
	From          string `form:"from"`
	To            string `form:"to"`
	Page          string `form:"page"`
	PerPage       string `form:"per_page"`
}

// BindPaymentFilter 解析查询参数为仓库筛选条件，from/to 为 loc 时区的日期，to 当天包含在内
func BindPaymentFilter(c *gin.Context, loc *time.Location) (repositories.PaymentFilter, error) {
	var (
		q    PaymentListQuery
		f    repositories.PaymentFilter
		verr ValidationError
	)
	if err := c.ShouldBindQuery(&q); err != nil {
		return f, err
	}

	if q.Status != "" {
		status := payment.Status(q.Status)
		if !status.Valid() {
			verr.Add("status", "올바르지 않은 결제 상태입니다")
		}
		f.Status = status
	}
	f.PaymentMethod = strings.TrimSpace(q.PaymentMethod)
	f.Query = strings.TrimSpace(q.Query)

	if q.From != "" {
		from, err := time.ParseInLocation(dateLayout, q.From, loc)
		if err != nil {
			verr.Add("from", "날짜 형식은 YYYY-MM-DD 입니다")
		} else {
			f.From = &from
		}
	}
	if q.To != "" {
		to, err := time.ParseInLocation(dateLayout, q.To, loc)
		if err != nil {
			verr.Add("to", "날짜 형식은 YYYY-MM-DD 입니다")
		} else {
			to = to.AddDate(0, 0, 1)
			f.To = &to
		}
	}

	f.Page = cast.ToInt(q.Page)
	f.PerPage = cast.ToInt(q.PerPage)

	if len(verr.Errors) > 0 {
		return f, verr
	}
	return f, nil
}

// DashboardQuery 仪表盘查询参数
type DashboardQuery struct {
	Range string `form:"range"`
	Start string `form:"start"`
	End   string `form:"end"`
}

// BindDashboardQuery 未知的 range 按 7d 处理
func BindDashboardQuery(c *gin.Context) (dashboard.Query, error) {
	var q DashboardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return dashboard.Query{}, err
	}

	valid := false
	for _, r := range dashboard.ValidRanges {
		if q.Range == r {
			valid = true
			break
		}
	}
	if !valid {
		q.Range = dashboard.Range7d
	}
	return dashboard.Query{Range: q.Range, Start: q.Start, End: q.End}, nil
}

// BindCalendarQuery 年月缺省时使用 now 所在的月份
func BindCalendarQuery(c *gin.Context, now time.Time) (int, time.Month, error) {
	year, month := now.Year(), now.Month()

	if v := c.Query("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 2000 || y > 2100 {
			verr := ValidationError{}
			verr.Add("year", "올바르지 않은 연도입니다")
			return 0, 0, verr
		}
		year = y
	}
	if v := c.Query("month"); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil || m < 1 || m > 12 {
			verr := ValidationError{}
			verr.Add("month", "올바르지 않은 월입니다")
			return 0, 0, verr
		}
		month = time.Month(m)
	}
	return year, month, nil
}
