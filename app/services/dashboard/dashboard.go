// Package dashboard 管理后台统计：汇总卡片、日趋势、状态和结算方式分布、环比和月历
package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"easypay/app/models/payment"
	"easypay/pkg/app"
)

// 统计区间
const (
	RangeToday  = "today"
	Range7d     = "7d"
	RangeMonth  = "month"
	Range30d    = "30d"
	Range90d    = "90d"
	RangeCustom = "custom"
)

// 趋势
const (
	TrendUp      = "up"
	TrendDown    = "down"
	TrendNeutral = "neutral"
)

const (
	dateLayout   = "2006-01-02"
	maxRangeDays = 365
)

// ValidRanges 接口层接受的 range 参数
var ValidRanges = []string{RangeToday, Range7d, RangeMonth, Range30d, Range90d, RangeCustom}

// Source 统计数据来源，*repositories.PaymentRepository 实现了该接口
type Source interface {
	FindInPeriod(ctx context.Context, from, to time.Time) ([]payment.Payment, error)
	FindCompletedPaidBetween(ctx context.Context, from, to time.Time) ([]payment.Payment, error)
}

// Query 统计参数，Start/End 只在 custom 区间使用
type Query struct {
	Range string
	Start string
	End   string
}

// Card 汇总卡片，Change 为 nil 表示上一周期没有数据
type Card struct {
	Value     int64    `json:"value"`
	Formatted string   `json:"formatted"`
	Change    *float64 `json:"change"`
	Trend     string   `json:"trend"`
}

// Summary 汇总卡片集合
type Summary struct {
	TotalRevenue     Card `json:"total_revenue"`
	TransactionCount Card `json:"transaction_count"`
	AverageValue     Card `json:"average_value"`
	RefundCount      Card `json:"refund_count"`
}

// DailyPoint 日趋势数据点
type DailyPoint struct {
	Date    string `json:"date"`
	Revenue int64  `json:"revenue"`
	Count   int64  `json:"count"`
}

// StatusPoint 状态分布
type StatusPoint struct {
	Status string `json:"status"`
	Label  string `json:"label"`
	Count  int64  `json:"count"`
	Color  string `json:"color"`
}

// MethodPoint 结算方式分布
type MethodPoint struct {
	Method  string `json:"method"`
	Label   string `json:"label"`
	Count   int64  `json:"count"`
	Revenue int64  `json:"revenue"`
}

// Charts 图表数据
type Charts struct {
	DailyTrend []DailyPoint  `json:"daily_trend"`
	ByStatus   []StatusPoint `json:"by_status"`
	ByMethod   []MethodPoint `json:"by_method"`
}

// ComparisonRow 环比
type ComparisonRow struct {
	Label    string `json:"label"`
	Current  int64  `json:"current"`
	Previous int64  `json:"previous"`
}

// Meta 统计区间信息
type Meta struct {
	DateRange     string `json:"date_range"`
	StartDate     string `json:"start_date"`
	EndDate       string `json:"end_date"`
	PrevStartDate string `json:"prev_start_date"`
	PrevEndDate   string `json:"prev_end_date"`
}

// Statistics 仪表盘数据
type Statistics struct {
	Summary    Summary         `json:"summary"`
	Charts     Charts          `json:"charts"`
	Comparison []ComparisonRow `json:"comparison"`
	Meta       Meta            `json:"meta"`
}

// CalendarDay 月历中的一天
type CalendarDay struct {
	Date    string `json:"date"`
	Day     int    `json:"day"`
	Revenue int64  `json:"revenue"`
	Count   int64  `json:"count"`
}

// Service 仪表盘统计服务
type Service struct {
	source Source
	loc    *time.Location
	now    func() time.Time
}

// NewService 创建统计服务，日期按 app.timezone 划分
func NewService(source Source) *Service {
	return &Service{
		source: source,
		loc:    app.Location(),
		now:    app.TimenowInTimezone,
	}
}

// ParseDateRange 解析统计区间，返回的起止日期都包含在区间内
//
// custom 区间：起止颠倒时交换，结束日期不晚于今天，跨度不超过 365 天；
// 日期格式错误或缺少参数时按未知区间处理。未知区间返回本月 1 日到今天。
func ParseDateRange(rangeKey, start, end string, today time.Time) (time.Time, time.Time) {
	today = civilDate(today)

	if rangeKey == RangeCustom && start != "" && end != "" {
		s, errStart := time.Parse(dateLayout, start)
		e, errEnd := time.Parse(dateLayout, end)
		if errStart == nil && errEnd == nil {
			if s.After(e) {
				s, e = e, s
			}
			if e.After(today) {
				e = today
			}
			if s.After(e) {
				s = e
			}
			if daysBetween(s, e) > maxRangeDays {
				s = e.AddDate(0, 0, -maxRangeDays)
			}
			return s, e
		}
	}

	switch rangeKey {
	case RangeToday:
		return today, today
	case Range7d:
		return today.AddDate(0, 0, -6), today
	case Range30d:
		return today.AddDate(0, 0, -29), today
	case Range90d:
		return today.AddDate(0, 0, -89), today
	default:
		return time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC), today
	}
}

// PreviousPeriod 紧挨在当前区间之前、长度相同的区间
func PreviousPeriod(start, end time.Time) (time.Time, time.Time) {
	days := daysBetween(start, end) + 1
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(days - 1))
	return prevStart, prevEnd
}

// CalculateChange 环比百分比，保留一位小数
//
// 上一周期为 0 时没有百分比，本周期大于 0 为 up，否则为 neutral。
func CalculateChange(current, previous int64) (*float64, string) {
	if previous == 0 {
		if current > 0 {
			return nil, TrendUp
		}
		return nil, TrendNeutral
	}

	change := decimal.NewFromInt(current - previous).
		Div(decimal.NewFromInt(previous)).
		Mul(decimal.NewFromInt(100)).
		Round(1)

	trend := TrendNeutral
	switch change.Sign() {
	case 1:
		trend = TrendUp
	case -1:
		trend = TrendDown
	}
	value := change.InexactFloat64()
	return &value, trend
}

// FormatCurrency ₩1,234
func FormatCurrency(value int64) string {
	return "₩" + groupThousands(value)
}

// FormatCount 1,234건
func FormatCount(value int64) string {
	return groupThousands(value) + "건"
}

// Statistics 计算仪表盘数据
func (s *Service) Statistics(ctx context.Context, q Query) (*Statistics, error) {
	start, end := ParseDateRange(q.Range, q.Start, q.End, s.now().In(s.loc))
	prevStart, prevEnd := PreviousPeriod(start, end)

	current, err := s.source.FindInPeriod(ctx, s.startOf(start), s.startOf(end.AddDate(0, 0, 1)))
	if err != nil {
		return nil, err
	}
	previous, err := s.source.FindInPeriod(ctx, s.startOf(prevStart), s.startOf(prevEnd.AddDate(0, 0, 1)))
	if err != nil {
		return nil, err
	}

	cur := s.aggregate(current)
	prev := s.aggregate(previous)

	stats := &Statistics{
		Summary: Summary{
			TotalRevenue:     card(cur.revenue, prev.revenue, FormatCurrency),
			TransactionCount: card(cur.count, prev.count, FormatCount),
			AverageValue:     card(cur.average(), prev.average(), FormatCurrency),
			RefundCount:      card(cur.refunds, prev.refunds, FormatCount),
		},
		Charts: Charts{
			DailyTrend: s.dailyTrend(current, start, end),
			ByStatus:   byStatus(current),
			ByMethod:   byMethod(current),
		},
		Comparison: []ComparisonRow{
			{Label: "매출", Current: cur.revenue, Previous: prev.revenue},
			{Label: "건수", Current: cur.count, Previous: prev.count},
			{Label: "평균금액", Current: cur.average(), Previous: prev.average()},
			{Label: "환불/취소", Current: cur.refunds, Previous: prev.refunds},
		},
		Meta: Meta{
			DateRange:     normalizeRange(q.Range),
			StartDate:     start.Format(dateLayout),
			EndDate:       end.Format(dateLayout),
			PrevStartDate: prevStart.Format(dateLayout),
			PrevEndDate:   prevEnd.Format(dateLayout),
		},
	}

	// 退款减少是好事，趋势反转
	stats.Summary.RefundCount.Trend = invertTrend(stats.Summary.RefundCount.Trend)
	return stats, nil
}

// Calendar 某月每天的完成交易额和笔数
func (s *Service) Calendar(ctx context.Context, year int, month time.Month) ([]CalendarDay, error) {
	if month < time.January || month > time.December {
		return nil, fmt.Errorf("invalid month: %d", month)
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	next := first.AddDate(0, 1, 0)

	payments, err := s.source.FindCompletedPaidBetween(ctx, s.startOf(first), s.startOf(next))
	if err != nil {
		return nil, err
	}

	buckets := s.bucketByPaidDate(payments)
	days := make([]CalendarDay, 0, 31)
	for d := first; d.Before(next); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		b := buckets[key]
		days = append(days, CalendarDay{
			Date:    key,
			Day:     d.Day(),
			Revenue: b.revenue,
			Count:   b.count,
		})
	}
	return days, nil
}

type totals struct {
	revenue int64
	count   int64
	refunds int64
}

// average 平均金额，小数部分截断
func (t totals) average() int64 {
	if t.count == 0 {
		return 0
	}
	return decimal.NewFromInt(t.revenue).Div(decimal.NewFromInt(t.count)).IntPart()
}

func (s *Service) aggregate(payments []payment.Payment) totals {
	var t totals
	for _, p := range payments {
		switch p.Status {
		case payment.StatusCompleted:
			t.revenue += p.Amount
			t.count++
		case payment.StatusCancelled, payment.StatusRefunded:
			t.refunds++
		}
	}
	return t
}

type bucket struct {
	revenue int64
	count   int64
}

func (s *Service) bucketByPaidDate(payments []payment.Payment) map[string]bucket {
	buckets := make(map[string]bucket)
	for _, p := range payments {
		if p.Status != payment.StatusCompleted || p.PaidAt == nil {
			continue
		}
		key := p.PaidAt.In(s.loc).Format(dateLayout)
		b := buckets[key]
		b.revenue += p.Amount
		b.count++
		buckets[key] = b
	}
	return buckets
}

// dailyTrend 完成交易按支付日期汇总，没有数据的日期补 0
func (s *Service) dailyTrend(payments []payment.Payment, start, end time.Time) []DailyPoint {
	buckets := s.bucketByPaidDate(payments)
	points := make([]DailyPoint, 0, daysBetween(start, end)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		key := d.Format(dateLayout)
		b := buckets[key]
		points = append(points, DailyPoint{Date: key, Revenue: b.revenue, Count: b.count})
	}
	return points
}

func byStatus(payments []payment.Payment) []StatusPoint {
	counts := make(map[payment.Status]int64)
	for _, p := range payments {
		counts[p.Status]++
	}

	points := make([]StatusPoint, 0, len(counts))
	for _, status := range payment.AllStatuses {
		if n := counts[status]; n > 0 {
			points = append(points, StatusPoint{
				Status: string(status),
				Label:  status.Label(),
				Count:  n,
				Color:  status.Color(),
			})
		}
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Count > points[j].Count
	})
	return points
}

func byMethod(payments []payment.Payment) []MethodPoint {
	index := make(map[string]int)
	points := make([]MethodPoint, 0)
	for _, p := range payments {
		if p.Status != payment.StatusCompleted || p.PaymentMethod == "" {
			continue
		}
		i, ok := index[p.PaymentMethod]
		if !ok {
			i = len(points)
			index[p.PaymentMethod] = i
			points = append(points, MethodPoint{
				Method: p.PaymentMethod,
				Label:  payment.PayMethodLabel(p.PaymentMethod),
			})
		}
		points[i].Count++
		points[i].Revenue += p.Amount
	}

	sort.SliceStable(points, func(i, j int) bool {
		if points[i].Revenue != points[j].Revenue {
			return points[i].Revenue > points[j].Revenue
		}
		return points[i].Method < points[j].Method
	})
	return points
}

func card(current, previous int64, format func(int64) string) Card {
	change, trend := CalculateChange(current, previous)
	return Card{
		Value:     current,
		Formatted: format(current),
		Change:    change,
		Trend:     trend,
	}
}

func invertTrend(trend string) string {
	switch trend {
	case TrendUp:
		return TrendDown
	case TrendDown:
		return TrendUp
	}
	return trend
}

func normalizeRange(rangeKey string) string {
	for _, r := range ValidRanges {
		if r == rangeKey {
			return r
		}
	}
	return RangeMonth
}

// startOf 日期在配置时区的 0 点
func (s *Service) startOf(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
}

// civilDate 去掉时分秒，统一用 UTC 表示日期，便于按天计算
func civilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func daysBetween(start, end time.Time) int {
	return int(civilDate(end).Sub(civilDate(start)).Hours() / 24)
}

func groupThousands(value int64) string {
	s := fmt.Sprintf("%d", value)
	negative := value < 0
	if negative {
		s = s[1:]
	}

	var out []byte
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	if negative {
		return "-" + string(out)
	}
	return string(out)
}
