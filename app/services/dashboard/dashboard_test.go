package dashboard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"easypay/app/models/payment"
	"easypay/app/repositories"
)

var today = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseDateRange(t *testing.T) {
	cases := []struct {
		name       string
		rangeKey   string
		start, end string
		wantStart  string
		wantEnd    string
	}{
		{"today", RangeToday, "", "", "2024-03-15", "2024-03-15"},
		{"7d", Range7d, "", "", "2024-03-09", "2024-03-15"},
		{"month", RangeMonth, "", "", "2024-03-01", "2024-03-15"},
		{"30d", Range30d, "", "", "2024-02-15", "2024-03-15"},
		{"90d", Range90d, "", "", "2023-12-17", "2024-03-15"},
		{"custom", RangeCustom, "2024-02-01", "2024-02-10", "2024-02-01", "2024-02-10"},
		{"custom reversed", RangeCustom, "2024-03-10", "2024-03-01", "2024-03-01", "2024-03-10"},
		{"custom end in future", RangeCustom, "2024-03-01", "2024-04-30", "2024-03-01", "2024-03-15"},
		{"custom longer than a year", RangeCustom, "2022-01-01", "2024-03-01", "2023-03-02", "2024-03-01"},
		{"custom invalid", RangeCustom, "abc", "2024-03-01", "2024-03-01", "2024-03-15"},
		{"custom missing end", RangeCustom, "2024-03-01", "", "2024-03-01", "2024-03-15"},
		{"unknown", "yearly", "", "", "2024-03-01", "2024-03-15"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, end := ParseDateRange(tc.rangeKey, tc.start, tc.end, today)
			assert.Equal(t, tc.wantStart, start.Format(dateLayout))
			assert.Equal(t, tc.wantEnd, end.Format(dateLayout))
		})
	}
}

func TestPreviousPeriod(t *testing.T) {
	start, end := PreviousPeriod(day("2024-03-09"), day("2024-03-15"))
	assert.Equal(t, "2024-03-02", start.Format(dateLayout))
	assert.Equal(t, "2024-03-08", end.Format(dateLayout))

	start, end = PreviousPeriod(day("2024-03-15"), day("2024-03-15"))
	assert.Equal(t, "2024-03-14", start.Format(dateLayout))
	assert.Equal(t, "2024-03-14", end.Format(dateLayout))
}

func TestCalculateChange(t *testing.T) {
	change, trend := CalculateChange(0, 0)
	assert.Nil(t, change)
	assert.Equal(t, TrendNeutral, trend)

	change, trend = CalculateChange(5, 0)
	assert.Nil(t, change)
	assert.Equal(t, TrendUp, trend)

	cases := []struct {
		current, previous int64
		want              float64
		trend             string
	}{
		{150, 100, 50, TrendUp},
		{50, 100, -50, TrendDown},
		{100, 100, 0, TrendNeutral},
		{1, 3, -66.7, TrendDown},
		{35000, 25000, 40, TrendUp},
	}
	for _, tc := range cases {
		change, trend := CalculateChange(tc.current, tc.previous)
		require.NotNil(t, change)
		assert.InDelta(t, tc.want, *change, 0.0001)
		assert.Equal(t, tc.trend, trend)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "₩0", FormatCurrency(0))
	assert.Equal(t, "₩999", FormatCurrency(999))
	assert.Equal(t, "₩1,234,567", FormatCurrency(1234567))
	assert.Equal(t, "1,000건", FormatCount(1000))
	assert.Equal(t, "3건", FormatCount(3))
	assert.Equal(t, "-1,000", groupThousands(-1000))
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&payment.Payment{}))

	s := NewService(repositories.NewPaymentRepository(db))
	s.loc = time.UTC
	s.now = func() time.Time { return today }
	return s, db
}

func seed(t *testing.T, db *gorm.DB, amount int64, status payment.Status, method string, created string, paid string) {
	t.Helper()
	p := &payment.Payment{
		Amount:        amount,
		Status:        status,
		PaymentMethod: method,
	}
	createdAt, err := time.Parse("2006-01-02 15:04", created)
	require.NoError(t, err)
	p.CreatedAt = createdAt
	if paid != "" {
		paidAt, err := time.Parse("2006-01-02 15:04", paid)
		require.NoError(t, err)
		p.PaidAt = &paidAt
	}
	require.NoError(t, db.Create(p).Error)
}

func TestStatistics(t *testing.T) {
	s, db := newTestService(t)

	// 本期 2024-03-09 ~ 2024-03-15
	seed(t, db, 10000, payment.StatusCompleted, "11", "2024-03-15 09:55", "2024-03-15 10:00")
	seed(t, db, 20000, payment.StatusCompleted, "21", "2024-03-10 08:59", "2024-03-10 09:00")
	seed(t, db, 5000, payment.StatusCompleted, "11", "2024-03-10 22:59", "2024-03-10 23:00")
	seed(t, db, 7000, payment.StatusCancelled, "11", "2024-03-12 10:00", "2024-03-12 10:01")
	seed(t, db, 3000, payment.StatusPending, "", "2024-03-14 10:00", "")
	seed(t, db, 1000, payment.StatusFailed, "", "2024-03-13 10:00", "")
	// 上期 2024-03-02 ~ 2024-03-08，支付时间决定归属
	seed(t, db, 25000, payment.StatusCompleted, "11", "2024-03-01 23:50", "2024-03-05 00:10")
	seed(t, db, 1000, payment.StatusRefunded, "11", "2024-03-04 10:00", "2024-03-04 10:01")
	// 两个区间之外
	seed(t, db, 99999, payment.StatusCompleted, "11", "2024-03-01 10:00", "2024-03-01 10:01")
	seed(t, db, 4000, payment.StatusPending, "", "2024-03-16 10:00", "")

	stats, err := s.Statistics(context.Background(), Query{Range: Range7d})
	require.NoError(t, err)

	sum := stats.Summary
	assert.EqualValues(t, 35000, sum.TotalRevenue.Value)
	assert.Equal(t, "₩35,000", sum.TotalRevenue.Formatted)
	require.NotNil(t, sum.TotalRevenue.Change)
	assert.InDelta(t, 40.0, *sum.TotalRevenue.Change, 0.0001)
	assert.Equal(t, TrendUp, sum.TotalRevenue.Trend)

	assert.EqualValues(t, 3, sum.TransactionCount.Value)
	assert.Equal(t, "3건", sum.TransactionCount.Formatted)
	require.NotNil(t, sum.TransactionCount.Change)
	assert.InDelta(t, 200.0, *sum.TransactionCount.Change, 0.0001)

	assert.EqualValues(t, 11666, sum.AverageValue.Value)
	assert.Equal(t, "₩11,666", sum.AverageValue.Formatted)
	require.NotNil(t, sum.AverageValue.Change)
	assert.InDelta(t, -53.3, *sum.AverageValue.Change, 0.0001)
	assert.Equal(t, TrendDown, sum.AverageValue.Trend)

	assert.EqualValues(t, 1, sum.RefundCount.Value)
	require.NotNil(t, sum.RefundCount.Change)
	assert.InDelta(t, 0.0, *sum.RefundCount.Change, 0.0001)
	assert.Equal(t, TrendNeutral, sum.RefundCount.Trend)

	require.Len(t, stats.Charts.DailyTrend, 7)
	assert.Equal(t, DailyPoint{Date: "2024-03-09"}, stats.Charts.DailyTrend[0])
	assert.Equal(t, DailyPoint{Date: "2024-03-10", Revenue: 25000, Count: 2}, stats.Charts.DailyTrend[1])
	assert.Equal(t, DailyPoint{Date: "2024-03-12", Revenue: 0, Count: 0}, stats.Charts.DailyTrend[3])
	assert.Equal(t, DailyPoint{Date: "2024-03-15", Revenue: 10000, Count: 1}, stats.Charts.DailyTrend[6])

	require.Len(t, stats.Charts.ByStatus, 4)
	assert.Equal(t, StatusPoint{Status: "completed", Label: "결제완료", Count: 3, Color: "#4CAF50"}, stats.Charts.ByStatus[0])
	assert.Equal(t, "pending", stats.Charts.ByStatus[1].Status)
	assert.Equal(t, "failed", stats.Charts.ByStatus[2].Status)
	assert.Equal(t, "cancelled", stats.Charts.ByStatus[3].Status)

	assert.Equal(t, []MethodPoint{
		{Method: "21", Label: "계좌이체", Count: 1, Revenue: 20000},
		{Method: "11", Label: "신용카드", Count: 2, Revenue: 15000},
	}, stats.Charts.ByMethod)

	require.Len(t, stats.Comparison, 4)
	assert.Equal(t, ComparisonRow{Label: "매출", Current: 35000, Previous: 25000}, stats.Comparison[0])
	assert.Equal(t, ComparisonRow{Label: "환불/취소", Current: 1, Previous: 1}, stats.Comparison[3])

	assert.Equal(t, Meta{
		DateRange:     "7d",
		StartDate:     "2024-03-09",
		EndDate:       "2024-03-15",
		PrevStartDate: "2024-03-02",
		PrevEndDate:   "2024-03-08",
	}, stats.Meta)
}

func TestStatistics_RefundTrendIsInverted(t *testing.T) {
	s, db := newTestService(t)
	seed(t, db, 1000, payment.StatusCancelled, "11", "2024-03-15 10:00", "2024-03-15 10:00")
	seed(t, db, 1000, payment.StatusRefunded, "11", "2024-03-15 11:00", "2024-03-15 11:00")
	seed(t, db, 1000, payment.StatusCancelled, "11", "2024-03-14 10:00", "2024-03-14 10:00")

	stats, err := s.Statistics(context.Background(), Query{Range: RangeToday})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Summary.RefundCount.Value)
	assert.Equal(t, TrendDown, stats.Summary.RefundCount.Trend)
	assert.Equal(t, TrendNeutral, stats.Summary.TotalRevenue.Trend)
	assert.Empty(t, stats.Charts.ByMethod)
}

func TestCalendar(t *testing.T) {
	s, db := newTestService(t)
	seed(t, db, 5000, payment.StatusCompleted, "11", "2024-02-29 10:00", "2024-02-29 10:05")
	seed(t, db, 7000, payment.StatusCompleted, "11", "2024-02-29 11:00", "2024-02-29 11:05")
	seed(t, db, 3000, payment.StatusCancelled, "11", "2024-02-10 11:00", "2024-02-10 11:05")
	seed(t, db, 9000, payment.StatusCompleted, "11", "2024-03-01 00:00", "2024-03-01 00:00")

	days, err := s.Calendar(context.Background(), 2024, time.February)
	require.NoError(t, err)
	require.Len(t, days, 29)
	assert.Equal(t, CalendarDay{Date: "2024-02-01", Day: 1}, days[0])
	assert.Equal(t, CalendarDay{Date: "2024-02-10", Day: 10}, days[9])
	assert.Equal(t, CalendarDay{Date: "2024-02-29", Day: 29, Revenue: 12000, Count: 2}, days[28])

	_, err = s.Calendar(context.Background(), 2024, time.Month(13))
	assert.Error(t, err)
}

func TestCalendarSourceLoadsStatus(t *testing.T) {
	s, db := newTestService(t)
	seed(t, db, 4000, payment.StatusCompleted, "11", "2024-03-10 09:00", "2024-03-10 09:01")

	rows, err := s.source.FindCompletedPaidBetween(context.Background(), day("2024-03-10"), day("2024-03-11"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, payment.StatusCompleted, rows[0].Status)

	days, err := s.Calendar(context.Background(), 2024, time.March)
	require.NoError(t, err)
	assert.Equal(t, CalendarDay{Date: "2024-03-10", Day: 10, Revenue: 4000, Count: 1}, days[9])
}
