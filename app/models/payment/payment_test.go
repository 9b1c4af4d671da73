package payment

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMaskCardNumber(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"1234567890123456", "1234-****-****-3456"},
		{"1234-5678-9012-3456", "1234-****-****-3456"},
		{"1234-****-****-3456", "1234-****-****-3456"},
		{"5433-33**-****-7890", "5433-****-****-7890"},
		{"378282246310005", "3782-****-***0-005"},
		{"12345678", "1234-5678"},
		{"1234567", "1234567"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MaskCardNumber(tc.in), tc.in)
	}
}

func TestMaskCardNumber_NeverExposesMiddleDigits(t *testing.T) {
	for n := 8; n <= 19; n++ {
		card := strings.Repeat("7", n)
		masked := MaskCardNumber(card)
		assert.Equal(t, 8, strings.Count(masked, "7"), masked)
		assert.Equal(t, n-8, strings.Count(masked, "*"), masked)
		// 幂等
		assert.Equal(t, masked, MaskCardNumber(masked))
	}
}

func TestCalculateTax(t *testing.T) {
	cases := []struct {
		amount, supply, vat int64
	}{
		{10000, 9091, 909},
		{29900, 27182, 2718},
		{1100, 1000, 100},
		{1, 1, 0},
	}
	for _, tc := range cases {
		p := &Payment{Amount: tc.amount}
		p.CalculateTax()
		assert.Equal(t, tc.supply, p.SupplyAmount, "supply of %d", tc.amount)
		assert.Equal(t, tc.vat, p.VatAmount, "vat of %d", tc.amount)
		assert.Equal(t, tc.amount, p.SupplyAmount+p.VatAmount)
		assert.True(t, p.HasTaxInfo())
	}

	p := &Payment{Amount: 5000, TaxFree: true}
	p.CalculateTax()
	assert.Zero(t, p.SupplyAmount)
	assert.Zero(t, p.VatAmount)
	assert.EqualValues(t, 5000, p.TaxFreeAmount)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusCompleted))
	assert.True(t, CanTransition(StatusPending, StatusFailed))
	assert.True(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.True(t, CanTransition(StatusCompleted, StatusRefunded))

	assert.False(t, CanTransition(StatusCompleted, StatusPending))
	assert.False(t, CanTransition(StatusFailed, StatusCompleted))
	assert.False(t, CanTransition(StatusCancelled, StatusCompleted))
	assert.False(t, CanTransition(StatusPending, StatusCancelled))
	for _, s := range AllStatuses {
		assert.False(t, CanTransition(s, StatusPending), s)
	}
}

func TestMarkApproved(t *testing.T) {
	now := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	p := &Payment{Amount: 10000, Status: StatusPending}

	ok := p.MarkApproved(ApprovalData{
		TransactionID:    "T1",
		ApprovedAmount:   10000,
		PaymentMethod:    "11",
		CardIssuer:       "KB국민",
		MaskedCardNumber: "9410123412341234",
	}, "AUTH", now)
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, p.Status)
	assert.Equal(t, "T1", p.TransactionID)
	assert.Equal(t, "AUTH", p.AuthorizationID)
	assert.Equal(t, "9410-****-****-1234", p.CardNumberMasked)
	require.NotNil(t, p.PaidAt)
	assert.Equal(t, now, *p.PaidAt)
	assert.False(t, p.AmountMismatch)

	// 第二次调用不改变任何字段
	before := *p
	assert.False(t, p.MarkApproved(ApprovalData{TransactionID: "T2", ApprovedAmount: 1}, "OTHER", now.Add(time.Hour)))
	assert.Equal(t, before, *p)
}

func TestMarkApproved_AmountMismatchStillCompletes(t *testing.T) {
	p := &Payment{Amount: 10000, Status: StatusPending}
	require.True(t, p.MarkApproved(ApprovalData{TransactionID: "T1", ApprovedAmount: 9000}, "A", time.Now()))
	assert.Equal(t, StatusCompleted, p.Status)
	assert.True(t, p.AmountMismatch)
	assert.EqualValues(t, 9000, p.RemainingAmount())
}

func TestMarkCancelled(t *testing.T) {
	newCompleted := func() *Payment {
		p := &Payment{Amount: 10000, Status: StatusPending}
		p.MarkApproved(ApprovalData{TransactionID: "T1", ApprovedAmount: 10000}, "A", time.Now())
		return p
	}

	t.Run("partial keeps completed", func(t *testing.T) {
		p := newCompleted()
		require.True(t, p.MarkCancelled(CancelData{Type: CancelPartial, Amount: 3000, TransactionID: "T1"}))
		assert.Equal(t, StatusCompleted, p.Status)
		assert.EqualValues(t, 3000, p.CancelledAmount)
		assert.EqualValues(t, 7000, p.RemainingAmount())
		assert.True(t, p.CanCancel())

		var stored CancelData
		require.NoError(t, json.Unmarshal(p.CancelData, &stored))
		assert.Equal(t, CancelPartial, stored.Type)
	})

	t.Run("partial up to full amount", func(t *testing.T) {
		p := newCompleted()
		require.True(t, p.MarkCancelled(CancelData{Type: CancelPartial, Amount: 10000}))
		assert.Equal(t, StatusCompleted, p.Status)
		assert.Zero(t, p.RemainingAmount())
		assert.False(t, p.CanCancel())
	})

	t.Run("full", func(t *testing.T) {
		p := newCompleted()
		require.True(t, p.MarkCancelled(CancelData{Type: CancelFull, Amount: 10000}))
		assert.Equal(t, StatusCancelled, p.Status)
		assert.EqualValues(t, 10000, p.CancelledAmount)
		assert.False(t, p.MarkCancelled(CancelData{Type: CancelFull}))
		assert.False(t, p.MarkRefunded())
	})

	t.Run("pending cannot be cancelled", func(t *testing.T) {
		p := &Payment{Amount: 10000, Status: StatusPending}
		assert.False(t, p.MarkCancelled(CancelData{Type: CancelFull}))
		assert.Equal(t, StatusPending, p.Status)
	})
}

func TestMarkFailedAndRefunded(t *testing.T) {
	p := &Payment{Amount: 10000, Status: StatusPending}
	require.True(t, p.MarkFailed())
	assert.False(t, p.MarkFailed())
	assert.False(t, p.MarkApproved(ApprovalData{TransactionID: "T"}, "A", time.Now()))

	p = &Payment{Amount: 10000, Status: StatusCompleted, TransactionID: "T"}
	require.True(t, p.MarkRefunded())
	assert.Equal(t, StatusRefunded, p.Status)
	assert.True(t, p.IsCancelled())
}

func TestLabels(t *testing.T) {
	assert.Equal(t, "신용카드", PayMethodLabel("11"))
	assert.Equal(t, "간편결제", PayMethodLabel("50"))
	assert.Equal(t, "기타(99)", PayMethodLabel("99"))
	assert.Equal(t, "", PayMethodLabel(""))
	assert.Equal(t, "결제완료", StatusCompleted.Label())
	assert.Equal(t, "#4CAF50", StatusCompleted.Color())
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&Payment{}))
	return db
}

func TestHooks(t *testing.T) {
	db := newTestDB(t)

	p := &Payment{Amount: 29900, GoodsName: "이용권", ClientUserAgent: strings.Repeat("a", 600)}
	require.NoError(t, db.Create(p).Error)
	assert.Len(t, p.OrderNo, 12)
	assert.Equal(t, StatusPending, p.Status)
	assert.EqualValues(t, 27182, p.SupplyAmount)
	assert.EqualValues(t, 2718, p.VatAmount)
	assert.Len(t, p.ClientUserAgent, 500)
	assert.False(t, p.CreatedAt.IsZero())

	assert.ErrorIs(t, db.Create(&Payment{Amount: 0}).Error, ErrInvalidAmount)

	// 多字节 User-Agent 按字符截断，存库后仍是合法 UTF-8
	korean := &Payment{Amount: 1000, ClientUserAgent: "Mozilla/5.0 " + strings.Repeat("한", 600)}
	require.NoError(t, db.Create(korean).Error)
	assert.True(t, utf8.ValidString(korean.ClientUserAgent))
	assert.Equal(t, MaxUserAgentLength, utf8.RuneCountInString(korean.ClientUserAgent))
	var stored Payment
	require.NoError(t, db.First(&stored, korean.ID).Error)
	assert.Equal(t, korean.ClientUserAgent, stored.ClientUserAgent)

	err := db.Model(p).Update("amount", 1).Error
	assert.ErrorIs(t, err, ErrImmutableAmount)

	// 未审批的多条记录 transaction_id 都为空，不触发唯一约束
	require.NoError(t, db.Create(&Payment{Amount: 1000}).Error)

	p2 := &Payment{Amount: 1000}
	require.NoError(t, db.Create(p2).Error)
	require.NoError(t, db.Model(p2).Update("transaction_id", "T-UNIQUE").Error)
	p3 := &Payment{Amount: 1000}
	require.NoError(t, db.Create(p3).Error)
	assert.Error(t, db.Model(p3).Update("transaction_id", "T-UNIQUE").Error)
}

func TestTruncateUserAgent(t *testing.T) {
	assert.Equal(t, "abc", TruncateUserAgent("abc"))
	long := strings.Repeat("가", MaxUserAgentLength+10)
	assert.Equal(t, strings.Repeat("가", MaxUserAgentLength), TruncateUserAgent(long))
}
