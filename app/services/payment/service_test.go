package payment

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	model "easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/pkg/easypay"
	"easypay/pkg/easypay/easypaytest"
	"easypay/pkg/events"
	"easypay/pkg/logger"
)

// recorder 同步收集发布的事件
type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(ctx context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *recorder) last() events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

type fixture struct {
	svc    *Service
	srv    *easypaytest.Server
	events *recorder
	db     *gorm.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Payment{}))

	srv := easypaytest.NewServer()
	t.Cleanup(srv.Close)

	client, err := easypay.NewClient(easypay.Config{
		MallID:    easypay.DefaultMallID,
		APIURL:    easypay.DefaultAPIURL,
		Timeout:   2 * time.Second,
		Transport: srv.Transport(),
	})
	require.NoError(t, err)

	rec := &recorder{}
	svc := NewService(repositories.NewPaymentRepository(db), client, rec)
	svc.now = func() time.Time { return time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC) }

	return &fixture{svc: svc, srv: srv, events: rec, db: db}
}

func (f *fixture) create(t *testing.T, amount int64) *model.Payment {
	t.Helper()
	p, err := f.svc.Create(context.Background(), CreateInput{
		Amount:    amount,
		GoodsName: "프리미엄 이용권",
		ClientIP:  "203.0.113.7",
		UserAgent: "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	require.NoError(t, err)
	return p
}

// completed 创建记录并走完注册和审批
func (f *fixture) completed(t *testing.T, amount int64) *model.Payment {
	t.Helper()
	ctx := context.Background()
	p := f.create(t, amount)
	_, err := f.svc.Register(ctx, p.ID, RegisterInput{ReturnURL: "https://shop.example/callback"})
	require.NoError(t, err)
	p, err = f.svc.HandleCallback(ctx, Callback{OrderNo: p.OrderNo, AuthorizationID: "AUTH-" + p.OrderNo, ResCd: "0000"})
	require.NoError(t, err)
	require.Equal(t, model.StatusCompleted, p.Status)
	return p
}

func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	logger.SetLogger(zap.New(core))
	t.Cleanup(func() { logger.SetLogger(nil) })
	return logs
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	p := f.create(t, 10000)
	assert.NotZero(t, p.ID)
	assert.Len(t, p.OrderNo, 12)
	assert.Equal(t, model.StatusPending, p.Status)
	assert.EqualValues(t, 9091, p.SupplyAmount)
	assert.EqualValues(t, 909, p.VatAmount)

	_, err := f.svc.Create(context.Background(), CreateInput{Amount: 0})
	assert.ErrorIs(t, err, model.ErrInvalidAmount)
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 10000)

	url, err := f.svc.Register(ctx, p.ID, RegisterInput{ReturnURL: "https://shop.example/callback"})
	require.NoError(t, err)
	assert.Contains(t, url, p.OrderNo)

	req, ok := f.srv.Last("webpay")
	require.True(t, ok)
	assert.Equal(t, "MOBILE", req.Body["deviceTypeCode"])
	assert.Equal(t, "https://shop.example/callback", req.Body["returnUrl"])

	assert.Equal(t, []events.Kind{events.KindRegistered}, f.events.kinds())
	assert.Equal(t, url, f.events.last().RedirectURL)

	_, err = f.svc.Register(ctx, 9999, RegisterInput{})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestRegister_RejectedMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.srv.Handle("webpay", func(req easypaytest.Request) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"resCd": "R201", "resMsg": "가맹점 정보 오류"}
	})
	p := f.create(t, 10000)

	_, err := f.svc.Register(ctx, p.ID, RegisterInput{})
	var rejected *easypay.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "R201", rejected.Code)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, stored.Status)

	e := f.events.last()
	assert.Equal(t, events.KindFailed, e.Kind)
	assert.Equal(t, events.StageRegistration, e.Stage)
	assert.Equal(t, "R201", e.ErrorCode)

	_, err = f.svc.Register(ctx, p.ID, RegisterInput{})
	assert.ErrorIs(t, err, ErrNotPending)
}

func TestHandleCallback_ApprovesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.completed(t, 10000)
	assert.NotEmpty(t, p.TransactionID)
	assert.Equal(t, "AUTH-"+p.OrderNo, p.AuthorizationID)
	assert.Equal(t, "신한카드", p.CardIssuerName)
	assert.Equal(t, "5433-****-****-7890", p.CardNumberMasked)
	assert.EqualValues(t, 10000, p.ApprovedAmount)
	assert.False(t, p.AmountMismatch)
	require.NotNil(t, p.PaidAt)

	again, err := f.svc.HandleCallback(ctx, Callback{OrderNo: p.OrderNo, AuthorizationID: "AUTH-2", ResCd: "0000"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, again.Status)
	assert.Equal(t, p.TransactionID, again.TransactionID)
	assert.Equal(t, 1, f.srv.Count("approval"))

	assert.Equal(t, []events.Kind{events.KindRegistered, events.KindApproved}, f.events.kinds())
	approved := f.events.last()
	require.NotNil(t, approved.Approval)
	assert.Equal(t, p.TransactionID, approved.Approval.TransactionID)
	assert.Equal(t, "5433-****-****-7890", approved.Approval.MaskedCardNumber)
}

func TestHandleCallback_AuthenticationFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 10000)

	failed, err := f.svc.HandleCallback(ctx, Callback{OrderNo: p.OrderNo, ResCd: "W002", ResMsg: "사용자 취소"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	require.NotNil(t, failed)
	assert.Equal(t, model.StatusFailed, failed.Status)
	assert.Equal(t, 0, f.srv.Count("approval"))

	e := f.events.last()
	assert.Equal(t, events.StageAuthentication, e.Stage)
	assert.Equal(t, "W002", e.ErrorCode)

	p2 := f.create(t, 5000)
	_, err = f.svc.HandleCallback(ctx, Callback{OrderNo: p2.OrderNo, ResCd: "0000"})
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, "NO_AUTH_ID", f.events.last().ErrorCode)

	_, err = f.svc.HandleCallback(ctx, Callback{OrderNo: "000000000000", ResCd: "0000", AuthorizationID: "A"})
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestApprove_ConcurrentCallsHitGatewayOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 10000)
	f.srv.SetAmount(p.OrderNo, 10000)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.Approve(ctx, p.ID, "AUTH-1")
			if err == nil && got.Status != model.StatusCompleted {
				err = errors.New("unexpected status " + string(got.Status))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, f.srv.Count("approval"))
	assert.Equal(t, []events.Kind{events.KindApproved}, f.events.kinds())
}

func TestApprove_AmountMismatchStillCompletes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 10000)
	f.srv.SetAmount(p.OrderNo, 9000)
	logs := observeLogs(t)

	got, err := f.svc.Approve(ctx, p.ID, "AUTH-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.True(t, got.AmountMismatch)
	assert.EqualValues(t, 9000, got.ApprovedAmount)

	entries := logs.FilterMessage("Payment").FilterField(zap.String("action", "amount_mismatch")).All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.EqualValues(t, 10000, fields["expected_amount"])
	assert.EqualValues(t, 9000, fields["approved_amount"])
}

func TestApprove_GatewayErrorMarksFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 10000)
	f.srv.Handle("approval", func(req easypaytest.Request) (int, interface{}) {
		return http.StatusInternalServerError, map[string]interface{}{}
	})

	got, err := f.svc.Approve(ctx, p.ID, "AUTH-1")
	assert.ErrorIs(t, err, easypay.ErrGatewayUnavailable)
	require.NotNil(t, got)
	assert.Equal(t, model.StatusFailed, got.Status)

	e := f.events.last()
	assert.Equal(t, events.KindFailed, e.Kind)
	assert.Equal(t, events.StageApproval, e.Stage)
	assert.Equal(t, "HTTP_500", e.ErrorCode)

	_, err = f.svc.Approve(ctx, 4242, "AUTH-1")
	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, 10000)

	got, err := f.svc.Cancel(ctx, p.ID, CancelInput{Type: model.CancelPartial, Amount: 3000})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	assert.EqualValues(t, 3000, got.CancelledAmount)
	assert.EqualValues(t, 7000, got.RemainingAmount())

	_, err = f.svc.Cancel(ctx, p.ID, CancelInput{Type: model.CancelPartial, Amount: 8000})
	assert.ErrorIs(t, err, easypay.ErrInvalidCancelAmount)

	got, err = f.svc.Cancel(ctx, p.ID, CancelInput{Type: model.CancelFull})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.EqualValues(t, 10000, got.CancelledAmount)
	assert.NotEmpty(t, got.CancelData)

	e := f.events.last()
	assert.Equal(t, events.KindCancelled, e.Kind)
	assert.Equal(t, model.CancelFull, e.CancelType)
	assert.EqualValues(t, 7000, e.CancelAmount)

	_, err = f.svc.Cancel(ctx, p.ID, CancelInput{Type: model.CancelFull})
	assert.ErrorIs(t, err, ErrNotCancelable)
	assert.Equal(t, 2, f.srv.Count("cancel"))
}

func TestCancel_PendingIsNotCancelable(t *testing.T) {
	f := newFixture(t)
	p := f.create(t, 10000)

	_, err := f.svc.Cancel(context.Background(), p.ID, CancelInput{Type: model.CancelFull})
	assert.ErrorIs(t, err, ErrNotCancelable)
	assert.Empty(t, f.srv.Requests())
}

func TestSync(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, 10000)

	changed, err := f.svc.Sync(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	f.srv.Handle("status", func(req easypaytest.Request) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{
			"resCd":       "0000",
			"pgTid":       req.Body["pgTid"],
			"amount":      10000,
			"payStatusNm": "취소",
			"cancelYn":    "Y",
		}
	})

	changed, err = f.svc.Sync(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, stored.Status)
	assert.EqualValues(t, 10000, stored.CancelledAmount)

	changed, err = f.svc.Sync(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 2, f.srv.Count("status"))
}

func TestSync_Refunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.completed(t, 20000)
	f.srv.Handle("status", func(req easypaytest.Request) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"resCd": "0000", "payStatusNm": "환불완료"}
	})

	changed, err := f.svc.Sync(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, changed)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRefunded, stored.Status)
}

func TestBulkActions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	done := f.completed(t, 10000)
	pending := f.create(t, 5000)

	result := f.svc.CancelMany(ctx, []uint64{done.ID, pending.ID, 777}, "일괄 취소")
	assert.Equal(t, []uint64{done.ID}, result.Succeeded)
	assert.Equal(t, []uint64{pending.ID}, result.Skipped)
	require.Contains(t, result.Failed, uint64(777))
	assert.Equal(t, ErrPaymentNotFound.Error(), result.Failed[777])

	req, ok := f.srv.Last("cancel")
	require.True(t, ok)
	assert.Equal(t, "일괄 취소", req.Body["cancelReason"])

	synced := f.svc.SyncMany(ctx, []uint64{done.ID, pending.ID})
	assert.Empty(t, synced.Succeeded)
	assert.Equal(t, []uint64{done.ID, pending.ID}, synced.Skipped)
	assert.Empty(t, synced.Failed)
}

func TestFail_OnlyFromPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.create(t, 7000)

	require.NoError(t, f.svc.fail(ctx, p.ID, events.StageRegistration, "TIMEOUT", "no redirect"))
	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, []events.Kind{events.KindFailed}, f.events.kinds())

	// 已是终态，不再发布事件
	require.NoError(t, f.svc.fail(ctx, p.ID, events.StageRegistration, "TIMEOUT", "again"))
	assert.Len(t, f.events.kinds(), 1)

	assert.ErrorIs(t, f.svc.fail(ctx, 99999, events.StageApproval, "X", "missing"), ErrPaymentNotFound)
}
