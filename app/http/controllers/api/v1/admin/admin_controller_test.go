package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	model "easypay/app/models/payment"
	"easypay/app/repositories"
	"easypay/app/services/dashboard"
	paymentsvc "easypay/app/services/payment"
	"easypay/pkg/easypay"
	"easypay/pkg/easypay/easypaytest"
	"easypay/pkg/events"
	"easypay/pkg/queue"
)

type testEnv struct {
	router  *gin.Engine
	srv     *easypaytest.Server
	service *paymentsvc.Service
}

// fakeQueue 固定长度的队列
type fakeQueue struct {
	length  int64
	err     error
	metrics *queue.QueueMetrics
}

func (q *fakeQueue) Len(ctx context.Context) (int64, error) { return q.length, q.err }
func (q *fakeQueue) Metrics() *queue.QueueMetrics { return q.metrics }

func setup(t *testing.T, monitor queue.Monitor) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger:  gormlogger.Discard,
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
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

	repo := repositories.NewPaymentRepository(db)
	service := paymentsvc.NewService(repo, client, events.NewBus())
	pc := NewPaymentsController(service, repo)
	dc := NewDashboardController(dashboard.NewService(repo), monitor)

	r := gin.New()
	r.GET("/admin/payments", pc.Index)
	r.GET("/admin/payments/export", pc.Export)
	r.POST("/admin/payments/cancel", pc.BulkCancel)
	r.POST("/admin/payments/sync", pc.BulkSync)
	r.GET("/admin/payments/:id", pc.Show)
	r.POST("/admin/payments/:id/cancel", pc.Cancel)
	r.POST("/admin/payments/:id/sync", pc.Sync)
	r.GET("/admin/dashboard", dc.Index)
	r.GET("/admin/dashboard/calendar", dc.Calendar)
	r.GET("/admin/queue/metrics", dc.QueueMetrics)

	return &testEnv{router: r, srv: srv, service: service}
}

func (e *testEnv) do(method, path, payload string) (*httptest.ResponseRecorder, map[string]interface{}) {
	req := httptest.NewRequest(method, path, strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func (e *testEnv) pending(t *testing.T, amount int64) *model.Payment {
	t.Helper()
	p, err := e.service.Create(context.Background(), paymentsvc.CreateInput{Amount: amount, GoodsName: "이용권", ClientIP: "203.0.113.7"})
	require.NoError(t, err)
	return p
}

func (e *testEnv) completed(t *testing.T, amount int64) *model.Payment {
	t.Helper()
	ctx := context.Background()
	p := e.pending(t, amount)
	_, err := e.service.Register(ctx, p.ID, paymentsvc.RegisterInput{ReturnURL: "https://shop.example/callback"})
	require.NoError(t, err)
	p, err = e.service.HandleCallback(ctx, paymentsvc.Callback{OrderNo: p.OrderNo, AuthorizationID: "AUTH", ResCd: "0000"})
	require.NoError(t, err)
	return p
}

func data(body map[string]interface{}) map[string]interface{} {
	d, _ := body["data"].(map[string]interface{})
	return d
}

func TestIndex(t *testing.T) {
	e := setup(t, nil)
	done := e.completed(t, 10000)
	e.pending(t, 2000)
	e.pending(t, 3000)

	w, body := e.do(http.MethodGet, "/admin/payments", "")
	require.Equal(t, http.StatusOK, w.Code)
	pager := data(body)["pager"].(map[string]interface{})
	assert.EqualValues(t, 3, pager["total"])
	assert.EqualValues(t, 1, pager["last_page"])
	assert.Equal(t, map[string]interface{}{"completed": float64(1), "pending": float64(2)}, data(body)["status_counts"])

	w, body = e.do(http.MethodGet, "/admin/payments?status=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := data(body)["payments"].([]interface{})
	require.Len(t, list, 1)
	assert.Equal(t, done.OrderNo, list[0].(map[string]interface{})["order_no"])

	w, body = e.do(http.MethodGet, "/admin/payments?q="+done.TransactionID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(body)["payments"], 1)

	w, body = e.do(http.MethodGet, "/admin/payments?per_page=2&page=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(body)["payments"], 1)
	assert.EqualValues(t, 2, data(body)["pager"].(map[string]interface{})["last_page"])

	w, body = e.do(http.MethodGet, "/admin/payments?status=bogus&from=2024-13-01", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, data(body), "status")
	assert.Contains(t, data(body), "from")
}

func TestShow(t *testing.T) {
	e := setup(t, nil)
	done := e.completed(t, 10000)

	w, body := e.do(http.MethodGet, fmt.Sprintf("/admin/payments/%d", done.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	d := data(body)
	assert.Contains(t, d["receipt_url"], done.TransactionID)
	assert.Equal(t, "신용카드", d["payment_method_label"])
	assert.EqualValues(t, 10000, d["remaining_amount"])
	assert.Equal(t, true, d["can_cancel"])
	assert.NotContains(t, d["payment"], "authorization_id")

	w, _ = e.do(http.MethodGet, "/admin/payments/999", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCancel(t *testing.T) {
	e := setup(t, nil)
	done := e.completed(t, 10000)
	pending := e.pending(t, 5000)
	path := fmt.Sprintf("/admin/payments/%d/cancel", done.ID)

	w, body := e.do(http.MethodPost, path, `{"type":"partial"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, data(body), "amount")

	w, body = e.do(http.MethodPost, path, `{"type":"partial","amount":3000,"reason":"부분 환불"}`)
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.EqualValues(t, 3000, data(body)["cancelled_amount"])
	assert.Equal(t, "completed", data(body)["status"])

	w, body = e.do(http.MethodPost, path, `{"type":"partial","amount":8000}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "INVALID_CANCEL_AMOUNT", body["error"])

	w, body = e.do(http.MethodPost, path, `{}`)
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Equal(t, "cancelled", data(body)["status"])

	w, body = e.do(http.MethodPost, path, `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "NOT_CANCELABLE", body["error"])

	w, _ = e.do(http.MethodPost, fmt.Sprintf("/admin/payments/%d/cancel", pending.ID), `{}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = e.do(http.MethodPost, path, `{"type":"refund"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, 2, e.srv.Count("cancel"))
}

func TestCancel_GatewayRejected(t *testing.T) {
	e := setup(t, nil)
	done := e.completed(t, 10000)

	e.srv.Handle("cancel", func(req easypaytest.Request) (int, interface{}) {
		return http.StatusOK, map[string]interface{}{"resCd": "C105", "resMsg": "취소 불가 거래"}
	})
	w, body := e.do(http.MethodPost, fmt.Sprintf("/admin/payments/%d/cancel", done.ID), `{}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "C105", body["error"])

	_, body = e.do(http.MethodGet, fmt.Sprintf("/admin/payments/%d", done.ID), "")
	assert.Equal(t, "completed", data(body)["payment"].(map[string]interface{})["status"])
}

func TestBulkActions(t *testing.T) {
	e := setup(t, nil)
	done := e.completed(t, 10000)
	pending := e.pending(t, 5000)

	w, _ := e.do(http.MethodPost, "/admin/payments/cancel", `{"ids":[]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := e.do(http.MethodPost, "/admin/payments/sync", fmt.Sprintf(`{"ids":[%d,%d]}`, done.ID, pending.ID))
	require.Equal(t, http.StatusOK, w.Code, body)
	assert.Len(t, data(body)["skipped"], 2)

	w, body = e.do(http.MethodPost, "/admin/payments/cancel", fmt.Sprintf(`{"ids":[%d,%d,777],"reason":"일괄 취소"}`, done.ID, pending.ID))
	require.Equal(t, http.StatusOK, w.Code, body)
	d := data(body)
	assert.Equal(t, []interface{}{float64(done.ID)}, d["succeeded"])
	assert.Equal(t, []interface{}{float64(pending.ID)}, d["skipped"])
	assert.Contains(t, d["failed"], "777")

	w, body = e.do(http.MethodPost, fmt.Sprintf("/admin/payments/%d/sync", done.ID), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, data(body)["changed"])
}

func TestExport(t *testing.T) {
	e := setup(t, nil)
	e.completed(t, 10000)
	e.pending(t, 2000)

	w, _ := e.do(http.MethodGet, "/admin/payments/export?status=completed", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `attachment; filename="payments_`)

	out := w.Body.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("\ufeff")))
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Len(t, lines, 2)
	assert.Contains(t, lines[1], "5433-****-****-7890")
	assert.NotContains(t, string(out), "AUTH")
}

func TestDashboard(t *testing.T) {
	e := setup(t, nil)
	e.completed(t, 10000)
	e.completed(t, 20000)

	w, body := e.do(http.MethodGet, "/admin/dashboard?range=forever", "")
	require.Equal(t, http.StatusOK, w.Code, body)
	d := data(body)
	assert.Equal(t, "7d", d["meta"].(map[string]interface{})["date_range"])

	revenue := d["summary"].(map[string]interface{})["total_revenue"].(map[string]interface{})
	assert.EqualValues(t, 30000, revenue["value"])
	assert.Equal(t, "₩30,000", revenue["formatted"])
	assert.Len(t, d["charts"].(map[string]interface{})["daily_trend"], 7)

	w, body = e.do(http.MethodGet, "/admin/dashboard/calendar?year=2024&month=02", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, data(body)["days"], 29)
	assert.EqualValues(t, 2, data(body)["month"])

	w, _ = e.do(http.MethodGet, "/admin/dashboard/calendar?month=13", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueueMetrics(t *testing.T) {
	e := setup(t, nil)
	_, body := e.do(http.MethodGet, "/admin/queue/metrics", "")
	assert.Equal(t, false, data(body)["enabled"])

	fq := &fakeQueue{length: 7, metrics: queue.NewQueueMetrics()}
	fq.metrics.RecordSuccess(queue.OpPush)
	e = setup(t, fq)
	_, body = e.do(http.MethodGet, "/admin/queue/metrics", "")
	assert.Equal(t, true, data(body)["enabled"])
	m := data(body)["metrics"].(map[string]interface{})
	assert.EqualValues(t, 7, m["queue_length"])
	assert.EqualValues(t, 7, m["peak_queue_length"])
	assert.EqualValues(t, 1, m["succeeded"])

	// 读取长度失败时沿用上次的值
	fq.length, fq.err = 0, errors.New("redis down")
	_, body = e.do(http.MethodGet, "/admin/queue/metrics", "")
	m = data(body)["metrics"].(map[string]interface{})
	assert.EqualValues(t, 7, m["queue_length"])
}
