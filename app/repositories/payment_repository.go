package repositories

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"easypay/app/models/payment"
	"easypay/pkg/database"
)

// PaymentFilter 列表筛选条件
type PaymentFilter struct {
	Status        payment.Status
	PaymentMethod string
	Query         string // 订单号、PG 交易号或掩码卡号
	From          *time.Time
	To            *time.Time // 不含
	IDs           []uint64
	Page          int
	PerPage       int
}

// PaymentRepository 支付记录仓库
type PaymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository 创建仓库实例，db 为 nil 时使用 database.DB
func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	if db == nil {
		db = database.DB
	}
	return &PaymentRepository{
		db: db,
	}
}

// Create 创建支付记录
func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

// Update 更新支付记录
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// Get 根据 ID 获取支付记录，不存在时返回 gorm.ErrRecordNotFound
func (r *PaymentRepository) Get(ctx context.Context, id uint64) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByOrderNo 根据订单号获取支付记录
func (r *PaymentRepository) GetByOrderNo(ctx context.Context, orderNo string) (*payment.Payment, error) {
	var p payment.Payment
	err := r.db.WithContext(ctx).Where("order_no = ?", orderNo).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// WithLock 在事务中以 SELECT ... FOR UPDATE 锁定记录后执行 fn
//
// fn 返回错误时事务回滚。fn 内只能通过传入的 tx 仓库读写，
// 同一条记录的其它 WithLock 调用会阻塞到本事务结束。
func (r *PaymentRepository) WithLock(ctx context.Context, id uint64, fn func(tx *PaymentRepository, p *payment.Payment) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var p payment.Payment
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error; err != nil {
			return err
		}
		return fn(&PaymentRepository{db: tx}, &p)
	})
}

// List 分页列表，按创建时间倒序
func (r *PaymentRepository) List(ctx context.Context, f PaymentFilter) ([]payment.Payment, int64, error) {
	var (
		payments []payment.Payment
		total    int64
	)

	query := r.filtered(ctx, f)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, perPage := f.Page, f.PerPage
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	err := query.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&payments).Error
	return payments, total, err
}

// FindAll 不分页，导出使用
func (r *PaymentRepository) FindAll(ctx context.Context, f PaymentFilter) ([]payment.Payment, error) {
	var payments []payment.Payment
	err := r.filtered(ctx, f).Order("created_at DESC").Order("id DESC").Find(&payments).Error
	return payments, err
}

// FindInPeriod 统计口径：已支付的按 paid_at，未支付的按 created_at，区间 [from, to)
func (r *PaymentRepository) FindInPeriod(ctx context.Context, from, to time.Time) ([]payment.Payment, error) {
	var payments []payment.Payment
	err := r.db.WithContext(ctx).
		Select("id", "amount", "status", "payment_method", "created_at", "paid_at").
		Where("(paid_at >= ? AND paid_at < ?) OR (paid_at IS NULL AND created_at >= ? AND created_at < ?)", from, to, from, to).
		Find(&payments).Error
	return payments, err
}

// FindCompletedPaidBetween 区间 [from, to) 内完成支付的记录
func (r *PaymentRepository) FindCompletedPaidBetween(ctx context.Context, from, to time.Time) ([]payment.Payment, error) {
	var payments []payment.Payment
	err := r.db.WithContext(ctx).
		Select("id", "amount", "status", "paid_at").
		Where("status = ? AND paid_at >= ? AND paid_at < ?", payment.StatusCompleted, from, to).
		Find(&payments).Error
	return payments, err
}

// CountByStatus 各状态记录数
func (r *PaymentRepository) CountByStatus(ctx context.Context) (map[payment.Status]int64, error) {
	var rows []struct {
		Status payment.Status
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&payment.Payment{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[payment.Status]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *PaymentRepository) filtered(ctx context.Context, f PaymentFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&payment.Payment{})

	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.PaymentMethod != "" {
		query = query.Where("payment_method = ?", f.PaymentMethod)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		query = query.Where("order_no LIKE ? OR transaction_id LIKE ? OR card_number_masked LIKE ?", like, like, like)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at < ?", *f.To)
	}
	if len(f.IDs) > 0 {
		query = query.Where("id IN ?", f.IDs)
	}
	return query
}
