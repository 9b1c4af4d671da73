// Package export 支付记录 CSV 导出
//
// 导出内容只包含掩码后的卡号，authorization_id 不会出现在任何一列。
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"easypay/app/models/payment"
	"easypay/app/repositories"
)

// bom Excel 识别 UTF-8 需要的 BOM
const bom = "\ufeff"

const timeLayout = "2006-01-02 15:04:05"

// Header CSV 表头
var Header = []string{
	"ID",
	"상태",
	"금액",
	"결제수단",
	"카드사",
	"카드번호",
	"생성일시",
	"결제일시",
	"PG거래번호",
	"클라이언트IP",
}

// Finder 导出数据来源，*repositories.PaymentRepository 实现了该接口
type Finder interface {
	FindAll(ctx context.Context, f repositories.PaymentFilter) ([]payment.Payment, error)
}

// FileName payments_2024-03-15.csv
func FileName(day time.Time) string {
	return fmt.Sprintf("payments_%s.csv", day.Format("2006-01-02"))
}

// Export 按筛选条件查询并写出 CSV，返回导出的记录数
func Export(ctx context.Context, w io.Writer, finder Finder, f repositories.PaymentFilter, loc *time.Location) (int, error) {
	payments, err := finder.FindAll(ctx, f)
	if err != nil {
		return 0, err
	}
	if err := WriteCSV(w, payments, loc); err != nil {
		return 0, err
	}
	return len(payments), nil
}

// WriteCSV 写出 BOM、表头和每条记录，时间按 loc 格式化
func WriteCSV(w io.Writer, payments []payment.Payment, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	if _, err := io.WriteString(w, bom); err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}

	for _, p := range payments {
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.In(loc).Format(timeLayout)
		}
		createdAt := ""
		if !p.CreatedAt.IsZero() {
			createdAt = p.CreatedAt.In(loc).Format(timeLayout)
		}

		row := []string{
			fmt.Sprintf("%d", p.ID),
			p.Status.Label(),
			fmt.Sprintf("%d", p.Amount),
			p.PaymentMethod,
			p.CardIssuerName,
			payment.MaskCardNumber(p.CardNumberMasked),
			createdAt,
			paidAt,
			p.TransactionID,
			p.ClientIP,
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
