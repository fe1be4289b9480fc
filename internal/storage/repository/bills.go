package repository

import (
	"context"
	"database/sql"

	"github.com/magabrotheeeer/billdesk/internal/models"
)

const billColumns = `id, user_uid, bill_type, invoice_no, invoice_date, buyer_name,
			      total_amount, content, pdf_url, pdf_public_id, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBill(row rowScanner) (*models.Bill, error) {
	var (
		b           models.Bill
		content     []byte
		pdfURL      sql.NullString
		pdfPublicID sql.NullString
	)
	if err := row.Scan(&b.ID, &b.UserUID, &b.BillType, &b.InvoiceNo, &b.InvoiceDate, &b.BuyerName,
		&b.TotalAmount, &content, &pdfURL, &pdfPublicID, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.Content = content
	if pdfURL.Valid {
		b.PDFURL = &pdfURL.String
	}
	if pdfPublicID.Valid {
		b.PDFPublicID = &pdfPublicID.String
	}
	return &b, nil
}

func nullable(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreateBill вставляет новый счет и возвращает сохраненную запись.
// Повтор пары (user_uid, invoice_no) дает ErrAlreadyExists.
func (s *Storage) CreateBill(ctx context.Context, bill models.Bill) (*models.Bill, error) {
	const op = "storage.CreateBill"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `INSERT INTO bills (user_uid, bill_type, invoice_no, invoice_date, buyer_name,
			      total_amount, content, pdf_url, pdf_public_id)
			  VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
			  RETURNING ` + billColumns
	row := s.DB.QueryRowContext(ctx, query,
		bill.UserUID, bill.BillType, bill.InvoiceNo, bill.InvoiceDate, bill.BuyerName,
		bill.TotalAmount, string(bill.Content), nullable(bill.PDFURL), nullable(bill.PDFPublicID))
	created, err := scanBill(row)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return created, nil
}

// GetBill возвращает счет по его ID.
func (s *Storage) GetBill(ctx context.Context, id string) (*models.Bill, error) {
	const op = "storage.GetBill"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + billColumns + ` FROM bills WHERE id = $1`
	b, err := scanBill(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return b, nil
}

// FindBillByInvoiceNo ищет счет владельца по номеру.
func (s *Storage) FindBillByInvoiceNo(ctx context.Context, userUID, invoiceNo string) (*models.Bill, error) {
	const op = "storage.FindBillByInvoiceNo"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + billColumns + ` FROM bills WHERE user_uid = $1 AND invoice_no = $2`
	b, err := scanBill(s.DB.QueryRowContext(ctx, query, userUID, invoiceNo))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return b, nil
}

// UpdateBill перезаписывает изменяемые поля счета и обновляет updated_at.
// Владелец и ссылка на PDF этим методом не меняются.
func (s *Storage) UpdateBill(ctx context.Context, bill models.Bill) (*models.Bill, error) {
	const op = "storage.UpdateBill"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE bills
			  SET bill_type = $1, invoice_no = $2, invoice_date = $3, buyer_name = $4,
			      total_amount = $5, content = $6::jsonb, updated_at = NOW()
			  WHERE id = $7
			  RETURNING ` + billColumns
	updated, err := scanBill(s.DB.QueryRowContext(ctx, query,
		bill.BillType, bill.InvoiceNo, bill.InvoiceDate, bill.BuyerName,
		bill.TotalAmount, string(bill.Content), bill.ID))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return updated, nil
}

// UpdateBillAsset записывает ссылку на PDF. nil очищает ссылку.
func (s *Storage) UpdateBillAsset(ctx context.Context, id string, url, publicID *string) (*models.Bill, error) {
	const op = "storage.UpdateBillAsset"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `UPDATE bills
			  SET pdf_url = $1, pdf_public_id = $2, updated_at = NOW()
			  WHERE id = $3
			  RETURNING ` + billColumns
	updated, err := scanBill(s.DB.QueryRowContext(ctx, query, nullable(url), nullable(publicID), id))
	if err != nil {
		return nil, wrapErr(op, err)
	}
	return updated, nil
}

// DeleteBill удаляет счет по ID и возвращает количество удалённых строк.
func (s *Storage) DeleteBill(ctx context.Context, id string) (int, error) {
	const op = "storage.DeleteBill"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, `DELETE FROM bills WHERE id = $1`, id)
	if err != nil {
		return 0, wrapErr(op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, wrapErr(op, err)
	}
	return int(rowsAffected), nil
}

// ListBillsByUser возвращает все счета владельца, новые первыми.
func (s *Storage) ListBillsByUser(ctx context.Context, userUID string) ([]*models.Bill, error) {
	const op = "storage.ListBillsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + billColumns + `
			  FROM bills
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.Bill, 0)
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, b)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// CountBillsByUser возвращает число счетов владельца.
func (s *Storage) CountBillsByUser(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountBillsByUser"
	if err := checkCtx(ctx, op); err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bills WHERE user_uid = $1`, userUID).Scan(&count); err != nil {
		return 0, wrapErr(op, err)
	}
	return count, nil
}

// CountBillsByType группирует счета владельца по типу.
func (s *Storage) CountBillsByType(ctx context.Context, userUID string) ([]models.TypeCount, error) {
	const op = "storage.CountBillsByType"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT bill_type, COUNT(*)
			  FROM bills
			  WHERE user_uid = $1
			  GROUP BY bill_type
			  ORDER BY bill_type`
	rows, err := s.DB.QueryContext(ctx, query, userUID)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]models.TypeCount, 0)
	for rows.Next() {
		var tc models.TypeCount
		if err = rows.Scan(&tc.BillType, &tc.Count); err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, tc)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}

// ListRecentBills возвращает сокращенные записи последних limit счетов владельца.
func (s *Storage) ListRecentBills(ctx context.Context, userUID string, limit int) ([]*models.BillSummary, error) {
	const op = "storage.ListRecentBills"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT id, invoice_no, buyer_name, total_amount, bill_type, created_at
			  FROM bills
			  WHERE user_uid = $1
			  ORDER BY created_at DESC, id
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result := make([]*models.BillSummary, 0, limit)
	for rows.Next() {
		var bs models.BillSummary
		if err = rows.Scan(&bs.ID, &bs.InvoiceNo, &bs.BuyerName, &bs.TotalAmount,
			&bs.BillType, &bs.CreatedAt); err != nil {
			return nil, wrapErr(op, err)
		}
		result = append(result, &bs)
	}
	if err = rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return result, nil
}
