package models

import (
	"encoding/json"
	"time"
)

// Типы документов.
const (
	BillTypeQuotation       = "quotation"
	BillTypeTaxInvoice      = "tax-invoice"
	BillTypeProformaInvoice = "proforma-invoice"
	BillTypePurchaseOrder   = "purchase-order"
)

// DefaultBillType подставляется, если тип документа не передан.
const DefaultBillType = BillTypeTaxInvoice

// BillTypes: допустимые типы документов.
var BillTypes = []string{
	BillTypeQuotation,
	BillTypeTaxInvoice,
	BillTypeProformaInvoice,
	BillTypePurchaseOrder,
}

// IsValidBillType проверяет, входит ли тип в перечисление.
func IsValidBillType(t string) bool {
	for _, bt := range BillTypes {
		if bt == t {
			return true
		}
	}
	return false
}

// Bill: сохраненный документ (счет, предложение, заказ).
// Дата и сумма хранятся строками в том виде, в каком их ввел пользователь.
type Bill struct {
	ID          string          `json:"id"`
	UserUID     string          `json:"user"`
	BillType    string          `json:"bill_type"`
	InvoiceNo   string          `json:"invoice_no"`
	InvoiceDate string          `json:"invoice_date"`
	BuyerName   string          `json:"buyer_name"`
	TotalAmount string          `json:"total_amount"`
	Content     json.RawMessage `json:"content"`
	PDFURL      *string         `json:"pdf_url"`
	PDFPublicID *string         `json:"pdf_public_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// HasAsset сообщает, привязан ли к счету PDF во внешнем хранилище.
func (b *Bill) HasAsset() bool {
	return b.PDFPublicID != nil && *b.PDFPublicID != ""
}

// DummyBill используется для приёма данных нового счета из JSON-запроса.
type DummyBill struct {
	BillType    string          `json:"bill_type" validate:"omitempty"`
	InvoiceNo   string          `json:"invoice_no" validate:"required"`
	InvoiceDate string          `json:"invoice_date" validate:"required"`
	BuyerName   string          `json:"buyer_name" validate:"required"`
	TotalAmount string          `json:"total_amount" validate:"required"`
	Content     json.RawMessage `json:"content" validate:"required"`
	PDFBase64   string          `json:"pdf_base64,omitempty" validate:"omitempty"`
}

// BillPatch: частичное обновление: пустые поля оставляют прежние значения.
type BillPatch struct {
	BillType    string          `json:"bill_type,omitempty"`
	InvoiceNo   string          `json:"invoice_no,omitempty"`
	InvoiceDate string          `json:"invoice_date,omitempty"`
	BuyerName   string          `json:"buyer_name,omitempty"`
	TotalAmount string          `json:"total_amount,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// Apply переносит непустые поля patch в b и сообщает, изменилось ли что-то.
func (p BillPatch) Apply(b *Bill) bool {
	changed := false
	set := func(dst *string, v string) {
		if v != "" && v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&b.BillType, p.BillType)
	set(&b.InvoiceNo, p.InvoiceNo)
	set(&b.InvoiceDate, p.InvoiceDate)
	set(&b.BuyerName, p.BuyerName)
	set(&b.TotalAmount, p.TotalAmount)
	if !IsEmptyContent(p.Content) {
		b.Content = p.Content
		changed = true
	}
	return changed
}

// IsEmptyContent сообщает, что содержимое не передано.
func IsEmptyContent(c json.RawMessage) bool {
	return len(c) == 0 || string(c) == "null"
}

// BillSummary: сокращенное представление счета для дашборда.
type BillSummary struct {
	ID          string    `json:"id"`
	InvoiceNo   string    `json:"invoice_no"`
	BuyerName   string    `json:"buyer_name"`
	TotalAmount string    `json:"total_amount"`
	BillType    string    `json:"bill_type"`
	CreatedAt   time.Time `json:"created_at"`
}

// TypeCount: количество счетов одного типа.
type TypeCount struct {
	BillType string `json:"bill_type"`
	Count    int    `json:"count"`
}

// Stats: сводка по счетам пользователя.
type Stats struct {
	TotalBills  int            `json:"total_bills"`
	BillsByType []TypeCount    `json:"bills_by_type"`
	RecentBills []*BillSummary `json:"recent_bills"`
}

// PDFUploadResult: итог замены PDF у счета.
type PDFUploadResult struct {
	Bill             *Bill  `json:"bill"`
	PDFURL           string `json:"pdf_url"`
	PreviousReleased bool   `json:"previous_released"`
}

// CreateBillResult: сохраненный счет и, если вместе с ним передавался PDF,
// итог его загрузки. Счет сохраняется и при неудачной загрузке.
type CreateBillResult struct {
	*Bill
	PDFUploaded *bool  `json:"pdf_uploaded,omitempty"`
	PDFError    string `json:"pdf_error,omitempty"`
}
