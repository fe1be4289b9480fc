package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBillPatch_Apply(t *testing.T) {
	base := func() Bill {
		return Bill{
			BillType:    BillTypeTaxInvoice,
			InvoiceNo:   "INV-1",
			InvoiceDate: "2024-01-01",
			BuyerName:   "ACME",
			TotalAmount: "100.00",
			Content:     json.RawMessage(`{"rows":1}`),
		}
	}

	tests := []struct {
		name        string
		patch       BillPatch
		wantChanged bool
		check       func(t *testing.T, b Bill)
	}{
		{
			name:        "empty patch leaves everything",
			patch:       BillPatch{},
			wantChanged: false,
			check: func(t *testing.T, b Bill) {
				assert.Equal(t, base(), b)
			},
		},
		{
			name:        "null content leaves content",
			patch:       BillPatch{Content: json.RawMessage("null")},
			wantChanged: false,
			check: func(t *testing.T, b Bill) {
				assert.JSONEq(t, `{"rows":1}`, string(b.Content))
			},
		},
		{
			name:        "present fields overwrite",
			patch:       BillPatch{InvoiceNo: "INV-2", BuyerName: "Globex", Content: json.RawMessage(`{"rows":2}`)},
			wantChanged: true,
			check: func(t *testing.T, b Bill) {
				assert.Equal(t, "INV-2", b.InvoiceNo)
				assert.Equal(t, "Globex", b.BuyerName)
				assert.Equal(t, "2024-01-01", b.InvoiceDate)
				assert.Equal(t, "100.00", b.TotalAmount)
				assert.JSONEq(t, `{"rows":2}`, string(b.Content))
			},
		},
		{
			name:        "same value is not a change",
			patch:       BillPatch{InvoiceNo: "INV-1"},
			wantChanged: false,
			check: func(t *testing.T, b Bill) {
				assert.Equal(t, "INV-1", b.InvoiceNo)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := base()
			assert.Equal(t, tt.wantChanged, tt.patch.Apply(&b))
			tt.check(t, b)
		})
	}
}

func TestIsValidBillType(t *testing.T) {
	for _, bt := range BillTypes {
		assert.True(t, IsValidBillType(bt), bt)
	}
	assert.False(t, IsValidBillType("receipt"))
	assert.False(t, IsValidBillType(""))
}

func TestBill_HasAsset(t *testing.T) {
	empty := ""
	id := "billdesk-invoices/INV-1-1.pdf"

	assert.False(t, (&Bill{}).HasAsset())
	assert.False(t, (&Bill{PDFPublicID: &empty}).HasAsset())
	assert.True(t, (&Bill{PDFPublicID: &id}).HasAsset())
}
