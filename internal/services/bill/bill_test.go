package services_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/billdesk/internal/cache"
	"github.com/magabrotheeeer/billdesk/internal/config"
	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/models"
	services "github.com/magabrotheeeer/billdesk/internal/services/bill"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
)

var pdfBase64 = "data:application/pdf;base64," + base64.StdEncoding.EncodeToString([]byte("%PDF-1.4 test"))

type fixture struct {
	svc    *services.BillService
	repo   *memBills
	assets *memAssets
	events *recordingPublisher
}

func newFixture(t *testing.T, c services.Cache) *fixture {
	t.Helper()
	f := &fixture{repo: newMemBills(), assets: newMemAssets(), events: &recordingPublisher{}}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = services.NewBillService(f.repo, c, f.assets, f.events, log, time.Hour)
	return f
}

func dummy(invoiceNo string) models.DummyBill {
	return models.DummyBill{
		InvoiceNo:   invoiceNo,
		InvoiceDate: "2024-03-01",
		BuyerName:   "Acme",
		TotalAmount: "1,200.00",
		Content:     json.RawMessage(`{"rows":[{"item":"widget","qty":2}]}`),
	}
}

func (f *fixture) create(t *testing.T, owner, invoiceNo string) *models.Bill {
	t.Helper()
	res, err := f.svc.Create(context.Background(), owner, dummy(invoiceNo))
	require.NoError(t, err)
	return res.Bill
}

func TestBillService_Create(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(d *models.DummyBill)
		wantType string
		wantErr  error
	}{
		{name: "default bill type", wantType: models.BillTypeTaxInvoice},
		{name: "explicit bill type", mutate: func(d *models.DummyBill) { d.BillType = models.BillTypeQuotation },
			wantType: models.BillTypeQuotation},
		{name: "unknown bill type", mutate: func(d *models.DummyBill) { d.BillType = "receipt" },
			wantErr: apperr.ErrValidation},
		{name: "missing invoice number", mutate: func(d *models.DummyBill) { d.InvoiceNo = " " },
			wantErr: apperr.ErrValidation},
		{name: "missing content", mutate: func(d *models.DummyBill) { d.Content = nil },
			wantErr: apperr.ErrValidation},
		{name: "content not json", mutate: func(d *models.DummyBill) { d.Content = json.RawMessage(`{oops`) },
			wantErr: apperr.ErrValidation},
		{name: "bad pdf", mutate: func(d *models.DummyBill) { d.PDFBase64 = "***" },
			wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			d := dummy("INV-1")
			if tt.mutate != nil {
				tt.mutate(&d)
			}

			res, err := f.svc.Create(context.Background(), alice, d)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, f.repo.bills)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, res.ID)
			assert.Equal(t, alice, res.UserUID)
			assert.Equal(t, tt.wantType, res.BillType)
			assert.Nil(t, res.PDFUploaded)
			assert.Equal(t, []string{events.BillCreated}, f.events.types())
		})
	}
}

func TestBillService_CreateDuplicateInvoiceNo(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, alice, "INV-1")

	_, err := f.svc.Create(ctx, alice, dummy("INV-1"))
	require.ErrorIs(t, err, apperr.ErrConflict)

	// у другого владельца номер свободен
	_, err = f.svc.Create(ctx, bob, dummy("INV-1"))
	require.NoError(t, err)
}

func TestBillService_CreateRaceCaughtByConstraint(t *testing.T) {
	f := newFixture(t, nil)
	f.create(t, alice, "INV-1")

	racing := &raceRepo{memBills: f.repo}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := services.NewBillService(racing, nil, f.assets, nil, log, time.Hour)

	_, err := svc.Create(context.Background(), alice, dummy("INV-1"))
	require.ErrorIs(t, err, apperr.ErrConflict)
}

// raceRepo имитирует параллельную вставку между проверкой и записью:
// проверка не видит существующий счет, вставку отклоняет ограничение.
type raceRepo struct {
	*memBills
}

func (r *raceRepo) FindBillByInvoiceNo(context.Context, string, string) (*models.Bill, error) {
	return nil, repository.ErrNotFound
}

func TestBillService_CreateStorageDown(t *testing.T) {
	f := newFixture(t, nil)
	f.repo.failOn["FindBillByInvoiceNo"] = errors.New("connection refused")

	_, err := f.svc.Create(context.Background(), alice, dummy("INV-1"))
	require.ErrorIs(t, err, apperr.ErrDependency)
}

func TestBillService_CreateWithPDF(t *testing.T) {
	f := newFixture(t, nil)
	d := dummy("INV-1")
	d.PDFBase64 = pdfBase64

	res, err := f.svc.Create(context.Background(), alice, d)
	require.NoError(t, err)
	require.NotNil(t, res.PDFUploaded)
	assert.True(t, *res.PDFUploaded)
	assert.Empty(t, res.PDFError)
	require.True(t, res.HasAsset())
	assert.Equal(t, []string{*res.PDFPublicID}, f.assets.live())
	assert.Equal(t, []string{events.BillCreated, events.BillPDFUploaded}, f.events.types())
}

func TestBillService_CreateWithPDFUploadFails(t *testing.T) {
	f := newFixture(t, nil)
	f.assets.failUpload = true
	d := dummy("INV-1")
	d.PDFBase64 = pdfBase64

	res, err := f.svc.Create(context.Background(), alice, d)
	require.NoError(t, err)
	require.NotNil(t, res.PDFUploaded)
	assert.False(t, *res.PDFUploaded)
	assert.Equal(t, "failed to upload pdf", res.PDFError)
	assert.False(t, res.HasAsset())

	stored, err := f.svc.GetByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", stored.InvoiceNo)
}

func TestBillService_Update(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	f.create(t, alice, "INV-2")

	tests := []struct {
		name    string
		id      string
		owner   string
		patch   models.BillPatch
		wantErr error
		check   func(t *testing.T, got *models.Bill)
	}{
		{
			name:  "empty fields keep previous values",
			id:    b.ID,
			owner: alice,
			patch: models.BillPatch{BuyerName: "Globex"},
			check: func(t *testing.T, got *models.Bill) {
				assert.Equal(t, "Globex", got.BuyerName)
				assert.Equal(t, "INV-1", got.InvoiceNo)
				assert.Equal(t, "1,200.00", got.TotalAmount)
				assert.JSONEq(t, `{"rows":[{"item":"widget","qty":2}]}`, string(got.Content))
				assert.True(t, got.UpdatedAt.After(b.UpdatedAt))
			},
		},
		{
			name:  "content and type overwrite",
			id:    b.ID,
			owner: alice,
			patch: models.BillPatch{BillType: models.BillTypePurchaseOrder, Content: json.RawMessage(`[]`)},
			check: func(t *testing.T, got *models.Bill) {
				assert.Equal(t, models.BillTypePurchaseOrder, got.BillType)
				assert.JSONEq(t, `[]`, string(got.Content))
				assert.Equal(t, "Globex", got.BuyerName)
			},
		},
		{name: "taken invoice number", id: b.ID, owner: alice,
			patch: models.BillPatch{InvoiceNo: "INV-2"}, wantErr: apperr.ErrConflict},
		{name: "same invoice number is not a conflict", id: b.ID, owner: alice,
			patch: models.BillPatch{InvoiceNo: "INV-1"}},
		{name: "other owner", id: b.ID, owner: bob,
			patch: models.BillPatch{BuyerName: "Evil"}, wantErr: apperr.ErrForbidden},
		{name: "missing bill", id: "00000000-0000-0000-0000-000000000000", owner: alice,
			patch: models.BillPatch{BuyerName: "x"}, wantErr: apperr.ErrNotFound},
		{name: "unknown type", id: b.ID, owner: alice,
			patch: models.BillPatch{BillType: "receipt"}, wantErr: apperr.ErrValidation},
		{name: "invalid content", id: b.ID, owner: alice,
			patch: models.BillPatch{Content: json.RawMessage(`{`)}, wantErr: apperr.ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Update(ctx, tt.id, tt.owner, tt.patch)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, got)
			}
		})
	}
}

func TestBillService_ListAndGet(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	first := f.create(t, alice, "INV-1")
	second := f.create(t, alice, "INV-2")
	f.create(t, bob, "INV-1")

	list, err := f.svc.ListByOwner(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	public, err := f.svc.ListByOwnerUnauthenticated(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, public, 2)

	none, err := f.svc.ListByOwner(ctx, "33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)
	assert.Empty(t, none)

	got, err := f.svc.GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.InvoiceNo)

	_, err = f.svc.GetByID(ctx, "00000000-0000-0000-0000-000000000000")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBillService_GetByIDUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	f := newFixture(t, c)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")

	_, err = f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	require.True(t, mr.Exists(cache.BillKey(b.ID)))
	assert.InDelta(t, time.Hour.Seconds(), mr.TTL(cache.BillKey(b.ID)).Seconds(), 1)

	gets := f.repo.gets
	cached, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, gets, f.repo.gets)
	assert.Equal(t, "INV-1", cached.InvoiceNo)

	_, err = f.svc.Update(ctx, b.ID, alice, models.BillPatch{BuyerName: "Globex"})
	require.NoError(t, err)
	assert.False(t, mr.Exists(cache.BillKey(b.ID)))

	fresh, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Globex", fresh.BuyerName)

	require.NoError(t, f.svc.Delete(ctx, b.ID, alice))
	assert.False(t, mr.Exists(cache.BillKey(b.ID)))
	_, err = f.svc.GetByID(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestBillService_GetByIDCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := cache.InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	f := newFixture(t, c)
	b := f.create(t, alice, "INV-1")
	mr.Close()

	got, err := f.svc.GetByID(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)
}

func TestBillService_Delete(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	_, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)
	require.Len(t, f.assets.live(), 1)

	require.ErrorIs(t, f.svc.Delete(ctx, b.ID, bob), apperr.ErrForbidden)
	require.Len(t, f.assets.live(), 1)

	require.NoError(t, f.svc.Delete(ctx, b.ID, alice))
	assert.Empty(t, f.assets.live())
	_, err = f.svc.GetByID(ctx, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	require.ErrorIs(t, f.svc.Delete(ctx, b.ID, alice), apperr.ErrNotFound)
	assert.Contains(t, f.events.types(), events.BillDeleted)
}

func TestBillService_DeleteKeepsBillWhenReleaseFails(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	_, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)
	f.assets.failDestroy = true

	err = f.svc.Delete(ctx, b.ID, alice)
	require.ErrorIs(t, err, apperr.ErrDependency)

	still, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.True(t, still.HasAsset())
}

func TestBillService_Stats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	types := []string{
		models.BillTypeTaxInvoice, models.BillTypeQuotation, models.BillTypeTaxInvoice,
		models.BillTypeProformaInvoice, models.BillTypeTaxInvoice, models.BillTypeQuotation,
	}
	for i, bt := range types {
		d := dummy("INV-" + string(rune('A'+i)))
		d.BillType = bt
		_, err := f.svc.Create(ctx, alice, d)
		require.NoError(t, err)
	}
	f.create(t, bob, "INV-Z")

	stats, err := f.svc.Stats(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 6, stats.TotalBills)
	assert.Equal(t, []models.TypeCount{
		{BillType: models.BillTypeProformaInvoice, Count: 1},
		{BillType: models.BillTypeQuotation, Count: 2},
		{BillType: models.BillTypeTaxInvoice, Count: 3},
	}, stats.BillsByType)
	require.Len(t, stats.RecentBills, services.RecentBillsLimit)
	assert.Equal(t, "INV-F", stats.RecentBills[0].InvoiceNo)
	assert.Equal(t, "INV-B", stats.RecentBills[4].InvoiceNo)

	empty, err := f.svc.Stats(ctx, "33333333-3333-3333-3333-333333333333")
	require.NoError(t, err)
	assert.Zero(t, empty.TotalBills)
	assert.Empty(t, empty.RecentBills)
}

func TestBillService_UploadPDFTwiceLeavesOneAsset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")

	first, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)
	assert.True(t, first.PreviousReleased)

	second, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)
	assert.True(t, second.PreviousReleased)
	assert.NotEqual(t, first.PDFURL, second.PDFURL)

	assert.Equal(t, []string{*second.Bill.PDFPublicID}, f.assets.live())
	assert.Equal(t, []string{*first.Bill.PDFPublicID}, f.assets.destroyed)

	stored, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, second.PDFURL, *stored.PDFURL)
}

func TestBillService_UploadPDFFailureKeepsPrevious(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	first, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)

	f.assets.failUpload = true
	_, err = f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.ErrorIs(t, err, apperr.ErrDependency)

	stored, err := f.svc.GetByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PDFURL, *stored.PDFURL)
	assert.Equal(t, []string{*first.Bill.PDFPublicID}, f.assets.live())
}

func TestBillService_UploadPDFReleaseFailureReported(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	_, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)

	f.assets.failDestroy = true
	res, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.NoError(t, err)
	assert.False(t, res.PreviousReleased)
	assert.Equal(t, res.PDFURL, *res.Bill.PDFURL)
}

func TestBillService_UploadPDFPersistFailureReleasesNewAsset(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")
	f.repo.failOn["UpdateBillAsset"] = errors.New("connection reset")

	_, err := f.svc.UploadPDF(ctx, b.ID, alice, pdfBase64)
	require.ErrorIs(t, err, apperr.ErrDependency)
	assert.Empty(t, f.assets.live())
	assert.Len(t, f.assets.destroyed, 1)
}

func TestBillService_UploadPDFChecks(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	b := f.create(t, alice, "INV-1")

	_, err := f.svc.UploadPDF(ctx, b.ID, bob, pdfBase64)
	require.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.svc.UploadPDF(ctx, b.ID, alice, "")
	require.ErrorIs(t, err, apperr.ErrValidation)

	_, err = f.svc.UploadPDF(ctx, "00000000-0000-0000-0000-000000000000", alice, pdfBase64)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	assert.Empty(t, f.assets.live())
}

func TestBillService_EventFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, nil)
	f.events.err = errors.New("broker down")

	_, err := f.svc.Create(context.Background(), alice, dummy("INV-1"))
	require.NoError(t, err)
}

// Сценарий: счет INV-1, повтор номера, переименование в INV-2, удаление.
func TestBillService_Lifecycle(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.svc.Create(ctx, alice, models.DummyBill{
		BillType:    models.BillTypeTaxInvoice,
		InvoiceNo:   "INV-1",
		InvoiceDate: "2024-01-01",
		BuyerName:   "Acme",
		TotalAmount: "10",
		Content:     json.RawMessage(`{}`),
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, alice, dummy("INV-1"))
	require.ErrorIs(t, err, apperr.ErrConflict)

	renamed, err := f.svc.Update(ctx, res.ID, alice, models.BillPatch{InvoiceNo: "INV-2"})
	require.NoError(t, err)
	assert.Equal(t, "INV-2", renamed.InvoiceNo)

	require.NoError(t, f.svc.Delete(ctx, res.ID, alice))
	_, err = f.svc.GetByID(ctx, res.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
