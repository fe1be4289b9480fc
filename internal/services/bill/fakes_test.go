package services_test

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/billdesk/internal/assets"
	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/models"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

// memBills хранит счета в памяти и соблюдает уникальность (владелец, номер).
type memBills struct {
	mu     sync.Mutex
	bills  map[string]*models.Bill
	clock  time.Time
	gets   int
	failOn map[string]error
}

func newMemBills() *memBills {
	return &memBills{
		bills:  map[string]*models.Bill{},
		clock:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		failOn: map[string]error{},
	}
}

func (m *memBills) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memBills) dupLocked(bill models.Bill) bool {
	for _, b := range m.bills {
		if b.ID != bill.ID && b.UserUID == bill.UserUID && b.InvoiceNo == bill.InvoiceNo {
			return true
		}
	}
	return false
}

func clone(b *models.Bill) *models.Bill {
	cp := *b
	if b.PDFURL != nil {
		u := *b.PDFURL
		cp.PDFURL = &u
	}
	if b.PDFPublicID != nil {
		p := *b.PDFPublicID
		cp.PDFPublicID = &p
	}
	return &cp
}

func (m *memBills) CreateBill(_ context.Context, bill models.Bill) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["CreateBill"]; err != nil {
		return nil, err
	}
	if m.dupLocked(bill) {
		return nil, fmt.Errorf("storage.CreateBill: %w", repository.ErrAlreadyExists)
	}
	bill.ID = uuid.NewString()
	bill.CreatedAt = m.tick()
	bill.UpdatedAt = bill.CreatedAt
	m.bills[bill.ID] = clone(&bill)
	return clone(&bill), nil
}

func (m *memBills) GetBill(_ context.Context, id string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	b, ok := m.bills[id]
	if !ok {
		return nil, fmt.Errorf("storage.GetBill: %w", repository.ErrNotFound)
	}
	return clone(b), nil
}

func (m *memBills) FindBillByInvoiceNo(_ context.Context, userUID, invoiceNo string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["FindBillByInvoiceNo"]; err != nil {
		return nil, err
	}
	for _, b := range m.bills {
		if b.UserUID == userUID && b.InvoiceNo == invoiceNo {
			return clone(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memBills) UpdateBill(_ context.Context, bill models.Bill) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.bills[bill.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if m.dupLocked(bill) {
		return nil, repository.ErrAlreadyExists
	}
	cur.BillType = bill.BillType
	cur.InvoiceNo = bill.InvoiceNo
	cur.InvoiceDate = bill.InvoiceDate
	cur.BuyerName = bill.BuyerName
	cur.TotalAmount = bill.TotalAmount
	cur.Content = bill.Content
	cur.UpdatedAt = m.tick()
	return clone(cur), nil
}

func (m *memBills) UpdateBillAsset(_ context.Context, id string, url, publicID *string) (*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["UpdateBillAsset"]; err != nil {
		return nil, err
	}
	cur, ok := m.bills[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cur.PDFURL, cur.PDFPublicID = url, publicID
	cur.UpdatedAt = m.tick()
	return clone(cur), nil
}

func (m *memBills) DeleteBill(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bills[id]; !ok {
		return 0, nil
	}
	delete(m.bills, id)
	return 1, nil
}

func (m *memBills) ownedLocked(userUID string) []*models.Bill {
	var out []*models.Bill
	for _, b := range m.bills {
		if b.UserUID == userUID {
			out = append(out, clone(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memBills) ListBillsByUser(_ context.Context, userUID string) ([]*models.Bill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["ListBillsByUser"]; err != nil {
		return nil, err
	}
	out := m.ownedLocked(userUID)
	if out == nil {
		out = []*models.Bill{}
	}
	return out, nil
}

func (m *memBills) CountBillsByUser(_ context.Context, userUID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ownedLocked(userUID)), nil
}

func (m *memBills) CountBillsByType(_ context.Context, userUID string) ([]models.TypeCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, b := range m.ownedLocked(userUID) {
		counts[b.BillType]++
	}
	out := make([]models.TypeCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, models.TypeCount{BillType: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BillType < out[j].BillType })
	return out, nil
}

func (m *memBills) ListRecentBills(_ context.Context, userUID string, limit int) ([]*models.BillSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := m.ownedLocked(userUID)
	if len(owned) > limit {
		owned = owned[:limit]
	}
	out := make([]*models.BillSummary, 0, len(owned))
	for _, b := range owned {
		out = append(out, &models.BillSummary{ID: b.ID, InvoiceNo: b.InvoiceNo, BuyerName: b.BuyerName,
			TotalAmount: b.TotalAmount, BillType: b.BillType, CreatedAt: b.CreatedAt})
	}
	return out, nil
}

// memAssets хранилище PDF в памяти.
type memAssets struct {
	mu          sync.Mutex
	objects     map[string][]byte
	failUpload  bool
	failDestroy bool
	destroyed   []string
	seq         int
}

func newMemAssets() *memAssets {
	return &memAssets{objects: map[string][]byte{}}
}

func (a *memAssets) Upload(_ context.Context, blob []byte, publicID string) (*assets.Asset, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failUpload {
		return nil, errors.New("asset host unavailable")
	}
	a.objects[publicID] = blob
	return &assets.Asset{URL: "https://cdn.example.com/" + publicID, PublicID: publicID}, nil
}

func (a *memAssets) Destroy(_ context.Context, publicID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failDestroy {
		return errors.New("asset host unavailable")
	}
	delete(a.objects, publicID)
	a.destroyed = append(a.destroyed, publicID)
	return nil
}

func (a *memAssets) NewPublicID(invoiceNo string, now time.Time) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.seq++
	return assets.PublicID("test", fmt.Sprintf("%s-%d", invoiceNo, a.seq), now)
}

func (a *memAssets) live() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	keys := make([]string, 0, len(a.objects))
	for k := range a.objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// recordingPublisher запоминает опубликованные события.
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
