// Package services содержит бизнес-логику жизненного цикла счетов:
// сохранение, частичное обновление, удаление, статистику и замену PDF.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/magabrotheeeer/billdesk/internal/assets"
	"github.com/magabrotheeeer/billdesk/internal/cache"
	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/metrics"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
	"github.com/magabrotheeeer/billdesk/internal/storage/repository"
)

// RecentBillsLimit: сколько последних счетов попадает в статистику.
const RecentBillsLimit = 5

// BillRepository определяет методы для работы со счетами в хранилище.
type BillRepository interface {
	CreateBill(ctx context.Context, bill models.Bill) (*models.Bill, error)
	GetBill(ctx context.Context, id string) (*models.Bill, error)
	FindBillByInvoiceNo(ctx context.Context, userUID, invoiceNo string) (*models.Bill, error)
	UpdateBill(ctx context.Context, bill models.Bill) (*models.Bill, error)
	UpdateBillAsset(ctx context.Context, id string, url, publicID *string) (*models.Bill, error)
	DeleteBill(ctx context.Context, id string) (int, error)
	ListBillsByUser(ctx context.Context, userUID string) ([]*models.Bill, error)
	CountBillsByUser(ctx context.Context, userUID string) (int, error)
	CountBillsByType(ctx context.Context, userUID string) ([]models.TypeCount, error)
	ListRecentBills(ctx context.Context, userUID string, limit int) ([]*models.BillSummary, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(ctx context.Context, key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(ctx context.Context, key string) error
}

// AssetStore внешнее хранилище PDF.
type AssetStore interface {
	Upload(ctx context.Context, blob []byte, publicID string) (*assets.Asset, error)
	Destroy(ctx context.Context, publicID string) error
	NewPublicID(invoiceNo string, now time.Time) string
}

// BillService реализует бизнес-логику работы со счетами, включая кеширование.
type BillService struct {
	repo     BillRepository
	cache    Cache
	assets   AssetStore
	events   events.Publisher
	log      *slog.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewBillService создает новый экземпляр BillService. cache может быть nil.
func NewBillService(repo BillRepository, c Cache, store AssetStore, publisher events.Publisher,
	log *slog.Logger, cacheTTL time.Duration) *BillService {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &BillService{
		repo:     repo,
		cache:    c,
		assets:   store,
		events:   publisher,
		log:      log,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// Create сохраняет новый счет владельца. Номер счета уникален в пределах
// владельца. Если передан PDF, он загружается после сохранения, и его
// неудача не отменяет сохранение счета.
func (s *BillService) Create(ctx context.Context, ownerID string, req models.DummyBill) (*models.CreateBillResult, error) {
	const op = "services.BillService.Create"

	if strings.TrimSpace(req.InvoiceNo) == "" || req.InvoiceDate == "" || req.BuyerName == "" || req.TotalAmount == "" {
		return nil, apperr.New(apperr.ErrValidation, "invoice_no, invoice_date, buyer_name and total_amount are required")
	}
	billType := req.BillType
	if billType == "" {
		billType = models.DefaultBillType
	}
	if !models.IsValidBillType(billType) {
		return nil, invalidBillType(billType)
	}
	if err := validateContent(req.Content, true); err != nil {
		return nil, err
	}

	var blob []byte
	if req.PDFBase64 != "" {
		var err error
		if blob, err = assets.DecodeDataURI(req.PDFBase64); err != nil {
			return nil, apperr.Wrap(apperr.ErrValidation, "pdf_base64 is not valid base64", err)
		}
	}

	if err := s.ensureInvoiceNoFree(ctx, op, ownerID, req.InvoiceNo, ""); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateBill(ctx, models.Bill{
		UserUID:     ownerID,
		BillType:    billType,
		InvoiceNo:   req.InvoiceNo,
		InvoiceDate: req.InvoiceDate,
		BuyerName:   req.BuyerName,
		TotalAmount: req.TotalAmount,
		Content:     req.Content,
	})
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.log.Info("created new bill", slog.String("id", created.ID), slog.String("invoice_no", created.InvoiceNo))
	metrics.BillsCreated.WithLabelValues(created.BillType).Inc()
	s.publish(ctx, events.BillCreated, created)

	result := &models.CreateBillResult{Bill: created}
	if blob == nil {
		return result, nil
	}

	uploaded := true
	upload, err := s.replaceAsset(ctx, created, blob)
	if err != nil {
		uploaded = false
		result.PDFError = apperr.Message(err)
		s.log.Warn("bill saved without pdf", slog.String("id", created.ID), sl.Err(err))
	} else {
		result.Bill = upload.Bill
	}
	result.PDFUploaded = &uploaded
	return result, nil
}

// Update частично обновляет счет владельца: пустые поля не меняются.
func (s *BillService) Update(ctx context.Context, id, ownerID string, patch models.BillPatch) (*models.Bill, error) {
	const op = "services.BillService.Update"

	if patch.BillType != "" && !models.IsValidBillType(patch.BillType) {
		return nil, invalidBillType(patch.BillType)
	}
	if err := validateContent(patch.Content, false); err != nil {
		return nil, err
	}

	bill, err := s.loadOwned(ctx, op, id, ownerID)
	if err != nil {
		return nil, err
	}

	if patch.InvoiceNo != "" && patch.InvoiceNo != bill.InvoiceNo {
		if err := s.ensureInvoiceNoFree(ctx, op, ownerID, patch.InvoiceNo, bill.ID); err != nil {
			return nil, err
		}
	}

	patch.Apply(bill)
	updated, err := s.repo.UpdateBill(ctx, *bill)
	if err != nil {
		return nil, storageErr(op, err)
	}

	s.invalidate(ctx, id)
	s.publish(ctx, events.BillUpdated, updated)
	return updated, nil
}

// ListByOwner возвращает все счета владельца, новые первыми.
func (s *BillService) ListByOwner(ctx context.Context, ownerID string) ([]*models.Bill, error) {
	const op = "services.BillService.ListByOwner"

	bills, err := s.repo.ListBillsByUser(ctx, ownerID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return bills, nil
}

// ListByOwnerUnauthenticated то же, что ListByOwner, для публичного маршрута без сессии.
func (s *BillService) ListByOwnerUnauthenticated(ctx context.Context, ownerID string) ([]*models.Bill, error) {
	s.log.Debug("public bill list read", slog.String("user_uid", ownerID))
	return s.ListByOwner(ctx, ownerID)
}

// GetByID возвращает счет без проверки владельца, используя кеш или репозиторий.
func (s *BillService) GetByID(ctx context.Context, id string) (*models.Bill, error) {
	const op = "services.BillService.GetByID"
	cacheKey := cache.BillKey(id)

	if s.cache != nil {
		var cached models.Bill
		found, err := s.cache.Get(ctx, cacheKey, &cached)
		if err != nil {
			s.log.Warn("failed to read from cache", slog.String("key", cacheKey), sl.Err(err))
		}
		if found {
			return &cached, nil
		}
	}

	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, storageErr(op, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, bill, s.cacheTTL); err != nil {
			s.log.Warn("failed to add to cache", slog.String("key", cacheKey), sl.Err(err))
		}
	}
	return bill, nil
}

// Delete удаляет счет владельца. Привязанный PDF удаляется первым; если
// это не удалось, счет остается на месте.
func (s *BillService) Delete(ctx context.Context, id, ownerID string) error {
	const op = "services.BillService.Delete"

	bill, err := s.loadOwned(ctx, op, id, ownerID)
	if err != nil {
		return err
	}

	if bill.HasAsset() {
		err := s.assets.Destroy(ctx, *bill.PDFPublicID)
		metrics.ObserveAsset(metrics.OpDestroy, err)
		if err != nil {
			return apperr.Wrap(apperr.ErrDependency, "failed to delete bill pdf", fmt.Errorf("%s: %w", op, err))
		}
	}

	n, err := s.repo.DeleteBill(ctx, id)
	if err != nil {
		return storageErr(op, err)
	}
	if n == 0 {
		return apperr.New(apperr.ErrNotFound, "bill not found")
	}

	s.invalidate(ctx, id)
	metrics.BillsDeleted.Inc()
	s.publish(ctx, events.BillDeleted, bill)
	return nil
}

// Stats считает счета владельца: всего, по типам и последние RecentBillsLimit.
func (s *BillService) Stats(ctx context.Context, ownerID string) (*models.Stats, error) {
	const op = "services.BillService.Stats"

	total, err := s.repo.CountBillsByUser(ctx, ownerID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	byType, err := s.repo.CountBillsByType(ctx, ownerID)
	if err != nil {
		return nil, storageErr(op, err)
	}
	recent, err := s.repo.ListRecentBills(ctx, ownerID, RecentBillsLimit)
	if err != nil {
		return nil, storageErr(op, err)
	}
	return &models.Stats{
		TotalBills:  total,
		BillsByType: byType,
		RecentBills: recent,
	}, nil
}

// UploadPDF заменяет PDF счета владельца новым файлом.
func (s *BillService) UploadPDF(ctx context.Context, id, ownerID, pdfBase64 string) (*models.PDFUploadResult, error) {
	const op = "services.BillService.UploadPDF"

	blob, err := assets.DecodeDataURI(pdfBase64)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrValidation, "pdf_base64 is not valid base64", err)
	}

	bill, err := s.loadOwned(ctx, op, id, ownerID)
	if err != nil {
		return nil, err
	}
	return s.replaceAsset(ctx, bill, blob)
}

func (s *BillService) loadOwned(ctx context.Context, op, id, ownerID string) (*models.Bill, error) {
	bill, err := s.repo.GetBill(ctx, id)
	if err != nil {
		return nil, storageErr(op, err)
	}
	if bill.UserUID != ownerID {
		return nil, apperr.New(apperr.ErrForbidden, "not the owner of this bill")
	}
	return bill, nil
}

// ensureInvoiceNoFree проверяет, что у владельца нет другого счета с таким номером.
func (s *BillService) ensureInvoiceNoFree(ctx context.Context, op, ownerID, invoiceNo, selfID string) error {
	existing, err := s.repo.FindBillByInvoiceNo(ctx, ownerID, invoiceNo)
	switch {
	case err == nil && existing.ID != selfID:
		return apperr.New(apperr.ErrConflict, "invoice number already exists")
	case err == nil, errors.Is(err, repository.ErrNotFound):
		return nil
	default:
		return storageErr(op, err)
	}
}

func (s *BillService) invalidate(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	key := cache.BillKey(id)
	if err := s.cache.Invalidate(ctx, key); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", key), sl.Err(err))
	}
}

func (s *BillService) publish(ctx context.Context, eventType string, bill *models.Bill) {
	if err := s.events.Publish(ctx, events.NewBillEvent(eventType, bill)); err != nil {
		s.log.Warn("failed to publish event", slog.String("type", eventType),
			slog.String("bill_id", bill.ID), sl.Err(err))
	}
}

// storageErr переводит ошибку репозитория в ошибку предметной области.
func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperr.New(apperr.ErrNotFound, "bill not found")
	case errors.Is(err, repository.ErrAlreadyExists):
		return apperr.New(apperr.ErrConflict, "invoice number already exists")
	default:
		return apperr.Wrap(apperr.ErrDependency, "storage unavailable", fmt.Errorf("%s: %w", op, err))
	}
}

func invalidBillType(t string) error {
	return apperr.New(apperr.ErrValidation,
		fmt.Sprintf("bill_type %q must be one of: %s", t, strings.Join(models.BillTypes, ", ")))
}

func validateContent(c json.RawMessage, required bool) error {
	if models.IsEmptyContent(c) {
		if required {
			return apperr.New(apperr.ErrValidation, "content is required")
		}
		return nil
	}
	if !json.Valid(c) {
		return apperr.New(apperr.ErrValidation, "content must be a JSON value")
	}
	return nil
}
