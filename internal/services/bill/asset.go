package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/billdesk/internal/events"
	"github.com/magabrotheeeer/billdesk/internal/lib/apperr"
	"github.com/magabrotheeeer/billdesk/internal/lib/metrics"
	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// replaceAsset загружает новый PDF, записывает ссылку в счет и только потом
// удаляет предыдущий файл. Пока ссылка не записана, счет указывает на
// прежний PDF, поэтому неудачная загрузка ничего не теряет.
func (s *BillService) replaceAsset(ctx context.Context, bill *models.Bill, blob []byte) (*models.PDFUploadResult, error) {
	const op = "services.BillService.replaceAsset"

	publicID := s.assets.NewPublicID(bill.InvoiceNo, s.now())
	asset, err := s.assets.Upload(ctx, blob, publicID)
	metrics.ObserveAsset(metrics.OpUpload, err)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrDependency, "failed to upload pdf", fmt.Errorf("%s: %w", op, err))
	}

	updated, err := s.repo.UpdateBillAsset(ctx, bill.ID, &asset.URL, &asset.PublicID)
	if err != nil {
		// Ссылка не записана: новый файл никому не нужен.
		s.release(ctx, asset.PublicID)
		return nil, storageErr(op, err)
	}

	released := true
	if bill.HasAsset() && *bill.PDFPublicID != asset.PublicID {
		released = s.release(ctx, *bill.PDFPublicID)
	}

	s.invalidate(ctx, bill.ID)
	s.publish(ctx, events.BillPDFUploaded, updated)
	s.log.Info("bill pdf replaced", slog.String("id", bill.ID), slog.String("public_id", asset.PublicID),
		slog.Bool("previous_released", released))

	return &models.PDFUploadResult{
		Bill:             updated,
		PDFURL:           asset.URL,
		PreviousReleased: released,
	}, nil
}

// release удаляет файл без прерывания операции и сообщает об успехе.
func (s *BillService) release(ctx context.Context, publicID string) bool {
	err := s.assets.Destroy(ctx, publicID)
	metrics.ObserveAsset(metrics.OpDestroy, err)
	if err != nil {
		s.log.Warn("failed to release pdf", slog.String("public_id", publicID), sl.Err(err))
		return false
	}
	return true
}
