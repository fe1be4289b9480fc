// Package metrics регистрирует счетчики Prometheus, которые отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BillsCreated: количество сохраненных счетов по типу.
	BillsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "bills_created_total",
		Help:      "Number of bills saved, by bill type.",
	}, []string{"bill_type"})

	// BillsDeleted: количество удаленных счетов.
	BillsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "bills_deleted_total",
		Help:      "Number of bills deleted.",
	})

	// AssetOperations: операции с хранилищем PDF по виду и результату.
	AssetOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "asset_operations_total",
		Help:      "Asset store operations, by operation and result.",
	}, []string{"operation", "result"})

	// LegacyPasswordUpgrades: пароли, перехешированные из открытого текста.
	LegacyPasswordUpgrades = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "legacy_password_upgrades_total",
		Help:      "Plaintext password verifiers replaced by bcrypt hashes, by path.",
	}, []string{"path"})

	// LegacyPasswordsSkipped: пароли открытым текстом, которые нельзя перехешировать.
	LegacyPasswordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "legacy_passwords_skipped_total",
		Help:      "Plaintext password verifiers left in place because bcrypt cannot hash them, by path.",
	}, []string{"path"})

	// BillEventsConsumed: события, прочитанные bill-audit, по типу.
	BillEventsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billdesk",
		Name:      "bill_events_consumed_total",
		Help:      "Bill lifecycle events consumed by the audit trail, by event type.",
	}, []string{"type"})
)

// Значения меток для AssetOperations.
const (
	OpUpload  = "upload"
	OpDestroy = "destroy"

	ResultOK    = "ok"
	ResultError = "error"
)

// ObserveAsset увеличивает счетчик операции с хранилищем в зависимости от ошибки.
func ObserveAsset(op string, err error) {
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	AssetOperations.WithLabelValues(op, result).Inc()
}
