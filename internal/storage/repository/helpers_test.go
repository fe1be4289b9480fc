package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/billdesk/internal/migrations"
	"github.com/magabrotheeeer/billdesk/internal/models"
)

// TestDataFactory содержит методы для создания тестовых данных
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID
func (f *TestDataFactory) CreateUser(t *testing.T, name, email, passwordHash string) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3) RETURNING uid`, name, email, passwordHash).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// CreateBill создает тестовый счет
func (f *TestDataFactory) CreateBill(t *testing.T, userUID, billType, invoiceNo string) *models.Bill {
	b, err := f.storage.CreateBill(context.Background(), models.Bill{
		UserUID:     userUID,
		BillType:    billType,
		InvoiceNo:   invoiceNo,
		InvoiceDate: "2024-01-01",
		BuyerName:   "Acme",
		TotalAmount: "100.00",
		Content:     json.RawMessage(`{"rows":[]}`),
	})
	require.NoError(t, err)
	return b
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(3*time.Minute),
		),
	)
	require.NoError(t, err, "failed to start container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	storage, err := New(connStr)
	require.NoError(t, err, "failed to create storage")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return storage, cleanup
}
