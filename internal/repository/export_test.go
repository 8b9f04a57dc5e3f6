package repository

import (
	"database/sql"
	"testing"

	"zapstock/internal/domain"
)

// SharedDB exposes the container database to the external test package.
func SharedDB() *sql.DB { return testDB }

// SeedProduct is newTestProduct for the external test package.
func SeedProduct(t *testing.T, stock, minStock int) *domain.Product {
	t.Helper()
	return newTestProduct(t, stock, minStock)
}
