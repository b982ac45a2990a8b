package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

var customerCols = []string{"id", "organization_id", "name", "phone", "email", "notes", "created_at", "updated_at"}

func newCustomerRepo(t *testing.T) (*CustomerRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewCustomerRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestCustomerCreate(t *testing.T) {
	repo, mock := newCustomerRepo(t)
	mock.ExpectExec("INSERT INTO customers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	phone := "+64211234567"
	customer := &models.Customer{OrganizationID: "org-1", Name: "Mia", Phone: &phone}
	if err := repo.Create(context.Background(), customer); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer.ID == "" {
		t.Error("expected generated ID")
	}
}

func TestCustomerFindByPhone_Found(t *testing.T) {
	repo, mock := newCustomerRepo(t)
	mock.ExpectQuery("SELECT.*FROM customers.*WHERE organization_id").
		WithArgs("org-1", "+64211234567").
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow("cust-1", "org-1", "Mia", "+64211234567", nil, nil, time.Now(), time.Now()))

	customer, err := repo.FindByPhone(context.Background(), "org-1", "+64211234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer == nil {
		t.Fatal("expected customer, got nil")
	}
	if customer.Name != "Mia" {
		t.Errorf("Name = %s, want Mia", customer.Name)
	}
}

func TestCustomerFindByPhone_NotFound(t *testing.T) {
	repo, mock := newCustomerRepo(t)
	mock.ExpectQuery("SELECT.*FROM customers.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(customerCols))

	customer, err := repo.FindByPhone(context.Background(), "org-1", "+64210000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if customer != nil {
		t.Error("expected nil for unknown number")
	}
}

func TestCustomerSearch(t *testing.T) {
	repo, mock := newCustomerRepo(t)
	mock.ExpectQuery("SELECT.*FROM customers.*ILIKE").
		WithArgs("org-1", "%mia%", 20, 0).
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow("cust-1", "org-1", "Mia", "+64211234567", nil, nil, time.Now(), time.Now()))

	customers, err := repo.Search(context.Background(), "org-1", "mia", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("len = %d, want 1", len(customers))
	}
}

func TestCustomerCount(t *testing.T) {
	repo, mock := newCustomerRepo(t)
	mock.ExpectQuery("SELECT COUNT.*FROM customers").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	count, err := repo.Count(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 42 {
		t.Errorf("count = %d, want 42", count)
	}
}
