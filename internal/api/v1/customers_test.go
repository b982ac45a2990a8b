package v1

import (
	"net/http"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

var customerCols = []string{"id", "organization_id", "name", "phone", "email", "notes", "created_at", "updated_at"}

func newCustomerRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	h := NewCustomerHandlers(sqlx.NewDb(db, "sqlmock"))

	r := gin.New()
	r.GET("/orgs/:orgID/customers", h.ListCustomersHandler())
	r.POST("/orgs/:orgID/customers", h.CreateCustomerHandler())
	r.GET("/orgs/:orgID/customers/:customerID", h.GetCustomerHandler())
	r.PUT("/orgs/:orgID/customers/:customerID", h.UpdateCustomerHandler())
	r.DELETE("/orgs/:orgID/customers/:customerID", h.DeleteCustomerHandler())
	return r, mock
}

func TestCreateCustomer_NormalizesPhone(t *testing.T) {
	r, mock := newCustomerRouter(t)
	mock.ExpectExec("INSERT INTO customers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/customers",
		`{"name":"Mia","phone":"021 123 4567"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "+64211234567") {
		t.Errorf("expected normalized phone in response, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestCreateCustomer_InvalidPhone(t *testing.T) {
	r, _ := newCustomerRouter(t)

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/customers",
		`{"name":"Mia","phone":"not-a-number"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "E.164") {
		t.Errorf("expected phone validation message, got %s", w.Body.String())
	}
}

func TestCreateCustomer_MissingName(t *testing.T) {
	r, _ := newCustomerRouter(t)

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/customers", `{"phone":"+64211234567"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	r, mock := newCustomerRouter(t)
	mock.ExpectQuery("SELECT.*FROM customers").
		WillReturnRows(sqlmock.NewRows(customerCols))

	w := performJSON(t, r, http.MethodGet, "/orgs/org-1/customers/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestListCustomers(t *testing.T) {
	r, mock := newCustomerRouter(t)
	mock.ExpectQuery("SELECT.*FROM customers").
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow("cust-1", "org-1", "Mia", "+64211234567", nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := performJSON(t, r, http.MethodGet, "/orgs/org-1/customers", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Mia") {
		t.Errorf("expected customer in response, got %s", w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"total":1`) {
		t.Errorf("expected total in pagination, got %s", w.Body.String())
	}
}

func TestListCustomers_Search(t *testing.T) {
	r, mock := newCustomerRouter(t)
	mock.ExpectQuery("SELECT.*FROM customers").
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow("cust-1", "org-1", "Mia", "+64211234567", nil, nil, time.Now(), time.Now()))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	w := performJSON(t, r, http.MethodGet, "/orgs/org-1/customers?q=mia", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestDeleteCustomer(t *testing.T) {
	r, mock := newCustomerRouter(t)
	mock.ExpectExec("DELETE FROM customers").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := performJSON(t, r, http.MethodDelete, "/orgs/org-1/customers/cust-1", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}
