// customer_repository.go implements CustomerRepository on sqlx, providing database
// queries for client records including the phone lookup used to attach inbound
// calls to known customers.
package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// CustomerRepository handles database operations for customers
type CustomerRepository struct {
	db *sqlx.DB
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *sqlx.DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// Create inserts a new customer
func (r *CustomerRepository) Create(ctx context.Context, customer *models.Customer) error {
	customer.ID = uuid.New().String()
	customer.CreatedAt = time.Now()
	customer.UpdatedAt = customer.CreatedAt

	query := `
		INSERT INTO customers (id, organization_id, name, phone, email, notes, created_at, updated_at)
		VALUES (:id, :organization_id, :name, :phone, :email, :notes, :created_at, :updated_at)
	`

	_, err := r.db.NamedExecContext(ctx, query, customer)
	if err != nil {
		return fmt.Errorf("failed to create customer: %w", err)
	}

	return nil
}

// GetByID retrieves a customer by ID within an organization
func (r *CustomerRepository) GetByID(ctx context.Context, orgID, customerID string) (*models.Customer, error) {
	query := `
		SELECT id, organization_id, name, phone, email, notes, created_at, updated_at
		FROM customers
		WHERE organization_id = $1 AND id = $2
	`

	customer := &models.Customer{}
	err := r.db.GetContext(ctx, customer, query, orgID, customerID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}

	return customer, nil
}

// FindByPhone retrieves a customer by phone number within an organization.
// Numbers are stored normalized to E.164, so the lookup is an exact match.
func (r *CustomerRepository) FindByPhone(ctx context.Context, orgID, phone string) (*models.Customer, error) {
	query := `
		SELECT id, organization_id, name, phone, email, notes, created_at, updated_at
		FROM customers
		WHERE organization_id = $1 AND phone = $2
	`

	customer := &models.Customer{}
	err := r.db.GetContext(ctx, customer, query, orgID, phone)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find customer by phone: %w", err)
	}

	return customer, nil
}

// List retrieves a paginated list of an organization's customers
func (r *CustomerRepository) List(ctx context.Context, orgID string, limit, offset int) ([]*models.Customer, error) {
	query := `
		SELECT id, organization_id, name, phone, email, notes, created_at, updated_at
		FROM customers
		WHERE organization_id = $1
		ORDER BY name ASC
		LIMIT $2 OFFSET $3
	`

	customers := make([]*models.Customer, 0)
	err := r.db.SelectContext(ctx, &customers, query, orgID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	return customers, nil
}

// Search searches an organization's customers by name, phone, or email
func (r *CustomerRepository) Search(ctx context.Context, orgID, query string, limit, offset int) ([]*models.Customer, error) {
	searchQuery := `
		SELECT id, organization_id, name, phone, email, notes, created_at, updated_at
		FROM customers
		WHERE organization_id = $1
		  AND (name ILIKE $2 OR phone ILIKE $2 OR email ILIKE $2)
		ORDER BY name ASC
		LIMIT $3 OFFSET $4
	`

	pattern := "%" + query + "%"
	customers := make([]*models.Customer, 0)
	err := r.db.SelectContext(ctx, &customers, searchQuery, orgID, pattern, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}

	return customers, nil
}

// Update updates a customer's details
func (r *CustomerRepository) Update(ctx context.Context, customer *models.Customer) error {
	customer.UpdatedAt = time.Now()

	query := `
		UPDATE customers
		SET name = :name, phone = :phone, email = :email, notes = :notes, updated_at = :updated_at
		WHERE organization_id = :organization_id AND id = :id
	`

	_, err := r.db.NamedExecContext(ctx, query, customer)
	if err != nil {
		return fmt.Errorf("failed to update customer: %w", err)
	}

	return nil
}

// Delete removes a customer (cascades to their appointments)
func (r *CustomerRepository) Delete(ctx context.Context, orgID, customerID string) error {
	query := `DELETE FROM customers WHERE organization_id = $1 AND id = $2`
	_, err := r.db.ExecContext(ctx, query, orgID, customerID)
	if err != nil {
		return fmt.Errorf("failed to delete customer: %w", err)
	}

	return nil
}

// Count returns the number of customers in an organization
func (r *CustomerRepository) Count(ctx context.Context, orgID string) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM customers WHERE organization_id = $1`
	err := r.db.GetContext(ctx, &count, query, orgID)
	if err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}

	return count, nil
}
