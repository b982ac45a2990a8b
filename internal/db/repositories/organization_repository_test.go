package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/aroha-app/aroha-backend/internal/db/models"
)

// ---------------------------------------------------------------------------
// Column definitions
// ---------------------------------------------------------------------------

var orgCols = []string{"id", "name", "display_name", "phone", "timezone", "created_at", "updated_at"}
var memberCols = []string{"organization_id", "user_id", "role", "created_at"}
var memberWithUserCols = []string{"organization_id", "user_id", "role", "created_at", "user_name", "user_email"}

// ---------------------------------------------------------------------------
// Row builders
// ---------------------------------------------------------------------------

func sampleOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols).
		AddRow("org-1", "kowhai-salon", "Kōwhai Salon", nil, "Pacific/Auckland", time.Now(), time.Now())
}

func emptyOrgRow() *sqlmock.Rows {
	return sqlmock.NewRows(orgCols)
}

func newOrgRepo(t *testing.T) (*OrganizationRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewOrganizationRepository(db), mock
}

// ---------------------------------------------------------------------------
// GetByName / GetByID
// ---------------------------------------------------------------------------

func TestOrgGetByName_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WithArgs("kowhai-salon").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByName(context.Background(), "kowhai-salon")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.Name != "kowhai-salon" {
		t.Errorf("Name = %s, want kowhai-salon", org.Name)
	}
	if org.Timezone != "Pacific/Auckland" {
		t.Errorf("Timezone = %s, want Pacific/Auckland", org.Timezone)
	}
}

func TestOrgGetByName_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE name").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetByName(context.Background(), "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestOrgGetByID_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE id").
		WithArgs("org-1").
		WillReturnRows(sampleOrgRow())

	org, err := repo.GetByID(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
}

func TestOrgGetByID_QueryError(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE id").
		WillReturnError(errors.New("db down"))

	_, err := repo.GetByID(context.Background(), "org-1")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestOrgGetByPhone_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE phone").
		WithArgs("+6491234567").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "kowhai-salon", "Kōwhai Salon", "+6491234567", "Pacific/Auckland", time.Now(), time.Now()))

	org, err := repo.GetByPhone(context.Background(), "+6491234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org == nil {
		t.Fatal("expected org, got nil")
	}
	if org.Phone == nil || *org.Phone != "+6491234567" {
		t.Errorf("Phone = %v, want +6491234567", org.Phone)
	}
}

func TestOrgGetByPhone_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE phone").
		WillReturnRows(emptyOrgRow())

	org, err := repo.GetByPhone(context.Background(), "+6400000000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org != nil {
		t.Error("expected nil, got non-nil")
	}
}

// ---------------------------------------------------------------------------
// Create / Update
// ---------------------------------------------------------------------------

func TestOrgCreate_DefaultsTimezone(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("INSERT INTO organizations").
		WithArgs("kowhai-salon", "Kōwhai Salon", nil, "Pacific/Auckland").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("org-1", time.Now(), time.Now()))

	org := &models.Organization{Name: "kowhai-salon", DisplayName: "Kōwhai Salon"}
	if err := repo.Create(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if org.ID != "org-1" {
		t.Errorf("ID = %s, want org-1", org.ID)
	}
	if org.Timezone != "Pacific/Auckland" {
		t.Errorf("Timezone = %s, want default", org.Timezone)
	}
}

func TestOrgUpdate(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("UPDATE organizations").
		WithArgs("org-1", "New Name", nil, "Pacific/Auckland").
		WillReturnResult(sqlmock.NewResult(0, 1))

	org := &models.Organization{ID: "org-1", DisplayName: "New Name", Timezone: "Pacific/Auckland"}
	if err := repo.Update(context.Background(), org); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Membership operations
// ---------------------------------------------------------------------------

func TestAddMember(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectExec("INSERT INTO memberships").
		WithArgs("org-1", "user-1", "admin").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.AddMember(context.Background(), "org-1", "user-1", "admin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetMember_Found(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships").
		WithArgs("org-1", "user-1").
		WillReturnRows(sqlmock.NewRows(memberCols).
			AddRow("org-1", "user-1", "owner", time.Now()))

	member, err := repo.GetMember(context.Background(), "org-1", "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member == nil {
		t.Fatal("expected member, got nil")
	}
	if member.Role != "owner" {
		t.Errorf("Role = %s, want owner", member.Role)
	}
}

func TestGetMember_NotFound(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships").
		WillReturnRows(sqlmock.NewRows(memberCols))

	member, err := repo.GetMember(context.Background(), "org-1", "user-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if member != nil {
		t.Error("expected nil, got non-nil")
	}
}

func TestListMembers(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT.*FROM memberships m.*LEFT JOIN users").
		WithArgs("org-1").
		WillReturnRows(sqlmock.NewRows(memberWithUserCols).
			AddRow("org-1", "user-1", "owner", time.Now(), "Aroha", "aroha@example.com").
			AddRow("org-1", "user-2", "member", time.Now(), "Mia", "mia@example.com"))

	members, err := repo.ListMembers(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("len = %d, want 2", len(members))
	}
	if members[0].UserEmail != "aroha@example.com" {
		t.Errorf("UserEmail = %s", members[0].UserEmail)
	}
}

// ---------------------------------------------------------------------------
// HasMembershipWithRole
// ---------------------------------------------------------------------------

func TestHasMembershipWithRole_True(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.HasMembershipWithRole(context.Background(), "aroha@example.com", []string{"owner", "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected true")
	}
}

func TestHasMembershipWithRole_False(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	ok, err := repo.HasMembershipWithRole(context.Background(), "mia@example.com", []string{"owner", "admin"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false")
	}
}

func TestHasMembershipWithRole_Error(t *testing.T) {
	repo, mock := newOrgRepo(t)
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnError(errors.New("db down"))

	_, err := repo.HasMembershipWithRole(context.Background(), "aroha@example.com", []string{"owner"})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}
