package v1

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/services"
)

var callCols = []string{
	"id", "organization_id", "customer_id", "from_number", "to_number", "direction", "status",
	"summary", "summary_rewritten", "recording_path", "started_at", "duration_seconds", "created_at",
}

type fakeRewriter struct{}

func (fakeRewriter) Rewrite(ctx context.Context, summary string) (string, error) {
	return "Polished: " + summary, nil
}

func newCallRouter(t *testing.T) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	svc := services.NewCallService(db, nil, fakeRewriter{})
	h := NewCallHandlers(db, svc)

	r := gin.New()
	r.GET("/orgs/:orgID/calls", h.ListCallsHandler())
	r.GET("/orgs/:orgID/calls/:callID", h.GetCallHandler())
	r.POST("/orgs/:orgID/calls/:callID/rewrite-summary", h.RewriteSummaryHandler())
	r.POST("/orgs/:orgID/forward-queue/process", h.ProcessForwardQueueHandler())
	return r, mock
}

func TestListCalls(t *testing.T) {
	r, mock := newCallRouter(t)
	mock.ExpectQuery("SELECT.*FROM calls").
		WithArgs("org-1", 20, 0).
		WillReturnRows(sqlmock.NewRows(callCols).
			AddRow("call-1", "org-1", nil, "+64211234567", "+6491112222", "inbound", "no-answer",
				nil, nil, nil, time.Now(), 0, time.Now()))

	w := performJSON(t, r, http.MethodGet, "/orgs/org-1/calls", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "call-1") {
		t.Errorf("expected call in response, got %s", w.Body.String())
	}
}

func TestGetCall_NotFound(t *testing.T) {
	r, mock := newCallRouter(t)
	mock.ExpectQuery("SELECT.*FROM calls").
		WillReturnRows(sqlmock.NewRows(callCols))

	w := performJSON(t, r, http.MethodGet, "/orgs/org-1/calls/missing", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRewriteSummary_NotFound(t *testing.T) {
	r, mock := newCallRouter(t)
	mock.ExpectQuery("SELECT.*FROM calls").
		WillReturnRows(sqlmock.NewRows(callCols))

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/calls/missing/rewrite-summary", "")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRewriteSummary_OK(t *testing.T) {
	r, mock := newCallRouter(t)
	summary := "caller asked about friday availability"
	mock.ExpectQuery("SELECT.*FROM calls").
		WillReturnRows(sqlmock.NewRows(callCols).
			AddRow("call-1", "org-1", nil, "+64211234567", "+6491112222", "inbound", "completed",
				summary, nil, nil, time.Now(), 120, time.Now()))
	mock.ExpectExec("UPDATE calls").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/calls/call-1/rewrite-summary", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Polished:") {
		t.Errorf("expected rewritten summary, got %s", w.Body.String())
	}
}

func TestProcessForwardQueue_BadLimit(t *testing.T) {
	r, _ := newCallRouter(t)

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/forward-queue/process?limit=0", "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestProcessForwardQueue_Empty(t *testing.T) {
	r, mock := newCallRouter(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT.*FROM call_forward_queue").
		WithArgs("org-1", 10).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "call_id", "destination_number", "state",
			"attempts", "last_error", "queued_at", "processed_at",
		}))
	mock.ExpectCommit()

	w := performJSON(t, r, http.MethodPost, "/orgs/org-1/forward-queue/process", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"processed":0`) {
		t.Errorf("expected zero processed, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
