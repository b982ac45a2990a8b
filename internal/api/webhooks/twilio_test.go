package webhooks

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/aroha-app/aroha-backend/internal/db/repositories"
	"github.com/aroha-app/aroha-backend/internal/services"
)

type fakeValidator struct {
	ok bool
}

func (f fakeValidator) Validate(url string, params map[string]string, expectedSignature string) bool {
	return f.ok
}

var orgCols = []string{"id", "name", "display_name", "phone", "timezone", "created_at", "updated_at"}
var customerCols = []string{"id", "organization_id", "name", "phone", "email", "notes", "created_at", "updated_at"}

func newWebhookHandler(t *testing.T, validSignature bool) (*TwilioWebhookHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	h := &TwilioWebhookHandler{
		orgRepo:   repositories.NewOrganizationRepository(db),
		customers: repositories.NewCustomerRepository(sqlx.NewDb(db, "sqlmock")),
		svc:       services.NewCallService(db, nil, nil),
		validator: fakeValidator{ok: validSignature},
		publicURL: "https://api.example.com",
	}
	return h, mock
}

func postCallStatus(t *testing.T, h *TwilioWebhookHandler, form url.Values, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/call", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if signature != "" {
		req.Header.Set("X-Twilio-Signature", signature)
	}
	c.Request = req

	h.HandleCallStatus(c)
	return w
}

func statusForm() url.Values {
	return url.Values{
		"From":       {"+64211234567"},
		"To":         {"+6491112222"},
		"CallStatus": {"no-answer"},
		"Direction":  {"inbound"},
	}
}

func TestHandleCallStatus_MissingSignature(t *testing.T) {
	h, _ := newWebhookHandler(t, true)

	w := postCallStatus(t, h, statusForm(), "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandleCallStatus_InvalidSignature(t *testing.T) {
	h, _ := newWebhookHandler(t, false)

	w := postCallStatus(t, h, statusForm(), "bogus")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestHandleCallStatus_MissingFields(t *testing.T) {
	h, _ := newWebhookHandler(t, true)

	form := statusForm()
	form.Del("CallStatus")
	w := postCallStatus(t, h, form, "sig")
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleCallStatus_UnknownNumber(t *testing.T) {
	h, mock := newWebhookHandler(t, true)
	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE phone").
		WithArgs("+6491112222").
		WillReturnRows(sqlmock.NewRows(orgCols))

	w := postCallStatus(t, h, statusForm(), "sig")
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestHandleCallStatus_MissedCallQueuesForward(t *testing.T) {
	h, mock := newWebhookHandler(t, true)

	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE phone").
		WithArgs("+6491112222").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "kowhai-salon", "Kōwhai Salon", "+6495550000", "Pacific/Auckland", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT.*FROM customers.*WHERE organization_id").
		WithArgs("org-1", "+64211234567").
		WillReturnRows(sqlmock.NewRows(customerCols).
			AddRow("cust-1", "org-1", "Mia", "+64211234567", nil, nil, time.Now(), time.Now()))
	mock.ExpectExec("INSERT INTO calls").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO call_forward_queue").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := postCallStatus(t, h, statusForm(), "sig")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"forward_queued":true`) {
		t.Errorf("expected forward_queued true, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestHandleCallStatus_CompletedCallNotQueued(t *testing.T) {
	h, mock := newWebhookHandler(t, true)

	mock.ExpectQuery("SELECT.*FROM organizations.*WHERE phone").
		WillReturnRows(sqlmock.NewRows(orgCols).
			AddRow("org-1", "kowhai-salon", "Kōwhai Salon", "+6495550000", "Pacific/Auckland", time.Now(), time.Now()))
	mock.ExpectQuery("SELECT.*FROM customers.*WHERE organization_id").
		WillReturnRows(sqlmock.NewRows(customerCols))
	mock.ExpectExec("INSERT INTO calls").
		WillReturnResult(sqlmock.NewResult(0, 1))

	form := statusForm()
	form.Set("CallStatus", "completed")
	form.Set("CallDuration", "185")
	w := postCallStatus(t, h, form, "sig")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"forward_queued":false`) {
		t.Errorf("expected forward_queued false, got %s", w.Body.String())
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
