package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("expected metrics, got nil")
	}

	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequests", m.HTTPRequests},
		{"HTTPDuration", m.HTTPDuration},
		{"AuthFailures", m.AuthFailures},
		{"Logins", m.Logins},
		{"TokensIssued", m.TokensIssued},
		{"Registrations", m.Registrations},
		{"ItemOperations", m.ItemOperations},
		{"EventsPublished", m.EventsPublished},
		{"AuditDropped", m.AuditDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestAuthFailureMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordAuthFailure(ReasonMissingHeader)
	m.RecordAuthFailure(ReasonExpired)
	m.RecordAuthFailure(ReasonExpired)

	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues(ReasonMissingHeader)); got != 1 {
		t.Errorf("missing_header = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues(ReasonExpired)); got != 2 {
		t.Errorf("expired = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AuthFailures.WithLabelValues(ReasonInvalidSignature)); got != 0 {
		t.Errorf("invalid_signature = %v, want 0", got)
	}
}

func TestLoginMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLogin(LoginSuccess)
	m.RecordLogin(LoginInvalid)

	if got := testutil.ToFloat64(m.Logins.WithLabelValues(LoginSuccess)); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TokensIssued); got != 1 {
		t.Errorf("tokens issued = %v, want 1", got)
	}
}

func TestHTTPMetrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/api/items/{id}", 404, 5*time.Millisecond)

	if got := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/items/{id}", "404")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(m.HTTPDuration); got != 1 {
		t.Errorf("duration series = %d, want 1", got)
	}
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics

	m.RecordHTTPRequest("GET", "/", 200, time.Millisecond)
	m.RecordAuthFailure(ReasonExpired)
	m.RecordLogin(LoginSuccess)
	m.RecordRegistration(true)
	m.RecordItemOperation("create", "ok")
	m.RecordEventPublished("created", false)
	m.RecordAuditDropped()
}

func TestHandler(t *testing.T) {
	reg, m := NewRegistry(nil)
	m.RecordItemOperation("create", "ok")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{
		`itemkeeper_item_operations_total{operation="create",result="ok"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
