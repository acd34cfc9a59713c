package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	return w.Body.String()
}

func TestMiddlewareLabelsByRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/issues/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/issues/42", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	body := scrape(t)
	assert.Contains(t, body, `civicpulse_http_requests_total{method="GET",path="/issues/:id",status="200"}`)
	assert.Contains(t, body, `path="unmatched",status="404"`)
	assert.NotContains(t, body, `path="/issues/42"`)
}

func TestDomainCounters(t *testing.T) {
	RecordConfirmation(OutcomeRace)
	RecordReconciliationGap("subscribe")
	RecordUpvote(false)
	RecordTransition("in_review")

	body := scrape(t)
	assert.Contains(t, body, `civicpulse_payments_confirmations_total{outcome="race_lost"}`)
	assert.Contains(t, body, `civicpulse_payments_reconciliation_gaps_total{payment_type="subscribe"}`)
	assert.Contains(t, body, `civicpulse_issues_upvotes_total{applied="false"}`)
	assert.Contains(t, body, `civicpulse_issues_status_transitions_total{status="in_review"}`)
}
