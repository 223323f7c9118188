package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHandlerExposesSeries(t *testing.T) {
	TrackMint("simulated", "ok", 10*time.Millisecond)
	TrackResolver("transfer-event", "hit")
	TrackReconcile("publish", "ok")
	TrackScan("already-used")

	body := scrape(t)
	assert.Contains(t, body, `ticket_mint_duration_seconds_count{mode="simulated",outcome="ok"}`)
	assert.Contains(t, body, `ticket_tokenid_resolver_total{result="hit",strategy="transfer-event"} 1`)
	assert.Contains(t, body, `ticket_reconcile_total{stage="publish",status="ok"} 1`)
	assert.Contains(t, body, `ticket_scan_total{result="already-used"} 1`)
}
