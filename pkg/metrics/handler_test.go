package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputeApproximateRequestSize(t *testing.T) {
	req := httptest.NewRequest("GET", "http://example.com/api/v1/payment/status/ref-1", nil)
	req.Header.Set("X-Referer", "checkout")

	size := computeApproximateRequestSize(req)
	// path + method + proto + header + host at minimum
	assert.Greater(t, size, len("/api/v1/payment/status/ref-1"))
}

func TestMillisecondsSince(t *testing.T) {
	start := time.Now().Add(-250 * time.Millisecond)
	elapsed := MillisecondsSince(start)
	assert.GreaterOrEqual(t, elapsed, 250.0)
	assert.Less(t, elapsed, 10_000.0)
}
