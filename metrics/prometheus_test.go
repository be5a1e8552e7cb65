package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestUpdateBestPricesClearsEmptiedSide(t *testing.T) {
	UpdateBestPrices("TEST-GAUGE", 50000, 50100)

	if got := testutil.ToFloat64(BestBidPrice.WithLabelValues("TEST-GAUGE")); got != 50000 {
		t.Fatalf("Expected best bid 50000, got %v", got)
	}

	// Bid side emptied: the gauge must drop to zero, not hold 50000
	UpdateBestPrices("TEST-GAUGE", 0, 50100)

	if got := testutil.ToFloat64(BestBidPrice.WithLabelValues("TEST-GAUGE")); got != 0 {
		t.Errorf("Expected best bid 0 after side emptied, got %v", got)
	}
	if got := testutil.ToFloat64(BestAskPrice.WithLabelValues("TEST-GAUGE")); got != 50100 {
		t.Errorf("Expected best ask 50100, got %v", got)
	}
}
