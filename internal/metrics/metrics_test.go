package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorders(t *testing.T) {
	Init()
	Init()

	ObserveOperation("make_full_payment", "", 5*time.Millisecond)
	ObserveOperation("make_full_payment", "validation", time.Millisecond)
	if got := testutil.ToFloat64(operationsTotal.WithLabelValues("make_full_payment", "success")); got != 1 {
		t.Errorf("success count = %v, want 1", got)
	}

	before := testutil.ToFloat64(feesCollected)
	RecordPayment("settled", 495, 5)
	if got := testutil.ToFloat64(feesCollected) - before; got != 5 {
		t.Errorf("fees delta = %v, want 5", got)
	}
	if got := testutil.ToFloat64(paymentsNet.WithLabelValues("settled")); got != 495 {
		t.Errorf("net = %v, want 495", got)
	}
}
