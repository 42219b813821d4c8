package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	before := testutil.ToFloat64(publishes.WithLabelValues("sent"))
	RecordPublish("sent")
	RecordPublish("sent")
	if got := testutil.ToFloat64(publishes.WithLabelValues("sent")); got != before+2 {
		t.Fatalf("unexpected publish count: got=%v want=%v", got, before+2)
	}

	RecordConnectAttempt("absent")
	RecordHandshake("ready")
	RecordPollTick("published")
	RecordHTTPRequest("GET", "/health", 200, 12*time.Millisecond)
}

func TestPresenceGauges(t *testing.T) {
	SetPresenceEnabled(true)
	if got := testutil.ToFloat64(presenceEnabled); got != 1 {
		t.Fatalf("presence enabled gauge: got=%v", got)
	}
	SetPresenceEnabled(false)
	if got := testutil.ToFloat64(presenceEnabled); got != 0 {
		t.Fatalf("presence disabled gauge: got=%v", got)
	}
	at := time.Unix(1700000000, 0)
	RecordPublishTime(at)
	if got := testutil.ToFloat64(lastPublish); got != float64(at.Unix()) {
		t.Fatalf("last publish gauge: got=%v", got)
	}
}
