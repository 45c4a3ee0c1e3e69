package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveJobIncrementsCounters(t *testing.T) {
	before := testutil.ToFloat64(JobsTotal.WithLabelValues("softmux", ResultCompleted))
	ObserveJob("softmux", ResultCompleted, 2*time.Second)
	after := testutil.ToFloat64(JobsTotal.WithLabelValues("softmux", ResultCompleted))
	if after != before+1 {
		t.Fatalf("expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestObserveUploadTracksBytesOnlyWhenAccepted(t *testing.T) {
	bytesBefore := testutil.ToFloat64(UploadBytesTotal.WithLabelValues("video"))
	ObserveUpload("video", "file", false, 100)
	if got := testutil.ToFloat64(UploadBytesTotal.WithLabelValues("video")); got != bytesBefore {
		t.Fatalf("rejected upload should not add bytes, got %v", got)
	}
	ObserveUpload("video", "file", true, 100)
	if got := testutil.ToFloat64(UploadBytesTotal.WithLabelValues("video")); got != bytesBefore+100 {
		t.Fatalf("expected +100 bytes, got %v", got)
	}
}

func TestObserveDelivery(t *testing.T) {
	failed := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("failed"))
	ObserveDelivery(errors.New("x"))
	if got := testutil.ToFloat64(DeliveriesTotal.WithLabelValues("failed")); got != failed+1 {
		t.Fatalf("expected failed deliveries to increase, got %v", got)
	}
}

func TestCollectorsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"JobsRunning", JobsRunning},
		{"JobsWaiting", JobsWaiting},
		{"EncoderFailuresTotal", EncoderFailuresTotal},
		{"SessionsActive", SessionsActive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}
