package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/assets/123", "/assets/{id}"},
		{"/assets/123/restore", "/assets/{id}/restore"},
		{"/transfers/scan/5f0c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f/note", "/transfers/scan/{uuid}/note"},
		{"/transfers/5f0c1d2e-3b4a-4c5d-8e9f-0a1b2c3d4e5f", "/transfers/{uuid}"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIncTransfers(t *testing.T) {
	before := testutil.ToFloat64(TransfersTotal.WithLabelValues("created"))
	IncTransfers("created")
	if got := testutil.ToFloat64(TransfersTotal.WithLabelValues("created")); got != before+1 {
		t.Errorf("got %v, want %v", got, before+1)
	}
}
