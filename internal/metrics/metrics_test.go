package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(SessionsTotal.WithLabelValues("success"))
	RecordSession("success")
	assert.Equal(t, before+1, testutil.ToFloat64(SessionsTotal.WithLabelValues("success")))

	before = testutil.ToFloat64(DeliveryAttemptsTotal.WithLabelValues("transient"))
	RecordDeliveryAttempt("transient")
	RecordDeliveryAttempt("transient")
	assert.Equal(t, before+2, testutil.ToFloat64(DeliveryAttemptsTotal.WithLabelValues("transient")))

	before = testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("fake", "merge", "ok"))
	RecordAcquisition("fake", "merge", "ok")
	assert.Equal(t, before+1, testutil.ToFloat64(AcquisitionsTotal.WithLabelValues("fake", "merge", "ok")))

	ObserveStage("acquire", time.Now().Add(-time.Second))
}

func TestRouter(t *testing.T) {
	RecordSession("success")
	srv := httptest.NewServer(NewRouter())
	defer srv.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{"/healthz", "ok"},
		{"/metrics", "ytbot_sessions_total"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Contains(t, string(body), tt.contains)
		})
	}
}

func TestServer_StartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer("127.0.0.1:0")

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
