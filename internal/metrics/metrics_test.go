package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(NewRouter(m))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestRecorders(t *testing.T) {
	t.Parallel()
	m := New()
	m.RecordEmitted("h264-256", 1000, false)
	m.RecordEmitted("h264-256", 500, true)
	m.RecordDropped("aac-257", "sap_filter")
	m.RecordRange(3, "10_20")
	m.RecordSizeEstimate(5000, true)
	m.RecordIngested("h264-256", 1200, true)
	m.SetFilesWritten(4)

	body := scrape(t, m)
	for _, want := range []string{
		`reframer_emitted_packets_total{stream="h264-256"} 2`,
		`reframer_emitted_bytes_total{stream="h264-256"} 1500`,
		`reframer_partial_packets_total{stream="h264-256"} 1`,
		`reframer_dropped_packets_total{reason="sap_filter",stream="aac-257"} 1`,
		`reframer_ranges_total 1`,
		`reframer_current_range 3`,
		`reframer_size_estimate_bytes 5000`,
		`reframer_size_split_decisions_total{cut="previous"} 1`,
		`reframer_ingest_sync_packets_total{stream="h264-256"} 1`,
		`reframer_files_written 4`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q", want)
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	NewRouter(New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", rec.Code)
	}
}
