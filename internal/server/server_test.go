package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/priont/epos-bridge/internal/config"
	"github.com/priont/epos-bridge/internal/journal"
)

type stubSender struct {
	mu      sync.Mutex
	sent    [][]byte
	sendErr error
}

func (s *stubSender) Send(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, payload)
	return nil
}

func (s *stubSender) payloads() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent
}

func newTestServer(jnl *journal.Journal, adminToken string) (*Server, *stubSender) {
	cfg := &config.Config{}
	cfg.Printer.PaperWidth = 576
	cfg.Admin.Token = adminToken

	sender := &stubSender{}
	return New(cfg, sender, jnl, zerolog.Nop()), sender
}

func openTestJournal(t *testing.T) *journal.Journal {
	t.Helper()

	jnl, err := journal.Open(filepath.Join(t.TempDir(), "jobs.db"))
	if err != nil {
		t.Fatalf("Failed to open journal: %v", err)
	}
	t.Cleanup(func() { jnl.Close() })

	return jnl
}

func eposEnvelope(inner string) string {
	return `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body>` +
		`<epos-print xmlns="http://www.epson-pos.com/schemas/2011/03/epos-print">` +
		inner +
		`</epos-print></s:Body></s:Envelope>`
}

func postPrint(s *Server, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/cgi-bin/epos/service.cgi", strings.NewReader(body))
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func TestHandlePrint_PulseJob(t *testing.T) {
	s, sender := newTestServer(nil, "")

	rr := postPrint(s, eposEnvelope(`<pulse drawer="drawer_1" time="pulse_100"/>`))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/xml; charset=utf-8" {
		t.Errorf("Expected XML content type, got %q", ct)
	}
	if !strings.Contains(rr.Body.String(), `success="true"`) {
		t.Errorf("Expected success envelope, got %s", rr.Body.String())
	}

	sent := sender.payloads()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 payload sent to the printer, got %d", len(sent))
	}

	want := []byte{
		0x1B, 0x40, // initialize
		0x1B, 0x70, 0x00, 0x32, 0x32, // kick pin 0, 100ms on/off
		0x1B, 0x64, 0x06, // feed
		0x1D, 0x56, 0x00, // cut
	}
	if !bytes.Equal(sent[0], want) {
		t.Errorf("Expected payload % X, got % X", want, sent[0])
	}
}

func TestHandlePrint_ImageJob(t *testing.T) {
	s, sender := newTestServer(nil, "")

	// A single 0xFF row, 8 pixels wide, centered on 576-dot paper.
	rr := postPrint(s, eposEnvelope(`<image width="8" height="1">/w==</image>`))

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	sent := sender.payloads()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 payload sent to the printer, got %d", len(sent))
	}

	row := make([]byte, 72)
	row[35] = 0x0F
	row[36] = 0xF0
	want := []byte{0x1B, 0x40, 0x1D, 0x76, 0x30, 0x00, 0x48, 0x00, 0x01, 0x00}
	want = append(want, row...)
	want = append(want, 0x1B, 0x64, 0x06, 0x1D, 0x56, 0x00)

	if !bytes.Equal(sent[0], want) {
		t.Errorf("Expected payload % X, got % X", want, sent[0])
	}
}

func TestHandlePrint_EmptyBody(t *testing.T) {
	s, sender := newTestServer(nil, "")

	rr := postPrint(s, "")

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for empty body, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `success="true"`) {
		t.Errorf("Expected success envelope, got %s", rr.Body.String())
	}

	sent := sender.payloads()
	if len(sent) != 1 {
		t.Fatalf("Expected 1 payload sent to the printer, got %d", len(sent))
	}

	want := []byte{0x1B, 0x40, 0x1B, 0x64, 0x06, 0x1D, 0x56, 0x00}
	if !bytes.Equal(sent[0], want) {
		t.Errorf("Expected bare initialize/feed/cut, got % X", sent[0])
	}
}

func TestHandlePrint_MalformedBody(t *testing.T) {
	s, sender := newTestServer(nil, "")

	rr := postPrint(s, `<epos-print><image width="16">`)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `success="false"`) {
		t.Errorf("Expected failure envelope, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "SchemaError") {
		t.Errorf("Expected SchemaError code, got %s", rr.Body.String())
	}
	if len(sender.payloads()) != 0 {
		t.Errorf("Expected no payload sent for a rejected job, got %d", len(sender.payloads()))
	}
}

func TestHandlePrint_SendFailure(t *testing.T) {
	s, sender := newTestServer(nil, "")
	sender.sendErr = errors.New("printer unreachable")

	rr := postPrint(s, eposEnvelope(`<pulse/>`))

	// Clients read the envelope's success flag, so the transport answer
	// stays 200 even when the printer is down.
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on send failure, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `success="false"`) {
		t.Errorf("Expected failure envelope, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "EPTR_COM_ERROR") {
		t.Errorf("Expected EPTR_COM_ERROR code, got %s", rr.Body.String())
	}
}

func TestHandlePrint_RecordsJournal(t *testing.T) {
	jnl := openTestJournal(t)
	s, _ := newTestServer(jnl, "")

	rr := postPrint(s, eposEnvelope(`<pulse drawer="drawer_2"/>`))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	entries, err := jnl.List(context.Background(), 10)
	if err != nil {
		t.Fatalf("Failed to list journal entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Expected 1 journal entry, got %d", len(entries))
	}

	e := entries[0]
	if e.Outcome != "printed" {
		t.Errorf("Expected outcome printed, got %q", e.Outcome)
	}
	if e.Pulses != 1 || e.Rasters != 0 {
		t.Errorf("Expected 1 pulse and 0 rasters, got %d and %d", e.Pulses, e.Rasters)
	}
	if e.Bytes != 13 {
		t.Errorf("Expected 13 payload bytes, got %d", e.Bytes)
	}
}

func TestHandlePrint_AnyPath(t *testing.T) {
	s, sender := newTestServer(nil, "")

	for _, path := range []string{"/", "/cgi-bin/epos/service.cgi?devid=local_printer", "/print"} {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(eposEnvelope(`<pulse/>`)))
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200 for POST %s, got %d", path, rr.Code)
		}
	}

	if len(sender.payloads()) != 3 {
		t.Errorf("Expected 3 payloads, got %d", len(sender.payloads()))
	}
}

func TestHealthEndpoints(t *testing.T) {
	s, _ := newTestServer(nil, "")

	for _, path := range []string{"/", "/health"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		s.router.ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("Expected status 200 for GET %s, got %d", path, rr.Code)
		}
		if rr.Body.String() != "Printer proxy running" {
			t.Errorf("Expected health banner for GET %s, got %q", path, rr.Body.String())
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(nil, "")

	// Push one job through so the outcome counter has a sample to expose.
	if rr := postPrint(s, eposEnvelope(`<pulse/>`)); rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for print, got %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	for _, name := range []string{"epos_print_jobs_total", "epos_print_payload_bytes", "epos_http_requests_total"} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("Expected %s in metrics exposition", name)
		}
	}
}

func TestCORS_EchoesOrigin(t *testing.T) {
	s, _ := newTestServer(nil, "")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://pos-terminal.local")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://pos-terminal.local" {
		t.Errorf("Expected origin echoed back, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Expected credentials allowed, got %q", got)
	}
}

func TestCORS_Preflight(t *testing.T) {
	s, sender := newTestServer(nil, "")

	req := httptest.NewRequest(http.MethodOptions, "/cgi-bin/epos/service.cgi", nil)
	req.Header.Set("Origin", "http://pos-terminal.local")
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200 for preflight, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Expected POST in allowed methods, got %q", got)
	}
	if got := rr.Header().Get("Access-Control-Max-Age"); got != "86400" {
		t.Errorf("Expected max-age 86400, got %q", got)
	}
	if len(sender.payloads()) != 0 {
		t.Errorf("Expected preflight to stop before the print handler")
	}
}

func TestAdminAuth(t *testing.T) {
	jnl := openTestJournal(t)
	s, _ := newTestServer(jnl, "hunter2")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic hunter2", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "Bearer hunter2", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			s.router.ServeHTTP(rr, req)

			if rr.Code != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestAdminAuth_OpenWithoutToken(t *testing.T) {
	jnl := openTestJournal(t)
	s, _ := newTestServer(jnl, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200 with no token configured, got %d", rr.Code)
	}
}

func TestAdminJobs_JournalDisabled(t *testing.T) {
	s, _ := newTestServer(nil, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with the journal disabled, got %d", rr.Code)
	}
}

func TestAdminJobs_ListAndGet(t *testing.T) {
	jnl := openTestJournal(t)
	s, _ := newTestServer(jnl, "")

	entry := journal.Entry{
		ID:         "job-1",
		ReceivedAt: time.Now().UTC(),
		Origin:     "192.168.1.50",
		Rasters:    1,
		Bytes:      96,
		Outcome:    "printed",
	}
	if err := jnl.Record(context.Background(), entry); err != nil {
		t.Fatalf("Failed to record entry: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/admin/jobs", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"job-1"`) {
		t.Errorf("Expected job-1 in listing, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/jobs/job-1", nil)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"192.168.1.50"`) {
		t.Errorf("Expected origin in entry, got %s", rr.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/admin/jobs/missing", nil)
	rr = httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown job, got %d", rr.Code)
	}
}

func TestAdminJobs_InvalidLimit(t *testing.T) {
	jnl := openTestJournal(t)
	s, _ := newTestServer(jnl, "")

	req := httptest.NewRequest(http.MethodGet, "/admin/jobs?limit=abc", nil)
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for bad limit, got %d", rr.Code)
	}
}
