package audit_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedback-system/feedback-system/internal/audit"
	"github.com/feedback-system/feedback-system/internal/db/models"
)

const (
	feedbackID = "9b2e4c1a-7d3f-4e8a-b6c5-1f0e2d3c4b5a"
	moderator  = "6f1c2b9e-3a4d-4c1b-9e2f-0a1b2c3d4e5f"
)

func approveRecord() *models.AuditLog {
	id := feedbackID
	ip := "203.0.113.7"
	return &models.AuditLog{
		ID:            "c0ffee00-0000-4000-8000-000000000001",
		Action:        models.ActionApprove,
		EntityType:    models.EntityFeedback,
		EntityID:      &id,
		AdminID:       moderator,
		AdminUsername: "moderator1",
		Details:       map[string]interface{}{"previousStatus": "pending", "newStatus": "approved"},
		IPAddress:     &ip,
		Timestamp:     time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC),
	}
}

func exportRecord(count int) *models.AuditLog {
	return &models.AuditLog{
		Action:        models.ActionExport,
		EntityType:    models.EntityFeedback,
		AdminID:       moderator,
		AdminUsername: "moderator1",
		Details:       map[string]interface{}{"exportCount": count, "filters": map[string]interface{}{"status": "approved"}},
		Timestamp:     time.Date(2024, 3, 5, 10, 5, 0, 0, time.UTC),
	}
}

// assertSameRecord checks the fields a downstream SIEM keys on.
func assertSameRecord(t *testing.T, want, got *models.AuditLog) {
	t.Helper()
	assert.Equal(t, want.Action, got.Action)
	assert.Equal(t, want.EntityType, got.EntityType)
	assert.Equal(t, want.EntityID, got.EntityID)
	assert.Equal(t, want.AdminID, got.AdminID)
	assert.Equal(t, want.AdminUsername, got.AdminUsername)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	// details round-trip through JSON, so numbers come back as float64
	wantDetails, err := json.Marshal(want.Details)
	require.NoError(t, err)
	gotDetails, err := json.Marshal(got.Details)
	require.NoError(t, err)
	assert.JSONEq(t, string(wantDetails), string(gotDetails))
}

// collector is a webhook endpoint that keeps every request body.
type collector struct {
	mu      sync.Mutex
	bodies  [][]byte
	headers []http.Header
	status  int
	got     chan struct{}
}

func newCollector(t *testing.T, status int) (*collector, string) {
	t.Helper()
	c := &collector{status: status, got: make(chan struct{}, 16)}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.bodies = append(c.bodies, body)
		c.headers = append(c.headers, r.Header.Clone())
		c.mu.Unlock()
		w.WriteHeader(c.status)
		c.got <- struct{}{}
	}))
	t.Cleanup(srv.Close)
	return c, srv.URL
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for webhook delivery")
	}
}

func (c *collector) body(i int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bodies[i]
}

// ---------------------------------------------------------------------------
// NewMultiShipper
// ---------------------------------------------------------------------------

func TestNewMultiShipper(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name    string
		cfgs    []audit.ShipperConfig
		wantLen int
		wantErr bool
	}{
		{"none configured", nil, 0, false},
		{"disabled skipped", []audit.ShipperConfig{{Type: "webhook", Webhook: &audit.WebhookConfig{URL: "http://siem.invalid"}}}, 0, false},
		{"file", []audit.ShipperConfig{{Enabled: true, Type: "file", File: &audit.FileConfig{Path: filepath.Join(dir, "a.jsonl")}}}, 1, false},
		{"unknown type", []audit.ShipperConfig{{Enabled: true, Type: "syslog"}}, 0, true},
		{"webhook without config", []audit.ShipperConfig{{Enabled: true, Type: "webhook"}}, 0, true},
		{"file without config", []audit.ShipperConfig{{Enabled: true, Type: "file"}}, 0, true},
		{"file in missing dir", []audit.ShipperConfig{{Enabled: true, Type: "file", File: &audit.FileConfig{Path: filepath.Join(dir, "nodir", "a.jsonl")}}}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, err := audit.NewMultiShipper(tt.cfgs)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			defer ms.Close()
			assert.Equal(t, tt.wantLen, ms.Len())
			assert.NoError(t, ms.Ship(context.Background(), approveRecord()))
		})
	}
}

func TestMultiShipper_DeliversPastFailingDestination(t *testing.T) {
	down, downURL := newCollector(t, http.StatusServiceUnavailable)
	up, upURL := newCollector(t, http.StatusOK)
	path := filepath.Join(t.TempDir(), "audit.jsonl")

	ms, err := audit.NewMultiShipper([]audit.ShipperConfig{
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: downURL, Timeout: time.Second}},
		{Enabled: true, Type: "webhook", Webhook: &audit.WebhookConfig{URL: upURL, Timeout: time.Second}},
		{Enabled: true, Type: "file", File: &audit.FileConfig{Path: path}},
	})
	require.NoError(t, err)

	err = ms.Ship(context.Background(), approveRecord())
	assert.ErrorContains(t, err, "503")
	require.NoError(t, ms.Close())

	down.wait(t)
	up.wait(t)
	var got models.AuditLog
	require.NoError(t, json.Unmarshal(up.body(0), &got))
	assertSameRecord(t, approveRecord(), &got)

	lines := readLines(t, path)
	require.Len(t, lines, 1)
}

// ---------------------------------------------------------------------------
// WebhookShipper
// ---------------------------------------------------------------------------

func TestWebhookShipper_RecordSurvivesDelivery(t *testing.T) {
	c, url := newCollector(t, http.StatusAccepted)
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:     url,
		Headers: map[string]string{"Authorization": "Splunk token-1"},
	})
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Ship(context.Background(), approveRecord()))
	c.wait(t)

	assert.Equal(t, "application/json", c.headers[0].Get("Content-Type"))
	assert.Equal(t, "Splunk token-1", c.headers[0].Get("Authorization"))

	var got models.AuditLog
	require.NoError(t, json.Unmarshal(c.body(0), &got))
	assertSameRecord(t, approveRecord(), &got)
	require.NotNil(t, got.IPAddress)
	assert.Equal(t, "203.0.113.7", *got.IPAddress)
}

func TestWebhookShipper_RejectedByEndpoint(t *testing.T) {
	_, url := newCollector(t, http.StatusUnauthorized)
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	defer ws.Close()

	assert.ErrorContains(t, ws.Ship(context.Background(), exportRecord(3)), "401")
}

func TestWebhookShipper_BatchesAsArray(t *testing.T) {
	c, url := newCollector(t, http.StatusOK)
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           url,
		BatchSize:     2,
		FlushInterval: time.Minute,
	})
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Ship(context.Background(), approveRecord()))
	require.NoError(t, ws.Ship(context.Background(), exportRecord(12)))
	c.wait(t)

	var batch []*models.AuditLog
	require.NoError(t, json.Unmarshal(c.body(0), &batch))
	require.Len(t, batch, 2)
	assertSameRecord(t, approveRecord(), batch[0])
	assertSameRecord(t, exportRecord(12), batch[1])
	assert.Nil(t, batch[1].EntityID)
}

func TestWebhookShipper_FlushesOnInterval(t *testing.T) {
	c, url := newCollector(t, http.StatusOK)
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           url,
		BatchSize:     100,
		FlushInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer ws.Close()

	require.NoError(t, ws.Ship(context.Background(), exportRecord(1)))
	c.wait(t)
	assert.True(t, strings.HasPrefix(string(c.body(0)), "["))
}

func TestWebhookShipper_CloseFlushesPending(t *testing.T) {
	c, url := newCollector(t, http.StatusOK)
	ws, err := audit.NewWebhookShipper(&audit.WebhookConfig{
		URL:           url,
		BatchSize:     100,
		FlushInterval: time.Hour,
	})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, ws.Ship(context.Background(), exportRecord(i)))
	}
	require.NoError(t, ws.Close())
	require.NoError(t, ws.Close())
	c.wait(t)

	var batch []*models.AuditLog
	require.NoError(t, json.Unmarshal(c.body(0), &batch))
	assert.Len(t, batch, 3)
}

// ---------------------------------------------------------------------------
// FileShipper
// ---------------------------------------------------------------------------

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestFileShipper_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path})
	require.NoError(t, err)

	want := []*models.AuditLog{approveRecord(), exportRecord(7)}
	for _, r := range want {
		require.NoError(t, fs.Ship(context.Background(), r))
	}
	require.NoError(t, fs.Close())

	lines := readLines(t, path)
	require.Len(t, lines, len(want))
	for i, line := range lines {
		var got models.AuditLog
		require.NoError(t, json.Unmarshal([]byte(line), &got), line)
		assertSameRecord(t, want[i], &got)
	}
	assert.NotContains(t, lines[1], "entityId")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestFileShipper_RotationKeepsBoundedBackups(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	oversize := func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
		require.NoError(t, err)
		_, err = f.Write(make([]byte, 1024*1024+1))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}

	fs, err := audit.NewFileShipper(&audit.FileConfig{Path: path, MaxSizeMB: 1, MaxBackups: 1})
	require.NoError(t, err)
	defer fs.Close()

	for round := 0; round < 2; round++ {
		oversize()
		require.NoError(t, fs.Ship(context.Background(), exportRecord(round)))
	}

	lines := readLines(t, path)
	require.Len(t, lines, 1)
	var got models.AuditLog
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assertSameRecord(t, exportRecord(1), &got)

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
	_, err = os.Stat(path + ".2")
	assert.True(t, os.IsNotExist(err), "only MaxBackups backups are kept")
}
