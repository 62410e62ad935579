package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// ==================== AuditConfig Tests ====================

func TestDefaultAuditConfig(t *testing.T) {
	cfg := DefaultAuditConfig()
	if !cfg.Enabled {
		t.Fatal("expected enabled by default")
	}
	if cfg.OutputPath != "stderr" {
		t.Fatalf("expected stderr, got %s", cfg.OutputPath)
	}
}

// ==================== AuditLogger Tests ====================

func TestAuditLogger_New_Stderr(t *testing.T) {
	l, err := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestAuditLogger_New_File(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	l, err := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: logPath,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Fatal("expected log file to be created")
	}
}

func TestAuditLogger_New_NilConfig(t *testing.T) {
	l, err := NewAuditLogger(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l == nil {
		t.Fatal("expected non-nil logger with default config")
	}
}

func TestAuditLogger_Log_Disabled(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:  &buf,
		enabled: false,
	}

	err := l.Log(&AuditEvent{EventType: AuditEventRunStart})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.Len() > 0 {
		t.Fatal("expected no output when disabled")
	}
}

func TestAuditLogger_Log_NilReceiver(t *testing.T) {
	var l *AuditLogger
	if err := l.Log(&AuditEvent{EventType: AuditEventRunStart}); err != nil {
		t.Fatalf("nil logger must be a no-op, got %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil logger close must be a no-op, got %v", err)
	}
}

func TestAuditLogger_Log_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:  &buf,
		runID:   "test-run",
		enabled: true,
	}

	err := l.Log(&AuditEvent{
		EventType: AuditEventControlEvaluate,
		ControlID: "AC.1.001",
		Success:   true,
		Message:   "test message",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var event AuditEvent
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("failed to parse output: %v", err)
	}

	if event.EventType != AuditEventControlEvaluate {
		t.Fatalf("expected control.evaluate, got %s", event.EventType)
	}
	if event.ControlID != "AC.1.001" {
		t.Fatalf("expected AC.1.001, got %s", event.ControlID)
	}
	if event.RunID != "test-run" {
		t.Fatalf("expected test-run, got %s", event.RunID)
	}
}

func TestAuditLogger_Log_FillsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{
		writer:  &buf,
		enabled: true,
	}

	before := time.Now().UTC()
	l.Log(&AuditEvent{EventType: AuditEventRunStart})
	after := time.Now().UTC()

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.Timestamp.Before(before) || event.Timestamp.After(after) {
		t.Fatal("timestamp should be set automatically")
	}
}

func TestAuditLogger_RunID_Generated(t *testing.T) {
	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	})

	if l.runID == "" {
		t.Fatal("expected auto-generated run ID")
	}
	if !strings.HasPrefix(l.runID, "run-") {
		t.Fatalf("expected run- prefix, got %s", l.runID)
	}
}

// ==================== Convenience Methods Tests ====================

func TestAuditLogger_LogRunStart(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogRunStart("analyze", map[string]any{"controls": "controls.json"})

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventRunStart {
		t.Fatalf("expected run.start, got %s", event.EventType)
	}
	if event.Details["controls"] != "controls.json" {
		t.Fatalf("expected controls path, got %v", event.Details["controls"])
	}
}

func TestAuditLogger_LogRunEnd_WithError(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogRunEnd("ingest", false, 3*time.Second, errors.New("index unreachable"))

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventRunEnd {
		t.Fatalf("expected run.end, got %s", event.EventType)
	}
	if event.Success {
		t.Fatal("expected success=false")
	}
	if event.ErrorDetail != "index unreachable" {
		t.Fatalf("expected error detail, got %s", event.ErrorDetail)
	}
}

func TestAuditLogger_LogIngestChunk(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogIngestChunk(3, 42)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventIngestChunk {
		t.Fatalf("expected ingest.chunk, got %s", event.EventType)
	}
	if event.Details["statement_count"].(float64) != 42 {
		t.Fatalf("expected 42 statements, got %v", event.Details["statement_count"])
	}
}

func TestAuditLogger_LogControlEvaluate(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogControlEvaluate("AC.1.001", "Fully Met", 0.91, 2*time.Second, nil)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventControlEvaluate {
		t.Fatalf("expected control.evaluate, got %s", event.EventType)
	}
	if !event.Success {
		t.Fatal("expected success=true without error")
	}
	if event.Details["status"] != "Fully Met" {
		t.Fatalf("expected status, got %v", event.Details["status"])
	}
}

func TestAuditLogger_LogControlEvaluate_Error(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogControlEvaluate("AC.1.002", "Not Met", 0, time.Second, errors.New("provider timeout"))

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.Success {
		t.Fatal("expected success=false for failed evaluation")
	}
	if event.ErrorDetail != "provider timeout" {
		t.Fatalf("expected error detail, got %s", event.ErrorDetail)
	}
}

func TestAuditLogger_LogLLMResponse(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogLLMResponse("ollama", "AC.1.001", 2*time.Second, 500, 200)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventLLMResponse {
		t.Fatalf("expected llm.response, got %s", event.EventType)
	}
	if event.Details["total_tokens"].(float64) != 700 {
		t.Fatalf("expected 700 total tokens, got %v", event.Details["total_tokens"])
	}
}

func TestAuditLogger_LogLLMError(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogLLMError("openai", "AC.1.003", errors.New("rate limited"))

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventLLMError {
		t.Fatalf("expected llm.error, got %s", event.EventType)
	}
	if event.Success {
		t.Fatal("expected success=false")
	}
}

func TestAuditLogger_LogReportWrite(t *testing.T) {
	var buf bytes.Buffer
	l := &AuditLogger{writer: &buf, enabled: true}

	l.LogReportWrite("output/gap_report.json", 17)

	var event AuditEvent
	json.Unmarshal(buf.Bytes(), &event)

	if event.EventType != AuditEventReportWrite {
		t.Fatalf("expected report.write, got %s", event.EventType)
	}
	if event.Details["total_controls"].(float64) != 17 {
		t.Fatalf("expected 17 controls, got %v", event.Details["total_controls"])
	}
}

func TestAuditLogger_Close_File(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: logPath,
	})

	l.Log(&AuditEvent{EventType: AuditEventRunStart})
	err := l.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected log content")
	}
}

func TestAuditLogger_Close_Stderr(t *testing.T) {
	l, _ := NewAuditLogger(&AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	})

	err := l.Close()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
