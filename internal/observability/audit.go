// Package observability provides the JSONL audit trail and tracing for
// analysis runs. Every provider call and every control evaluation leaves an
// audit record, which matters in a compliance context more than anywhere.
package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// AuditEventType categorizes audit events.
type AuditEventType string

const (
	AuditEventRunStart        AuditEventType = "run.start"
	AuditEventRunEnd          AuditEventType = "run.end"
	AuditEventIngestChunk     AuditEventType = "ingest.chunk"
	AuditEventIngestEmbed     AuditEventType = "ingest.embed"
	AuditEventIngestIndex     AuditEventType = "ingest.index"
	AuditEventControlEvaluate AuditEventType = "control.evaluate"
	AuditEventLLMRequest      AuditEventType = "llm.request"
	AuditEventLLMResponse     AuditEventType = "llm.response"
	AuditEventLLMError        AuditEventType = "llm.error"
	AuditEventReportWrite     AuditEventType = "report.write"
)

// AuditEvent represents a single audit log entry.
type AuditEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   AuditEventType `json:"event_type"`
	RunID       string         `json:"run_id"`
	ControlID   string         `json:"control_id,omitempty"`
	Success     bool           `json:"success"`
	Duration    time.Duration  `json:"duration_ms,omitempty"`
	Message     string         `json:"message,omitempty"`
	Details     map[string]any `json:"details,omitempty"`
	ErrorDetail string         `json:"error_detail,omitempty"`
}

// AuditLogger writes audit events as one JSON object per line.
type AuditLogger struct {
	mu      sync.Mutex
	writer  io.Writer
	runID   string
	enabled bool
}

// AuditConfig configures the audit logger.
type AuditConfig struct {
	Enabled    bool
	OutputPath string // File path or "stdout"/"stderr"
	RunID      string
}

// DefaultAuditConfig returns default audit configuration.
func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:    true,
		OutputPath: "stderr",
	}
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(config *AuditConfig) (*AuditLogger, error) {
	if config == nil {
		config = DefaultAuditConfig()
	}

	var writer io.Writer
	switch config.OutputPath {
	case "stderr", "":
		writer = os.Stderr
	case "stdout":
		writer = os.Stdout
	default:
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("open audit log: %w", err)
		}
		writer = f
	}

	runID := config.RunID
	if runID == "" {
		runID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	}

	return &AuditLogger{
		writer:  writer,
		runID:   runID,
		enabled: config.Enabled,
	}, nil
}

// Log writes an audit event.
func (l *AuditLogger) Log(event *AuditEvent) error {
	if l == nil || !l.enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RunID == "" {
		event.RunID = l.runID
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}

	_, err = fmt.Fprintf(l.writer, "%s\n", data)
	return err
}

// LogRunStart logs the start of an ingestion or analysis run.
func (l *AuditLogger) LogRunStart(command string, params map[string]any) {
	l.Log(&AuditEvent{
		EventType: AuditEventRunStart,
		Success:   true,
		Message:   fmt.Sprintf("Run started: %s", command),
		Details:   params,
	})
}

// LogRunEnd logs the end of a run.
func (l *AuditLogger) LogRunEnd(command string, success bool, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType: AuditEventRunEnd,
		Success:   success,
		Duration:  duration,
		Message:   fmt.Sprintf("Run finished: %s", command),
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	l.Log(event)
}

// LogIngestChunk logs the corpus chunking step.
func (l *AuditLogger) LogIngestChunk(docCount, statementCount int) {
	l.Log(&AuditEvent{
		EventType: AuditEventIngestChunk,
		Success:   true,
		Message:   fmt.Sprintf("Chunked %d documents into %d statements", docCount, statementCount),
		Details: map[string]any{
			"document_count":  docCount,
			"statement_count": statementCount,
		},
	})
}

// LogIngestEmbed logs the embedding step.
func (l *AuditLogger) LogIngestEmbed(provider string, count int, duration time.Duration) {
	l.Log(&AuditEvent{
		EventType: AuditEventIngestEmbed,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("Embedded %d statements via %s", count, provider),
		Details: map[string]any{
			"provider": provider,
			"count":    count,
		},
	})
}

// LogIngestIndex logs the index rebuild step.
func (l *AuditLogger) LogIngestIndex(collection string, count int, dim uint64) {
	l.Log(&AuditEvent{
		EventType: AuditEventIngestIndex,
		Success:   true,
		Message:   fmt.Sprintf("Indexed %d vectors into %s", count, collection),
		Details: map[string]any{
			"collection": collection,
			"count":      count,
			"dimension":  dim,
		},
	})
}

// LogControlEvaluate logs one control's evaluation outcome.
func (l *AuditLogger) LogControlEvaluate(controlID, status string, score float64, duration time.Duration, err error) {
	event := &AuditEvent{
		EventType: AuditEventControlEvaluate,
		ControlID: controlID,
		Success:   err == nil,
		Duration:  duration,
		Message:   fmt.Sprintf("Control %s: %s", controlID, status),
		Details: map[string]any{
			"status":           status,
			"confidence_score": score,
		},
	}
	if err != nil {
		event.ErrorDetail = err.Error()
	}
	l.Log(event)
}

// LogLLMRequest logs an LLM request event.
func (l *AuditLogger) LogLLMRequest(provider, controlID string) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMRequest,
		ControlID: controlID,
		Success:   true,
		Message:   fmt.Sprintf("LLM request to %s", provider),
		Details: map[string]any{
			"provider": provider,
		},
	})
}

// LogLLMResponse logs an LLM response event.
func (l *AuditLogger) LogLLMResponse(provider, controlID string, duration time.Duration, inputTokens, outputTokens int) {
	l.Log(&AuditEvent{
		EventType: AuditEventLLMResponse,
		ControlID: controlID,
		Success:   true,
		Duration:  duration,
		Message:   fmt.Sprintf("LLM response from %s", provider),
		Details: map[string]any{
			"provider":      provider,
			"input_tokens":  inputTokens,
			"output_tokens": outputTokens,
			"total_tokens":  inputTokens + outputTokens,
		},
	})
}

// LogLLMError logs an LLM error event.
func (l *AuditLogger) LogLLMError(provider, controlID string, err error) {
	l.Log(&AuditEvent{
		EventType:   AuditEventLLMError,
		ControlID:   controlID,
		Success:     false,
		Message:     fmt.Sprintf("LLM error from %s", provider),
		ErrorDetail: err.Error(),
		Details: map[string]any{
			"provider": provider,
		},
	})
}

// LogReportWrite logs the final report write.
func (l *AuditLogger) LogReportWrite(path string, totalControls int) {
	l.Log(&AuditEvent{
		EventType: AuditEventReportWrite,
		Success:   true,
		Message:   fmt.Sprintf("Report written: %s", path),
		Details: map[string]any{
			"path":           path,
			"total_controls": totalControls,
		},
	})
}

// Close closes the audit logger (if using a file).
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		if closer != os.Stdout && closer != os.Stderr {
			return closer.Close()
		}
	}
	return nil
}
