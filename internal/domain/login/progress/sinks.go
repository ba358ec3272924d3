package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/1195214305/xhs-backend/internal/domain/login/deps"
	"github.com/1195214305/xhs-backend/internal/domain/login/entities"
)

// SinkFunc adapts a function to deps.ProgressSink
type SinkFunc func(ctx context.Context, event entities.ProgressEvent) error

// Emit calls f
func (f SinkFunc) Emit(ctx context.Context, event entities.ProgressEvent) error {
	return f(ctx, event)
}

// Discard drops every event
var Discard deps.ProgressSink = SinkFunc(func(context.Context, entities.ProgressEvent) error { return nil })

// JSONWriter writes one JSON object per line
type JSONWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONWriter creates a JSON-lines sink on w
func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

// Emit writes event as a single line
func (w *JSONWriter) Emit(_ context.Context, event entities.ProgressEvent) error {
	return w.Write(event)
}

// Write encodes any value as one line. Used for the final run report.
func (w *JSONWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write json line: %w", err)
	}
	return nil
}

// ConsoleWriter prints human-readable progress, including the ASCII QR code
type ConsoleWriter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleWriter creates a console sink on out
func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

// Emit prints one milestone
func (w *ConsoleWriter) Emit(_ context.Context, event entities.ProgressEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	switch event.Step {
	case entities.StepQRCodeReady:
		_, err = fmt.Fprintln(w.out, "Scan the QR code with the Xiaohongshu app:")
		if err == nil && event.QR != nil && event.QR.ASCII != "" {
			_, err = fmt.Fprintln(w.out, event.QR.ASCII)
		}
	case entities.StepWaiting:
		_, err = fmt.Fprintln(w.out, "Waiting for the scan to be confirmed...")
	case entities.StepQRCodeStatus:
		code := "unknown"
		if event.Status != nil {
			code = event.Status.Data.CodeStatus.String()
		}
		_, err = fmt.Fprintf(w.out, "QR status: %s\n", code)
	case entities.StepConfirmed:
		_, err = fmt.Fprintf(w.out, "Login confirmed, user %s\n", event.UserID)
	default:
		if event.Reason != "" {
			_, err = fmt.Fprintf(w.out, "Login %s: %s\n", event.Step, event.Reason)
		} else {
			_, err = fmt.Fprintf(w.out, "Login %s\n", event.Step)
		}
	}
	return err
}

var (
	_ deps.ProgressSink = (*JSONWriter)(nil)
	_ deps.ProgressSink = (*ConsoleWriter)(nil)
)
