// Package notify delivers fire-and-forget user notifications.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Type classifies a notification.
type Type string

// Notification types.
const (
	TypeSuccess Type = "success"
	TypeInfo    Type = "info"
	TypeError   Type = "error"
)

// Default redaction widths.
const (
	DefaultRedactHead = 5
	DefaultRedactTail = 5
)

// Ellipsis joins the visible parts of a redacted identity.
const Ellipsis = "..."

// Notification is one user-visible message.
type Notification struct {
	Message     string `json:"message"`
	Description string `json:"description,omitempty"`
	Type        Type   `json:"type,omitempty"`
}

// String renders the notification on one line.
func (n Notification) String() string {
	var b strings.Builder
	if n.Type != "" {
		b.WriteString("[")
		b.WriteString(string(n.Type))
		b.WriteString("] ")
	}
	b.WriteString(n.Message)
	if n.Description != "" {
		b.WriteString(": ")
		b.WriteString(n.Description)
	}
	return b.String()
}

// Notifier emits notifications. Implementations must not block the caller
// for long and never report failure back.
type Notifier interface {
	Notify(n Notification)
}

// Func adapts a function to Notifier.
type Func func(Notification)

// Notify calls f.
func (f Func) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = Func(func(Notification) {}) //nolint:gochecknoglobals // stateless sentinel

// Redact keeps the first head and last tail characters of identity joined
// by an ellipsis. Identities too short to hide anything are fully masked.
func Redact(identity string, head, tail int) string {
	if head < 0 {
		head = 0
	}
	if tail < 0 {
		tail = 0
	}
	r := []rune(identity)
	if len(r) == 0 {
		return ""
	}
	if len(r) <= head+tail {
		return Ellipsis
	}
	return string(r[:head]) + Ellipsis + string(r[len(r)-tail:])
}

// Logger is the logging surface used by LogNotifier and HTTPNotifier.
type Logger interface {
	Info(format string, args ...any)
	Error(format string, args ...any)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

// Notify logs n.
func (l *LogNotifier) Notify(n Notification) {
	l.logger.Info("notification: %s", n)
}

// WriterNotifier prints one line per notification to w.
type WriterNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNotifier creates a notifier that writes to w.
func NewWriterNotifier(w io.Writer) *WriterNotifier {
	return &WriterNotifier{w: w}
}

// Notify writes n.
func (wn *WriterNotifier) Notify(n Notification) {
	wn.mu.Lock()
	defer wn.mu.Unlock()
	_, _ = fmt.Fprintln(wn.w, n.String())
}

// Multi fans a notification out to several notifiers in order.
type Multi []Notifier

// Notify delivers n to every notifier.
func (m Multi) Notify(n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}

// defaultHTTPTimeout bounds a single push.
const defaultHTTPTimeout = 10 * time.Second

// HTTPNotifier posts notifications as plain text to an ntfy-style endpoint.
// Delivery happens in the background; failures are logged.
type HTTPNotifier struct {
	client   *http.Client
	endpoint string
	logger   Logger
	wg       sync.WaitGroup
}

// NewHTTPNotifier creates a push notifier. A nil client uses a client with
// a 10s timeout.
func NewHTTPNotifier(client *http.Client, endpoint string, logger Logger) *HTTPNotifier {
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPNotifier{client: client, endpoint: endpoint, logger: logger}
}

// Notify posts n without blocking the caller.
func (h *HTTPNotifier) Notify(n Notification) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), defaultHTTPTimeout)
		defer cancel()
		if err := Send(ctx, h.client, h.endpoint, n); err != nil {
			h.logger.Error("push notification failed: %v", err)
		}
	}()
}

// Wait blocks until in-flight pushes finish.
func (h *HTTPNotifier) Wait() {
	h.wg.Wait()
}

// Send posts one notification to endpoint. The message is the body and the
// description, when present, follows on a second line.
func Send(ctx context.Context, client *http.Client, endpoint string, n Notification) error {
	c := client
	if c == nil {
		c = http.DefaultClient
	}

	body := n.Message
	if n.Description != "" {
		body += "\n" + n.Description
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if n.Type != "" {
		req.Header.Set("X-Tags", string(n.Type))
	}

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("push notification failed: status=%d", resp.StatusCode)
	}
	return nil
}
