package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, fmt.Sprintf(format, args...))
}

func (l *recordingLogger) Error(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, fmt.Sprintf(format, args...))
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		identity   string
		head, tail int
		expected   string
	}{
		{"default widths", "Ab1Cd2Ef3Gh4Ij5", 5, 5, "Ab1Cd...h4Ij5"},
		{"address", "0x52908400098527886E0F7030069857D2E4169EE7", 5, 5, "0x529...69EE7"},
		{"custom widths", "Ab1Cd2Ef3Gh4Ij5", 3, 2, "Ab1...j5"},
		{"exactly head plus tail", "0123456789", 5, 5, "..."},
		{"shorter than widths", "abc", 5, 5, "..."},
		{"empty", "", 5, 5, ""},
		{"negative widths clamp", "abcdef", -1, 2, "...ef"},
		{"multibyte", "ααααααββββββ", 2, 2, "αα...ββ"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := Redact(tc.identity, tc.head, tc.tail)
			assert.Equal(t, tc.expected, got)
			if len(tc.identity) > tc.head+tc.tail && tc.identity != "" {
				assert.NotContains(t, got, tc.identity)
			}
		})
	}
}

func TestNotification_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Wallet connected", Notification{Message: "Wallet connected"}.String())
	assert.Equal(t, "[info] Disconnected from wallet",
		Notification{Message: "Disconnected from wallet", Type: TypeInfo}.String())
	assert.Equal(t, "Wallet connected: Connected to wallet Ab1Cd...h4Ij5",
		Notification{Message: "Wallet connected", Description: "Connected to wallet Ab1Cd...h4Ij5"}.String())
}

func TestWriterNotifier(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	n := NewWriterNotifier(&buf)
	n.Notify(Notification{Message: "one"})
	n.Notify(Notification{Message: "two", Type: TypeError})

	assert.Equal(t, "one\n[error] two\n", buf.String())
}

func TestLogNotifier(t *testing.T) {
	t.Parallel()

	logger := &recordingLogger{}
	NewLogNotifier(logger).Notify(Notification{Message: "hello"})

	require.Len(t, logger.infos, 1)
	assert.Contains(t, logger.infos[0], "hello")
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var got []string
	m := Multi{
		Func(func(n Notification) { got = append(got, "a:"+n.Message) }),
		nil,
		Func(func(n Notification) { got = append(got, "b:"+n.Message) }),
	}
	m.Notify(Notification{Message: "x"})

	assert.Equal(t, []string{"a:x", "b:x"}, got)
	Discard.Notify(Notification{Message: "dropped"})
}

func TestSendPostsNotification(t *testing.T) {
	t.Parallel()

	var (
		method, contentType, tags, body string
	)
	client := &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			method = r.Method
			contentType = r.Header.Get("Content-Type")
			tags = r.Header.Get("X-Tags")
			raw, err := io.ReadAll(r.Body)
			if err != nil {
				return nil, err
			}
			body = string(raw)
			return &http.Response{
				StatusCode: http.StatusOK,
				Body:       io.NopCloser(strings.NewReader("ok")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/walletlink",
		Notification{Message: "Wallet connected", Description: "Connected to wallet 0x529...69EE7", Type: TypeSuccess})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, method)
	assert.Equal(t, "text/plain", contentType)
	assert.Equal(t, "success", tags)
	assert.Equal(t, "Wallet connected\nConnected to wallet 0x529...69EE7", body)
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	t.Parallel()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusInternalServerError,
				Body:       io.NopCloser(strings.NewReader("server failure")),
				Header:     make(http.Header),
			}, nil
		}),
	}

	err := Send(context.Background(), client, "http://example.com/walletlink", Notification{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
}

func TestHTTPNotifier_LogsFailures(t *testing.T) {
	t.Parallel()

	client := &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return nil, fmt.Errorf("connection refused") //nolint:err113 // test error
		}),
	}
	logger := &recordingLogger{}
	n := NewHTTPNotifier(client, "http://example.com/walletlink", logger)

	n.Notify(Notification{Message: "x"})
	n.Wait()

	logger.mu.Lock()
	defer logger.mu.Unlock()
	require.Len(t, logger.errors, 1)
	assert.Contains(t, logger.errors[0], "connection refused")
}
