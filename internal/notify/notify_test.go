package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	user       string
	message    string
	attachment []byte
}

// pushoverStub records requests and fails for the recipients listed in failFor.
type pushoverStub struct {
	mu       sync.Mutex
	requests []captured
	failFor  map[string]bool
}

func (s *pushoverStub) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var c captured
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			assert.NoError(t, r.ParseMultipartForm(1<<20))
			if file, _, err := r.FormFile("attachment"); assert.NoError(t, err) {
				c.attachment, _ = io.ReadAll(file)
				_ = file.Close()
			}
		} else {
			assert.NoError(t, r.ParseForm())
		}
		assert.Equal(t, "app-token", r.FormValue("token"))
		c.user = r.FormValue("user")
		c.message = r.FormValue("message")

		s.mu.Lock()
		s.requests = append(s.requests, c)
		s.mu.Unlock()

		if s.failFor[c.user] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":0,"errors":["user key is invalid"]}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":1}`))
	}
}

func (s *pushoverStub) users() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, r := range s.requests {
		out = append(out, r.user)
	}
	return out
}

func newStub(t *testing.T, failFor ...string) (*pushoverStub, *httptest.Server) {
	stub := &pushoverStub{failFor: map[string]bool{}}
	for _, f := range failFor {
		stub.failFor[f] = true
	}
	server := httptest.NewServer(stub.handler(t))
	t.Cleanup(server.Close)
	return stub, server
}

func TestDirectory_Recipients(t *testing.T) {
	d := Directory{Admins: []string{"admin1", ""}, Users: []string{"user1", "admin1", "user2"}}

	assert.Equal(t, []string{"admin1"}, d.Recipients(Admins))
	assert.Equal(t, []string{"admin1", "user1", "user2"}, d.Recipients(Users))
	assert.Empty(t, d.Recipients(Audience("unknown")))
}

func TestNotify_DeliversToEveryRecipient(t *testing.T) {
	stub, server := newStub(t)
	n := New(NewPushover("app-token", server.URL, 0), Directory{Admins: []string{"a"}, Users: []string{"u1", "u2"}}, Options{}, nil)

	n.Notify(context.Background(), Users, "New job(s) posted", "")

	assert.ElementsMatch(t, []string{"a", "u1", "u2"}, stub.users())
	for _, r := range stub.requests {
		assert.Equal(t, "New job(s) posted", r.message)
		assert.Nil(t, r.attachment)
	}
}

func TestNotify_OneFailureDoesNotStopOthers(t *testing.T) {
	stub, server := newStub(t, "u1")
	n := New(NewPushover("app-token", server.URL, 0), Directory{Admins: []string{"a"}, Users: []string{"u1", "u2"}}, Options{Concurrency: 1}, nil)

	assert.NotPanics(t, func() {
		n.Notify(context.Background(), Users, "hello", "")
	})
	assert.ElementsMatch(t, []string{"a", "u1", "u2"}, stub.users())
}

func TestNotify_AttachmentIsSentAndRemoved(t *testing.T) {
	stub, server := newStub(t, "a")
	path := filepath.Join(t.TempDir(), "failure.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	n := New(NewPushover("app-token", server.URL, 0), Directory{Admins: []string{"a"}, Users: []string{"u"}}, DefaultOptions(), nil)
	n.Notify(context.Background(), Users, "job bot stopped", path)

	require.Len(t, stub.requests, 2)
	for _, r := range stub.requests {
		assert.Equal(t, []byte("png-bytes"), r.attachment)
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "attachment should be removed after delivery")
}

func TestNotify_MissingAttachmentSendsTextOnly(t *testing.T) {
	stub, server := newStub(t)
	n := New(NewPushover("app-token", server.URL, 0), Directory{Admins: []string{"a"}}, Options{}, nil)

	n.Notify(context.Background(), Admins, "text only", filepath.Join(t.TempDir(), "missing.png"))

	require.Len(t, stub.requests, 1)
	assert.Nil(t, stub.requests[0].attachment)
	assert.Equal(t, "text only", stub.requests[0].message)
}

func TestNotify_NoRecipients(t *testing.T) {
	stub, server := newStub(t)
	n := New(NewPushover("app-token", server.URL, 0), Directory{}, Options{}, nil)

	n.Notify(context.Background(), Admins, "nobody home", "")
	assert.Empty(t, stub.users())
}

func TestPushover_NonSuccessStatus(t *testing.T) {
	_, server := newStub(t, "bad")
	p := NewPushover("app-token", server.URL, 0)

	err := p.Deliver(context.Background(), "bad", "hi", nil)
	require.Error(t, err)

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, http.StatusBadRequest, delivery.StatusCode)
	assert.Equal(t, "bad", delivery.Recipient)
	assert.Contains(t, err.Error(), "user key is invalid")
}

func TestPushover_NetworkError(t *testing.T) {
	p := NewPushover("app-token", "http://127.0.0.1:1/messages.json", 0)
	err := p.Deliver(context.Background(), "u", "hi", nil)

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Contains(t, err.Error(), "HTTP request failed")
}

func TestPushover_TruncatesLongMessages(t *testing.T) {
	stub, server := newStub(t)
	p := NewPushover("app-token", server.URL, 0)

	require.NoError(t, p.Deliver(context.Background(), "u", strings.Repeat("x", 2000), nil))
	require.Len(t, stub.requests, 1)
	assert.Len(t, stub.requests[0].message, MaxMessageLength)
	assert.True(t, strings.HasSuffix(stub.requests[0].message, "..."))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abcd...", Truncate("abcdefghij", 7))
	assert.Equal(t, "ab", Truncate("abcdef", 2))
	assert.Empty(t, Truncate("abcdef", 0))
	assert.Empty(t, Truncate("abcdef", -1))
	assert.Equal(t, "日本...", Truncate("日本語のテキスト", 5))
}

func TestLogTransport(t *testing.T) {
	err := LogTransport{}.Deliver(context.Background(), "u", "hi", &Attachment{Name: "x.png", Data: []byte{1}})
	assert.NoError(t, err)
}
