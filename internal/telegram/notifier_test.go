package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testNotifier(t *testing.T, handler http.HandlerFunc) *Notifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	n := NewNotifier("test-token", "42")
	n.apiBase = srv.URL
	return n
}

func TestSendMessage(t *testing.T) {
	var got struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bottest-token/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	})

	require.NoError(t, n.SendMessage("hello"))
	assert.Equal(t, "42", got.ChatID)
	assert.Equal(t, "hello", got.Text)
}

func TestSendMessage_APIError(t *testing.T) {
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	})

	assert.Error(t, n.SendMessage("hello"))
}

func TestSendSubscriptionFile(t *testing.T) {
	var sent []string
	n := testNotifier(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Text string `json:"text"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		sent = append(sent, body.Text)
	})

	path := filepath.Join(t.TempDir(), "all.txt")
	content := "vless://a@h:443#n1\n\ntrojan://b@h2:443#n2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	require.NoError(t, n.SendSubscriptionFile(path))
	assert.Equal(t, []string{"vless://a@h:443#n1", "trojan://b@h2:443#n2"}, sent)
}

func TestSendSubscriptionFile_MissingFile(t *testing.T) {
	n := NewNotifier("test-token", "42")
	assert.Error(t, n.SendSubscriptionFile(filepath.Join(t.TempDir(), "nope.txt")))
}
