package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "123456:AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func TestTelegram_SendMessage(t *testing.T) {
	var got struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":42,"type":"private"}}}`)
	}))
	defer srv.Close()

	sink, err := NewTelegram(TelegramOptions{Token: testToken, ChatID: 42, APIServer: srv.URL})
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), "hello"))
	assert.True(t, strings.HasSuffix(path, "/sendMessage"), path)
	assert.Equal(t, int64(42), got.ChatID)
	assert.Equal(t, "hello", got.Text)
}

func TestTelegram_InvalidToken(t *testing.T) {
	_, err := NewTelegram(TelegramOptions{Token: "not-a-token"})
	assert.Error(t, err)
}
