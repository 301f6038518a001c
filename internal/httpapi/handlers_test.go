package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/partydeck/mafia-backend/internal/relay"
)

func newAPI(t *testing.T) (*relay.Broker, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	b := relay.NewBroker(ctx, relay.Options{Logger: zap.NewNop()})
	ts := httptest.NewServer(SetupRoutes(b, "https://party.example", zap.NewNop()))
	t.Cleanup(func() {
		ts.Close()
		cancel()
	})
	return b, ts
}

func getSession(t *testing.T, b *relay.Broker, code string) *relay.SessionInfo {
	t.Helper()
	reply := make(chan *relay.SessionInfo, 1)
	b.Inbox() <- relay.GetSession{Code: code, Reply: reply}
	return <-reply
}

func TestGenerateCode_Shape(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateCode()
		require.NoError(t, err)
		assert.Regexp(t, `^[A-Z0-9]{6}$`, code)
	}
}

func TestHealthz(t *testing.T) {
	_, ts := newAPI(t)

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSession_MintsUnusedCode(t *testing.T) {
	b, ts := newAPI(t)

	resp, err := http.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var body struct {
		Code    string `json:"code"`
		JoinURL string `json:"joinUrl"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Regexp(t, `^[A-Z0-9]{6}$`, body.Code)
	assert.Equal(t, "https://party.example/join?code="+body.Code, body.JoinURL)

	// minting reserves nothing server-side; the host socket creates
	// the session
	assert.Nil(t, getSession(t, b, body.Code))
}

func TestSessionQR_UnknownCodeIs404(t *testing.T) {
	_, ts := newAPI(t)

	resp, err := http.Get(ts.URL + "/sessions/NOPE42/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSessionQR_RendersPNGForLiveSession(t *testing.T) {
	b, ts := newAPI(t)

	b.Inbox() <- relay.AttachHost{Code: "QRTEST", Conn: relay.NewClient(nil)}
	require.NotNil(t, getSession(t, b, "QRTEST"), "host attach should create the session")

	// lowercase in the path resolves to the same session
	resp, err := http.Get(ts.URL + "/sessions/qrtest/qr")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("\x89PNG")), "body should be a PNG")
}
