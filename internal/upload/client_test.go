package upload

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/radmon-relay/internal/httputil"
	"github.com/banshee-data/radmon-relay/internal/sample"
)

var fixture = sample.New(18, time.Date(2021, 1, 2, 3, 4, 5, 0, time.UTC))

const wantLine = "GET /radmon.php?user=alice&password=secret&function=submit&datetime=2021-01-02%2003:04:05&value=18&unit=CPM HTTP/1.1"

func TestRequestLine(t *testing.T) {
	c := New(Config{User: "alice", Password: "secret"}, nil)
	assert.Equal(t, wantLine, c.RequestLine(fixture))
}

func TestFormatDatetime_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	got := FormatDatetime(time.Date(2021, 1, 2, 4, 4, 5, 0, loc))
	assert.Equal(t, "2021-01-02%2003:04:05", got)
}

type seenRequest struct {
	line      string
	userAgent string
}

func newTestServer(t *testing.T, body string, status int) (*Client, *seenRequest) {
	t.Helper()
	got := &seenRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.line = r.Method + " " + r.RequestURI + " " + r.Proto
		got.userAgent = r.UserAgent()
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)

	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)

	return New(Config{Host: host, Port: p, User: "alice", Password: "secret"}, nil), got
}

func TestSend_WireFormat(t *testing.T) {
	c, got := newTestServer(t, "OK", http.StatusOK)

	require.NoError(t, c.Send(context.Background(), fixture))
	assert.Equal(t, wantLine, got.line)
	assert.Contains(t, got.userAgent, "radmon-relay")
}

func TestSend_IncorrectLogin(t *testing.T) {
	c, _ := newTestServer(t, "<html>Incorrect Login.</html>", http.StatusOK)

	err := c.Send(context.Background(), fixture)
	assert.ErrorIs(t, err, ErrAuth)
	assert.False(t, errors.Is(err, ErrUpload))
}

func TestSend_HTTPError(t *testing.T) {
	c, _ := newTestServer(t, "oops", http.StatusInternalServerError)

	err := c.Send(context.Background(), fixture)
	assert.ErrorIs(t, err, ErrUpload)
}

func TestSend_TransportError(t *testing.T) {
	mock := httputil.NewMockHTTPClient().AddErrorResponse(errors.New("connection refused"))
	c := New(Config{User: "alice", Password: "secret"}, mock)

	err := c.Send(context.Background(), fixture)
	assert.ErrorIs(t, err, ErrUpload)

	req := mock.GetRequest(0)
	require.NotNil(t, req)
	assert.Equal(t, "www.radmon.org", req.Host)
	assert.Equal(t, "www.radmon.org:80", req.URL.Host)
}

func TestSend_AuthDetectedInLargeBufferedBody(t *testing.T) {
	padding := make([]byte, 8<<10)
	for i := range padding {
		padding[i] = 'x'
	}
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, string(padding)+"INCORRECT LOGIN")
	c := New(Config{User: "alice", Password: "wrong"}, mock)

	assert.ErrorIs(t, c.Send(context.Background(), fixture), ErrAuth)
}

func TestIsAuthFailure(t *testing.T) {
	assert.True(t, IsAuthFailure([]byte("Incorrect Login")))
	assert.True(t, IsAuthFailure([]byte("incorrect login")))
	assert.False(t, IsAuthFailure([]byte("OK")))
	assert.False(t, IsAuthFailure(nil))
}
