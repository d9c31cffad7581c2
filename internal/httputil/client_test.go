package httputil

import (
	"errors"
	"io"
	"net/http"
	"testing"
)

func TestNewStandardClient(t *testing.T) {
	custom := &http.Client{}
	if got := NewStandardClient(custom); got.Client != custom {
		t.Error("expected custom client to be wrapped")
	}
	if got := NewStandardClient(nil); got.Timeout != DefaultTimeout {
		t.Errorf("default client timeout = %v, want %v", got.Timeout, DefaultTimeout)
	}
}

func TestMockHTTPClient_QueuedResponses(t *testing.T) {
	mock := NewMockHTTPClient()
	mock.AddResponse(http.StatusOK, "OK").AddErrorResponse(errors.New("connection refused"))

	req, _ := http.NewRequest(http.MethodGet, "http://www.radmon.org/radmon.php", nil)

	resp, err := mock.Do(req)
	if err != nil {
		t.Fatalf("first Do() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || string(body) != "OK" {
		t.Errorf("first response = %d %q", resp.StatusCode, body)
	}

	if _, err := mock.Do(req); err == nil {
		t.Error("second Do() expected error")
	}

	resp, err = mock.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Errorf("exhausted queue should return empty 200, got %v, %v", resp, err)
	}

	if mock.RequestCount() != 3 {
		t.Errorf("RequestCount() = %d, want 3", mock.RequestCount())
	}
	if mock.GetRequest(0) != req || mock.GetRequest(5) != nil {
		t.Error("GetRequest returned unexpected request")
	}
}

func TestMockHTTPClient_DoFunc(t *testing.T) {
	mock := NewMockHTTPClient()
	want := errors.New("custom")
	mock.DoFunc = func(*http.Request) (*http.Response, error) { return nil, want }

	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := mock.Do(req); !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
}
