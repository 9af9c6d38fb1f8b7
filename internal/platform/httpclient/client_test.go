package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastClient(retries int) *Client {
	return New(Options{
		Timeout:        2 * time.Second,
		RequestsPerSec: 1000,
		Burst:          100,
		MaxRetries:     retries,
		RetryWait:      time.Millisecond,
	})
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"price":"42.5"}`))
	}))
	defer srv.Close()

	var out struct {
		Price string `json:"price"`
	}
	err := fastClient(0).GetJSON(context.Background(), srv.URL, map[string]string{"x-api-key": "k"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "42.5", out.Price)
}

func TestGetJSON_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	var out map[string]any
	err := fastClient(3).GetJSON(context.Background(), srv.URL, nil, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGetJSON_ClientErrorIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	var out map[string]any
	err := fastClient(3).GetJSON(context.Background(), srv.URL, nil, &out)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetJSON_BadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	var out map[string]any
	err := fastClient(2).GetJSON(context.Background(), srv.URL, nil, &out)
	assert.Error(t, err)
}

func TestStatusError_Retryable(t *testing.T) {
	assert.True(t, (&StatusError{StatusCode: 429}).Retryable())
	assert.True(t, (&StatusError{StatusCode: 503}).Retryable())
	assert.False(t, (&StatusError{StatusCode: 404}).Retryable())
}
