package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestOCRClientJoinsConfidentResults(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		got, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"data_type":"alpr_results","results":[
			{"plate":"MH12","confidence":91.2},
			{"plate":"??","confidence":12.0},
			{"plate":" DE 1433 ","confidence":88.0}
		]}`)
	}))
	defer srv.Close()

	c := NewOCRClient(srv.URL, 50, time.Second, zap.NewNop())
	plate, err := c.Recognize(context.Background(), []byte("jpeg"))
	require.NoError(t, err)
	assert.Equal(t, "MH12 DE 1433", plate)
	assert.Equal(t, []byte("jpeg"), got)
}

func TestOCRClientEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	plate, err := NewOCRClient(srv.URL, 0, 0, zap.NewNop()).Recognize(context.Background(), []byte("x"))
	require.NoError(t, err)
	assert.Empty(t, plate)
}

func TestOCRClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOCRClient(srv.URL, 0, time.Second, zap.NewNop()).Recognize(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewOCRClient("", 0, time.Second, zap.NewNop()).Recognize(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, ErrRecognizerDisabled)
}
