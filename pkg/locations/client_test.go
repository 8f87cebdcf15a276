package locations

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestFetchDictionary_InlineBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ref-key", r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`[
			{"locationCode":"SGSIN","locationDescription":"SINGAPORE"},
			{"locationCode":"MYPKG","locationDescription":"PORT KLANG"},
			{"locationCode":"XXXXX","locationDescription":""}
		]`))
	}))
	defer server.Close()

	c := NewClient(server.URL, "ref-key", 5*time.Second, testLogger())
	dict, err := c.FetchDictionary(context.Background())

	require.NoError(t, err)
	assert.Len(t, dict, 2)
	assert.Equal(t, "SGSIN", dict["SINGAPORE"])
	assert.Equal(t, "MYPKG", dict["PORT KLANG"])
}

func TestFetchDictionary_LocationHeaderHop(t *testing.T) {
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	defer server.Close()

	mux.HandleFunc("/file", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("apikey"))
		_, _ = w.Write([]byte(`[{"locationCode":"SGSIN","locationDescription":"SINGAPORE"}]`))
	})
	mux.HandleFunc("/reference", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", server.URL+"/file")
		w.WriteHeader(http.StatusOK)
	})

	c := NewClient(server.URL+"/reference", "ref-key", 5*time.Second, testLogger())
	dict, err := c.FetchDictionary(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Dictionary{"SINGAPORE": "SGSIN"}, dict)
}

func TestFetchDictionary_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, "ref-key", 5*time.Second, testLogger())
	dict, err := c.FetchDictionary(context.Background())

	require.Error(t, err)
	assert.Nil(t, dict)
}
