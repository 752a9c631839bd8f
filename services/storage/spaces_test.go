package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutInvoiceUploadsUnderInvoicesPrefix(t *testing.T) {
	var (
		mu          sync.Mutex
		gotPath     string
		gotBody     string
		gotType     string
		gotACL      string
		requestSeen bool
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		defer mu.Unlock()
		requestSeen = true
		gotPath = r.URL.Path
		gotBody = string(body)
		gotType = r.Header.Get("Content-Type")
		gotACL = r.Header.Get("X-Amz-Acl")
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client, err := NewSpacesClient(SpacesConfig{
		AccessKey: "key",
		SecretKey: "secret",
		Bucket:    "invoices-bucket",
		Region:    "us-east-1",
		Endpoint:  server.URL,
		CDNURL:    "https://cdn.example.com/",
		PathStyle: true,
	})
	require.NoError(t, err)

	url, err := client.PutInvoice(context.Background(), "tran-42", []byte("<h1>Invoice</h1>"))
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/invoices/tran-42.html", url)

	mu.Lock()
	defer mu.Unlock()
	require.True(t, requestSeen)
	assert.Equal(t, "/invoices-bucket/invoices/tran-42.html", gotPath)
	assert.Equal(t, "<h1>Invoice</h1>", gotBody)
	assert.Equal(t, "text/html; charset=utf-8", gotType)
	assert.Equal(t, "public-read", gotACL)
}

func TestGetFileURLWithoutCDN(t *testing.T) {
	client, err := NewSpacesClient(SpacesConfig{
		AccessKey: "k", SecretKey: "s", Bucket: "b", Region: "sgp1",
		Endpoint: "https://sgp1.digitaloceanspaces.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://b.sgp1.digitaloceanspaces.com/invoices/x.html", client.GetFileURL(InvoiceKey("x")))
}

func TestConfigured(t *testing.T) {
	assert.False(t, SpacesConfig{Bucket: "b"}.Configured())
	assert.True(t, SpacesConfig{Bucket: "b", Region: "r", AccessKey: "a", SecretKey: "s"}.Configured())
}
