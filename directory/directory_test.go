package directory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fortressi/disburse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStores(t *testing.T) map[string]Store {
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "lists"))
	require.NoError(t, err)
	return map[string]Store{
		"memory": NewMemoryStore(),
		"file":   fs,
	}
}

func TestStores(t *testing.T) {
	ctx := context.Background()
	for name, store := range testStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "mb.testnet")
			assert.ErrorIs(t, err, ErrNotFound)

			list := []disburse.AccountID{"alice.test", "bob.test"}
			require.NoError(t, store.Put(ctx, "mb.testnet", list))
			list[0] = "eve.test"

			got, err := store.Get(ctx, "mb.testnet")
			require.NoError(t, err)
			assert.Equal(t, []disburse.AccountID{"alice.test", "bob.test"}, got)

			require.NoError(t, store.Put(ctx, "mb.testnet", nil))
			got, err = store.Get(ctx, "mb.testnet")
			require.NoError(t, err)
			assert.Empty(t, got)
		})
	}
}

func TestFileStoreRejectsPathLikeIDs(t *testing.T) {
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, fs.Put(context.Background(), "../escape", nil))
	_, err = fs.Get(context.Background(), "../escape")
	assert.Error(t, err)
}

func TestFileStoreCorruptFile(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mb.testnet.json"), []byte("{"), 0644))

	_, err = fs.Get(context.Background(), "mb.testnet")
	assert.ErrorContains(t, err, "failed to unmarshal")
}

func TestLocalDefaults(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(NewMemoryStore(), DefaultRecipients...)

	got, err := local.ListRecipients(ctx, "mb.testnet")
	require.NoError(t, err)
	assert.Equal(t, []disburse.AccountID{"alice.foo", "bob.foo"}, got)

	require.NoError(t, local.Mock(ctx, "mb.testnet", []disburse.AccountID{"carol.test"}))
	got, err = local.ListRecipients(ctx, "mb.testnet")
	require.NoError(t, err)
	assert.Equal(t, []disburse.AccountID{"carol.test"}, got)

	_, err = NewLocal(NewMemoryStore()).ListRecipients(ctx, "mb.testnet")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestServerAndClient(t *testing.T) {
	ctx := context.Background()
	local := NewLocal(NewMemoryStore())
	srv := httptest.NewServer(NewRouter(&Handler{Directory: local}))
	defer srv.Close()

	client := NewClient(srv.URL+"/", srv.Client())

	_, err := client.ListRecipients(ctx, "mb.testnet")
	assert.ErrorContains(t, err, "404")

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/v1/directories/mb.testnet/recipients",
		strings.NewReader(`["bob.test","alice.test"]`))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	got, err := client.ListRecipients(ctx, "mb.testnet")
	require.NoError(t, err)
	assert.Equal(t, []disburse.AccountID{"bob.test", "alice.test"}, got)
}

func TestServerRejectsBadInput(t *testing.T) {
	srv := httptest.NewServer(NewRouter(&Handler{Directory: NewLocal(NewMemoryStore())}))
	defer srv.Close()

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "bad directory id", method: http.MethodGet, path: "/v1/directories/i/recipients"},
		{name: "bad json", method: http.MethodPut, path: "/v1/directories/mb.testnet/recipients", body: "{"},
		{name: "bad recipient", method: http.MethodPut, path: "/v1/directories/mb.testnet/recipients", body: `["Bob"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(tt.method, srv.URL+tt.path, strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}
