package keyprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/filepipe/crypt4gh"
	"github.com/kbukum/filepipe/errors"
)

func newTestKey(t *testing.T) ([crypt4gh.KeySize]byte, []byte) {
	t.Helper()
	_, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	return priv, crypt4gh.EncodePrivateKey(priv)
}

func TestResolve_File(t *testing.T) {
	priv, encoded := newTestKey(t)
	path := filepath.Join(t.TempDir(), "server.sec")
	if err := os.WriteFile(path, encoded, 0o600); err != nil {
		t.Fatal(err)
	}

	got, err := New(path, nil, nil).PrivateKey(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != priv {
		t.Error("wrong key")
	}
}

func TestResolve_FileMissing(t *testing.T) {
	_, err := New("/nonexistent/server.sec", nil, nil).PrivateKey(context.Background())
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestResolve_Env(t *testing.T) {
	priv, encoded := newTestKey(t)
	t.Setenv("FILEPIPE_TEST_KEY", string(encoded))

	got, err := New("env:FILEPIPE_TEST_KEY", nil, nil).PrivateKey(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != priv {
		t.Error("wrong key")
	}
}

func TestResolve_Inline(t *testing.T) {
	priv, encoded := newTestKey(t)
	got, err := New(string(encoded), nil, nil).PrivateKey(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != priv {
		t.Error("wrong key")
	}
}

func TestResolve_HTTP(t *testing.T) {
	priv, encoded := newTestKey(t)
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write(encoded)
	}))
	defer srv.Close()

	resolver := New(srv.URL, nil, srv.Client())
	got, err := resolver.PrivateKey(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != priv {
		t.Error("wrong key")
	}

	// Second resolve hits the cache.
	if _, err := resolver.PrivateKey(context.Background()); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestResolve_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(srv.URL, nil, srv.Client()).PrivateKey(context.Background())
	if !errors.IsCode(err, errors.ErrCodeNetwork) {
		t.Errorf("got %v, want NETWORK_ERROR", err)
	}
}

func TestStatic(t *testing.T) {
	priv, _ := newTestKey(t)
	got, err := Static(priv).PrivateKey(context.Background())
	if err != nil || got != priv {
		t.Errorf("got %v", err)
	}
}
