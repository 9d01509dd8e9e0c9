// Package keyprovider resolves the server's Crypt4GH private key from a
// configurable source: a local file, an environment variable, an inline
// armored key, or an HTTP endpoint.
package keyprovider

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/kbukum/filepipe/crypt4gh"
	"github.com/kbukum/filepipe/errors"
)

// Resolver yields the server's Crypt4GH private key.
type Resolver interface {
	PrivateKey(ctx context.Context) ([crypt4gh.KeySize]byte, error)
}

// New builds a resolver for source. Recognised forms:
//
//	https://host/key   fetched over HTTP
//	env:VAR_NAME       read from the environment
//	-----BEGIN ...     inline armored key
//	anything else      treated as a file path
//
// The resolved key is cached after the first successful load.
func New(source string, passphrase []byte, client *http.Client) Resolver {
	var load func(ctx context.Context) ([]byte, error)
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		if client == nil {
			client = http.DefaultClient
		}
		load = func(ctx context.Context) ([]byte, error) {
			return fetchKey(ctx, client, source)
		}
	case strings.HasPrefix(source, "env:"):
		name := strings.TrimPrefix(source, "env:")
		load = func(context.Context) ([]byte, error) {
			value, ok := os.LookupEnv(name)
			if !ok {
				return nil, errors.NotFound("server key environment variable", name)
			}
			return []byte(value), nil
		}
	case strings.HasPrefix(source, "-----BEGIN"):
		load = func(context.Context) ([]byte, error) {
			return []byte(source), nil
		}
	default:
		load = func(context.Context) ([]byte, error) {
			data, err := os.ReadFile(source)
			if err != nil {
				return nil, errors.NotFound("server key file", source).WithCause(err)
			}
			return data, nil
		}
	}
	return &cachingResolver{load: load, passphrase: passphrase}
}

// Static returns a resolver over an already loaded key. Used in tests and
// for ephemeral development keys.
func Static(key [crypt4gh.KeySize]byte) Resolver {
	return staticResolver{key: key}
}

type staticResolver struct {
	key [crypt4gh.KeySize]byte
}

func (r staticResolver) PrivateKey(context.Context) ([crypt4gh.KeySize]byte, error) {
	return r.key, nil
}

type cachingResolver struct {
	load       func(ctx context.Context) ([]byte, error)
	passphrase []byte

	mu     sync.Mutex
	cached bool
	key    [crypt4gh.KeySize]byte
}

func (r *cachingResolver) PrivateKey(ctx context.Context) ([crypt4gh.KeySize]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached {
		return r.key, nil
	}
	raw, err := r.load(ctx)
	if err != nil {
		return r.key, err
	}
	key, err := crypt4gh.ParsePrivateKey(raw, r.passphrase)
	if err != nil {
		return r.key, err
	}
	r.key = key
	r.cached = true
	return r.key, nil
}

func fetchKey(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.InvalidArguments("invalid key URL").WithCause(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Network("fetch server key", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Network("fetch server key", nil).WithDetail("status", resp.StatusCode)
	}
	// Keys are tiny; cap the read.
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, errors.Network("fetch server key", err)
	}
	return data, nil
}
