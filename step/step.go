// Package step defines the pipeline step contract and the built-in steps:
// ZIP introspection and extraction, archive creation, image preview, and
// Crypt4GH decrypt / re-grant / validate.
package step

import (
	"context"
	"fmt"
	"net/http"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/httpclient"
	"github.com/kbukum/filepipe/keyprovider"
	"github.com/kbukum/filepipe/logger"
)

// Stream provides pull-based sequential access to a sequence of carriers.
type Stream interface {
	// Next returns the next carrier. Returns (nil, false, nil) when exhausted.
	Next(ctx context.Context) (carrier.Carrier, bool, error)
	// Close releases any resources held by the stream.
	Close() error
}

// Step transforms an input carrier stream into an output carrier stream.
// A step is instantiated fresh per pipeline run.
type Step interface {
	// Process consumes in (nil for the first step, which must resolve its
	// own source from args) and returns the output stream.
	Process(ctx context.Context, in Stream, args Args) (Stream, error)
	// ProducesMultipleOutputs reports whether the output stream may carry
	// more than one carrier.
	ProducesMultipleOutputs() bool
}

// Deps are the shared collaborators injected into step factories.
type Deps struct {
	// HTTP fetches remote sources by byte range.
	HTTP *httpclient.Client
	// KeyHTTP fetches remote key material.
	KeyHTTP *http.Client
	// ServerKey resolves the server's own Crypt4GH private key. Crypto
	// steps fall back to it when the request names no recipient_sec.
	ServerKey keyprovider.Resolver
	// Log is the service logger.
	Log *logger.Logger
	// BufferLimit caps in-memory materialisation of non-seekable inputs.
	BufferLimit int64
}

// Args is the step-specific argument mapping decoded from the pipeline
// payload. Values follow JSON decoding conventions (numbers are float64).
type Args map[string]any

// String returns the named argument, failing with InvalidArguments when
// it is missing or not a string.
func (a Args) String(key string) (string, error) {
	raw, ok := a[key]
	if !ok {
		return "", errors.MissingArgument(key)
	}
	s, ok := raw.(string)
	if !ok || s == "" {
		return "", errors.InvalidArguments(fmt.Sprintf("argument %s must be a non-empty string", key))
	}
	return s, nil
}

// OptionalString returns the named argument or "" when absent.
func (a Args) OptionalString(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the named argument as a positive integer.
func (a Args) Int(key string) (int, error) {
	raw, ok := a[key]
	if !ok {
		return 0, errors.MissingArgument(key)
	}
	var n int
	switch v := raw.(type) {
	case float64:
		n = int(v)
		if float64(n) != v {
			return 0, errors.InvalidArguments(fmt.Sprintf("argument %s must be an integer", key))
		}
	case int:
		n = v
	default:
		return 0, errors.InvalidArguments(fmt.Sprintf("argument %s must be an integer", key))
	}
	if n <= 0 {
		return 0, errors.InvalidArguments(fmt.Sprintf("argument %s must be positive", key))
	}
	return n, nil
}

// SourceURL is the argument naming a step's remote source.
const SourceURL = "source_url"

// resolveInput yields the single input carrier for a step: the first
// carrier of in, or a URL carrier built from args.source_url when the
// step runs first in the pipeline.
func resolveInput(ctx context.Context, deps *Deps, in Stream, args Args) (carrier.Carrier, error) {
	if in == nil {
		url, err := args.String(SourceURL)
		if err != nil {
			return nil, err
		}
		return carrier.NewURL(ctx, deps.HTTP, url, carrier.Metadata{})
	}
	c, ok, err := in.Next(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.PipelineShape("step received an empty input stream")
	}
	return c, nil
}

// seekableInput resolves the step input and guarantees random access,
// buffering non-seekable streams up to deps.BufferLimit.
func seekableInput(ctx context.Context, deps *Deps, in Stream, args Args) (carrier.Seekable, error) {
	c, err := resolveInput(ctx, deps, in, args)
	if err != nil {
		return nil, err
	}
	return carrier.EnsureSeekable(ctx, c, deps.BufferLimit)
}
