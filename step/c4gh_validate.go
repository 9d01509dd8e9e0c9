package step

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/crypt4gh"
	"github.com/kbukum/filepipe/errors"
)

// validationResult is the JSON document emitted by ValidateCrypt4GH.
type validationResult struct {
	Valid bool    `json:"valid"`
	Error *string `json:"error"`
}

// ValidateCrypt4GH checks that a container decrypts end to end with the
// provided key. Decryption and format failures become a valid:false
// document, never a pipeline error.
type ValidateCrypt4GH struct {
	deps *Deps
}

func (s *ValidateCrypt4GH) ProducesMultipleOutputs() bool { return false }

func (s *ValidateCrypt4GH) Process(ctx context.Context, in Stream, args Args) (Stream, error) {
	key, err := recipientSecretKey(ctx, s.deps, args)
	if err != nil && !isValidationFailure(err) {
		return nil, err
	}

	var verr error
	if err != nil {
		verr = err
	} else {
		src, err := resolveInput(ctx, s.deps, in, args)
		if err != nil && !isValidationFailure(err) {
			return nil, err
		}
		if err != nil {
			verr = err
		} else {
			verr = validateContainer(ctx, src, key)
			src.Close()
		}
	}

	result := validationResult{Valid: verr == nil}
	if verr != nil {
		msg := verr.Error()
		result.Error = &msg
	}
	body, err := json.Marshal(result)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return Single(carrier.NewBytes(body, carrier.Metadata{MediaType: "application/json"})), nil
}

// validateContainer drains the whole payload through the decryption
// machinery, discarding plaintext.
func validateContainer(ctx context.Context, src carrier.Carrier, key [crypt4gh.KeySize]byte) error {
	reader, err := crypt4gh.NewReader(carrier.Reader(ctx, src), key)
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, reader)
	return err
}

// isValidationFailure reports whether err is a failure class that
// validate reports as valid:false instead of raising.
func isValidationFailure(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrCodeFormat, errors.ErrCodeCryptoAuth, errors.ErrCodeNetwork, errors.ErrCodeNotFound:
		return true
	default:
		return false
	}
}
