package step

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/crypt4gh"
	"github.com/kbukum/filepipe/errors"
	"github.com/kbukum/filepipe/httpclient"
	"github.com/kbukum/filepipe/keyprovider"
)

func makeContainer(t *testing.T, plaintext []byte, recipients ...[crypt4gh.KeySize]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := crypt4gh.NewWriter(&buf, recipients...)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(plaintext); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecryptCrypt4GH(t *testing.T) {
	pub, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("clear text payload")
	container := makeContainer(t, plaintext, pub)

	s := &DecryptCrypt4GH{deps: testDeps()}
	bodies, metas := runStep(t, s,
		inputStream(container, carrier.Metadata{FileName: "data.txt.c4gh"}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(priv))})

	if !bytes.Equal(bodies[0], plaintext) {
		t.Errorf("body = %q", bodies[0])
	}
	if metas[0].FileName != "data.txt" {
		t.Errorf("file name = %q", metas[0].FileName)
	}
	if metas[0].MediaType != "text/plain" {
		t.Errorf("media type = %q", metas[0].MediaType)
	}
}

func TestDecryptCrypt4GH_WrongKey(t *testing.T) {
	pub, _, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	_, otherPriv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	container := makeContainer(t, []byte("x"), pub)

	s := &DecryptCrypt4GH{deps: testDeps()}
	_, perr := s.Process(context.Background(),
		inputStream(container, carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(otherPriv))})
	if !errors.IsCode(perr, errors.ErrCodeCryptoAuth) {
		t.Errorf("got %v, want CRYPTO_AUTH", perr)
	}
}

func TestAddRecipientThenDecrypt(t *testing.T) {
	pubA, privA, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	pubB, privB, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("shared between recipients")
	container := makeContainer(t, plaintext, pubA)

	add := &AddRecipientCrypt4GH{deps: testDeps()}
	bodies, _ := runStep(t, add,
		inputStream(container, carrier.Metadata{FileName: "f.c4gh"}),
		Args{
			"recipient_pub": string(crypt4gh.EncodePublicKey(pubB)),
			"recipient_sec": string(crypt4gh.EncodePrivateKey(privA)),
		})

	decrypt := &DecryptCrypt4GH{deps: testDeps()}
	decrypted, _ := runStep(t, decrypt,
		inputStream(bodies[0], carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(privB))})
	if !bytes.Equal(decrypted[0], plaintext) {
		t.Error("new recipient cannot decrypt")
	}

	// The original recipient keeps access.
	decryptedA, _ := runStep(t, decrypt,
		inputStream(bodies[0], carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(privA))})
	if !bytes.Equal(decryptedA[0], plaintext) {
		t.Error("original recipient lost access")
	}
}

func decodeValidation(t *testing.T, body []byte) validationResult {
	t.Helper()
	var result validationResult
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	return result
}

func TestValidateCrypt4GH_Valid(t *testing.T) {
	pub, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	container := makeContainer(t, []byte("payload"), pub)

	s := &ValidateCrypt4GH{deps: testDeps()}
	bodies, metas := runStep(t, s,
		inputStream(container, carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(priv))})

	if metas[0].MediaType != "application/json" {
		t.Errorf("media type = %q", metas[0].MediaType)
	}
	result := decodeValidation(t, bodies[0])
	if !result.Valid || result.Error != nil {
		t.Errorf("result = %+v", result)
	}
}

func TestValidateCrypt4GH_TamperedTag(t *testing.T) {
	pub, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	container := makeContainer(t, []byte("payload"), pub)
	container[len(container)-1] ^= 0x01

	s := &ValidateCrypt4GH{deps: testDeps()}
	bodies, _ := runStep(t, s,
		inputStream(container, carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(priv))})

	result := decodeValidation(t, bodies[0])
	if result.Valid {
		t.Error("tampered container reported valid")
	}
	if result.Error == nil || *result.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestValidateCrypt4GH_NotAContainer(t *testing.T) {
	_, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	s := &ValidateCrypt4GH{deps: testDeps()}
	bodies, _ := runStep(t, s,
		inputStream([]byte("just some text"), carrier.Metadata{}),
		Args{"recipient_sec": string(crypt4gh.EncodePrivateKey(priv))})

	if result := decodeValidation(t, bodies[0]); result.Valid {
		t.Error("plain text reported valid")
	}
}

func TestDecryptCrypt4GH_ServerKeyFallback(t *testing.T) {
	pub, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("server-held key")
	container := makeContainer(t, plaintext, pub)

	deps := testDeps()
	deps.ServerKey = keyprovider.Static(priv)
	s := &DecryptCrypt4GH{deps: deps}
	bodies, _ := runStep(t, s, inputStream(container, carrier.Metadata{}), Args{})

	if !bytes.Equal(bodies[0], plaintext) {
		t.Errorf("body = %q", bodies[0])
	}
}

func TestValidateCrypt4GH_UnreachableSourceReportsInvalid(t *testing.T) {
	_, priv, err := crypt4gh.GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}

	// A server that is already gone yields a refused connection.
	srv := httptest.NewServer(http.NotFoundHandler())
	deadURL := srv.URL
	srv.Close()

	client, err := httpclient.New(httpclient.Config{DisableRetry: true})
	if err != nil {
		t.Fatal(err)
	}
	deps := testDeps()
	deps.HTTP = client

	s := &ValidateCrypt4GH{deps: deps}
	bodies, _ := runStep(t, s, nil, Args{
		"source_url":    deadURL,
		"recipient_sec": string(crypt4gh.EncodePrivateKey(priv)),
	})

	result := decodeValidation(t, bodies[0])
	if result.Valid {
		t.Error("unreachable source reported valid")
	}
	if result.Error == nil || *result.Error == "" {
		t.Error("expected a non-empty error message")
	}
}

func TestValidateCrypt4GH_MissingKeyArgRaises(t *testing.T) {
	s := &ValidateCrypt4GH{deps: testDeps()}
	_, err := s.Process(context.Background(), inputStream(nil, carrier.Metadata{}), Args{})
	if !errors.IsCode(err, errors.ErrCodeInvalidArguments) {
		t.Errorf("got %v, want INVALID_ARGUMENTS", err)
	}
}
