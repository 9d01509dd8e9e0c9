package step

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/kbukum/filepipe/carrier"
	"github.com/kbukum/filepipe/errors"
)

func TestPreviewZip(t *testing.T) {
	archive := makeZip(t, zipFixture{name: "a.txt", body: "hello world"})
	s := &PreviewZip{deps: testDeps()}

	bodies, metas := runStep(t, s, inputStream(archive, carrier.Metadata{}), Args{})
	if len(bodies) != 1 {
		t.Fatalf("outputs = %d", len(bodies))
	}
	if metas[0].MediaType != "application/json" {
		t.Errorf("media type = %q", metas[0].MediaType)
	}

	var listing map[string]zipEntry
	if err := json.Unmarshal(bodies[0], &listing); err != nil {
		t.Fatal(err)
	}
	entry, ok := listing["a.txt"]
	if !ok {
		t.Fatalf("missing a.txt in %v", listing)
	}
	want := zipEntry{
		IsDir:          false,
		FileSize:       11,
		ModifiedTime:   "2024-01-02 03:04:05",
		CompressedSize: 11,
		CompressType:   0,
		MediaType:      "text/plain",
	}
	if entry != want {
		t.Errorf("entry = %+v, want %+v", entry, want)
	}
}

func TestPreviewZip_Empty(t *testing.T) {
	archive := makeZip(t)
	s := &PreviewZip{deps: testDeps()}
	bodies, _ := runStep(t, s, inputStream(archive, carrier.Metadata{}), Args{})
	if string(bodies[0]) != "{}" {
		t.Errorf("got %s", bodies[0])
	}
}

func TestPreviewZip_Malformed(t *testing.T) {
	s := &PreviewZip{deps: testDeps()}
	_, err := s.Process(context.Background(), inputStream([]byte("not a zip"), carrier.Metadata{}), Args{})
	if !errors.IsCode(err, errors.ErrCodeFormat) {
		t.Errorf("got %v, want FORMAT_ERROR", err)
	}
}

func TestExtractFileZip(t *testing.T) {
	archive := makeZip(t, zipFixture{name: "docs/a.txt", body: "hello world"})
	s := &ExtractFileZip{deps: testDeps()}

	bodies, metas := runStep(t, s, inputStream(archive, carrier.Metadata{}),
		Args{"file_name": "docs/a.txt"})
	if string(bodies[0]) != "hello world" {
		t.Errorf("body = %q", bodies[0])
	}
	if metas[0].FileName != "a.txt" {
		t.Errorf("file name = %q", metas[0].FileName)
	}
	if metas[0].MediaType != "text/plain" {
		t.Errorf("media type = %q", metas[0].MediaType)
	}
}

func TestExtractFileZip_ZeroByteMember(t *testing.T) {
	archive := makeZip(t, zipFixture{name: "empty.bin", body: ""})
	s := &ExtractFileZip{deps: testDeps()}
	bodies, _ := runStep(t, s, inputStream(archive, carrier.Metadata{}), Args{"file_name": "empty.bin"})
	if len(bodies[0]) != 0 {
		t.Errorf("body = %q", bodies[0])
	}
}

func TestExtractFileZip_Missing(t *testing.T) {
	archive := makeZip(t, zipFixture{name: "a.txt", body: "x"})
	s := &ExtractFileZip{deps: testDeps()}
	_, err := s.Process(context.Background(), inputStream(archive, carrier.Metadata{}),
		Args{"file_name": "b.txt"})
	if !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Errorf("got %v, want NOT_FOUND", err)
	}
}

func TestExtractFileZip_MissingArg(t *testing.T) {
	s := &ExtractFileZip{deps: testDeps()}
	_, err := s.Process(context.Background(), inputStream(nil, carrier.Metadata{}), Args{})
	if !errors.IsCode(err, errors.ErrCodeInvalidArguments) {
		t.Errorf("got %v, want INVALID_ARGUMENTS", err)
	}
}

func TestExtractDirectoryZip(t *testing.T) {
	archive := makeZip(t,
		zipFixture{name: "d/x", body: "X"},
		zipFixture{name: "d/y", body: "Y"},
		zipFixture{name: "other/z", body: "Z"},
		zipFixture{name: "d/", body: ""},
	)
	s := &ExtractDirectoryZip{deps: testDeps()}

	bodies, metas := runStep(t, s, inputStream(archive, carrier.Metadata{}),
		Args{"directory_name": "d"})
	if len(bodies) != 2 {
		t.Fatalf("outputs = %d", len(bodies))
	}
	if metas[0].FileName != "x" || string(bodies[0]) != "X" {
		t.Errorf("first = %q %q", metas[0].FileName, bodies[0])
	}
	if metas[1].FileName != "y" || string(bodies[1]) != "Y" {
		t.Errorf("second = %q %q", metas[1].FileName, bodies[1])
	}
}

func TestExtractDirectoryZip_NoMatch(t *testing.T) {
	archive := makeZip(t, zipFixture{name: "a.txt", body: "x"})
	s := &ExtractDirectoryZip{deps: testDeps()}
	bodies, _ := runStep(t, s, inputStream(archive, carrier.Metadata{}),
		Args{"directory_name": "nope"})
	if len(bodies) != 0 {
		t.Errorf("outputs = %d, want 0", len(bodies))
	}
}

func TestCreateZip(t *testing.T) {
	inputs := []carrier.Carrier{
		carrier.NewBytes([]byte("X"), carrier.Metadata{FileName: "x"}),
		carrier.NewBytes([]byte("Y"), carrier.Metadata{FileName: "y"}),
	}
	s := &CreateZip{deps: testDeps()}

	bodies, metas := runStep(t, s, FromSlice(inputs), Args{})
	if metas[0].FileName != "created.zip" || metas[0].MediaType != "application/zip" {
		t.Errorf("meta = %+v", metas[0])
	}
	if got := metas[0].Headers["Content-Disposition"]; got != `attachment; filename="created.zip"` {
		t.Errorf("disposition = %q", got)
	}

	zr, err := zip.NewReader(bytes.NewReader(bodies[0]), int64(len(bodies[0])))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("members = %d", len(zr.File))
	}
	for i, want := range []struct{ name, body string }{{"x", "X"}, {"y", "Y"}} {
		f := zr.File[i]
		if f.Name != want.name {
			t.Errorf("member %d name = %q", i, f.Name)
		}
		if f.Method != zip.Store {
			t.Errorf("member %d method = %d", i, f.Method)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if string(got) != want.body {
			t.Errorf("member %d body = %q", i, got)
		}
	}
}

func TestCreateZip_DedupesNames(t *testing.T) {
	inputs := []carrier.Carrier{
		carrier.NewBytes([]byte("1"), carrier.Metadata{FileName: "a.txt"}),
		carrier.NewBytes([]byte("2"), carrier.Metadata{FileName: "a.txt"}),
		carrier.NewBytes([]byte("3"), carrier.Metadata{FileName: "a.txt"}),
	}
	s := &CreateZip{deps: testDeps()}
	bodies, _ := runStep(t, s, FromSlice(inputs), Args{})

	zr, err := zip.NewReader(bytes.NewReader(bodies[0]), int64(len(bodies[0])))
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	want := []string{"a.txt", "a-1.txt", "a-2.txt"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("names = %v, want %v", names, want)
			break
		}
	}
}

func TestCreateZip_RequiresInputs(t *testing.T) {
	s := &CreateZip{deps: testDeps()}
	_, err := s.Process(context.Background(), nil, Args{})
	if !errors.IsCode(err, errors.ErrCodePipelineShape) {
		t.Errorf("got %v, want PIPELINE_SHAPE", err)
	}
}

// Round trip: extracting a directory and re-zipping preserves names and
// bytes.
func TestExtractDirectoryThenCreateZip(t *testing.T) {
	archive := makeZip(t,
		zipFixture{name: "d/x", body: "X"},
		zipFixture{name: "d/y", body: "Y"},
	)
	ctx := context.Background()

	extract := &ExtractDirectoryZip{deps: testDeps()}
	fanOut, err := extract.Process(ctx, inputStream(archive, carrier.Metadata{}),
		Args{"directory_name": "d"})
	if err != nil {
		t.Fatal(err)
	}

	create := &CreateZip{deps: testDeps()}
	bodies, _ := runStep(t, create, fanOut, Args{})

	zr, err := zip.NewReader(bytes.NewReader(bodies[0]), int64(len(bodies[0])))
	if err != nil {
		t.Fatal(err)
	}
	got := map[string]string{}
	for _, f := range zr.File {
		rc, _ := f.Open()
		body, _ := io.ReadAll(rc)
		rc.Close()
		got[f.Name] = string(body)
	}
	if got["x"] != "X" || got["y"] != "Y" || len(got) != 2 {
		t.Errorf("got %v", got)
	}
}
