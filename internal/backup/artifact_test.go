package backup

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func TestArtifactRoundTrip(t *testing.T) {
	raw := []byte("SQLite format 3\x00 pretend database bytes")

	for name, tc := range map[string]struct {
		compress     bool
		withMetadata bool
	}{
		"plain":               {false, false},
		"compressed":          {true, false},
		"metadata":            {false, true},
		"compressed metadata": {true, true},
	} {
		meta := map[string]any{"app_version": "1.0.0"}
		encoded, err := encodeArtifact(raw, tc.compress, tc.withMetadata, meta)
		if err != nil {
			t.Fatalf("%s: encode: %v", name, err)
		}
		if !bytes.HasPrefix(encoded, artifactMagic) {
			t.Fatalf("%s: artifact missing header", name)
		}

		decoded, err := decodeArtifact(encoded)
		if err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		if !bytes.Equal(decoded, raw) {
			t.Fatalf("%s: round trip mismatch", name)
		}
	}
}

func TestDecodeLegacyGzipEnvelope(t *testing.T) {
	raw := []byte("SQLite format 3\x00 legacy bytes")

	doc, err := json.Marshal(envelope{
		Metadata: map[string]any{"backup_tool": "legacy"},
		Database: hex.EncodeToString(raw),
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(doc); err != nil {
		t.Fatalf("compress: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}

	decoded, err := decodeArtifact(buf.Bytes())
	if err != nil {
		t.Fatalf("decode legacy artifact: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatal("legacy round trip mismatch")
	}
}

func TestDecodeRawBytesPassThrough(t *testing.T) {
	raw := []byte("SQLite format 3\x00 raw latest alias bytes")
	decoded, err := decodeArtifact(raw)
	if err != nil {
		t.Fatalf("decode raw: %v", err)
	}
	if !bytes.Equal(decoded, raw) {
		t.Fatal("raw bytes must pass through unchanged")
	}
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	data := append([]byte{}, artifactMagic...)
	data = append(data, 99, 0)
	if _, err := decodeArtifact(data); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}
