package backup

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Backup artifacts carry a fixed header declaring how the payload is wrapped,
// so restore never has to sniff content:
//
//	magic "TVB1" | version byte | flags byte | payload
//
// The latest.db alias is always plain raw database bytes with no header.
var artifactMagic = []byte("TVB1")

const (
	artifactVersion = 1

	flagCompressed = 1 << 0
	flagEnvelope   = 1 << 1
)

// envelope is the JSON metadata wrapper; the database bytes are hex-encoded
// so the whole document stays valid UTF-8.
type envelope struct {
	Metadata map[string]any `json:"metadata"`
	Database string         `json:"database"`
}

func encodeArtifact(raw []byte, compress, withMetadata bool, meta map[string]any) ([]byte, error) {
	payload := raw
	var flags byte

	if withMetadata {
		doc, err := json.Marshal(envelope{Metadata: meta, Database: hex.EncodeToString(raw)})
		if err != nil {
			return nil, fmt.Errorf("marshal metadata envelope: %w", err)
		}
		payload = doc
		flags |= flagEnvelope
	}

	if compress {
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, fmt.Errorf("compress backup: %w", err)
		}
		if err := zw.Close(); err != nil {
			return nil, fmt.Errorf("compress backup: %w", err)
		}
		payload = buf.Bytes()
		flags |= flagCompressed
	}

	out := make([]byte, 0, len(artifactMagic)+2+len(payload))
	out = append(out, artifactMagic...)
	out = append(out, artifactVersion, flags)
	return append(out, payload...), nil
}

// decodeArtifact recovers raw database bytes from an artifact. Headered
// artifacts decode purely from their declared flags; anything else (the
// latest alias, artifacts written before the header existed) falls back to
// content sniffing.
func decodeArtifact(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, artifactMagic) && len(data) >= len(artifactMagic)+2 {
		version := data[len(artifactMagic)]
		if version != artifactVersion {
			return nil, fmt.Errorf("unsupported artifact version %d", version)
		}
		flags := data[len(artifactMagic)+1]
		payload := data[len(artifactMagic)+2:]

		if flags&flagCompressed != 0 {
			var err error
			if payload, err = gunzip(payload); err != nil {
				return nil, err
			}
		}
		if flags&flagEnvelope != 0 {
			return unwrapEnvelope(payload)
		}
		return payload, nil
	}

	return decodeLegacy(data)
}

func decodeLegacy(data []byte) ([]byte, error) {
	if bytes.HasPrefix(data, []byte{0x1f, 0x8b}) {
		decompressed, err := gunzip(data)
		if err != nil {
			return nil, err
		}
		data = decompressed
	}

	if raw, err := unwrapEnvelope(data); err == nil {
		return raw, nil
	}
	return data, nil
}

func unwrapEnvelope(payload []byte) ([]byte, error) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("parse metadata envelope: %w", err)
	}
	if env.Database == "" {
		return nil, fmt.Errorf("metadata envelope has no database payload")
	}
	raw, err := hex.DecodeString(env.Database)
	if err != nil {
		return nil, fmt.Errorf("decode database payload: %w", err)
	}
	return raw, nil
}

func gunzip(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("decompress backup: %w", err)
	}
	return out, nil
}
