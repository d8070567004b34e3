// Package codec selects the wire encoding used between clients and the relay.
//
// JSON is the default. CBOR uses the canonical encoding mode so identical
// values always produce identical bytes.
package codec

import (
	"encoding/json"
	"fmt"
	"mime"

	"github.com/fxamacker/cbor/v2"
)

// Codec marshals relay payloads for one content type.
type Codec interface {
	Name() string
	ContentType() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

const (
	NameJSON = "json"
	NameCBOR = "cbor"
)

type jsonCodec struct{}

func (jsonCodec) Name() string                       { return NameJSON }
func (jsonCodec) ContentType() string                { return "application/json" }
func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

type cborCodec struct {
	enc cbor.EncMode
	dec cbor.DecMode
}

func (cborCodec) Name() string                         { return NameCBOR }
func (cborCodec) ContentType() string                  { return "application/cbor" }
func (c cborCodec) Marshal(v any) ([]byte, error)      { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }

var (
	// JSON is the default codec.
	JSON Codec = jsonCodec{}
	// CBOR is the compact binary codec.
	CBOR Codec = newCBOR()
)

func newCBOR() Codec {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxArrayElements: 1 << 16,
	}.DecMode()
	if err != nil {
		panic(err)
	}
	return cborCodec{enc: enc, dec: dec}
}

// Lookup returns the codec registered under name. Empty selects JSON.
func Lookup(name string) (Codec, error) {
	switch name {
	case "", NameJSON:
		return JSON, nil
	case NameCBOR:
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// ByContentType picks a codec from a Content-Type or Accept header value.
// Anything unrecognised falls back to JSON.
func ByContentType(header string) Codec {
	mt, _, err := mime.ParseMediaType(header)
	if err == nil && mt == CBOR.ContentType() {
		return CBOR
	}
	return JSON
}
