// Package jsoncodec centralises JSON encoding on sonic's std-compatible
// configuration so payloads and stored projections use the same rules.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

var api = sonic.ConfigStd

func Marshal(v any) ([]byte, error) { return api.Marshal(v) }

func Unmarshal(data []byte, v any) error { return api.Unmarshal(data, v) }

func Encode(w io.Writer, v any) error { return api.NewEncoder(w).Encode(v) }

func Decode(r io.Reader, v any) error { return api.NewDecoder(r).Decode(v) }

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool { return api.Valid(data) }
