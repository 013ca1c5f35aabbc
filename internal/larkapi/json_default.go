//go:build !sonic

package larkapi

import "github.com/goccy/go-json"

// codec used by the req client and by the live log decoder
var (
	jsonMarshal   = json.Marshal
	jsonUnmarshal = json.Unmarshal
)

// Unmarshal decodes with the codec selected at build time.
func Unmarshal(data []byte, v any) error {
	return jsonUnmarshal(data, v)
}
