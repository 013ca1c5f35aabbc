//go:build sonic

package larkapi

import "github.com/bytedance/sonic"

// codec used by the req client and by the live log decoder
var (
	jsonMarshal   = sonic.Marshal
	jsonUnmarshal = sonic.Unmarshal
)

// Unmarshal decodes with the codec selected at build time.
func Unmarshal(data []byte, v any) error {
	return jsonUnmarshal(data, v)
}
