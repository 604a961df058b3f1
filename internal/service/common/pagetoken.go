package common

import (
	"encoding/base64"
	"fmt"
)

// EncodePageToken encodes an opaque paging state as a URL-safe token.
func EncodePageToken(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodePageToken decodes a paging token back into raw state.
func DecodePageToken(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode page token: %w", err)
	}
	return data, nil
}
