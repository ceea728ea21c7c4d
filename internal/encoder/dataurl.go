package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrInvalidDataURL = errors.New("invalid data URL")

// BuildDataURL embeds data as a base64 data URL.
func BuildDataURL(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ParseDataURL returns the MIME type and payload of a data URL.
func ParseDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}

	mimeType, isBase64 := strings.CutSuffix(header, ";base64")
	if mimeType == "" {
		mimeType = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
		}
		return mimeType, data, nil
	}
	decoded, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidDataURL, err)
	}
	return mimeType, []byte(decoded), nil
}

// EstimateDataURLSize returns the payload length of a base64 data URL
// without decoding it. A string without a comma has no payload.
func EstimateDataURLSize(dataURL string) int64 {
	_, payload, ok := strings.Cut(dataURL, ",")
	if !ok {
		return 0
	}
	n := int64(len(payload))
	padding := int64(0)
	switch {
	case strings.HasSuffix(payload, "=="):
		padding = 2
	case strings.HasSuffix(payload, "="):
		padding = 1
	}
	return (n*3+3)/4 - padding
}
