// Package datauri parses and builds base64 data URIs of the form
// data:<mime>;base64,<payload>.
package datauri

import (
	"encoding/base64"
	"errors"
	"math"
	"regexp"
)

// ErrMalformed is returned when a string is not a usable base64 data URI.
var ErrMalformed = errors.New("malformed data uri")

// dataURIRE captures the media type and the base64 payload.
var dataURIRE = regexp.MustCompile(`^data:([^;,]+);base64,(.*)$`)

// EncodedImage holds decoded image bytes and their MIME type.
type EncodedImage struct {
	Data []byte
	Mime string
}

// Size returns the decoded size in bytes.
func (img *EncodedImage) Size() int {
	return len(img.Data)
}

// Parse decodes a data URI. Missing prefix, empty payload or invalid base64
// all yield ErrMalformed.
func Parse(uri string) (*EncodedImage, error) {
	m := dataURIRE.FindStringSubmatch(uri)
	if m == nil {
		return nil, ErrMalformed
	}
	if m[2] == "" {
		return nil, ErrMalformed
	}

	data, err := base64.StdEncoding.DecodeString(m[2])
	if err != nil || len(data) == 0 {
		return nil, ErrMalformed
	}

	return &EncodedImage{Data: data, Mime: m[1]}, nil
}

// Serialize builds the data URI for img.
func Serialize(img *EncodedImage) string {
	return "data:" + img.Mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// MediaType returns the MIME type from the URI header without decoding the payload.
func MediaType(uri string) (string, bool) {
	m := dataURIRE.FindStringSubmatch(uri)
	if m == nil || m[2] == "" {
		return "", false
	}
	return m[1], true
}

// ApproximateDecodedSize estimates the decoded byte length of a data URI as
// ceil(len(payload) * 0.75). Returns 0 for anything that is not a data URI.
func ApproximateDecodedSize(uri string) int {
	m := dataURIRE.FindStringSubmatchIndex(uri)
	if m == nil {
		return 0
	}
	payloadLen := m[5] - m[4]
	return int(math.Ceil(float64(payloadLen) * 0.75))
}
