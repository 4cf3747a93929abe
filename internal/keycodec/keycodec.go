// Package keycodec maps (kind, key) pairs onto single byte-string keys for
// ordered key-value stores.
//
// The physical key is hex(kind) + " " + hex(key). Hex digits never include
// the separator, so every record of a kind shares the prefix hex(kind)+" "
// and no kind's prefix is a prefix of another's. Records sort by kind, then
// by key bytes.
package keycodec

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
)

const sep = ' '

// afterSep sorts after sep and before every hex digit.
const afterSep = '!'

// ErrMalformed is returned by Decode for keys not produced by Encode.
var ErrMalformed = errors.New("malformed composite key")

// Encode returns the physical key for (kind, key).
func Encode(kind, key string) []byte {
	b := make([]byte, 0, 2*len(kind)+1+2*len(key))
	b = hex.AppendEncode(b, []byte(kind))
	b = append(b, sep)
	return hex.AppendEncode(b, []byte(key))
}

// Prefix returns the prefix shared by every physical key of kind.
func Prefix(kind string) []byte {
	b := make([]byte, 0, 2*len(kind)+1)
	b = hex.AppendEncode(b, []byte(kind))
	return append(b, sep)
}

// After returns the smallest physical key that sorts after every key of
// kind and before the keys of any other kind that sorts after it.
func After(kind string) []byte {
	b := make([]byte, 0, 2*len(kind)+1)
	b = hex.AppendEncode(b, []byte(kind))
	return append(b, afterSep)
}

// Decode splits a physical key back into kind and key.
func Decode(physical []byte) (kind, key string, err error) {
	k, v, ok := bytes.Cut(physical, []byte{sep})
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrMalformed, physical)
	}
	kb, err := hex.DecodeString(string(k))
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrMalformed, physical, err)
	}
	vb, err := hex.DecodeString(string(v))
	if err != nil {
		return "", "", fmt.Errorf("%w: %q: %v", ErrMalformed, physical, err)
	}
	return string(kb), string(vb), nil
}

// DecodeKey returns the key part of a physical key known to belong to
// kind's prefix.
func DecodeKey(kind string, physical []byte) (string, error) {
	rest, ok := bytes.CutPrefix(physical, Prefix(kind))
	if !ok {
		return "", fmt.Errorf("%w: %q is not a %s key", ErrMalformed, physical, kind)
	}
	vb, err := hex.DecodeString(string(rest))
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformed, physical, err)
	}
	return string(vb), nil
}
