package payment

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Field is one key/value pair of a PayFast form, in posting order
type Field struct {
	Key   string
	Value string
}

// parseOrderedForm decodes an x-www-form-urlencoded body keeping the
// order fields were posted in
func parseOrderedForm(body string) ([]Field, error) {
	var fields []Field
	for _, part := range strings.Split(body, "&") {
		if part == "" {
			continue
		}
		rawKey, rawValue, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(rawKey)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(rawValue)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Key: key, Value: value})
	}
	return fields, nil
}

// signatureString joins the fields as key=urlencoded(value), skipping the
// signature itself and empty values, then appends the passphrase
func signatureString(fields []Field, passphrase string) string {
	parts := make([]string, 0, len(fields)+1)
	for _, f := range fields {
		if f.Key == "signature" {
			continue
		}
		v := strings.TrimSpace(f.Value)
		if v == "" {
			continue
		}
		parts = append(parts, f.Key+"="+encodeValue(v))
	}
	if passphrase != "" {
		parts = append(parts, "passphrase="+encodeValue(strings.TrimSpace(passphrase)))
	}
	return strings.Join(parts, "&")
}

// encodeValue URL-encodes like PHP urlencode: spaces become '+' and hex
// escapes are upper case
func encodeValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "~", "%7E")
}

// Signature returns the MD5 hex signature of fields in the given order
func Signature(fields []Field, passphrase string) string {
	sum := md5.Sum([]byte(signatureString(fields, passphrase)))
	return hex.EncodeToString(sum[:])
}

// SortedSignature signs the fields ordered by key
func SortedSignature(values url.Values, passphrase string) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{Key: k, Value: values.Get(k)})
	}
	return Signature(fields, passphrase)
}
