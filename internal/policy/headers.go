package policy

import (
	"net/http"
	"strings"
	"unicode/utf8"
)

// MapHeaders converts request headers into the value tree exposed to
// policy programs as request_headers. Names are lower-cased and all
// occurrences of a name are merged into one entry. Each value decodes
// to a string when it is valid UTF-8 and degrades to raw bytes
// otherwise, per value. A name with exactly one value maps to the
// scalar; N>1 values map to a list of length N in arrival order.
func MapHeaders(h http.Header) map[string]any {
	grouped := make(map[string][]string, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		grouped[key] = append(grouped[key], values...)
	}

	out := make(map[string]any, len(grouped))
	for name, values := range grouped {
		if len(values) == 0 {
			continue
		}
		out[name] = headerValue(values)
	}
	return out
}

func headerValue(values []string) any {
	if len(values) == 1 {
		return decodeValue(values[0])
	}
	vs := make([]any, 0, len(values))
	for _, v := range values {
		vs = append(vs, decodeValue(v))
	}
	return vs
}

func decodeValue(v string) any {
	if utf8.ValidString(v) {
		return v
	}
	return []byte(v)
}
