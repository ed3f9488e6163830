package metadata

import "fmt"

// Headers is the loosely typed header map attached to events. Values are
// usually strings; a nil value marks a header that is present but empty, such
// as the parent span of a root trace.
type Headers map[string]any

// Clone returns a shallow copy of the header map. Cloning a nil map yields nil
// so callers can keep distinguishing "no headers" from "empty headers".
func (h Headers) Clone() Headers {
	if h == nil {
		return nil
	}
	cloned := make(Headers, len(h))
	for k, v := range h {
		cloned[k] = v
	}
	return cloned
}

// String returns the header as a string when it is set to a non-empty string.
func (h Headers) String(key string) (string, bool) {
	value, ok := h[key].(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// Merge returns a copy of h overlaid with the entries of other.
func (h Headers) Merge(other Headers) Headers {
	merged := make(Headers, len(h)+len(other))
	for k, v := range h {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Without returns a copy of h with the given keys removed.
func (h Headers) Without(keys ...string) Headers {
	cloned := h.Clone()
	if cloned == nil {
		cloned = Headers{}
	}
	for _, key := range keys {
		delete(cloned, key)
	}
	return cloned
}

// Metadata flattens the headers into string metadata. Nil values are dropped
// because string-only header tables cannot represent them.
func (h Headers) Metadata() Metadata {
	md := make(Metadata, len(h))
	for k, v := range h {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			md[k] = value
		case []byte:
			md[k] = string(value)
		default:
			md[k] = fmt.Sprint(value)
		}
	}
	return md
}
