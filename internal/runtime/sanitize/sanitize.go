// Package sanitize redacts sensitive values from event payloads before they
// are logged or persisted.
package sanitize

import "strings"

// StrippedValue replaces the value of every sensitive string field.
const StrippedValue = "[STRIPPED]"

// DefaultKeywords lists the key fragments treated as sensitive.
var DefaultKeywords = []string{
	"token",
	"password",
	"credit_card",
	"card_number",
	"security_code",
	"verification_value",
	"private_key",
	"signature",
	"api_key",
	"secret_key",
	"publishable_key",
	"client_key",
	"client_secret",
	"secret",
}

// Filter replaces string values whose key contains a sensitive keyword.
// Matching is case-insensitive. The zero value is not usable; use NewFilter.
type Filter struct {
	keywords []string
	stripped string
}

// Option customises a Filter.
type Option func(*Filter)

// WithKeywords replaces the keyword list.
func WithKeywords(keywords ...string) Option {
	return func(f *Filter) {
		f.keywords = normalise(keywords)
	}
}

// WithStrippedValue replaces the redaction marker.
func WithStrippedValue(value string) Option {
	return func(f *Filter) {
		f.stripped = value
	}
}

// NewFilter returns a Filter using DefaultKeywords unless overridden.
func NewFilter(opts ...Option) *Filter {
	f := &Filter{
		keywords: normalise(DefaultKeywords),
		stripped: StrippedValue,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func normalise(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" {
			out = append(out, keyword)
		}
	}
	return out
}

// Sensitive reports whether key matches one of the filter keywords.
func (f *Filter) Sensitive(key string) bool {
	lower := strings.ToLower(key)
	for _, keyword := range f.keywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// Sanitize returns a deep copy of attrs in which the string values of
// sensitive keys are replaced. Nested objects and arrays are walked. The input
// is never mutated.
func (f *Filter) Sanitize(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	out := make(map[string]any, len(attrs))
	for key, value := range attrs {
		if _, ok := value.(string); ok && f.Sensitive(key) {
			out[key] = f.stripped
			continue
		}
		out[key] = f.sanitizeValue(value)
	}
	return out
}

func (f *Filter) sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		return f.Sanitize(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = f.sanitizeValue(item)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(typed))
		for i, item := range typed {
			out[i] = f.Sanitize(item)
		}
		return out
	default:
		return value
	}
}
