package events

import (
	"fmt"
	"reflect"
	"strings"
	"unicode"
)

// TypeName returns the name ev is registered and recorded under.
func TypeName(ev Event) string {
	if named, ok := ev.(Named); ok {
		if name := named.EventType(); name != "" {
			return name
		}
	}
	return reflectedName(reflect.TypeOf(ev))
}

func reflectedName(typ reflect.Type) string {
	return strings.TrimPrefix(fmt.Sprintf("%v", typ), "*")
}

// RoutingKey returns the broker routing key of ev.
func RoutingKey(ev Event) string {
	if routed, ok := ev.(Routed); ok {
		if key := routed.RoutingKey(); key != "" {
			return key
		}
	}
	return RoutingKeyFor(TypeName(ev))
}

// RoutingKeyFor derives a routing key from an event type name: the name is
// split into segments on "." or "::", a leading namespace segment containing
// "events" is dropped, and the remaining segments are snake_cased and joined
// with ".". For example "Events.Billing.InvoicePaid" becomes
// "billing.invoice_paid".
func RoutingKeyFor(typeName string) string {
	segments := strings.FieldsFunc(strings.ReplaceAll(typeName, "::", "."), func(r rune) bool {
		return r == '.'
	})
	if len(segments) > 1 && strings.Contains(strings.ToLower(segments[0]), "events") {
		segments = segments[1:]
	}
	for i, segment := range segments {
		segments[i] = snakeCase(segment)
	}
	return strings.Join(segments, ".")
}

// QueueName returns the consumer queue for a routing key.
func QueueName(applicationPrefix, routingKey string) string {
	return applicationPrefix + "." + routingKey + ".queue"
}

// snakeCase converts CamelCase to snake_case, keeping acronyms together:
// "HTTPRequestSent" becomes "http_request_sent".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if r == '-' || r == ' ' {
			b.WriteRune('_')
			continue
		}
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
