package events

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	errspkg "github.com/drblury/hermes/internal/runtime/errors"
)

// Factory returns a fresh zero value of an event type.
type Factory func() Event

// Catalog maps event type names to factories so events can be rebuilt from
// their serialized form.
type Catalog struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{factories: make(map[string]Factory)}
}

// Register adds a factory under name, replacing any previous entry.
func (c *Catalog) Register(name string, factory Factory) error {
	if name == "" {
		return errspkg.ErrEventTypeRequired
	}
	if factory == nil {
		return errspkg.ErrEventRequired
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
	return nil
}

// New instantiates the event registered under name.
func (c *Catalog) New(name string) (Event, error) {
	c.mu.RLock()
	factory, ok := c.factories[name]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", errspkg.ErrUnknownEventType, name)
	}
	return factory(), nil
}

// Has reports whether name is registered.
func (c *Catalog) Has(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.factories[name]
	return ok
}

// Names returns the registered names in lexical order.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.factories))
	for name := range c.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FactoryFor builds a factory for the pointer event type T and returns it with
// the type name of T.
func FactoryFor[T Event]() (Factory, string, error) {
	var zero T
	typ := reflect.TypeOf(zero)
	if typ == nil {
		return nil, "", errspkg.ErrEventRequired
	}
	if typ.Kind() != reflect.Ptr {
		return nil, "", errspkg.ErrEventPointerNeeded
	}
	elem := typ.Elem()
	factory := func() Event {
		return reflect.New(elem).Interface().(Event)
	}
	return factory, TypeName(factory()), nil
}

// Register adds the pointer event type T to c and returns its type name.
func Register[T Event](c *Catalog) (string, error) {
	factory, name, err := FactoryFor[T]()
	if err != nil {
		return "", err
	}
	if err := c.Register(name, factory); err != nil {
		return "", err
	}
	return name, nil
}

// Remember registers the dynamic type of ev unless its name is already known,
// so events published without an explicit registration can still be rebuilt.
func (c *Catalog) Remember(ev Event) string {
	name := TypeName(ev)
	if c.Has(name) {
		return name
	}
	typ := reflect.TypeOf(ev)
	if typ == nil || typ.Kind() != reflect.Ptr {
		return name
	}
	elem := typ.Elem()
	_ = c.Register(name, func() Event {
		return reflect.New(elem).Interface().(Event)
	})
	return name
}
