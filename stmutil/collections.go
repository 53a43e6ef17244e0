package stmutil

import (
	"fmt"
	"hash/fnv"
	"reflect"

	"github.com/anacrolix/missinggo/v2/iter"
	"github.com/benbjohnson/immutable"
)

// Persistent collections for use inside transactions. A Var holding one of
// these can be "modified" freely by a transaction: every update returns a
// new value, so a discarded attempt leaves the committed collection alone
// and read-set validation stays cheap.

type Lenner interface {
	Len() int
}

// A Settish is a persistent set of arbitrary comparable values.
type Settish interface {
	Add(any) Settish
	Delete(any) Settish
	Contains(any) bool
	Range(func(any) bool)
	iter.Iterable
	Len() int
}

// A Mappish is a persistent map with arbitrary comparable keys.
type Mappish interface {
	Set(key, value any) Mappish
	Delete(key any) Mappish
	Get(key any) (any, bool)
	Range(func(key, value any) bool)
	iter.Iterable
	Len() int
}

// interhash hashes arbitrary comparable values for immutable's tries.
type interhash struct{}

func (interhash) Hash(x any) uint32 {
	h := fnv.New32a()
	if reflect.ValueOf(x).Kind() == reflect.Pointer {
		// Pointers compare by identity, so hash the address, not the
		// (mutable) value it points to.
		fmt.Fprintf(h, "%p", x)
	} else {
		fmt.Fprintf(h, "%v", x)
	}
	return h.Sum32()
}

func (interhash) Equal(a, b any) bool {
	return a == b
}

// NewMap returns an empty Mappish.
func NewMap() Mappish {
	return mappish{immutable.NewMap[any, any](interhash{})}
}

type mappish struct {
	m *immutable.Map[any, any]
}

func (m mappish) Set(key, value any) Mappish {
	return mappish{m.m.Set(key, value)}
}

func (m mappish) Delete(key any) Mappish {
	return mappish{m.m.Delete(key)}
}

func (m mappish) Get(key any) (any, bool) {
	return m.m.Get(key)
}

func (m mappish) Range(f func(key, value any) bool) {
	it := m.m.Iterator()
	for !it.Done() {
		k, v, _ := it.Next()
		if !f(k, v) {
			return
		}
	}
}

func (m mappish) Iter(cb iter.Callback) {
	m.Range(func(key, _ any) bool {
		return cb(key)
	})
}

func (m mappish) Len() int {
	return m.m.Len()
}

// NewSet returns an empty Settish.
func NewSet() Settish {
	return mapToSet{NewMap()}
}

// mapToSet views a Mappish with unit values as a set.
type mapToSet struct {
	m Mappish
}

func (s mapToSet) Add(x any) Settish {
	return mapToSet{s.m.Set(x, nil)}
}

func (s mapToSet) Delete(x any) Settish {
	return mapToSet{s.m.Delete(x)}
}

func (s mapToSet) Contains(x any) bool {
	_, ok := s.m.Get(x)
	return ok
}

func (s mapToSet) Range(f func(any) bool) {
	s.m.Range(func(key, _ any) bool {
		return f(key)
	})
}

func (s mapToSet) Iter(cb iter.Callback) {
	s.Range(func(x any) bool {
		return cb(x)
	})
}

func (s mapToSet) Len() int {
	return s.m.Len()
}
