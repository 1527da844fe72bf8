package radix

import (
	"reflect"
	"unsafe"
)

// Key is a sortable key type.
type Key interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint | ~uintptr |
		~float32 | ~float64
}

type keyKind int

const (
	unsignedKey keyKind = iota
	signedKey
	floatKey
)

// codec is the order-preserving cast between a key and its unsigned bit
// pattern: comparing encoded values as unsigned integers gives the
// requested order of the original keys.
type codec[T Key] struct {
	kind       keyKind
	bits       int
	mask       uint64
	sign       uint64
	descending bool
}

func newCodec[T Key](ascending bool) codec[T] {
	var zero T
	c := codec[T]{
		bits:       int(unsafe.Sizeof(zero)) * 8,
		descending: !ascending,
	}
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		c.kind = signedKey
	case reflect.Float32, reflect.Float64:
		c.kind = floatKey
	default:
		c.kind = unsignedKey
	}
	c.mask = ^uint64(0) >> (64 - c.bits)
	c.sign = uint64(1) << (c.bits - 1)
	return c
}

func (c codec[T]) raw(v T) uint64 {
	p := unsafe.Pointer(&v)
	switch c.bits {
	case 8:
		return uint64(*(*uint8)(p))
	case 16:
		return uint64(*(*uint16)(p))
	case 32:
		return uint64(*(*uint32)(p))
	default:
		return *(*uint64)(p)
	}
}

func (c codec[T]) fromRaw(u uint64) T {
	var v T
	p := unsafe.Pointer(&v)
	switch c.bits {
	case 8:
		*(*uint8)(p) = uint8(u)
	case 16:
		*(*uint16)(p) = uint16(u)
	case 32:
		*(*uint32)(p) = uint32(u)
	default:
		*(*uint64)(p) = u
	}
	return v
}

// encode maps v to its ordered bit pattern.
func (c codec[T]) encode(v T) uint64 {
	u := c.raw(v)
	switch c.kind {
	case signedKey:
		u ^= c.sign
	case floatKey:
		if u&c.sign != 0 {
			u = ^u & c.mask
		} else {
			u |= c.sign
		}
	}
	if c.descending {
		u = ^u & c.mask
	}
	return u
}

// decode is the inverse of encode.
func (c codec[T]) decode(u uint64) T {
	if c.descending {
		u = ^u & c.mask
	}
	switch c.kind {
	case signedKey:
		u ^= c.sign
	case floatKey:
		if u&c.sign != 0 {
			u &^= c.sign
		} else {
			u = ^u & c.mask
		}
	}
	return c.fromRaw(u)
}

// padding is the encoded key given to slots past the end of the input. It
// orders after every real key, and stability keeps it after real keys
// with the same pattern.
func (c codec[T]) padding() uint64 {
	return c.mask
}
