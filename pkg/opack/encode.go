package opack

import (
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/google/uuid"
)

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return appendValue(nil, reflect.ValueOf(v))
}

func appendValue(b []byte, v reflect.Value) ([]byte, error) {
	if !v.IsValid() {
		return append(b, tagNull), nil
	}

	switch x := v.Interface().(type) {
	case uuid.UUID:
		b = append(b, tagUUID)
		return append(b, x[:]...), nil
	case []byte:
		return appendData(b, x), nil
	}

	switch v.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return append(b, tagNull), nil
		}
		return appendValue(b, v.Elem())
	case reflect.Bool:
		if v.Bool() {
			return append(b, tagTrue), nil
		}
		return append(b, tagFalse), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := v.Int()
		if n < 0 {
			return nil, ErrNegativeInteger
		}
		return appendUint(b, uint64(n)), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return appendUint(b, v.Uint()), nil
	case reflect.Float32:
		b = append(b, tagFloat32)
		return binary.LittleEndian.AppendUint32(b, math.Float32bits(float32(v.Float()))), nil
	case reflect.Float64:
		b = append(b, tagFloat64)
		return binary.LittleEndian.AppendUint64(b, math.Float64bits(v.Float())), nil
	case reflect.String:
		return appendString(b, v.String()), nil
	case reflect.Slice, reflect.Array:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			data := make([]byte, v.Len())
			reflect.Copy(reflect.ValueOf(data), v)
			return appendData(b, data), nil
		}
		return appendArray(b, v)
	case reflect.Map:
		return appendDict(b, v)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
}

func appendUint(b []byte, n uint64) []byte {
	switch {
	case n <= maxSmallInt:
		return append(b, tagSmallInt+byte(n))
	case n <= math.MaxUint8:
		return append(b, tagInt8, byte(n))
	case n <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(append(b, tagInt16), uint16(n))
	case n <= math.MaxUint32:
		return binary.LittleEndian.AppendUint32(append(b, tagInt32), uint32(n))
	default:
		return binary.LittleEndian.AppendUint64(append(b, tagInt64), n)
	}
}

// appendLength writes a 1 to 4 byte little-endian length after base+size.
func appendLength(b []byte, base byte, n int) []byte {
	switch {
	case n <= math.MaxUint8:
		return append(b, base, byte(n))
	case n <= math.MaxUint16:
		return binary.LittleEndian.AppendUint16(append(b, base+1), uint16(n))
	case n <= 1<<24-1:
		return append(b, base+2, byte(n), byte(n>>8), byte(n>>16))
	default:
		return binary.LittleEndian.AppendUint32(append(b, base+3), uint32(n))
	}
}

func appendString(b []byte, s string) []byte {
	if len(s) <= maxInline {
		b = append(b, tagString+byte(len(s)))
	} else {
		b = appendLength(b, tagString8, len(s))
	}
	return append(b, s...)
}

func appendData(b []byte, d []byte) []byte {
	if len(d) <= maxInline {
		b = append(b, tagData+byte(len(d)))
	} else {
		b = appendLength(b, tagData8, len(d))
	}
	return append(b, d...)
}

func appendArray(b []byte, v reflect.Value) ([]byte, error) {
	n := v.Len()
	open := n > maxCounted
	if open {
		b = append(b, tagArrayOpen)
	} else {
		b = append(b, tagArray+byte(n))
	}

	var err error
	for i := 0; i < n; i++ {
		if b, err = appendValue(b, v.Index(i)); err != nil {
			return nil, err
		}
	}
	if open {
		b = append(b, tagTerminator)
	}
	return b, nil
}

// appendDict writes keys in sorted order so output is deterministic.
func appendDict(b []byte, v reflect.Value) ([]byte, error) {
	if v.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, v.Type().Key())
	}
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	n := len(keys)
	open := n > maxCounted
	if open {
		b = append(b, tagDictOpen)
	} else {
		b = append(b, tagDict+byte(n))
	}

	var err error
	for _, k := range keys {
		b = appendString(b, k.String())
		if b, err = appendValue(b, v.MapIndex(k)); err != nil {
			return nil, err
		}
	}
	if open {
		b = append(b, tagTerminator)
	}
	return b, nil
}
