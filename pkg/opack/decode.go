package opack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	"github.com/google/uuid"
)

// Unmarshal decodes a single value that must span all of data.
func Unmarshal(data []byte) (any, error) {
	d := &decoder{data: data}
	v, err := d.value(0)
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w: %d bytes", ErrTrailingData, len(d.data)-d.pos)
	}
	return v, nil
}

// UnmarshalDict decodes data that must hold a dictionary.
func UnmarshalDict(data []byte) (map[string]any, error) {
	v, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: top-level %T is not a dictionary", ErrUnsupportedType, v)
	}
	return m, nil
}

type decoder struct {
	data []byte
	pos  int

	// objects holds decoded values that back-references may point to.
	objects []any
}

func (d *decoder) read(n int) ([]byte, error) {
	if n < 0 || d.pos+n > len(d.data) {
		return nil, ErrTruncated
	}
	b := d.data[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

func (d *decoder) peek() (byte, error) {
	if d.pos >= len(d.data) {
		return 0, ErrTruncated
	}
	return d.data[d.pos], nil
}

// uintLE reads an n-byte little-endian unsigned integer.
func (d *decoder) uintLE(n int) (uint64, error) {
	b, err := d.read(n)
	if err != nil {
		return 0, err
	}
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v, nil
}

func (d *decoder) value(depth int) (any, error) {
	if depth > maxDepth {
		return nil, ErrTooDeep
	}
	tagBytes, err := d.read(1)
	if err != nil {
		return nil, err
	}
	tag := tagBytes[0]

	var v any
	remember := true

	switch {
	case tag == tagTrue:
		v, remember = true, false
	case tag == tagFalse:
		v, remember = false, false
	case tag == tagNull:
		v, remember = nil, false
	case tag == tagUUID:
		b, err := d.read(16)
		if err != nil {
			return nil, err
		}
		var u uuid.UUID
		copy(u[:], b)
		v = u
	case tag == tagDate:
		b, err := d.read(8)
		if err != nil {
			return nil, err
		}
		v = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case tag >= tagSmallInt && tag <= tagSmallInt+maxSmallInt:
		v, remember = uint64(tag-tagSmallInt), false
	case tag >= tagInt8 && tag <= tagInt64:
		n, err := d.uintLE(1 << (tag - tagInt8))
		if err != nil {
			return nil, err
		}
		v = n
	case tag == tagFloat32:
		b, err := d.read(4)
		if err != nil {
			return nil, err
		}
		v = float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	case tag == tagFloat64:
		b, err := d.read(8)
		if err != nil {
			return nil, err
		}
		v = math.Float64frombits(binary.LittleEndian.Uint64(b))
	case tag >= tagString && tag <= tagString+maxInline:
		b, err := d.read(int(tag - tagString))
		if err != nil {
			return nil, err
		}
		v = string(b)
	case tag >= tagString8 && tag <= tagString8+3:
		n, err := d.uintLE(int(tag-tagString8) + 1)
		if err != nil {
			return nil, err
		}
		b, err := d.read(int(n))
		if err != nil {
			return nil, err
		}
		v = string(b)
	case tag >= tagData && tag <= tagData+maxInline:
		b, err := d.read(int(tag - tagData))
		if err != nil {
			return nil, err
		}
		v = bytes.Clone(b)
	case tag >= tagData8 && tag <= tagData8+3:
		n, err := d.uintLE(int(tag-tagData8) + 1)
		if err != nil {
			return nil, err
		}
		b, err := d.read(int(n))
		if err != nil {
			return nil, err
		}
		v = bytes.Clone(b)
	case tag >= tagRef && tag <= tagRef+maxRefInline:
		return d.ref(int(tag - tagRef))
	case tag >= tagRef8 && tag <= tagRef8+3:
		idx, err := d.uintLE(int(tag-tagRef8) + 1)
		if err != nil {
			return nil, err
		}
		return d.ref(int(idx))
	case tag >= tagArray && tag <= tagArrayOpen:
		if v, err = d.array(tag, depth); err != nil {
			return nil, err
		}
	case tag >= tagDict && tag <= tagDictOpen:
		if v, err = d.dict(tag, depth); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownTag, tag, d.pos-1)
	}

	if remember {
		d.remember(v)
	}
	return v, nil
}

func (d *decoder) remember(v any) {
	for _, o := range d.objects {
		if reflect.DeepEqual(o, v) {
			return
		}
	}
	d.objects = append(d.objects, v)
}

func (d *decoder) ref(idx int) (any, error) {
	if idx >= len(d.objects) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidRef, idx, len(d.objects))
	}
	return d.objects[idx], nil
}

// atTerminator consumes a terminator if one is next.
func (d *decoder) atTerminator() (bool, error) {
	b, err := d.peek()
	if err != nil {
		return false, err
	}
	if b == tagTerminator {
		d.pos++
		return true, nil
	}
	return false, nil
}

func (d *decoder) array(tag byte, depth int) ([]any, error) {
	open := tag == tagArrayOpen
	count := int(tag - tagArray)

	out := []any{}
	for i := 0; open || i < count; i++ {
		if open {
			done, err := d.atTerminator()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (d *decoder) dict(tag byte, depth int) (map[string]any, error) {
	open := tag == tagDictOpen
	count := int(tag - tagDict)

	out := make(map[string]any)
	for i := 0; open || i < count; i++ {
		if open {
			done, err := d.atTerminator()
			if err != nil {
				return nil, err
			}
			if done {
				break
			}
		}
		k, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %T", ErrInvalidKey, k)
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
