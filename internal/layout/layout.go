// Package layout describes plain C-style structs as lists of scalar fields so
// that invocation buffers can be built and read back from the command line.
//
// Fields are laid out in order with natural alignment and the total size is
// padded to the largest alignment, matching what clang and TinyGo produce for
// the corresponding struct. Values are encoded in host byte order.
package layout

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind is a scalar field type.
type Kind string

const (
	I8  Kind = "i8"
	I16 Kind = "i16"
	I32 Kind = "i32"
	I64 Kind = "i64"
	U8  Kind = "u8"
	U16 Kind = "u16"
	U32 Kind = "u32"
	U64 Kind = "u64"
	F32 Kind = "f32"
	F64 Kind = "f64"
)

var ErrUnknownKind = errors.New("unknown field type")

// Size returns the width of k in bytes, or 0 for an unknown kind.
func (k Kind) Size() int {
	switch k {
	case I8, U8:
		return 1
	case I16, U16:
		return 2
	case I32, U32, F32:
		return 4
	case I64, U64, F64:
		return 8
	}
	return 0
}

func (k Kind) signed() bool {
	return strings.HasPrefix(string(k), "i")
}

func (k Kind) float() bool {
	return strings.HasPrefix(string(k), "f")
}

// Field is one member of a layout. Value is the textual initial value; empty
// means zero.
type Field struct {
	Name  string `yaml:"name" json:"name"`
	Kind  Kind   `yaml:"type" json:"type"`
	Value string `yaml:"value,omitempty" json:"value,omitempty"`
}

// Value is a decoded field.
type Value struct {
	Name  string `json:"name"`
	Kind  Kind   `json:"type"`
	Value any    `json:"value"`
}

// Layout is a validated field list with computed offsets.
type Layout struct {
	fields  []Field
	offsets []int
	size    int
}

// ParseField parses "[name:]type=value", e.g. "value:i32=21" or "u8=0x10".
// Unnamed fields are named by position when the layout is built.
func ParseField(s string) (Field, error) {
	decl, value, ok := strings.Cut(s, "=")
	if !ok {
		return Field{}, fmt.Errorf("invalid field %q: expected [name:]type=value", s)
	}

	var f Field
	if name, kind, named := strings.Cut(decl, ":"); named {
		f.Name = strings.TrimSpace(name)
		f.Kind = Kind(strings.TrimSpace(kind))
	} else {
		f.Kind = Kind(strings.TrimSpace(decl))
	}
	f.Value = strings.TrimSpace(value)

	if f.Kind.Size() == 0 {
		return Field{}, fmt.Errorf("invalid field %q: %w %q", s, ErrUnknownKind, f.Kind)
	}
	return f, nil
}

// LoadFile reads fields from a YAML file of the form
//
//	fields:
//	  - name: value
//	    type: i32
//	    value: 21
func LoadFile(path string) ([]Field, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fields file: %w", err)
	}

	var doc struct {
		Fields []Field `yaml:"fields"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse fields file %s: %w", path, err)
	}
	return doc.Fields, nil
}

// New validates fields and computes their offsets.
func New(fields []Field) (*Layout, error) {
	l := &Layout{
		fields:  make([]Field, len(fields)),
		offsets: make([]int, len(fields)),
	}

	seen := make(map[string]bool, len(fields))
	maxAlign := 1
	offset := 0
	for i, f := range fields {
		size := f.Kind.Size()
		if size == 0 {
			return nil, fmt.Errorf("field %d: %w %q", i, ErrUnknownKind, f.Kind)
		}
		if f.Name == "" {
			f.Name = "field" + strconv.Itoa(i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("field %d: duplicate name %q", i, f.Name)
		}
		seen[f.Name] = true

		offset = align(offset, size)
		l.fields[i] = f
		l.offsets[i] = offset
		offset += size
		maxAlign = max(maxAlign, size)
	}
	l.size = align(offset, maxAlign)

	if len(fields) == 0 {
		l.size = 0
	}
	return l, nil
}

func align(n, a int) int {
	return (n + a - 1) / a * a
}

// Size returns the size of the struct in bytes.
func (l *Layout) Size() int {
	return l.size
}

// Offset returns the byte offset of field i.
func (l *Layout) Offset(i int) int {
	return l.offsets[i]
}

// Fields returns the fields with their resolved names.
func (l *Layout) Fields() []Field {
	return append([]Field(nil), l.fields...)
}

// Encode builds a buffer holding every field's initial value.
func (l *Layout) Encode() ([]byte, error) {
	buf := make([]byte, l.size)
	for i, f := range l.fields {
		if err := put(buf[l.offsets[i]:], f.Kind, f.Value); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return buf, nil
}

// Decode reads every field back from buf.
func (l *Layout) Decode(buf []byte) ([]Value, error) {
	if len(buf) < l.size {
		return nil, fmt.Errorf("buffer of %d bytes is smaller than layout of %d bytes", len(buf), l.size)
	}

	values := make([]Value, len(l.fields))
	for i, f := range l.fields {
		values[i] = Value{
			Name:  f.Name,
			Kind:  f.Kind,
			Value: get(buf[l.offsets[i]:], f.Kind),
		}
	}
	return values, nil
}

func put(b []byte, k Kind, s string) error {
	if s == "" {
		s = "0"
	}
	bits := k.Size() * 8

	var raw uint64
	switch {
	case k.float():
		v, err := strconv.ParseFloat(s, bits)
		if err != nil {
			return err
		}
		if k == F32 {
			raw = uint64(math.Float32bits(float32(v)))
		} else {
			raw = math.Float64bits(v)
		}
	case k.signed():
		v, err := strconv.ParseInt(s, 0, bits)
		if err != nil {
			return err
		}
		raw = uint64(v)
	default:
		v, err := strconv.ParseUint(s, 0, bits)
		if err != nil {
			return err
		}
		raw = v
	}

	switch k.Size() {
	case 1:
		b[0] = byte(raw)
	case 2:
		binary.NativeEndian.PutUint16(b, uint16(raw))
	case 4:
		binary.NativeEndian.PutUint32(b, uint32(raw))
	case 8:
		binary.NativeEndian.PutUint64(b, raw)
	}
	return nil
}

func get(b []byte, k Kind) any {
	switch k {
	case I8:
		return int8(b[0])
	case U8:
		return b[0]
	case I16:
		return int16(binary.NativeEndian.Uint16(b))
	case U16:
		return binary.NativeEndian.Uint16(b)
	case I32:
		return int32(binary.NativeEndian.Uint32(b))
	case U32:
		return binary.NativeEndian.Uint32(b)
	case F32:
		return math.Float32frombits(binary.NativeEndian.Uint32(b))
	case I64:
		return int64(binary.NativeEndian.Uint64(b))
	case U64:
		return binary.NativeEndian.Uint64(b)
	case F64:
		return math.Float64frombits(binary.NativeEndian.Uint64(b))
	}
	return nil
}
