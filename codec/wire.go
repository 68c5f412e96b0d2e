package codec

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/TSherpa10/moodzy/errors"
)

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	return appendVarint(b, num, protowire.EncodeBool(v))
}

// fieldFunc decodes one known field from b and returns the bytes consumed.
type fieldFunc func(typ protowire.Type, b []byte) (int, error)

// walk iterates the fields of a message, dispatching known field numbers to
// fields and skipping the rest.
func walk(msg string, b []byte, fields map[protowire.Number]fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return invalid(msg, "tag", protowire.ParseError(n))
		}
		b = b[n:]

		handle, known := fields[num]
		if !known {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return invalid(msg, fmt.Sprintf("unknown field %d", num), protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		n, err := handle(typ, b)
		if err != nil {
			return invalid(msg, fmt.Sprintf("field %d", num), err)
		}
		b = b[n:]
	}
	return nil
}

func invalid(msg, what string, cause error) error {
	return fmt.Errorf("%w: %s %s: %v", errors.ErrInvalidData, msg, what, cause)
}

func wireTypeErr(want, got protowire.Type) error {
	return fmt.Errorf("wire type %d, want %d", got, want)
}

func stringField(dst *string) fieldFunc {
	return func(typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.BytesType {
			return 0, wireTypeErr(protowire.BytesType, typ)
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		if !utf8.ValidString(v) {
			return 0, fmt.Errorf("string is not valid UTF-8")
		}
		*dst = v
		return n, nil
	}
}

func varintField(set func(uint64)) fieldFunc {
	return func(typ protowire.Type, b []byte) (int, error) {
		if typ != protowire.VarintType {
			return 0, wireTypeErr(protowire.VarintType, typ)
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		set(v)
		return n, nil
	}
}

func boolField(dst *bool) fieldFunc {
	return varintField(func(v uint64) { *dst = protowire.DecodeBool(v) })
}

func int64Field(dst *int64) fieldFunc {
	return varintField(func(v uint64) { *dst = int64(v) })
}

func int32Field(dst *int32) fieldFunc {
	return varintField(func(v uint64) { *dst = int32(v) })
}
