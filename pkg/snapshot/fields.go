package snapshot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrUnknownCategory = errors.New("unknown primary type")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidField    = errors.New("invalid field")
	ErrInvalidNumber   = errors.New("invalid numeric field")
)

// fieldReader pulls typed values out of a stored message, keeping the first error
type fieldReader struct {
	primaryType string
	fields      map[string]interface{}
	err         error
}

func newFieldReader(primaryType string, fields map[string]interface{}) *fieldReader {
	return &fieldReader{primaryType: primaryType, fields: fields}
}

func (r *fieldReader) fail(sentinel error, name string, format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	detail := ""
	if format != "" {
		detail = ": " + fmt.Sprintf(format, args...)
	}
	r.err = fmt.Errorf("%w %s.%s%s", sentinel, r.primaryType, name, detail)
}

func (r *fieldReader) get(name string) (interface{}, bool) {
	v, ok := r.fields[name]
	if !ok || v == nil {
		r.fail(ErrMissingField, name, "")
		return nil, false
	}
	return v, true
}

func (r *fieldReader) str(name string) string {
	v, ok := r.get(name)
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		r.fail(ErrInvalidField, name, "expected string, got %T", v)
		return ""
	}
	return s
}

func (r *fieldReader) strs(name string) []string {
	v, ok := r.get(name)
	if !ok {
		return nil
	}
	items, ok := v.([]interface{})
	if !ok {
		if already, ok := v.([]string); ok {
			out := make([]string, len(already))
			copy(out, already)
			return out
		}
		r.fail(ErrInvalidField, name, "expected array, got %T", v)
		return nil
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		s, ok := item.(string)
		if !ok {
			r.fail(ErrInvalidField, name, "item %d: expected string, got %T", i, item)
			return nil
		}
		out = append(out, s)
	}
	return out
}

// unsigned converts a decimal string into an unsigned integer of the given width
func (r *fieldReader) unsigned(name string, bits int) uint64 {
	v, ok := r.get(name)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(n), 10, bits)
		if err != nil {
			r.fail(ErrInvalidNumber, name, "%q", n)
			return 0
		}
		return parsed
	case float64:
		// 2^bits is exact in float64, whereas 2^64-1 would round up to 2^64
		if n < 0 || n != math.Trunc(n) || n >= math.Pow(2, float64(bits)) {
			r.fail(ErrInvalidNumber, name, "%v", n)
			return 0
		}
		return uint64(n)
	default:
		r.fail(ErrInvalidNumber, name, "unsupported type %T", v)
		return 0
	}
}
