package checksum

import (
	"reflect"

	"github.com/google/go-cmp/cmp"
)

// Diff renders a structural diff of two values, including unexported
// fields. It returns "" when they are equal.
func Diff(want, got any) string {
	return cmp.Diff(want, got,
		cmp.Exporter(func(reflect.Type) bool { return true }),
	)
}
