package repository

import (
	"fmt"
	"strconv"
)

// Range is an inclusive bound on a field. Nil bounds are open.
type Range struct {
	Gte interface{}
	Lte interface{}
}

// Filter selects records by equality, membership and ranges. Zero value matches all.
type Filter struct {
	Equals map[string]interface{}
	In     map[string][]interface{}
	Ranges map[string]Range
	Limit  int
}

// Eq starts a filter with one equality condition.
func Eq(field string, value interface{}) Filter {
	return Filter{}.And(field, value)
}

// And adds an equality condition.
func (f Filter) And(field string, value interface{}) Filter {
	eq := make(map[string]interface{}, len(f.Equals)+1)
	for k, v := range f.Equals {
		eq[k] = v
	}
	eq[field] = value
	f.Equals = eq
	return f
}

// OneOf adds a membership condition.
func (f Filter) OneOf(field string, values ...interface{}) Filter {
	in := make(map[string][]interface{}, len(f.In)+1)
	for k, v := range f.In {
		in[k] = v
	}
	in[field] = values
	f.In = in
	return f
}

// Between adds an inclusive range condition.
func (f Filter) Between(field string, gte, lte interface{}) Filter {
	r := make(map[string]Range, len(f.Ranges)+1)
	for k, v := range f.Ranges {
		r[k] = v
	}
	r[field] = Range{Gte: gte, Lte: lte}
	f.Ranges = r
	return f
}

// WithLimit caps the number of returned records.
func (f Filter) WithLimit(n int) Filter {
	f.Limit = n
	return f
}

// Matches reports whether rec satisfies every condition of f.
func (f Filter) Matches(rec Record) bool {
	for field, want := range f.Equals {
		got, ok := rec[field]
		if !ok || compareValues(got, want) != 0 {
			return false
		}
	}
	for field, values := range f.In {
		got, ok := rec[field]
		if !ok {
			return false
		}
		found := false
		for _, v := range values {
			if compareValues(got, v) == 0 {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for field, r := range f.Ranges {
		got, ok := rec[field]
		if !ok || got == nil {
			return false
		}
		if r.Gte != nil && compareValues(got, r.Gte) < 0 {
			return false
		}
		if r.Lte != nil && compareValues(got, r.Lte) > 0 {
			return false
		}
	}
	return true
}

// compareValues orders numbers numerically and everything else by string form.
func compareValues(a, b interface{}) int {
	fa, aNum := toFloat(a)
	fb, bNum := toFloat(b)
	if aNum && bNum {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	sa, sb := stringValue(a), stringValue(b)
	switch {
	case sa < sb:
		return -1
	case sa > sb:
		return 1
	default:
		return 0
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	}
	if f, ok := toFloat(v); ok {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
