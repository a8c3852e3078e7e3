package atom

import "reflect"

// defaultEqual compares with == when the values are comparable and falls
// back to reflect.DeepEqual. Functions compare by code pointer. Any panic
// during comparison degrades to "not equal", so the write goes through.
//
// This is approximate for values holding functions, channels or unexported
// state; use WithEqual when an atom needs exact semantics.
func defaultEqual[T any](a, b T) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()

	switch av := any(a).(type) {
	case int:
		return av == any(b).(int)
	case int64:
		return av == any(b).(int64)
	case uint64:
		return av == any(b).(uint64)
	case float64:
		return av == any(b).(float64)
	case string:
		return av == any(b).(string)
	case bool:
		return av == any(b).(bool)
	}

	va, vb := reflect.ValueOf(any(a)), reflect.ValueOf(any(b))
	if !va.IsValid() || !vb.IsValid() {
		return va.IsValid() == vb.IsValid()
	}
	if va.Type() != vb.Type() {
		return false
	}
	if va.Kind() == reflect.Func {
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() && shallowEqual(any(a), any(b)) {
		return true
	}
	return reflect.DeepEqual(any(a), any(b))
}

// shallowEqual is == that reports false instead of panicking on interface
// fields holding uncomparable values.
func shallowEqual(a, b any) (eq bool) {
	defer func() {
		if recover() != nil {
			eq = false
		}
	}()
	return a == b
}
