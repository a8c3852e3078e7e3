package atom

import "testing"

type point struct {
	X, Y int
}

type withSlice struct {
	Items []string
}

func TestDefaultEqual(t *testing.T) {
	fn := func() {}
	other := func() {}

	tests := []struct {
		name string
		eq   bool
		got  bool
	}{
		{"ints equal", true, defaultEqual(1, 1)},
		{"ints differ", false, defaultEqual(1, 2)},
		{"strings", true, defaultEqual("a", "a")},
		{"structs", true, defaultEqual(point{1, 2}, point{1, 2})},
		{"structs differ", false, defaultEqual(point{1, 2}, point{2, 1})},
		{"slices deep", true, defaultEqual([]int{1, 2}, []int{1, 2})},
		{"slices differ", false, defaultEqual([]int{1, 2}, []int{1})},
		{"maps deep", true, defaultEqual(map[string]int{"a": 1}, map[string]int{"a": 1})},
		{"struct with slice", true, defaultEqual(withSlice{[]string{"x"}}, withSlice{[]string{"x"}})},
		{"same func", true, defaultEqual(fn, fn)},
		{"different funcs", false, defaultEqual(fn, other)},
		{"nil any", true, defaultEqual[any](nil, nil)},
		{"nil vs value", false, defaultEqual[any](nil, 1)},
		{"mixed dynamic types", false, defaultEqual[any](1, "1")},
		{"pointers to equal values", true, defaultEqual(&point{1, 1}, &point{1, 1})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.eq {
				t.Errorf("defaultEqual = %v, want %v", tt.got, tt.eq)
			}
		})
	}
}

type box struct {
	V any
}

func TestDefaultEqualUncomparableInterfaceField(t *testing.T) {
	// box is a comparable type, but == panics when V holds a slice.
	a := box{V: []int{1}}
	b := box{V: []int{1}}
	if !defaultEqual(a, b) {
		t.Error("expected deep equality after == panicked")
	}
	if defaultEqual(a, box{V: []int{2}}) {
		t.Error("expected inequality for different slice contents")
	}
}
