package core

import "testing"

func TestRectEdges(t *testing.T) {
	r := NewRect(10, 20, 30, 40)

	if r.Right() != 40 {
		t.Errorf("Right() = %d, expected 40", r.Right())
	}
	if r.Bottom() != 60 {
		t.Errorf("Bottom() = %d, expected 60", r.Bottom())
	}
	if !r.Contains(10, 20) || r.Contains(40, 20) || r.Contains(10, 60) {
		t.Error("Contains should include the top-left corner and exclude the far edges")
	}
}

func TestRectInset(t *testing.T) {
	if got := NewRect(0, 0, 10, 6).Inset(1); got != NewRect(1, 1, 8, 4) {
		t.Errorf("Inset(1) = %+v", got)
	}
	if got := NewRect(0, 0, 3, 3).Inset(2); got.W != 0 || got.H != 0 {
		t.Errorf("over-inset = %+v", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		val, lo, hi, want int
	}{
		{5, 0, 10, 5},
		{-5, 0, 10, 0},
		{15, 0, 10, 10},
		{0, 0, 10, 0},
		{10, 0, 10, 10},
	}

	for _, tt := range tests {
		if got := Clamp(tt.val, tt.lo, tt.hi); got != tt.want {
			t.Errorf("Clamp(%d, %d, %d) = %d, expected %d", tt.val, tt.lo, tt.hi, got, tt.want)
		}
	}
}

func TestScale(t *testing.T) {
	nan := float32(0)
	nan = nan / nan

	tests := []struct {
		name   string
		v      float32
		lo, hi float32
		width  int
		want   int
	}{
		{"low edge", -2, -2, 2, 41, 0},
		{"middle", 0, -2, 2, 41, 20},
		{"high edge", 2, -2, 2, 41, 40},
		{"below range", -9, -2, 2, 41, 0},
		{"above range", 9, -2, 2, 41, 40},
		{"rounds", 0.1, 0, 1, 11, 1},
		{"empty range", 1, 1, 1, 10, 0},
		{"one column", 1, 0, 2, 1, 0},
		{"nan", nan, 0, 1, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Scale(tt.v, tt.lo, tt.hi, tt.width); got != tt.want {
				t.Errorf("Scale(%v, %v, %v, %d) = %d, want %d", tt.v, tt.lo, tt.hi, tt.width, got, tt.want)
			}
		})
	}
}
