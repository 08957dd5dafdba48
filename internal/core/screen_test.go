package core

import (
	"strings"
	"testing"
)

func TestNewScreen(t *testing.T) {
	s := NewScreen(80, 24)

	if s.Width() != 80 {
		t.Errorf("Width() = %d, expected 80", s.Width())
	}
	if s.Height() != 24 {
		t.Errorf("Height() = %d, expected 24", s.Height())
	}

	for y := range s.Height() {
		for x := range s.Width() {
			if s.GetCell(x, y) != blank {
				t.Fatalf("New screen should be blank, got %+v at (%d, %d)", s.GetCell(x, y), x, y)
			}
		}
	}

	if neg := NewScreen(-3, 2); neg.Width() != 0 || neg.String() != "\n" {
		t.Errorf("negative width screen = %d %q", neg.Width(), neg.String())
	}
}

func TestScreenSetGet(t *testing.T) {
	s := NewScreen(10, 10)

	s.SetColored(5, 5, 'X', ColorServer)
	if got := s.GetCell(5, 5); got.Rune != 'X' || got.Color != ColorServer {
		t.Errorf("GetCell(5, 5) = %+v", got)
	}
	s.Set(5, 5, 'Y')
	if got := s.GetCell(5, 5); got.Rune != 'Y' || got.Color != ColorDefault {
		t.Errorf("Set should reset the color, got %+v", got)
	}

	// Out of bounds should be silent
	s.Set(-1, 0, 'A')
	s.Set(100, 0, 'A')
	s.Set(0, -1, 'A')
	s.Set(0, 100, 'A')

	if s.Get(-1, 0) != ' ' || s.Get(100, 0) != ' ' {
		t.Error("Out of bounds Get should return space")
	}
}

func TestScreenDrawText(t *testing.T) {
	s := NewScreen(8, 1)
	s.DrawText(6, 0, "héllo", ColorAlert)

	// Multi-byte runes take one column each and the rest is clipped.
	if got := s.Row(0); got != "      hé" {
		t.Errorf("Row(0) = %q", got)
	}
	if s.GetCell(7, 0).Color != ColorAlert {
		t.Error("text color not applied")
	}
}

func TestScreenDrawBox(t *testing.T) {
	s := NewScreen(5, 4)
	s.DrawBox(s.Bounds(), ColorMuted)

	want := strings.Join([]string{
		"┌───┐",
		"│   │",
		"│   │",
		"└───┘",
	}, "\n")
	if got := s.String(); got != want {
		t.Errorf("DrawBox:\n%s\nwant:\n%s", got, want)
	}

	tiny := NewScreen(3, 3)
	tiny.DrawBox(NewRect(0, 0, 1, 3), ColorMuted)
	if strings.TrimSpace(tiny.String()) != "" {
		t.Error("a box narrower than two cells should draw nothing")
	}
}

func TestScreenResizeClears(t *testing.T) {
	s := NewScreen(10, 5)
	s.DrawText(0, 0, "Hello", ColorDefault)

	s.Resize(4, 2)
	if s.Width() != 4 || s.Height() != 2 || s.Row(0) != "    " {
		t.Errorf("after Resize: %dx%d %q", s.Width(), s.Height(), s.Row(0))
	}

	s.DrawText(0, 0, "ab", ColorDefault)
	s.Resize(4, 2)
	if s.Row(0) != "    " {
		t.Errorf("same-size Resize should clear, got %q", s.Row(0))
	}
}

func TestScreenRowOutOfBounds(t *testing.T) {
	s := NewScreen(6, 2)
	if got := s.Row(-1); got != "      " {
		t.Errorf("Row(-1) = %q", got)
	}
}
