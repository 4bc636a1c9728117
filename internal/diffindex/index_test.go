package diffindex

import (
	"reflect"
	"sort"
	"testing"
)

func hunk(start int, spec string) Hunk {
	h := Hunk{NewStart: start}
	for _, c := range spec {
		switch c {
		case ' ':
			h.Lines = append(h.Lines, Line{Kind: Context})
		case '+':
			h.Lines = append(h.Lines, Line{Kind: Addition})
		case '-':
			h.Lines = append(h.Lines, Line{Kind: Deletion})
		}
	}
	return h
}

func TestFileLineToDiffPosition(t *testing.T) {
	x := New([]Patch{{
		Path:  "f.m",
		Hunks: []Hunk{hunk(10, "-- +"), hunk(22, " + ")},
	}})

	got := x.FileLineToDiffPosition("f.m")
	want := map[int]int{10: 3, 11: 4, 22: 6, 23: 7, 24: 8}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("FileLineToDiffPosition = %v, want %v", got, want)
	}
}

func TestFileLineToDiffPosition_FirstLine(t *testing.T) {
	x := New([]Patch{{Path: "f.m", Hunks: []Hunk{hunk(1, "+")}}})
	if pos, ok := x.Position("f.m", 1); !ok || pos != 1 {
		t.Errorf("Position = %d, %v, want 1, true", pos, ok)
	}
}

func TestFileLineToDiffPosition_ReturnsCopy(t *testing.T) {
	x := New([]Patch{{Path: "f.m", Hunks: []Hunk{hunk(1, "+")}}})
	m := x.FileLineToDiffPosition("f.m")
	m[99] = 99
	if _, ok := x.Position("f.m", 99); ok {
		t.Error("mutating the returned map changed the index")
	}
}

func TestFileLineToDiffPosition_Monotonic(t *testing.T) {
	patches := []Patch{
		{Path: "a.m", Hunks: []Hunk{hunk(1, " +- +"), hunk(40, "--++ "), hunk(90, "+")}},
		{Path: "b.m", Hunks: []Hunk{hunk(5, "---   +++"), hunk(7, " ")}},
		{Path: "c.m", Hunks: []Hunk{hunk(3, "+-+-+-"), hunk(200, "  -  ")}},
	}
	x := New(patches)
	for _, p := range patches {
		m := x.FileLineToDiffPosition(p.Path)
		lines := make([]int, 0, len(m))
		for l := range m {
			lines = append(lines, l)
		}
		sort.Ints(lines)
		for i := 1; i < len(lines); i++ {
			if m[lines[i]] <= m[lines[i-1]] {
				t.Errorf("%s: position of line %d (%d) not after line %d (%d)",
					p.Path, lines[i], m[lines[i]], lines[i-1], m[lines[i-1]])
			}
		}
	}
}

func TestUnknownFile(t *testing.T) {
	x := New(nil)
	if x.FileLineToDiffPosition("nope.m") != nil {
		t.Error("unknown file should have no mapping")
	}
	if x.FileChanged("nope.m") {
		t.Error("unknown file should not be changed")
	}
	if x.IsRelated("nope.m", 1, 100) {
		t.Error("unknown file should not be related")
	}
	if _, ok := x.Position("nope.m", 1); ok {
		t.Error("unknown file should have no position")
	}
}

func TestBinary(t *testing.T) {
	x := New([]Patch{{Path: "logo.png", Binary: true, Hunks: []Hunk{hunk(1, "+")}}})
	if !x.IsBinary("logo.png") {
		t.Error("IsBinary = false, want true")
	}
	if !x.FileChanged("logo.png") {
		t.Error("binary file should count as changed")
	}
	if !x.IsRelated("logo.png", 5000, 0) {
		t.Error("binary file should be related at any line")
	}
	if x.FileLineToDiffPosition("logo.png") != nil {
		t.Error("binary file should not be line mapped")
	}
	if _, ok := x.Position("logo.png", 1); ok {
		t.Error("binary file should have no position")
	}
}

func TestIsRelated_Tolerance(t *testing.T) {
	x := New([]Patch{{Path: "f.m", Hunks: []Hunk{hunk(10, "+")}}})
	tests := []struct {
		line      int
		tolerance int
		want      bool
	}{
		{10, 0, true},
		{11, 0, false},
		{12, 3, true},
		{13, 3, true},
		{14, 3, false},
		{7, 3, true},
		{6, 3, false},
		{12, -1, false},
	}
	for _, tt := range tests {
		if got := x.IsRelated("f.m", tt.line, tt.tolerance); got != tt.want {
			t.Errorf("IsRelated(line %d, tolerance %d) = %v, want %v", tt.line, tt.tolerance, got, tt.want)
		}
	}
}

func TestEmptyTextPatch(t *testing.T) {
	x := New([]Patch{{Path: "moved.m"}})
	if !x.FileChanged("moved.m") {
		t.Error("text patch without hunks should count as changed")
	}
	if x.IsRelated("moved.m", 1, 10) {
		t.Error("no line of a patch without hunks should be related")
	}
	if _, ok := x.LastLine("moved.m"); ok {
		t.Error("LastLine should be absent")
	}
}

func TestLastLineAndFiles(t *testing.T) {
	x := New([]Patch{
		{Path: "b.m", Hunks: []Hunk{hunk(3, " + "), hunk(30, "+-")}},
		{Path: "a.png", Binary: true},
	})
	if got, ok := x.LastLine("b.m"); !ok || got != 30 {
		t.Errorf("LastLine = %d, %v, want 30, true", got, ok)
	}
	want := []string{"a.png", "b.m"}
	if got := x.Files(); !reflect.DeepEqual(got, want) {
		t.Errorf("Files = %v, want %v", got, want)
	}
}
