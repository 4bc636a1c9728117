package output

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := &JSONWriter{}
	if err := w.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if decoded["run_id"] != "1794893126373085184" {
		t.Errorf("run_id = %v, want the id as a string", decoded["run_id"])
	}
	if decoded["lines_around_related"] != float64(20) {
		t.Errorf("lines_around_related = %v", decoded["lines_around_related"])
	}
	issues, ok := decoded["issues"].([]any)
	if !ok || len(issues) != 4 {
		t.Fatalf("issues = %v", decoded["issues"])
	}
	linker := issues[1].(map[string]any)
	if linker["tool"] != "linker" || linker["type"] != "error" {
		t.Errorf("issues[1] = %v", linker)
	}
	if _, ok := linker["file_path"]; ok {
		t.Error("file_path should be omitted for process-level issues")
	}
	if buf.Bytes()[buf.Len()-1] != '\n' {
		t.Error("output should end with a newline")
	}
}
