package payload

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), `payload.ndjson`)
	if err := os.WriteFile(path, []byte("{\"a\": 1}\n{\"a\": 2}\n{\"a\": 3}"), 0o600); err != nil {
		t.Fatal(err)
	}

	lines, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{`{"a": 1}`, `{"a": 2}`, `{"a": 3}`}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf(`need %v, have %v`, want, lines)
	}
}

func TestRead_KeepsEmptyRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), `payload.ndjson`)
	if err := os.WriteFile(path, []byte("one\n\ntwo\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	lines, err := Read(path)
	if err != nil {
		t.Fatal(err)
	}

	// an empty row is still a message; whether it maps is the schema's call
	if len(lines) != 3 {
		t.Fatalf(`need 3 rows, have %d`, len(lines))
	}
}

func TestRead_MissingFile(t *testing.T) {
	if _, err := Read(filepath.Join(t.TempDir(), `absent`)); err == nil {
		t.Fatal(`expected error for missing file`)
	}
}
