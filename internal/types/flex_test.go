package types

import (
	"encoding/json"
	"testing"
)

type item struct {
	ID string `json:"id"`
}

func TestFlexListSingleObject(t *testing.T) {
	var list FlexList[item]
	if err := json.Unmarshal([]byte(`{"id":"f1"}`), &list); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(list) != 1 || list[0].ID != "f1" {
		t.Errorf("Expected one item f1, got %+v", list)
	}
}

func TestFlexListArray(t *testing.T) {
	var list FlexList[item]
	if err := json.Unmarshal([]byte(` [{"id":"f1"},{"id":"f2"}]`), &list); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(list) != 2 || list[1].ID != "f2" {
		t.Errorf("Expected two items, got %+v", list)
	}
}

func TestFlexUint64(t *testing.T) {
	var body struct {
		Version FlexUint64 `json:"version"`
	}
	for input, want := range map[string]uint64{
		`{"version":7}`:   7,
		`{"version":"8"}`: 8,
		`{"version":""}`:  0,
		`{}`:              0,
	} {
		body.Version = 0
		if err := json.Unmarshal([]byte(input), &body); err != nil {
			t.Fatalf("Unmarshal %s failed: %v", input, err)
		}
		if uint64(body.Version) != want {
			t.Errorf("%s: expected %d, got %d", input, want, body.Version)
		}
	}

	if err := json.Unmarshal([]byte(`{"version":"seven"}`), &body); err == nil {
		t.Error("Expected error for non-numeric version")
	}
	if err := json.Unmarshal([]byte(`{"version":-1}`), &body); err == nil {
		t.Error("Expected error for negative version")
	}
}
