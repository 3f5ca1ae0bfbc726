package models

import "testing"

// TestParseExerciseType verifies case-insensitive parsing and the squat default.
func TestParseExerciseType(t *testing.T) {
	cases := map[string]ExerciseType{
		"":       Squat,
		"squat":  Squat,
		"PLANK":  Plank,
		" plank": Plank,
	}
	for in, want := range cases {
		got, err := ParseExerciseType(in)
		if err != nil {
			t.Errorf("ParseExerciseType(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseExerciseType(%q) = %q, want %q", in, got, want)
		}
	}

	if _, err := ParseExerciseType("deadlift"); err == nil {
		t.Error("expected error for unknown exercise")
	}
}

// TestParseInterfaceMode verifies that only live and upload are accepted.
func TestParseInterfaceMode(t *testing.T) {
	if m, err := ParseInterfaceMode("live"); err != nil || m != Live {
		t.Errorf("live = %q, %v", m, err)
	}
	if m, err := ParseInterfaceMode("upload"); err != nil || m != Upload {
		t.Errorf("upload = %q, %v", m, err)
	}
	if _, err := ParseInterfaceMode("Live"); err == nil {
		t.Error("expected error for wrong case")
	}
}

// TestExerciseContent verifies that each exercise carries its own copy.
func TestExerciseContent(t *testing.T) {
	if got := Squat.Content().Title; got != "Squat Analysis" {
		t.Errorf("squat title = %q", got)
	}
	if got := Plank.Content().Title; got != "Plank Form Analysis" {
		t.Errorf("plank title = %q", got)
	}
	if n := len(Plank.Content().Instructions); n != 4 {
		t.Errorf("plank instructions = %d, want 4", n)
	}
	if got := ExerciseType("yoga").Content().Title; got != "Squat Analysis" {
		t.Errorf("unknown exercise should fall back to squat, got %q", got)
	}
}

// TestDefaultCatalog verifies image paths are resolved against the origin.
func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog("http://localhost:5000")
	if len(cat) != 2 {
		t.Fatalf("catalog size = %d, want 2", len(cat))
	}
	if cat[0].ID != Squat || cat[1].ID != Plank {
		t.Errorf("catalog order = %q,%q", cat[0].ID, cat[1].ID)
	}
	if want := "http://localhost:5000/static/img/plank.jpg"; cat[1].Image != want {
		t.Errorf("plank image = %q, want %q", cat[1].Image, want)
	}
}
