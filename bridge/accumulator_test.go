package bridge

import "testing"

func TestAccumulator_FlushAndClear(t *testing.T) {
	acc := NewAccumulator()
	acc.Set("a", "1")
	acc.SetInt("b", 42)
	acc.Set("a", "2")

	fields := acc.FlushAndClear()
	if len(fields) != 2 {
		t.Fatalf("got %d fields, want 2", len(fields))
	}
	if fields["a"] != "2" {
		t.Errorf("a = %q, want last write %q", fields["a"], "2")
	}
	if fields["b"] != "42" {
		t.Errorf("b = %q, want %q", fields["b"], "42")
	}
	if acc.Len() != 0 {
		t.Errorf("Len() after flush = %d, want 0", acc.Len())
	}

	// The flushed map must not alias the accumulator's new storage.
	acc.Set("c", "3")
	if _, ok := fields["c"]; ok {
		t.Error("flushed fields changed after a later Set")
	}
}

func TestAccumulator_SectionOverridesField(t *testing.T) {
	acc := NewAccumulator()
	acc.Set(FieldResultWord, "PASSED")
	acc.AppendSection(FieldResultWord, "custom")

	if got, _ := acc.Get(FieldResultWord); got != "custom" {
		t.Errorf("result_word = %q, want %q", got, "custom")
	}
}

func TestAccumulator_Clear(t *testing.T) {
	acc := NewAccumulator()
	acc.Set("x", "y")
	acc.Clear()

	if _, ok := acc.Get("x"); ok {
		t.Error("field survived Clear")
	}
	if acc.Len() != 0 {
		t.Errorf("Len() = %d, want 0", acc.Len())
	}
}
