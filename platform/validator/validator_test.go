package validator

import "testing"

func TestClockRule(t *testing.T) {
	v := New()
	type req struct {
		At string `validate:"omitempty,clock"`
	}
	for _, ok := range []string{"", "00:00", "18:30", "23:59"} {
		if err := v.Struct(req{At: ok}); err != nil {
			t.Fatalf("%q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"24:00", "7:00", "18:60", "noon"} {
		if err := v.Struct(req{At: bad}); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
}
