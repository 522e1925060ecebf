package domain

import "testing"

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		name string
		code int
		want WebStatus
	}{
		{name: "ok", code: 200, want: StatusValid},
		{name: "no content", code: 204, want: StatusValid},
		{name: "upper success bound", code: 299, want: StatusValid},
		{name: "redirect", code: 301, want: StatusUnknown},
		{name: "not found", code: 404, want: StatusInvalid},
		{name: "client error bound", code: 499, want: StatusInvalid},
		{name: "server error", code: 500, want: StatusUnavailable},
		{name: "gateway timeout", code: 504, want: StatusUnavailable},
		{name: "informational", code: 100, want: StatusUnknown},
		{name: "zero", code: 0, want: StatusUnknown},
		{name: "out of range", code: 600, want: StatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusFromCode(tt.code); got != tt.want {
				t.Errorf("StatusFromCode(%d) = %q, want %q", tt.code, got, tt.want)
			}
		})
	}
}

func TestWebStatusIsKnown(t *testing.T) {
	for _, s := range []WebStatus{StatusValid, StatusInvalid, StatusUnavailable, StatusUnknown, StatusUnreachable, StatusNoFile} {
		if !s.IsKnown() {
			t.Errorf("%q should be a known status", s)
		}
	}
	if WebStatus("VALID").IsKnown() {
		t.Error("status names are lowercase only")
	}
}
