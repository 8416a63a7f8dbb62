package naming

import "testing"

func TestCanonical(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"alex", "Alex"},
		{"ALEX", "Alex"},
		{"anna lena", "Anna Lena"},
		{"aNNA  LENA", "Anna  Lena"},
		{"m403", "M403"},
		{"émile", "Émile"},
		{"ßen", "ßen"},
		{"ﬁona", "ﬁona"},
		{"ǆenan", "ǅenan"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Canonical(tt.in); got != tt.want {
			t.Errorf("Canonical(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCanonical(t *testing.T) {
	if !IsCanonical("Jonas") {
		t.Error("Jonas should be canonical")
	}
	if IsCanonical("jonas") {
		t.Error("jonas should not be canonical")
	}
}

func TestCanonicalIdempotent(t *testing.T) {
	for _, in := range []string{"alex", "ßen", "SSEN", "ﬁona", "ǆenan", "ŉoel", "İpek", "anna  LENA"} {
		once := Canonical(in)
		if twice := Canonical(once); twice != once {
			t.Errorf("Canonical(Canonical(%q)) = %q, want %q", in, twice, once)
		}
		if !IsCanonical(once) {
			t.Errorf("IsCanonical(%q) = false", once)
		}
	}
}
