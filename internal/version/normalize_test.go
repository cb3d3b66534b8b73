package version

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name   string
		tag    string
		scheme Scheme
		tuple  Tuple
	}{
		{"semantic", "1.25.3", SchemeSemantic, Tuple{1, 25, 3, 0}},
		{"semantic with v prefix", "v1.25.4", SchemeSemantic, Tuple{1, 25, 4, 0}},
		{"semantic prerelease and build", "v1.2.3-beta+build.7", SchemeSemantic, Tuple{1, 2, 3, 7}},
		{"four part linuxserver style", "5.28.0.10274-ls285", SchemeSemantic, Tuple{5, 28, 0, 10274}},
		{"date", "2024.02.06", SchemeDate, Tuple{2024, 2, 6, 0}},
		{"date leap day valid", "2024.02.29", SchemeDate, Tuple{2024, 2, 29, 0}},
		{"date non-leap invalid", "2023.02.29", SchemeUnknown, Tuple{2023, 2, 29, 0}},
		{"numeric", "42", SchemeNumeric, Tuple{42, 0, 0, 0}},
		{"unknown word", "latest", SchemeUnknown, Invalid},
		{"unknown alpine suffix only", "alpine", SchemeUnknown, Invalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.tag)
			if got.Scheme != tc.scheme {
				t.Errorf("scheme = %s, want %s", got.Scheme, tc.scheme)
			}
			if got.Tuple != tc.tuple {
				t.Errorf("tuple = %v, want %v", got.Tuple, tc.tuple)
			}
		})
	}
}

func TestNormalizeIsTotal(t *testing.T) {
	inputs := []string{"", "...", "v", "----", "nightly-2024.99.99"}
	for _, in := range inputs {
		v := Normalize(in)
		if v.Original != in {
			t.Errorf("Normalize(%q) lost original tag", in)
		}
	}
}
