package version

import "testing"

func TestCompareSemantic(t *testing.T) {
	cases := []struct {
		name     string
		old, new string
		want     Category
	}{
		{"patch bump", "1.25.3", "1.25.4", CategoryPatch},
		{"minor bump", "1.25.3", "1.26.0", CategoryMinor},
		{"major bump", "1.25.3", "2.0.0", CategoryMajor},
		{"build bump", "1.2.3+1", "1.2.3+2", CategoryBuild},
		{"identical", "1.25.3", "1.25.3", CategoryDigest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, _ := Compare(Normalize(tc.old), Normalize(tc.new))
			if cat != tc.want {
				t.Errorf("Compare(%s,%s) = %s, want %s", tc.old, tc.new, cat, tc.want)
			}
		})
	}
}

func TestCompareSchemeChange(t *testing.T) {
	cat, _ := Compare(Normalize("1.18.0"), Normalize("2024.02.06"))
	if cat != CategorySchemeChange {
		t.Errorf("Compare = %s, want scheme_change", cat)
	}
}

func TestCompareDate(t *testing.T) {
	cases := []struct {
		name     string
		old, new string
		want     Category
	}{
		{"same day", "2024.02.06", "2024.02.06", CategoryDigest},
		{"one day later", "2024.02.06", "2024.02.07", CategoryPatch},
		{"forty days later", "2024.01.01", "2024.02.15", CategoryMinor},
		{"year later", "2023.01.01", "2024.01.05", CategoryMajor},
		{"earlier", "2024.02.07", "2024.02.06", CategoryUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, _ := Compare(Normalize(tc.old), Normalize(tc.new))
			if cat != tc.want {
				t.Errorf("Compare(%s,%s) = %s, want %s", tc.old, tc.new, cat, tc.want)
			}
		})
	}
}

func TestCompareNumeric(t *testing.T) {
	cases := []struct {
		name     string
		old, new string
		want     Category
	}{
		{"same", "42", "42", CategoryDigest},
		{"plus one", "42", "43", CategoryPatch},
		{"plus five", "42", "47", CategoryMinor},
		{"plus twenty", "42", "62", CategoryMajor},
		{"down", "42", "40", CategoryUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cat, _ := Compare(Normalize(tc.old), Normalize(tc.new))
			if cat != tc.want {
				t.Errorf("Compare(%s,%s) = %s, want %s", tc.old, tc.new, cat, tc.want)
			}
		})
	}
}

func TestCompareReflexive(t *testing.T) {
	v := Normalize("1.2.3")
	cat, _ := Compare(v, v)
	if cat != CategoryDigest {
		t.Errorf("Compare(t,t) = %s, want digest", cat)
	}
}

func TestDigestOverride(t *testing.T) {
	cat, changed := DigestOverride(CategoryDigest, "sha256:bbb", []string{"sha256:aaa"})
	if cat != CategoryDigest || !changed {
		t.Errorf("expected digest override to report a change")
	}
	cat, changed = DigestOverride(CategoryDigest, "sha256:aaa", []string{"sha256:aaa"})
	if changed {
		t.Errorf("expected no change when remote digest matches a known digest, got category %s", cat)
	}
	cat, changed = DigestOverride(CategoryMajor, "sha256:bbb", []string{"sha256:aaa"})
	if cat != CategoryMajor || !changed {
		t.Errorf("non-digest/unknown categories must pass through unchanged")
	}
}
