package config

import (
	"time"

	"github.com/halvorsen/cuengine/internal/policy"
	"github.com/halvorsen/cuengine/internal/version"
)

func allCategories(value bool) map[version.Category]bool {
	return map[version.Category]bool{
		version.CategoryMajor:        value,
		version.CategoryMinor:        value,
		version.CategoryPatch:        value,
		version.CategoryBuild:        value,
		version.CategoryDigest:       value,
		version.CategorySchemeChange: false,
		version.CategoryUnknown:      false,
	}
}

// defaultRules mirrors the seven named rules shipped by
// original_source/app/utils/config.py's DEFAULTS["rules"] section.
func defaultRules() map[string]policy.Rule {
	return map[string]policy.Rule{
		"default": {
			Name:        "default",
			MinImageAge: 3 * time.Hour,
			Allow:       allCategories(false),
		},
		"strict": {
			Name:        "strict",
			MinImageAge: 3 * time.Hour,
			Allow:       allCategories(false),
		},
		"relaxed": {
			Name:               "relaxed",
			ProgressiveUpgrade: true,
			Allow:              allCategories(true),
			Conditions: map[version.Category]policy.Condition{
				version.CategoryMajor: {Require: []version.Category{version.CategoryMinor, version.CategoryPatch, version.CategoryBuild}},
			},
		},
		"permissive": {
			Name:  "permissive",
			Allow: allCategories(true),
		},
		"patch_only": {
			Name: "patch_only",
			Allow: map[version.Category]bool{
				version.CategoryPatch: true,
			},
		},
		"security_only": {
			Name: "security_only",
			Allow: map[version.Category]bool{
				version.CategoryPatch: true,
				version.CategoryDigest: true,
			},
		},
		"ci_cd": {
			Name: "ci_cd",
			Allow: map[version.Category]bool{
				version.CategoryMinor: true,
				version.CategoryPatch: true,
				version.CategoryBuild: true,
				version.CategoryMajor: false,
			},
			Conditions: map[version.Category]policy.Condition{
				version.CategoryMinor: {Require: []version.Category{version.CategoryPatch}},
			},
		},
	}
}
