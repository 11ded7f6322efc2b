package images

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

const maxSuffix = 10

// Extensions are the accepted image extensions in probing order.
var Extensions = []string{"png", "jpg", "jpeg", "webp", "svg", "PNG", "JPG", "JPEG"}

// Candidate is a speculative object name built from a discovery code.
type Candidate struct {
	Name   string
	Suffix int
	Ext    string
}

// Candidates enumerates {code}{suffix}.{ext} for suffix in "", _1.._10 and
// every accepted extension.
func Candidates(code string) []Candidate {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil
	}

	out := make([]Candidate, 0, (maxSuffix+1)*len(Extensions))
	for suffix := 0; suffix <= maxSuffix; suffix++ {
		for _, ext := range Extensions {
			name := code
			if suffix > 0 {
				name += "_" + strconv.Itoa(suffix)
			}
			out = append(out, Candidate{
				Name:   name + "." + ext,
				Suffix: suffix,
				Ext:    ext,
			})
		}
	}
	return out
}

// IsNumericCode reports whether code consists only of ASCII digits. Such a
// code is a raw database id, not a real image code.
func IsNumericCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// namePattern matches code.ext and code_1..code_10.ext, ignoring case. Listing
// backends may ignore the search filter, so every listed name goes through it.
func namePattern(code string) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)^%s(?:_(?:[1-9]|10))?\.(?:png|jpg|jpeg|webp|svg)$`, regexp.QuoteMeta(code)))
}

// MatchNames keeps the names that belong to code, without duplicates.
func MatchNames(code string, names []string) []string {
	pattern := namePattern(code)
	seen := make(map[string]bool, len(names))
	out := make([]string, 0)
	for _, name := range names {
		base := path.Base(strings.TrimSpace(name))
		if base == "" || seen[base] || !pattern.MatchString(base) {
			continue
		}
		seen[base] = true
		out = append(out, base)
	}
	return out
}

// SortNames orders the base image first and numbered variants by their
// numeric suffix. The suffix is read after code, so codes that end in _N
// themselves keep their base image first.
func SortNames(code string, names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		si, sj := suffixNumber(code, names[i]), suffixNumber(code, names[j])
		if si != sj {
			return si < sj
		}
		return names[i] < names[j]
	})
}

func suffixNumber(code, name string) int {
	base := path.Base(name)
	stem := strings.TrimSuffix(base, path.Ext(base))
	rest := strings.TrimPrefix(strings.ToLower(stem), strings.ToLower(strings.TrimSpace(code)))
	digits, ok := strings.CutPrefix(rest, "_")
	if !ok || digits == "" {
		return 0
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return n
}
