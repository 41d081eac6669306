package stages

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	titleCaser = cases.Title(language.Und)
	foldCaser  = cases.Fold()
)

// CleanName normalizes a person's name for search: NFC, single spaces and
// title case when the input is all upper or all lower case.
func CleanName(name string) string {
	name = strings.Join(strings.Fields(norm.NFC.String(name)), " ")
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		name = titleCaser.String(name)
	}
	return name
}

// NameVariations returns the search forms of a name: quoted, bare, and
// first plus last when there are middle names.
func NameVariations(name string) []string {
	name = CleanName(name)
	if name == "" {
		return nil
	}
	out := []string{`"` + name + `"`, name}
	if parts := strings.Fields(name); len(parts) > 2 {
		out = append(out, parts[0]+" "+parts[len(parts)-1])
	}
	return out
}

// foldKey is the case-insensitive comparison key for skills.
func foldKey(s string) string {
	return foldCaser.String(strings.Join(strings.Fields(norm.NFKC.String(s)), " "))
}
