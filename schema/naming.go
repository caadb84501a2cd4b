package schema

import (
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

// RelationshipType returns the default relationship type of a field:
// "favoriteMovies" becomes "FAVORITE_MOVIES".
func RelationshipType(field string) string {
	return upper.String(inflect.Underscore(field))
}

// PropertyName returns the default property key of a Go field: "Name"
// becomes "name" and "ID" becomes "id".
func PropertyName(field string) string {
	if field == "" {
		return field
	}
	if strings.IndexFunc(field, unicode.IsLower) < 0 {
		return lower.String(field)
	}
	r := []rune(field)
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
