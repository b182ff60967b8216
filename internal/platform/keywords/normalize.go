package keywords

import (
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds case and applies NFKC so full-width digits and symbols in
// Chinese-language logs compare equal to their ASCII forms.
func Normalize(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}
