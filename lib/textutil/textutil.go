package textutil

import (
	"strings"
	"unicode"
)

func NormalizeName(name string) string {
	name = strings.ToLower(name)
	return strings.Trim(name, " \n\t")
}

// Title upper-cases the first letter of every word, e.g. "exam center"
// becomes "Exam Center".
func Title(s string) string {
	out := strings.Builder{}
	startOfWord := true
	for _, c := range s {
		if unicode.IsSpace(c) {
			startOfWord = true
			out.WriteRune(c)
			continue
		}
		if startOfWord {
			out.WriteRune(unicode.ToUpper(c))
			startOfWord = false
			continue
		}
		out.WriteRune(c)
	}
	return out.String()
}
