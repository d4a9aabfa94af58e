package textutil

import (
	"strings"
	"unicode"
)

// fileNameReplacer maps characters that are unsafe in filenames on common
// filesystems. Separators become dashes; the rest are dropped.
var fileNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
)

// SanitizeFileName replaces unsafe characters, drops control characters and
// trims surrounding whitespace and dots. It returns "" when nothing usable
// remains.
func SanitizeFileName(name string) string {
	name = fileNameReplacer.Replace(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.Trim(name, " .")
}
