package stage

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"vr180/internal/jobs"
)

// Label renders a stage name for people, e.g. "Depth Analysis".
func Label(name jobs.StageName) string {
	// Casers are stateful; build one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(string(name), "_", " "))
}
