package catalog

import (
	"fmt"
	"regexp"
)

var placeholderRegex = regexp.MustCompile(`\{\s*([a-zA-Z0-9_]+)\s*\}`)

// RenderTemplate replaces {key} placeholders with values from variables.
// Unknown keys are left untouched.
func RenderTemplate(template string, variables map[string]interface{}) string {
	if template == "" || len(variables) == 0 {
		return template
	}

	return placeholderRegex.ReplaceAllStringFunc(template, func(match string) string {
		submatch := placeholderRegex.FindStringSubmatch(match)
		if len(submatch) != 2 {
			return match
		}
		if value, ok := variables[submatch[1]]; ok {
			return fmt.Sprint(value)
		}
		return match
	})
}

func renderStreak(template string, day int) string {
	return RenderTemplate(template, map[string]interface{}{"streak": day})
}
