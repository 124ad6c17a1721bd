package metrics

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/torosent/fluvial/internal/record"
)

// ErrorLabel returns a human-friendly label for a failed pull. Known stream
// outcomes use their status name; anything else is named after its Go type.
func ErrorLabel(err error) string {
	if err == nil {
		return ""
	}
	if status := record.Classify(err); status != record.StatusFailed {
		return humanize(status.String())
	}
	return FriendlyErrorName(fmt.Sprintf("%T", err))
}

// FriendlyErrorName turns a Go error type name such as "*csv.ParseError" into
// a readable label like "Parse Error (csv)".
func FriendlyErrorName(typeName string) string {
	cleaned := strings.TrimPrefix(strings.TrimSpace(typeName), "*")
	if cleaned == "" {
		return "Unknown error"
	}
	if idx := strings.LastIndex(cleaned, "/"); idx != -1 {
		cleaned = cleaned[idx+1:]
	}

	pkg := ""
	name := cleaned
	if idx := strings.Index(name, "."); idx != -1 {
		pkg = name[:idx]
		name = name[idx+1:]
	}

	pretty := splitCamel(name)
	if pretty == "" {
		pretty = name
	}
	if pkg != "" && pkg != "main" && pkg != "errors" {
		return fmt.Sprintf("%s (%s)", pretty, pkg)
	}
	return pretty
}

func humanize(s string) string {
	s = strings.ReplaceAll(s, "_", " ")
	if s == "" {
		return s
	}
	runes := []rune(s)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

func splitCamel(name string) string {
	var words []string
	var current []rune
	runes := []rune(name)

	appendWord := func() {
		if len(current) == 0 {
			return
		}
		word := []rune(string(current))
		word[0] = unicode.ToUpper(word[0])
		words = append(words, string(word))
		current = current[:0]
	}

	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsUpper(r) && (unicode.IsLower(prev) || (unicode.IsUpper(prev) && nextLower)) {
				appendWord()
			}
		}
		current = append(current, r)
	}
	appendWord()

	return strings.Join(words, " ")
}
