// Package classify tags raw clipboard content with a content type and
// advisory sensitivity flags. Classification is a pure function: identical
// input always yields the identical result, with no I/O, so it is safe on
// every device including headless server paths.
package classify

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/Aphrodine-wq/clipsync/internal/model"
)

// Result is the outcome of classifying one content string. Sensitivity is
// advisory: it feeds UI warnings and never forces encryption on its own.
type Result struct {
	Type      model.ClipType
	Sensitive bool
	// Families lists which secret pattern families matched, for UI display.
	Families []string
}

var (
	urlRe   = regexp.MustCompile(`^(https?|ftp|file|ws|wss)://\S+$`)
	uuidRe  = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)
	emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

	codeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?m)^\s*(func|def|class|interface|struct|impl)\s+\w+`),
		regexp.MustCompile(`(?m)^\s*(import|from|package|using|#include)\s+\S+`),
		regexp.MustCompile(`(?m)\b(const|let|var)\s+\w+\s*=`),
		regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE)\b.+\b(FROM|INTO|SET|WHERE)\b`),
		regexp.MustCompile(`(?i)^\s*<!DOCTYPE\s+html|^\s*<html\b`),
		regexp.MustCompile(`=>\s*[{(]|\bfunction\s*\(`),
	}
)

// Classify runs the ordered type checks (most specific first) and the
// independent sensitivity scan over content.
func Classify(content string) Result {
	families := matchFamilies(content)
	return Result{
		Type:      classifyType(content),
		Sensitive: len(families) > 0,
		Families:  families,
	}
}

func classifyType(content string) model.ClipType {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return model.ClipTypeText
	}

	switch {
	case isJSON(trimmed):
		return model.ClipTypeJSON
	case urlRe.MatchString(trimmed):
		return model.ClipTypeURL
	case uuidRe.MatchString(trimmed):
		return model.ClipTypeUUID
	case emailRe.MatchString(trimmed):
		return model.ClipTypeEmail
	case colorRe.MatchString(trimmed):
		return model.ClipTypeColor
	case looksLikeCode(trimmed):
		return model.ClipTypeCode
	default:
		return model.ClipTypeText
	}
}

// isJSON accepts only object and array literals. Bare strings and numbers
// are valid JSON but useless as a clip type, so they fall through.
func isJSON(s string) bool {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return false
	}
	return json.Valid([]byte(s))
}

func looksLikeCode(s string) bool {
	for _, re := range codeRes {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
