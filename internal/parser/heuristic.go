package parser

import (
	"regexp"
	"strconv"
	"strings"

	"rpgm-translator/internal/script"
	"rpgm-translator/internal/textutil"
)

var assetExtensions = []string{
	".ogg", ".m4a", ".wav", ".mp3", ".mid", ".midi", ".wma",
	".png", ".jpg", ".jpeg", ".bmp", ".gif", ".svg", ".tga", ".psd",
	".webm", ".mp4", ".avi", ".mov", ".ogv", ".mkv",
	".rpgmvp", ".rpgmvo", ".rpgmvm", ".rpgmvw",
	".css", ".js", ".json", ".txt", ".map", ".bin", ".dll",
	".rvdata2", ".rxdata", ".rvdata", ".rb", ".coffee",
}

var technicalKeywords = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"nan": true, "none": true, "auto": true, "always": true,
	"never": true, "default": true, "top": true, "bottom": true,
	"left": true, "right": true, "center": true, "middle": true,
	"width": true, "height": true, "opacity": true, "scale": true,
	"blend": true, "x": true, "y": true, "z": true, "id": true,
	"index": true, "code": true,
}

// technicalPrefixes reject engine syntax when the unit is not dialogue.
// Lowercase; compared against the lowercased candidate.
var technicalPrefixes = []string{
	"v[", "n[", "i[", "::", "eval(", "script:", "plugin:",
	"note:", "meta:",
}

// IsTranslatable decides whether a raw string is worth sending to a
// translator. dialogue relaxes the identifier-shaped rejections because
// message text legitimately contains things like "HP500" or camelCase
// nicknames.
func IsTranslatable(text string, dialogue bool, blacklist []*regexp.Regexp) bool {
	s := strings.Trim(text, "\"' \n\r\t")
	if s == "" {
		return false
	}
	for _, re := range blacklist {
		if re.MatchString(s) {
			return false
		}
	}
	lower := strings.ToLower(s)
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	if technicalKeywords[lower] {
		return false
	}
	noSpace := !strings.Contains(s, " ")
	if noSpace && (strings.Contains(s, "/") ||
		(strings.Contains(s, `\`) && !textutil.ContainsNonASCII(s))) {
		return false
	}
	if noSpace {
		if s[0] == '$' || s[0] == '!' {
			return false
		}
		if textutil.ContainsNonASCII(s) {
			return true
		}
		if strings.Contains(s, "_") {
			return false
		}
		if !dialogue {
			if hasDigit(s) && hasAlpha(s) {
				return false
			}
			if hasMixedCase(s) {
				return false
			}
		}
		if len(s) < 2 {
			return false
		}
	}
	if isNumeric(s) {
		return false
	}
	if isColor(lower) {
		return false
	}
	if strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">") {
		return false
	}
	if !dialogue {
		for _, p := range technicalPrefixes {
			if strings.HasPrefix(lower, p) {
				return false
			}
		}
	}
	return true
}

func hasDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}

func hasAlpha(s string) bool {
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			return true
		}
	}
	return false
}

// hasMixedCase reports a lowercase letter immediately followed by an
// uppercase one, the camelCase shape of identifiers.
func hasMixedCase(s string) bool {
	for i := 0; i+1 < len(s); i++ {
		if s[i] >= 'a' && s[i] <= 'z' && s[i+1] >= 'A' && s[i+1] <= 'Z' {
			return true
		}
	}
	return false
}

// isNumeric accepts digit strings with number punctuation, e.g. "1,200"
// or "-3.5".
func isNumeric(s string) bool {
	seen := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			seen = true
		case r == '.' || r == ',' || r == '-' || r == ' ' || r == '%':
		default:
			return false
		}
	}
	return seen
}

func isColor(lower string) bool {
	if strings.HasPrefix(lower, "rgb(") || strings.HasPrefix(lower, "rgba(") {
		return true
	}
	if strings.HasPrefix(lower, "#") {
		switch len(lower) {
		case 4, 5, 7, 9:
			return true
		}
	}
	return false
}

// scriptManagers appear as receiver prefixes in engine calls; a literal
// containing one is code wiring, not text.
var scriptManagers = []string{
	"textmanager.", "datamanager.", "imagemanager.", "scenemanager.",
	"soundmanager.", "audiomanager.",
}

var scriptBooleans = map[string]bool{
	"true": true, "false": true, "null": true, "undefined": true,
	"on": true, "off": true, "yes": true, "no": true,
}

var switchEventRe = regexp.MustCompile(`^(?:EV|SW|VAR)\d+$`)

// ScriptLiteralTranslatable filters string literals pulled out of script
// bodies. src is the script text the literal was extracted from, used to
// inspect the characters before the opening quote.
func ScriptLiteralTranslatable(src string, lit script.Literal, blacklist []*regexp.Regexp) bool {
	v := strings.TrimSpace(lit.Value)
	if len(v) < 2 {
		return false
	}
	for _, re := range blacklist {
		if re.MatchString(v) {
			return false
		}
	}
	lower := strings.ToLower(v)
	for _, m := range scriptManagers {
		if strings.Contains(lower, m) {
			return false
		}
	}
	if scriptBooleans[lower] {
		return false
	}
	if _, err := strconv.ParseFloat(v, 64); err == nil {
		return false
	}
	for _, ext := range assetExtensions {
		if strings.HasSuffix(lower, ext) {
			return false
		}
	}
	noSpace := !strings.Contains(v, " ")
	if noSpace && (strings.Contains(v, "/") ||
		(strings.Contains(v, `\`) && !textutil.ContainsNonASCII(v))) {
		return false
	}
	if isColor(lower) {
		return false
	}
	if noSpace && strings.Contains(v, "_") {
		return false
	}
	if noSpace && (v[0] == '$' || v[0] == '!') {
		return false
	}
	if switchEventRe.MatchString(v) {
		return false
	}
	if comparisonOperand(src, lit.Start) {
		return false
	}
	if !noSpace || textutil.ContainsNonASCII(v) {
		return true
	}
	return len(v) >= 4
}

// commentWorthy filters event comments (codes 108 and 408). Tag-like
// and "::"-scoped comments configure plugins; anything else containing a
// space, or longer than minLen, reads as developer prose.
func commentWorthy(text string, minLen int) bool {
	t := strings.TrimSpace(text)
	if t == "" || strings.HasPrefix(t, "<") || strings.HasPrefix(t, "::") {
		return false
	}
	return strings.Contains(t, " ") || len(t) > minLen
}

// comparisonOperand checks whether the literal sits on the right side of
// an equality operator, e.g. `if (mode === "battle")`.
func comparisonOperand(src string, start int) bool {
	i := start
	for i > 0 && (src[i-1] == ' ' || src[i-1] == '\t') {
		i--
	}
	if i < 2 {
		return false
	}
	tail := src[i-2 : i]
	return tail == "==" || tail == "!="
}
