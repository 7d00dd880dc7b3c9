// Package translation sends text batches to self-hosted translation
// backends. Batches ride in a single request joined by an unmistakable
// separator token; literal newlines are shielded behind a second token
// so the model cannot eat them. Endpoints are rotated and temporarily
// banned when they keep failing, with an optional public fallback.
package translation

import (
	"regexp"
	"strings"
)

// Wire tokens. The split patterns tolerate whitespace the backend may
// smuggle in around a token.
const (
	BatchSeparator = "\n|||XYZ|||\n"
	LineBreak      = "|||XLB|||"
)

var (
	batchSplitRe = regexp.MustCompile(`\s*\|\|\|XYZ\|\|\|\s*`)
	lineSplitRe  = regexp.MustCompile(`\s*\|\|\|XLB\|\|\|\s*`)
)

// ProtectNewlines replaces literal newlines with the line break token.
func ProtectNewlines(s string) string {
	return strings.ReplaceAll(s, "\n", LineBreak)
}

// RestoreNewlines turns line break tokens back into newlines, absorbing
// any whitespace the backend added around them.
func RestoreNewlines(s string) string {
	return strings.Join(lineSplitRe.Split(s, -1), "\n")
}

// JoinBatch shields each text's newlines and joins the batch with the
// separator token.
func JoinBatch(texts []string) string {
	parts := make([]string, len(texts))
	for i, t := range texts {
		parts[i] = ProtectNewlines(t)
	}
	return strings.Join(parts, BatchSeparator)
}

// SplitBatch splits a backend response on the separator token.
func SplitBatch(s string) []string {
	return batchSplitRe.Split(s, -1)
}
