package parser

import (
	"strings"

	"rpgm-translator/internal/document"
	"rpgm-translator/internal/script"
)

// commandView is a uniform view over one event command, independent of
// whether it came from a JSON map or a Marshal object.
type commandView struct {
	code   int64
	params *document.Node
}

func mvCommand(n *document.Node) (commandView, bool) {
	if n == nil || n.Kind != document.KindMap {
		return commandView{code: -1}, false
	}
	code := n.Field("code")
	if code == nil || code.Kind != document.KindNumber {
		return commandView{code: -1}, false
	}
	return commandView{code: code.Int, params: n.Field("parameters")}, true
}

func aceCommand(n *document.Node) (commandView, bool) {
	if n == nil || n.Kind != document.KindObject {
		return commandView{code: -1}, false
	}
	code := n.Field("@code")
	if code == nil || code.Kind != document.KindNumber {
		return commandView{code: -1}, false
	}
	return commandView{code: code.Int, params: n.Field("@parameters")}, true
}

// paramString returns the string node at params[idx], or nil.
func (cv commandView) paramString(idx int) *document.Node {
	if cv.params == nil || cv.params.Kind != document.KindList {
		return nil
	}
	p := cv.params.Index(idx)
	if p == nil || !p.IsString() {
		return nil
	}
	return p
}

// recordGroup ties one merged unit back to the per-record string nodes
// it was assembled from. Translations are staged on the group and only
// written into the document when the whole file is finalized.
type recordGroup struct {
	script bool
	nodes  []*document.Node
	body   string

	lits []script.Literal

	staged   map[int]string
	bodyRepl *string
}

func (g *recordGroup) stageLiteral(idx int, text string) bool {
	if !g.script || idx < 0 || idx >= len(g.lits) {
		return false
	}
	if g.staged == nil {
		g.staged = make(map[int]string)
	}
	g.staged[idx] = text
	return true
}

func (g *recordGroup) stageBody(text string) {
	g.bodyRepl = &text
}

func (g *recordGroup) dirty() bool {
	return len(g.staged) > 0 || g.bodyRepl != nil
}

// finalize computes the new per-record lines. Script literals are
// replaced from the highest source offset down so earlier spans stay
// valid, then the body is re-split across the original record count.
func (g *recordGroup) finalize() []string {
	body := g.body
	if g.script {
		for i := len(g.lits) - 1; i >= 0; i-- {
			text, ok := g.staged[i]
			if !ok {
				continue
			}
			body = script.Replace(body, g.lits[i], text)
		}
	} else if g.bodyRepl != nil {
		body = *g.bodyRepl
	}
	return resplitLines(body, len(g.nodes))
}

// resplitLines distributes the translated body over n records: one line
// per record, surplus lines folded into the last record, missing lines
// padded with empty strings.
func resplitLines(body string, n int) []string {
	lines := strings.Split(body, "\n")
	if n <= 0 {
		return nil
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		if i < len(lines) {
			out[i] = lines[i]
		}
	}
	if len(lines) > n {
		out[n-1] = strings.Join(lines[n-1:], "\n")
	}
	return out
}

// collectRun gathers a run of same-code records starting at i, where
// every record's first parameter is a string. Used for 401 message
// lines and 405 scrolling text.
func collectRun(cmds []commandView, i int, code int64) []*document.Node {
	var nodes []*document.Node
	for ; i < len(cmds) && cmds[i].code == code; i++ {
		p := cmds[i].paramString(0)
		if p == nil {
			break
		}
		nodes = append(nodes, p)
	}
	return nodes
}

// collectScript gathers a 355 script header and its 655 continuation
// records.
func collectScript(cmds []commandView, i int) []*document.Node {
	p := cmds[i].paramString(0)
	if p == nil {
		return nil
	}
	nodes := []*document.Node{p}
	for j := i + 1; j < len(cmds) && cmds[j].code == 655; j++ {
		cp := cmds[j].paramString(0)
		if cp == nil {
			break
		}
		nodes = append(nodes, cp)
	}
	return nodes
}

func joinBody(nodes []*document.Node) string {
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = n.Str
	}
	return strings.Join(parts, "\n")
}
