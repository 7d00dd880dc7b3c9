package parser

import (
	"strconv"
	"strings"

	"rpgm-translator/internal/document"
)

// AceParser handles the Marshal family: XP, VX and VX Ace data files.
type AceParser struct{}

func NewAceParser() *AceParser { return &AceParser{} }

func (p *AceParser) CanParse(path string) bool {
	switch extLower(path) {
	case ".rvdata2", ".rvdata", ".rxdata":
		return true
	}
	return false
}

func (p *AceParser) Parse(path string, data []byte, opts Options) (*Result, error) {
	doc, err := document.Load(data, document.FormatMarshal)
	if err != nil {
		return nil, err
	}
	res := newResult(path, doc)
	w := &aceWalker{res: res, opts: opts, seen: make(map[*document.Node]bool)}
	w.walk(doc.Root, document.Path{})
	return res, nil
}

type aceWalker struct {
	res  *Result
	opts Options

	// seen guards against object links turning the tree into a graph.
	seen map[*document.Node]bool
}

func (w *aceWalker) enter(n *document.Node) bool {
	if w.seen[n] {
		return false
	}
	w.seen[n] = true
	return true
}

func (w *aceWalker) walk(n *document.Node, p document.Path) {
	if n == nil {
		return
	}
	switch n.Kind {
	case document.KindList:
		if !w.enter(n) {
			return
		}
		for i, item := range n.Items {
			w.walk(item, p.Index(i))
		}
	case document.KindMap:
		if !w.enter(n) {
			return
		}
		for i, k := range n.Keys {
			w.walk(n.Vals[i], p.Key(mapKeyString(k)))
		}
	case document.KindObject:
		if !w.enter(n) {
			return
		}
		w.object(n, p)
	}
}

// object dispatches the instance variables of a database or event
// object. Bare strings reached any other way are never extracted; only
// known attributes, notes, term tables and event commands carry text.
func (w *aceWalker) object(n *document.Node, p document.Path) {
	sound := isAceSoundObject(n)
	for i, k := range n.Keys {
		v := n.Vals[i]
		if v == nil {
			continue
		}
		name := strings.TrimPrefix(k.Str, "@")
		ap := p.Attr(name)
		switch {
		case name == "note" && v.IsString():
			if w.opts.TranslateNotes && v.Str != "" {
				w.res.addNote(ap, v)
			}
		case name == "list" && v.Kind == document.KindList && aceCommandsLike(v):
			w.commands(v, ap)
		case (name == "words" || name == "terms") && v.Kind == document.KindObject:
			w.termsObject(v, ap)
		case aceSystemAttrs[name] && v.IsString():
			if IsTranslatable(v.Str, false, w.opts.Blacklist) {
				w.res.addPlain(ap, v, ContextTerm)
			}
		case aceAttrs[name] && v.IsString():
			if sound && name == "name" {
				continue
			}
			if IsTranslatable(v.Str, false, w.opts.Blacklist) {
				w.res.addPlain(ap, v, ContextField)
			}
		default:
			w.walk(v, ap)
		}
	}
}

// termsObject walks RPG::System::Terms (VX Ace) or ::Words (XP/VX),
// where every string attribute and every string in an attribute array is
// UI vocabulary.
func (w *aceWalker) termsObject(n *document.Node, p document.Path) {
	if !w.enter(n) {
		return
	}
	for i, k := range n.Keys {
		v := n.Vals[i]
		if v == nil {
			continue
		}
		ap := p.Attr(strings.TrimPrefix(k.Str, "@"))
		switch v.Kind {
		case document.KindString:
			if IsTranslatable(v.Str, false, w.opts.Blacklist) {
				w.res.addPlain(ap, v, ContextTerm)
			}
		case document.KindList:
			for j, item := range v.Items {
				if item.IsString() && IsTranslatable(item.Str, false, w.opts.Blacklist) {
					w.res.addPlain(ap.Index(j), item, ContextTerm)
				}
			}
		}
	}
}

func aceCommandsLike(list *document.Node) bool {
	for _, item := range list.Items {
		if item == nil {
			continue
		}
		return item.Kind == document.KindObject && item.Field("@code") != nil
	}
	return false
}

func (w *aceWalker) commands(list *document.Node, base document.Path) {
	cmds := make([]commandView, len(list.Items))
	for i, item := range list.Items {
		cmds[i], _ = aceCommand(item)
	}
	i := 0
	for i < len(cmds) {
		cv := cmds[i]
		if !textEventCodes[cv.code] {
			i++
			continue
		}
		adv := 1
		switch cv.code {
		case 401, 405:
			nodes := collectRun(cmds, i, cv.code)
			if len(nodes) > 0 {
				body := joinBody(nodes)
				if IsTranslatable(body, true, w.opts.Blacklist) {
					w.res.addDialogueRun(base.Index(i).Attr("parameters").Index(0).Merge(len(nodes)), nodes, ContextDialogue)
				}
				adv = len(nodes)
			}
		case 355:
			nodes := collectScript(cmds, i)
			if len(nodes) > 0 {
				w.res.addScriptRun(base.Index(i).Attr("parameters").Index(0).Merge(len(nodes)), nodes, w.opts.Blacklist)
				adv = len(nodes)
			}
		case 102:
			if cv.params != nil {
				if choices := cv.params.Index(0); choices != nil && choices.Kind == document.KindList {
					cp := base.Index(i).Attr("parameters").Index(0)
					for j, c := range choices.Items {
						if c.IsString() && IsTranslatable(c.Str, false, w.opts.Blacklist) {
							w.res.addPlain(cp.Index(j), c, ContextChoice)
						}
					}
				}
			}
		case 402:
			if p := cv.paramString(1); p != nil && IsTranslatable(p.Str, false, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Attr("parameters").Index(1), p, ContextChoice)
			}
		case 108, 408:
			if w.opts.TranslateComments {
				if p := cv.paramString(0); p != nil && commentWorthy(p.Str, 15) &&
					IsTranslatable(p.Str, true, w.opts.Blacklist) {
					w.res.addPlain(base.Index(i).Attr("parameters").Index(0), p, ContextComment)
				}
			}
		case 320, 324:
			if p := cv.paramString(1); p != nil && IsTranslatable(p.Str, false, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Attr("parameters").Index(1), p, ContextName)
			}
		}
		i += adv
	}
}

// mapKeyString renders a hash key for path purposes. Game data keys its
// hashes by integer id, occasionally by string or symbol.
func mapKeyString(k *document.Node) string {
	switch k.Kind {
	case document.KindNumber:
		return strconv.FormatInt(k.Int, 10)
	case document.KindString, document.KindSymbol:
		return k.Str
	}
	return k.Kind.String()
}
