package parser

import (
	"path/filepath"
	"strings"

	"rpgm-translator/internal/document"
)

// MVParser handles the JSON family: MV and MZ data files plus the
// plugins.js registry.
type MVParser struct{}

func NewMVParser() *MVParser { return &MVParser{} }

func (p *MVParser) CanParse(path string) bool {
	switch extLower(path) {
	case ".json":
		return true
	case ".js":
		return strings.EqualFold(filepath.Base(path), "plugins.js")
	}
	return false
}

func (p *MVParser) Parse(path string, data []byte, opts Options) (*Result, error) {
	format := document.FormatJSON
	if extLower(path) == ".js" {
		format = document.FormatPluginJS
	}
	doc, err := document.Load(data, format)
	if err != nil {
		return nil, err
	}
	res := newResult(path, doc)
	w := &mvWalker{res: res, opts: opts, plugins: format == document.FormatPluginJS}
	w.walk(doc.Root, document.Path{})
	return res, nil
}

type mvWalker struct {
	res     *Result
	opts    Options
	plugins bool
}

func (w *mvWalker) walk(n *document.Node, p document.Path) {
	switch n.Kind {
	case document.KindList:
		for i, item := range n.Items {
			if item != nil {
				w.walk(item, p.Index(i))
			}
		}
	case document.KindMap:
		sound := isSoundObject(n)
		for i, k := range n.Keys {
			key := k.Str
			v := n.Vals[i]
			if v == nil || skipFields[key] {
				continue
			}
			// Plugin names are load identifiers.
			if w.plugins && key == "name" {
				continue
			}
			switch {
			case key == "note" && v.IsString():
				if w.opts.TranslateNotes && v.Str != "" {
					w.res.addNote(p.Key(key), v)
				}
			case key == "list" && v.Kind == document.KindList && looksLikeCommands(v):
				w.commands(v, p.Key(key))
			case key == "parameters" && w.plugins && v.Kind == document.KindMap:
				w.pluginParams(v, p.Key(key))
			case systemTermSections[key] && !w.plugins:
				w.terms(v, p.Key(key))
			case databaseFields[key] && v.IsString():
				if sound && key == "name" {
					continue
				}
				if IsTranslatable(v.Str, false, w.opts.Blacklist) {
					w.res.addPlain(p.Key(key), v, ContextField)
				}
			default:
				w.walk(v, p.Key(key))
			}
		}
	}
}

// looksLikeCommands reports whether the first non-null element has the
// shape of an event command. Movement routes share it; their codes are
// simply never in the text set.
func looksLikeCommands(list *document.Node) bool {
	for _, item := range list.Items {
		if item == nil {
			continue
		}
		return item.Kind == document.KindMap && item.Field("code") != nil
	}
	return false
}

func (w *mvWalker) commands(list *document.Node, base document.Path) {
	cmds := make([]commandView, len(list.Items))
	for i, item := range list.Items {
		cmds[i], _ = mvCommand(item)
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
				w.dialogueRun(base.Index(i).Key("parameters").Index(0), nodes)
				adv = len(nodes)
			}
		case 355:
			nodes := collectScript(cmds, i)
			if len(nodes) > 0 {
				w.res.addScriptRun(base.Index(i).Key("parameters").Index(0).Merge(len(nodes)), nodes, w.opts.Blacklist)
				adv = len(nodes)
			}
		case 101:
			// MZ stores the speaker name in the fifth parameter.
			if p := cv.paramString(4); p != nil && IsTranslatable(p.Str, false, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Key("parameters").Index(4), p, ContextName)
			}
		case 102:
			if cv.params != nil {
				if choices := cv.params.Index(0); choices != nil && choices.Kind == document.KindList {
					cp := base.Index(i).Key("parameters").Index(0)
					for j, c := range choices.Items {
						if c.IsString() && IsTranslatable(c.Str, false, w.opts.Blacklist) {
							w.res.addPlain(cp.Index(j), c, ContextChoice)
						}
					}
				}
			}
		case 402:
			if p := cv.paramString(1); p != nil && IsTranslatable(p.Str, false, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Key("parameters").Index(1), p, ContextChoice)
			}
		case 108, 408:
			if w.opts.TranslateComments {
				if p := cv.paramString(0); p != nil && commentWorthy(p.Str, 20) &&
					IsTranslatable(p.Str, true, w.opts.Blacklist) {
					w.res.addPlain(base.Index(i).Key("parameters").Index(0), p, ContextComment)
				}
			}
		case 320, 324, 325:
			if p := cv.paramString(1); p != nil && IsTranslatable(p.Str, false, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Key("parameters").Index(1), p, ContextName)
			}
		case 356:
			// MV plugin command, one free-form line. Only lines that
			// visibly carry text arguments are worth extracting.
			if p := cv.paramString(0); p != nil &&
				(strings.Contains(p.Str, `"`) || len(p.Str) > 50) &&
				IsTranslatable(p.Str, true, w.opts.Blacklist) {
				w.res.addPlain(base.Index(i).Key("parameters").Index(0), p, ContextPlugin)
			}
		case 357:
			w.pluginCommand(cv, base.Index(i).Key("parameters"))
		}
		i += adv
	}
}

func (w *mvWalker) dialogueRun(paramPath document.Path, nodes []*document.Node) {
	body := joinBody(nodes)
	if !IsTranslatable(body, true, w.opts.Blacklist) {
		return
	}
	w.res.addDialogueRun(paramPath.Merge(len(nodes)), nodes, ContextDialogue)
}

// pluginCommand extracts the display text and text-like arguments of an
// MZ plugin command (code 357).
func (w *mvWalker) pluginCommand(cv commandView, base document.Path) {
	if p := cv.paramString(2); p != nil && IsTranslatable(p.Str, true, w.opts.Blacklist) {
		w.res.addPlain(base.Index(2), p, ContextPlugin)
	}
	if cv.params == nil {
		return
	}
	args := cv.params.Index(3)
	if args == nil || args.Kind != document.KindMap {
		return
	}
	ap := base.Index(3)
	for i, k := range args.Keys {
		v := args.Vals[i]
		if pluginArgKeys[k.Str] && v.IsString() && IsTranslatable(v.Str, true, w.opts.Blacklist) {
			w.res.addPlain(ap.Key(k.Str), v, ContextPlugin)
		}
	}
}

// terms walks a System term section where every string is UI vocabulary.
func (w *mvWalker) terms(n *document.Node, p document.Path) {
	switch n.Kind {
	case document.KindString:
		if IsTranslatable(n.Str, false, w.opts.Blacklist) {
			w.res.addPlain(p, n, ContextTerm)
		}
	case document.KindList:
		for i, item := range n.Items {
			if item != nil {
				w.terms(item, p.Index(i))
			}
		}
	case document.KindMap:
		for i, k := range n.Keys {
			if v := n.Vals[i]; v != nil {
				w.terms(v, p.Key(k.Str))
			}
		}
	}
}

func (w *mvWalker) pluginParams(params *document.Node, p document.Path) {
	for i, k := range params.Keys {
		if v := params.Vals[i]; v != nil {
			w.pluginValue(v, p.Key(k.Str), k.Str)
		}
	}
}

// pluginValue extracts from one plugin parameter value. Values are
// strings that may themselves hold serialized JSON structures to any
// depth; structures are unboxed and walked with the same rules.
func (w *mvWalker) pluginValue(n *document.Node, p document.Path, key string) {
	switch n.Kind {
	case document.KindString:
		if n.Str == "" || w.tryNested(n, p) {
			return
		}
		if IsTranslatable(n.Str, databaseFields[key], w.opts.Blacklist) {
			w.res.addPlain(p, n, ContextPlugin)
		}
	case document.KindList:
		for i, item := range n.Items {
			if item != nil {
				w.pluginValue(item, p.Index(i), "")
			}
		}
	case document.KindMap:
		for i, k := range n.Keys {
			if v := n.Vals[i]; v != nil {
				w.pluginValue(v, p.Key(k.Str), k.Str)
			}
		}
	}
}

// tryNested parses a string value as an embedded JSON document. True
// means the value was structural and has been handled, whether or not it
// produced units.
func (w *mvWalker) tryNested(n *document.Node, p document.Path) bool {
	t := strings.TrimSpace(n.Str)
	if len(t) < 2 || (t[0] != '{' && t[0] != '[') {
		return false
	}
	sub, err := document.Load([]byte(n.Str), document.FormatJSON)
	if err != nil {
		return false
	}
	if sub.Root.Kind != document.KindList && sub.Root.Kind != document.KindMap {
		return false
	}
	subRes := newResult(w.res.File, sub)
	sw := &mvWalker{res: subRes, opts: w.opts, plugins: w.plugins}
	sw.pluginValue(sub.Root, document.Path{}, "")
	if len(subRes.Units) > 0 {
		w.res.addNested(p, n, subRes)
	}
	return true
}
