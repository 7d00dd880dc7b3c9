// Package glossary enforces user terminology around machine translation.
// Rules run in declared order and each rule sees the previous rule's
// output. The pre pass rewrites source terms before a text is submitted
// (it runs on protected text, after control codes are already tokenized,
// so rules cannot corrupt codes); the post pass re-asserts literal
// target terms on the translated result.
package glossary

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule is one glossary entry. Regex rules may use capture-group
// back-references like $1 in Replace.
type Rule struct {
	Match   string `yaml:"match"`
	Replace string `yaml:"replace"`
	Regex   bool   `yaml:"regex"`
	Post    bool   `yaml:"post"`

	re *regexp.Regexp
}

type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Glossary is an ordered rule set.
type Glossary struct {
	rules []Rule
}

// Load reads a YAML rule file from disk.
func Load(path string) (*Glossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("glossary: read %s: %w", path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glossary: %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes and compiles a YAML rule set.
func Parse(data []byte) (*Glossary, error) {
	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for i := range f.Rules {
		r := &f.Rules[i]
		if r.Match == "" {
			return nil, fmt.Errorf("rule %d: empty match", i)
		}
		if r.Regex {
			re, err := regexp.Compile(r.Match)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			r.re = re
		}
	}
	return &Glossary{rules: f.Rules}, nil
}

// Len returns the rule count.
func (g *Glossary) Len() int {
	if g == nil {
		return 0
	}
	return len(g.rules)
}

// Pre applies every non-post rule to text in declared order.
func (g *Glossary) Pre(text string) string {
	if g == nil {
		return text
	}
	for _, r := range g.rules {
		if r.Post {
			continue
		}
		text = r.apply(text)
	}
	return text
}

// Post applies the literal post rules to translated text. Regex rules
// are pre-pass only; running them against translator output would be
// matching against text the rule author never saw.
func (g *Glossary) Post(text string) string {
	if g == nil {
		return text
	}
	for _, r := range g.rules {
		if !r.Post || r.Regex {
			continue
		}
		text = r.apply(text)
	}
	return text
}

func (r Rule) apply(text string) string {
	if r.re != nil {
		return r.re.ReplaceAllString(text, r.Replace)
	}
	return strings.ReplaceAll(text, r.Match, r.Replace)
}

func guardToken(i int) string { return fmt.Sprintf("〈TERM_%d〉", i) }

// Guards records the enforced terms PreGuarded swapped out of one text.
// Identical terms share a token.
type Guards struct {
	terms []string
}

// Len returns the number of distinct guarded terms.
func (gs *Guards) Len() int { return len(gs.terms) }

// PreGuarded applies the pre rules like Pre, but places an opaque guard
// token where each replacement would go so the translator cannot rewrite
// an enforced term. Guarded terms are opaque to later rules too; an
// enforced term is final. Restore substitutes the terms back afterwards.
func (g *Glossary) PreGuarded(text string) (string, *Guards) {
	gs := &Guards{}
	if g == nil {
		return text, gs
	}
	seen := make(map[string]int)
	for _, r := range g.rules {
		if r.Post {
			continue
		}
		text = r.applyGuarded(text, gs, seen)
	}
	return text, gs
}

func (r Rule) applyGuarded(text string, gs *Guards, seen map[string]int) string {
	guard := func(term string) string {
		i, ok := seen[term]
		if !ok {
			i = len(gs.terms)
			gs.terms = append(gs.terms, term)
			seen[term] = i
		}
		return guardToken(i)
	}
	if r.re == nil {
		if !strings.Contains(text, r.Match) {
			return text
		}
		return strings.ReplaceAll(text, r.Match, guard(r.Replace))
	}

	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	last := 0
	for _, m := range matches {
		term := string(r.re.ExpandString(nil, r.Replace, text, m))
		b.WriteString(text[last:m[0]])
		b.WriteString(guard(term))
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String()
}

// Restore substitutes enforced terms back for their guard tokens.
// Tokens the translator mangled (spacing, case, swapped bracket shapes)
// are recovered by a tolerant pattern.
func (gs *Guards) Restore(text string) string {
	for i, term := range gs.terms {
		tok := guardToken(i)
		if strings.Contains(text, tok) {
			text = strings.ReplaceAll(text, tok, term)
			continue
		}
		mangled := regexp.MustCompile(fmt.Sprintf(`[〈<\[(]\s*(?i:term)[ _]*%d\s*[〉>\])]`, i))
		if mangled.MatchString(text) {
			text = mangled.ReplaceAllString(text, term)
		}
	}
	return text
}
