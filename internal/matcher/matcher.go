// Package matcher decides which hierarchy nodes are trackable endpoints.
//
// A node qualifies when its name carries both an endpoint word ("tip",
// "distal", ...) and a limb word ("index", "thumb", ...), and, optionally,
// when one of its close ancestors is named like a container ("hand").
package matcher

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/OCAP2/tiptrails/internal/scene"
	"github.com/OCAP2/tiptrails/pkg/core"
)

// Default rule sets.
var (
	DefaultTipWords       = []string{"tip", "_end", " end", "distal", "finger_tip", "fingertip"}
	DefaultLimbWords      = []string{"thumb", "index", "middle", "ring", "pinky", "finger"}
	DefaultContainerWords = []string{"hand"}
)

// DefaultPattern is the single-regex rule: limb name, then an endpoint suffix.
const DefaultPattern = `(thumb|index|middle|ring|pinky).*(tip|_end|(^|[^a-z])end([^a-z]|$)|distal)`

// DefaultMaxHops bounds the ancestor search.
const DefaultMaxHops = 5

// Mode selects the name rule.
type Mode string

const (
	ModeWords Mode = "words"
	ModeRegex Mode = "regex"
)

// Rules configures candidate selection.
type Rules struct {
	Mode             Mode
	TipWords         []string
	LimbWords        []string
	Pattern          string
	ContainerWords   []string
	MaxAncestorHops  int
	RequireContainer bool
}

// DefaultRules returns the word-list rules with the ancestor gate on.
func DefaultRules() Rules {
	return Rules{
		Mode:             ModeWords,
		TipWords:         DefaultTipWords,
		LimbWords:        DefaultLimbWords,
		Pattern:          DefaultPattern,
		ContainerWords:   DefaultContainerWords,
		MaxAncestorHops:  DefaultMaxHops,
		RequireContainer: true,
	}
}

// Matcher evaluates a node name.
type Matcher interface {
	Match(name string) bool
}

// WordMatcher accepts names holding at least one word of each set.
type WordMatcher struct {
	tipWords  []string
	limbWords []string
}

// NewWordMatcher lower-cases the word sets; empty sets fall back to defaults.
func NewWordMatcher(tipWords, limbWords []string) *WordMatcher {
	return &WordMatcher{
		tipWords:  normalizeWords(tipWords, DefaultTipWords),
		limbWords: normalizeWords(limbWords, DefaultLimbWords),
	}
}

// Match implements Matcher.
func (m *WordMatcher) Match(name string) bool {
	n := strings.ToLower(name)
	return containsAny(n, m.tipWords) && containsAny(n, m.limbWords)
}

// RegexMatcher accepts names matching one case-insensitive pattern.
type RegexMatcher struct {
	re *regexp.Regexp
}

// NewRegexMatcher compiles pattern case-insensitively.
func NewRegexMatcher(pattern string) (*RegexMatcher, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling endpoint pattern: %w", err)
	}
	return &RegexMatcher{re: re}, nil
}

// Match implements Matcher.
func (m *RegexMatcher) Match(name string) bool {
	return m.re.MatchString(name)
}

// New builds the matcher for rules. An unusable pattern falls back to
// DefaultPattern; the returned error reports the fallback and is not fatal.
func New(r Rules) (Matcher, error) {
	if r.Mode != ModeRegex {
		return NewWordMatcher(r.TipWords, r.LimbWords), nil
	}
	m, err := NewRegexMatcher(r.Pattern)
	if err != nil {
		def, _ := NewRegexMatcher(DefaultPattern)
		return def, err
	}
	return m, nil
}

// AncestorGate rejects nodes with no container-named ancestor close by.
type AncestorGate struct {
	Words   []string
	MaxHops int
}

// NewAncestorGate returns a gate; empty words and non-positive hops use defaults.
func NewAncestorGate(words []string, maxHops int) AncestorGate {
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	return AncestorGate{Words: normalizeWords(words, DefaultContainerWords), MaxHops: maxHops}
}

// Allows walks at most MaxHops parents of h looking for a container word.
func (g AncestorGate) Allows(h scene.Hierarchy, n core.NodeHandle) bool {
	p, ok := h.Parent(n)
	for hops := 0; ok && hops < g.MaxHops; hops++ {
		if containsAny(strings.ToLower(h.Name(p)), g.Words) {
			return true
		}
		p, ok = h.Parent(p)
	}
	return false
}

// AllowsChain is Allows over a list of ancestor names, nearest first.
func (g AncestorGate) AllowsChain(ancestors []string) bool {
	for i, name := range ancestors {
		if i >= g.MaxHops {
			break
		}
		if containsAny(strings.ToLower(name), g.Words) {
			return true
		}
	}
	return false
}

// Selector enumerates candidate endpoints under a root.
type Selector struct {
	matcher Matcher
	gate    *AncestorGate
}

// NewSelector builds a selector from rules. See New for the error contract.
func NewSelector(r Rules) (*Selector, error) {
	m, err := New(r)
	s := &Selector{matcher: m}
	if r.RequireContainer {
		g := NewAncestorGate(r.ContainerWords, r.MaxAncestorHops)
		s.gate = &g
	}
	return s, err
}

// Accepts evaluates a single name with its ancestor names, nearest first.
func (s *Selector) Accepts(name string, ancestors []string) bool {
	if !s.matcher.Match(name) {
		return false
	}
	return s.gate == nil || s.gate.AllowsChain(ancestors)
}

// Select returns the candidate endpoints. A non-empty manual list is
// authoritative: matching is skipped and only its live entries are returned.
// Otherwise every descendant of root is tested.
func (s *Selector) Select(h scene.Hierarchy, root core.NodeHandle, manual []core.NodeHandle) []core.NodeHandle {
	if len(manual) > 0 {
		out := make([]core.NodeHandle, 0, len(manual))
		seen := make(map[core.NodeHandle]struct{}, len(manual))
		for _, n := range manual {
			if _, dup := seen[n]; dup || !h.Valid(n) {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
		return out
	}

	var out []core.NodeHandle
	for _, n := range h.Descendants(root) {
		if n == root || !s.matcher.Match(h.Name(n)) {
			continue
		}
		if s.gate != nil && !s.gate.Allows(h, n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

func normalizeWords(words, fallback []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "" {
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	if len(out) == 0 {
		out = append(out, fallback...)
	}
	return out
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
