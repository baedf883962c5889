package mentions

import (
	"strings"

	"github.com/coregx/ahocorasick"
	"github.com/orsinium-labs/stopwords"
)

// Entry is one named record a text may mention.
type Entry struct {
	Name     string
	Category string
}

// Match is one mention found in a text.
type Match struct {
	Start   int    // byte offset in the original text
	End     int    // exclusive
	Text    string // original slice, casing kept
	Entries []Entry
}

// Option configures Compile.
type Option func(*compileOptions)

type compileOptions struct {
	minLength int
	aliases   bool
}

// WithMinLength drops surface forms shorter than n runes after
// canonicalization. Default 3.
func WithMinLength(n int) Option {
	return func(o *compileOptions) { o.minLength = n }
}

// WithAutoAliases toggles derived short forms (a character's last name, the
// first word of a place). On by default.
func WithAutoAliases(on bool) Option {
	return func(o *compileOptions) { o.aliases = on }
}

// Dictionary is a compiled set of entry names.
type Dictionary struct {
	ac *ahocorasick.Automaton

	patterns     []string
	patternIndex map[string]int
	// pattern index -> entries sharing that surface form
	patternEntries [][]Entry
}

var english = stopwords.MustGet("en")

// personCategories and placeCategories get derived aliases.
var (
	personCategories = map[string]bool{"characters": true, "deities": true, "enemies": true}
	placeCategories  = map[string]bool{
		"planes": true, "continents": true, "regions": true, "countries": true, "cities": true,
	}
)

// Compile builds a dictionary. Surface forms that are English stopwords or
// shorter than the minimum length are skipped, so an entry called "The"
// never matches every sentence.
func Compile(entries []Entry, opts ...Option) (*Dictionary, error) {
	o := compileOptions{minLength: 3, aliases: true}
	for _, opt := range opts {
		opt(&o)
	}

	d := &Dictionary{patternIndex: make(map[string]int)}
	for _, e := range entries {
		surfaces := []string{e.Name}
		if o.aliases {
			surfaces = append(surfaces, autoAliases(e)...)
		}
		for _, surface := range surfaces {
			key := Canonicalize(surface)
			if len([]rune(key)) < o.minLength || english.Contains(key) {
				continue
			}
			if idx, ok := d.patternIndex[key]; ok {
				d.patternEntries[idx] = appendUnique(d.patternEntries[idx], e)
				continue
			}
			d.patternIndex[key] = len(d.patterns)
			d.patterns = append(d.patterns, key)
			d.patternEntries = append(d.patternEntries, []Entry{e})
		}
	}

	if len(d.patterns) == 0 {
		return d, nil
	}

	// LeftmostLongest prefers "Black Fleet" over "Black"
	automaton, err := ahocorasick.NewBuilder().
		AddStrings(d.patterns).
		SetMatchKind(ahocorasick.LeftmostLongest).
		SetPrefilter(true).
		Build()
	if err != nil {
		return nil, err
	}
	d.ac = automaton
	return d, nil
}

// Len returns the number of distinct surface forms.
func (d *Dictionary) Len() int { return len(d.patterns) }

// Lookup returns the entries whose name or alias is surface.
func (d *Dictionary) Lookup(surface string) []Entry {
	idx, ok := d.patternIndex[Canonicalize(surface)]
	if !ok {
		return nil
	}
	return d.patternEntries[idx]
}

// Scan finds every whole-word mention in text. Offsets point into the
// original text.
func (d *Dictionary) Scan(text string) []Match {
	if d.ac == nil {
		return nil
	}

	canon := Canonicalize(text)
	mapping := offsetMap(text)

	found := d.ac.FindAllOverlapping([]byte(canon))
	out := make([]Match, 0, len(found))
	for _, m := range found {
		// "ira" must not match inside "mira"
		if m.Start > 0 && canon[m.Start-1] != ' ' {
			continue
		}
		if !wordEndsAt(canon, m.End) {
			continue
		}

		start := mapOffset(m.Start, mapping, len(text))
		end := mapOffset(m.End, mapping, len(text))
		if start >= end || end > len(text) {
			continue
		}
		out = append(out, Match{
			Start:   start,
			End:     end,
			Text:    text[start:end],
			Entries: d.patternEntries[m.PatternID],
		})
	}
	return out
}

// Mentioned returns the distinct entries mentioned in text, in order of
// first mention.
func (d *Dictionary) Mentioned(text string) []Entry {
	seen := make(map[Entry]bool)
	var out []Entry
	for _, m := range d.Scan(text) {
		for _, e := range m.Entries {
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// wordEndsAt reports whether a match ending at end stops on a word boundary.
// A possessive "'s" counts as one: "Mira's ship" mentions Mira.
func wordEndsAt(canon string, end int) bool {
	rest := canon[end:]
	if strings.HasPrefix(rest, "'s") {
		rest = rest[2:]
	}
	return rest == "" || rest[0] == ' '
}

func autoAliases(e Entry) []string {
	tokens := strings.Fields(Canonicalize(e.Name))
	if len(tokens) <= 1 {
		return nil
	}
	first, last := tokens[0], tokens[len(tokens)-1]

	var out []string
	switch {
	case personCategories[e.Category]:
		if len(last) >= 3 {
			out = append(out, last)
		}
		if len(first) >= 4 && first != last {
			out = append(out, first)
		}
	case placeCategories[e.Category]:
		if len(first) >= 4 {
			out = append(out, first)
		}
	}
	return out
}

func appendUnique(entries []Entry, e Entry) []Entry {
	for _, x := range entries {
		if x == e {
			return entries
		}
	}
	return append(entries, e)
}
