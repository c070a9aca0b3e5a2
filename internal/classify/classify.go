// Package classify picks a display emoji for a library from its name.
package classify

import "strings"

// DefaultEmoji is used when no keyword matches
const DefaultEmoji = "📁"

// Keyword maps one lowercase term to an emoji
type Keyword struct {
	Term  string
	Emoji string
}

// Keywords is the built-in table. Order matters: it breaks ties between
// equally long matches.
var Keywords = []Keyword{
	// Anime and cartoons
	{"anime", "🎌"},
	{"anime movies", "🎌"},
	{"anime series", "🎌"},
	{"japanese", "🎌"},
	{"manga", "🎌"},
	{"cartoons", "🎌"},
	{"animation", "🎌"},

	// Movies
	{"movies", "🎬"},
	{"movie", "🎬"},
	{"films", "🎬"},
	{"cinema", "🎬"},
	{"feature", "🎬"},

	// TV
	{"tv", "📺"},
	{"television", "📺"},
	{"shows", "📺"},
	{"series", "📺"},
	{"episodes", "📺"},
	{"seasons", "📺"},

	// Documentaries
	{"documentaries", "📽️"},
	{"docs", "📽️"},
	{"documentary", "📽️"},
	{"educational", "📽️"},
	{"learning", "📽️"},
	{"science", "🔬"},
	{"history", "📜"},
	{"nature", "🌿"},
	{"wildlife", "🦁"},

	// Music
	{"music", "🎵"},
	{"songs", "🎵"},
	{"albums", "🎵"},
	{"artists", "🎵"},
	{"playlists", "🎵"},
	{"audio", "🎵"},
	{"concerts", "🎤"},
	{"live", "🎤"},

	// Books
	{"books", "📚"},
	{"audiobooks", "📚"},
	{"literature", "📚"},
	{"reading", "📚"},
	{"novels", "📚"},

	// Photos
	{"photos", "📸"},
	{"pictures", "📸"},
	{"images", "📸"},
	{"photography", "📸"},
	{"gallery", "📸"},

	// Home videos
	{"home videos", "🎥"},
	{"videos", "🎥"},
	{"recordings", "🎥"},
	{"family videos", "🎥"},
	{"personal", "🎥"},

	// Kids and family
	{"kids", "👶"},
	{"children", "👶"},
	{"family", "👶"},
	{"kids movies", "👶"},
	{"kids shows", "👶"},
	{"family movies", "👶"},

	// Sports
	{"sports", "⚽"},
	{"football", "⚽"},
	{"soccer", "⚽"},
	{"basketball", "🏀"},
	{"baseball", "⚾"},
	{"tennis", "🎾"},
	{"golf", "⛳"},
	{"racing", "🏎️"},
	{"olympics", "🏅"},
	{"matches", "⚽"},
	{"games", "🎮"},

	// Foreign
	{"foreign", "🌍"},
	{"international", "🌍"},
	{"world", "🌍"},
	{"korean", "🇰🇷"},
	{"korea", "🇰🇷"},
	{"k-drama", "🇰🇷"},
	{"kdrama", "🇰🇷"},
	{"kpop", "🇰🇷"},
	{"german", "🇩🇪"},
	{"deutsch", "🇩🇪"},
	{"germany", "🇩🇪"},
	{"french", "🇫🇷"},
	{"france", "🇫🇷"},
	{"français", "🇫🇷"},

	// Genres and formats
	{"comedy", "😂"},
	{"standup", "😂"},
	{"horror", "👻"},
	{"thriller", "🔪"},
	{"action", "💥"},
	{"adventure", "🗺️"},
	{"drama", "🎭"},
	{"romance", "💕"},
	{"scifi", "🚀"},
	{"fantasy", "🧙"},
	{"classic", "🎭"},
	{"indie", "🎨"},
	{"bollywood", "🎭"},
	{"hollywood", "🎬"},
	{"4k", "📺"},
	{"uhd", "📺"},
	{"hdr", "📺"},
	{"dolby", "🎵"},
	{"atmos", "🎵"},
}

// GenericTerms only win when nothing more specific matches
var GenericTerms = []string{"movies", "movie", "films", "shows", "series", "tv", "television", "videos"}

// Classifier matches library names against a keyword table
type Classifier struct {
	keywords []Keyword
	exact    map[string]string
	generic  map[string]bool
	fallback string
}

// New returns a Classifier over the built-in table
func New() *Classifier {
	return NewWithTable(Keywords, GenericTerms, DefaultEmoji)
}

// NewWithTable returns a Classifier over a custom table.
// Terms are matched lowercase.
func NewWithTable(keywords []Keyword, generic []string, fallback string) *Classifier {
	c := &Classifier{
		keywords: make([]Keyword, 0, len(keywords)),
		exact:    make(map[string]string, len(keywords)),
		generic:  make(map[string]bool, len(generic)),
		fallback: fallback,
	}
	for _, kw := range keywords {
		kw.Term = strings.ToLower(kw.Term)
		if _, dup := c.exact[kw.Term]; dup {
			continue
		}
		c.exact[kw.Term] = kw.Emoji
		c.keywords = append(c.keywords, kw)
	}
	for _, term := range generic {
		c.generic[strings.ToLower(term)] = true
	}
	return c
}

// Classify returns the emoji for a library name
func (c *Classifier) Classify(name string) string {
	if kw, ok := c.Match(name); ok {
		return kw.Emoji
	}
	return c.fallback
}

// Match returns the keyword that decides the emoji for name.
//
// An exact (case-insensitive) table hit wins outright. Otherwise the longest
// non-generic term contained in the name wins, falling back to the longest
// generic term. Ties go to the earlier table entry.
func (c *Classifier) Match(name string) (Keyword, bool) {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return Keyword{}, false
	}

	if emoji, ok := c.exact[lower]; ok {
		return Keyword{Term: lower, Emoji: emoji}, true
	}

	var specific, generic Keyword
	for _, kw := range c.keywords {
		if !strings.Contains(lower, kw.Term) {
			continue
		}
		if c.generic[kw.Term] {
			if len(kw.Term) > len(generic.Term) {
				generic = kw
			}
			continue
		}
		if len(kw.Term) > len(specific.Term) {
			specific = kw
		}
	}

	switch {
	case specific.Term != "":
		return specific, true
	case generic.Term != "":
		return generic, true
	default:
		return Keyword{}, false
	}
}
