package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/shelfwatch/shelfwatch/internal/models"
)

// Classifier decides whether a fetched snapshot represents a genuine product
// page or junk content (404s, bot challenges, site-name-only titles). No
// single weak signal rejects on its own where it could plausibly appear on a
// minimalist product page; structural signals are combined instead.
type Classifier struct {
	// MinNameLen is the shortest acceptable product name.
	MinNameLen int
	// MinImageURLLen is the shortest image reference considered usable.
	MinImageURLLen int
	// SentenceWordCount and SentenceFillerCount together detect names that
	// read as full sentences rather than product titles.
	SentenceWordCount   int
	SentenceFillerCount int

	junkPhrases   []string
	genericTitles map[string]struct{}
	fillerWords   map[string]struct{}
}

// Phrases that indicate an error, challenge or interstitial page. Matched as
// substrings of the case-folded name.
var defaultJunkPhrases = []string{
	"page not found",
	"404",
	"not available",
	"access denied",
	"access to this page has been denied",
	"just a moment",
	"attention required",
	"checking your browser",
	"verify you are a human",
	"are you a robot",
	"robot check",
	"enable javascript",
	"something went wrong",
	"service unavailable",
	"too many requests",
}

// Bare site titles that error pages sometimes echo instead of a product name.
// Matched exactly against the folded, trimmed name.
var defaultGenericTitles = []string{
	"amazon.com", "amazon.ca", "amazon.co.uk",
	"walmart.com", "walmart",
	"best buy", "bestbuy.com",
	"target", "ebay", "home",
}

var defaultFillerWords = []string{
	"the", "you", "your", "this", "that", "for",
	"are", "was", "were", "our", "please",
}

// NewClassifier returns a classifier with the standard phrase lists.
func NewClassifier() *Classifier {
	c := &Classifier{
		MinNameLen:          3,
		MinImageURLLen:      10,
		SentenceWordCount:   6,
		SentenceFillerCount: 3,
		junkPhrases:         make([]string, 0, len(defaultJunkPhrases)),
		genericTitles:       make(map[string]struct{}, len(defaultGenericTitles)),
		fillerWords:         make(map[string]struct{}, len(defaultFillerWords)),
	}
	for _, p := range defaultJunkPhrases {
		c.junkPhrases = append(c.junkPhrases, foldName(p))
	}
	for _, t := range defaultGenericTitles {
		c.genericTitles[foldName(t)] = struct{}{}
	}
	for _, w := range defaultFillerWords {
		c.fillerWords[w] = struct{}{}
	}
	return c
}

var caseFolder = cases.Fold()

func foldName(s string) string {
	return strings.TrimSpace(caseFolder.String(norm.NFKC.String(s)))
}

// Validate returns nil for a genuine product page, or an InvalidDataError
// naming the first rejection rule that matched. Rules are evaluated in order:
// short name, junk phrase, missing price and image, sentence-shaped name.
func (c *Classifier) Validate(snap models.RawSnapshot) error {
	name := strings.TrimSpace(snap.Name)
	if len([]rune(name)) < c.MinNameLen {
		return &InvalidDataError{Reason: "name missing or too short"}
	}

	folded := foldName(name)
	if _, ok := c.genericTitles[folded]; ok {
		return &InvalidDataError{Reason: "generic site title"}
	}
	for _, phrase := range c.junkPhrases {
		if strings.Contains(folded, phrase) {
			return &InvalidDataError{Reason: "junk phrase: " + phrase}
		}
	}

	hasPrice := snap.Price > 0
	hasImage := len(strings.TrimSpace(snap.ImageURL)) >= c.MinImageURLLen
	if !hasPrice && !hasImage {
		return &InvalidDataError{Reason: "no usable price or image"}
	}

	if c.sentenceShaped(folded) {
		return &InvalidDataError{Reason: "name reads as a sentence"}
	}

	return nil
}

// NameValid is the self-check variant: it applies only the name-shaped rules
// so a stored record whose name was corrupted by an earlier, looser validity
// check can be detected and repaired.
func (c *Classifier) NameValid(name string) bool {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < c.MinNameLen {
		return false
	}
	return c.nameLooksJunk(name) == ""
}

func (c *Classifier) nameLooksJunk(name string) string {
	folded := foldName(name)

	if _, ok := c.genericTitles[folded]; ok {
		return "generic site title"
	}
	for _, phrase := range c.junkPhrases {
		if strings.Contains(folded, phrase) {
			return "junk phrase: " + phrase
		}
	}
	if c.sentenceShaped(folded) {
		return "name reads as a sentence"
	}
	return ""
}

// sentenceShaped reports whether folded text reads as a full sentence rather
// than a product title: enough words, enough of them filler.
func (c *Classifier) sentenceShaped(folded string) bool {
	words := strings.Fields(folded)
	if len(words) < c.SentenceWordCount {
		return false
	}
	fillers := 0
	for _, w := range words {
		w = strings.Trim(w, ".,!?:;\"'()")
		if _, ok := c.fillerWords[w]; ok {
			fillers++
		}
	}
	return fillers >= c.SentenceFillerCount
}
