package delivery

import (
	"math/rand"
	"strings"
)

// decoyVocabulary is the fixed pool of pseudo-words undelivered chronicles
// are rendered from. Word lengths intentionally differ from any original
// token so only the word count survives the substitution.
var decoyVocabulary = []string{
	"ember", "quill", "harbor", "meadow", "lantern", "vale",
	"drift", "aurora", "fable", "willow", "cairn", "mirth",
	"sonder", "fen", "thistle", "gossamer",
}

// Decoy returns a placeholder with exactly as many whitespace-separated
// words as content, drawn uniformly with replacement from the fixed
// vocabulary. The receiver's client sees this instead of undelivered
// content; repeated calls may differ but never reveal the original.
func Decoy(content string, rnd *rand.Rand) string {
	n := len(strings.Fields(content))
	if n == 0 {
		return ""
	}
	words := make([]string, n)
	for i := range words {
		words[i] = decoyVocabulary[rnd.Intn(len(decoyVocabulary))]
	}
	return strings.Join(words, " ")
}
