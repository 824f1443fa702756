package extractor

import (
	"sort"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// textBearingSelectors enumerates the elements whose text counts toward
// word count and readability. Mirrors the teacher's original
// documentation-prose selector set, widened with table and emphasis
// elements so a product page's table-heavy copy isn't undercounted.
var textBearingSelectors = strings.Join([]string{
	"p", "h1", "h2", "h3", "h4", "h5", "h6",
	"span", "li", "td", "th", "tr", "caption", "blockquote",
	"em", "strong", "b", "i", "u", "s", "del", "ins", "sup", "sub",
}, ", ")

// collectText concatenates the text of every text-bearing element under
// scope, in document order, space-separated.
func collectText(scope *goquery.Selection) string {
	var sb strings.Builder
	scope.Find(textBearingSelectors).Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(s.Text())
		sb.WriteByte(' ')
	})
	return sb.String()
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

// textRatio is the fraction of the raw HTML byte length that is
// non-whitespace visible text — a crude boilerplate signal: pages that are
// mostly markup and scripts score low.
func textRatio(text string, htmlSizeBytes int) float64 {
	if htmlSizeBytes == 0 {
		return 0
	}
	nonWhitespace := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			nonWhitespace++
		}
	}
	return float64(nonWhitespace) / float64(htmlSizeBytes)
}

// fleschReadingEase implements the classic Flesch Reading Ease formula.
// Returns 0 when there isn't enough text to measure (no sentences or no
// words), same as having nothing to say about readability.
func fleschReadingEase(text string) float64 {
	sentences := countSentences(text)
	words := countWords(text)
	if sentences == 0 || words == 0 {
		return 0
	}

	syllables := 0
	for _, word := range strings.Fields(text) {
		syllables += countSyllables(word)
	}

	return 206.835 - 1.015*(float64(words)/float64(sentences)) - 84.6*(float64(syllables)/float64(words))
}

func countSentences(text string) int {
	return len(strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}))
}

func countWords(text string) int {
	return len(strings.Fields(text))
}

// countSyllables approximates syllable count by counting vowel-group
// transitions, with a trailing-silent-e adjustment (a consonant + "le"
// ending, as in "table", keeps its syllable). Not linguistically exact,
// but good enough for a readability estimate at crawl scale.
func countSyllables(word string) int {
	word = strings.ToLower(word)
	count := 0
	prevWasVowel := false
	for _, r := range word {
		isVowel := strings.ContainsRune("aeiou", r)
		if isVowel && !prevWasVowel {
			count++
		}
		prevWasVowel = isVowel
	}
	consonantLE := len(word) >= 3 && strings.HasSuffix(word, "le") &&
		!strings.ContainsRune("aeiou", rune(word[len(word)-3]))
	if strings.HasSuffix(word, "e") && !consonantLE && count > 1 {
		count--
	}
	return count
}

var defaultStopWords = map[string]bool{
	"the": true, "and": true, "is": true, "in": true, "it": true, "to": true,
	"of": true, "for": true, "on": true, "with": true, "as": true, "at": true,
	"by": true, "an": true, "be": true, "this": true, "that": true, "or": true,
	"are": true, "from": true, "was": true, "were": true, "has": true,
	"have": true, "had": true, "but": true, "not": true, "you": true,
	"we": true, "they": true, "a": true, "if": true, "then": true,
}

// keywordFrequency tokenizes text, strips stop words, and returns the top
// terms by frequency, most frequent first. customStopWords extends (not
// replaces) the built-in list.
func keywordFrequency(text string, customStopWords []string, limit int) []string {
	stop := make(map[string]bool, len(defaultStopWords)+len(customStopWords))
	for w := range defaultStopWords {
		stop[w] = true
	}
	for _, w := range customStopWords {
		stop[strings.ToLower(w)] = true
	}

	counts := make(map[string]int)
	for _, raw := range strings.Fields(text) {
		word := strings.ToLower(strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		}))
		if word == "" || stop[word] || len(word) < 3 {
			continue
		}
		counts[word]++
	}

	type kv struct {
		word  string
		count int
	}
	ranked := make([]kv, 0, len(counts))
	for w, c := range counts {
		ranked = append(ranked, kv{w, c})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].word < ranked[j].word
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	keywords := make([]string, len(ranked))
	for i, k := range ranked {
		keywords[i] = k.word
	}
	return keywords
}

// ngrams builds contiguous n-word phrases from text and counts the
// occurrences of each; the returned map carries no phrase order.
func ngrams(text string, n int) map[string]int {
	if n <= 0 {
		return nil
	}
	words := make([]string, 0)
	for _, raw := range strings.Fields(text) {
		word := strings.TrimFunc(raw, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if word != "" {
			words = append(words, strings.ToLower(word))
		}
	}

	result := make(map[string]int)
	for i := 0; i+n <= len(words); i++ {
		phrase := strings.Join(words[i:i+n], " ")
		result[phrase]++
	}
	return result
}
