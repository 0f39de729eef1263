package classifier

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "i": {},
	"you": {}, "your": {}, "this": {}, "that": {}, "for": {}, "of": {},
	"to": {}, "in": {}, "it": {}, "its": {}, "and": {}, "or": {}, "be": {},
	"on": {}, "with": {}, "about": {}, "what": {}, "do": {}, "can": {},
	"me": {}, "my": {}, "we": {}, "so": {}, "before": {}, "too": {},
	"have": {}, "more": {},
}

// Classification holds normalised class posteriors. Both are zero when the
// classifier abstains because no token of the text is in its vocabulary.
type Classification struct {
	Spam    float64
	NonSpam float64
}

// SpamConfidence is Spam / (Spam + NonSpam), or 0 when the classifier abstained
func (c Classification) SpamConfidence() float64 {
	total := c.Spam + c.NonSpam
	if total == 0 {
		return 0
	}
	return c.Spam / total
}

// Abstained reports whether the text had no in-vocabulary tokens
func (c Classification) Abstained() bool {
	return c.Spam+c.NonSpam == 0
}

// Classifier is a multinomial Naive Bayes document classifier with Laplace
// smoothing. It is immutable once built and safe for concurrent use.
type Classifier struct {
	vocabulary  map[string]struct{}
	tokenCounts map[Label]map[string]int
	tokenTotals map[Label]int
	docCounts   map[Label]int
	docTotal    int
}

// New trains a classifier on the given examples. Both labels must be present.
func New(examples []TrainingExample) (*Classifier, error) {
	c := &Classifier{
		vocabulary:  make(map[string]struct{}),
		tokenCounts: map[Label]map[string]int{Spam: {}, NonSpam: {}},
		tokenTotals: make(map[Label]int),
		docCounts:   make(map[Label]int),
	}

	for i, ex := range examples {
		if ex.Label != Spam && ex.Label != NonSpam {
			return nil, fmt.Errorf("example %d: unknown label %q", i, ex.Label)
		}
		c.docCounts[ex.Label]++
		c.docTotal++
		for _, tok := range Tokenize(ex.Text) {
			c.vocabulary[tok] = struct{}{}
			c.tokenCounts[ex.Label][tok]++
			c.tokenTotals[ex.Label]++
		}
	}

	if c.docCounts[Spam] == 0 || c.docCounts[NonSpam] == 0 {
		return nil, fmt.Errorf("training set needs both %q and %q examples", Spam, NonSpam)
	}

	return c, nil
}

// Default trains on the built-in corpus
func Default() *Classifier {
	c, err := New(corpus)
	if err != nil {
		panic(fmt.Sprintf("classifier: built-in corpus: %v", err))
	}
	return c
}

// Classify scores text against both labels
func (c *Classifier) Classify(text string) Classification {
	logSpam := math.Log(float64(c.docCounts[Spam]) / float64(c.docTotal))
	logNonSpam := math.Log(float64(c.docCounts[NonSpam]) / float64(c.docTotal))

	known := 0
	for _, tok := range Tokenize(text) {
		if _, ok := c.vocabulary[tok]; !ok {
			continue
		}
		known++
		logSpam += c.logLikelihood(Spam, tok)
		logNonSpam += c.logLikelihood(NonSpam, tok)
	}

	if known == 0 {
		return Classification{}
	}

	// log-sum-exp keeps long texts from underflowing to zero
	peak := math.Max(logSpam, logNonSpam)
	spam := math.Exp(logSpam - peak)
	nonSpam := math.Exp(logNonSpam - peak)
	total := spam + nonSpam

	return Classification{Spam: spam / total, NonSpam: nonSpam / total}
}

func (c *Classifier) logLikelihood(label Label, tok string) float64 {
	num := float64(c.tokenCounts[label][tok] + 1)
	den := float64(c.tokenTotals[label] + len(c.vocabulary))
	return math.Log(num / den)
}

// Tokenize lowercases text, splits it on anything that is not a letter or
// digit and drops stop words
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if _, stop := stopWords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
