package matching

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// Tokens are runs of two or more word characters, lowercased.
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}\p{M}_]{2,}`)

func tokenize(doc string) []string {
	return tokenPattern.FindAllString(strings.ToLower(doc), -1)
}

// vectorizer is a TF-IDF model fitted on a fixed corpus: raw term counts,
// smoothed idf ln((1+n)/(1+df))+1 and L2-normalized rows.
type vectorizer struct {
	vocabulary map[string]int
	idf        []float64
}

func fitVectorizer(docs [][]string) *vectorizer {
	df := make(map[string]int)
	for _, tokens := range docs {
		seen := make(map[string]struct{}, len(tokens))
		for _, token := range tokens {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			df[token]++
		}
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(docs))
	v := &vectorizer{
		vocabulary: make(map[string]int, len(terms)),
		idf:        make([]float64, len(terms)),
	}
	for i, term := range terms {
		v.vocabulary[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v
}

// transform returns the normalized vector of tokens. Out-of-vocabulary tokens
// are ignored; a document without known tokens yields the zero vector.
func (v *vectorizer) transform(tokens []string) []float64 {
	vec := make([]float64, len(v.idf))
	for _, token := range tokens {
		if idx, ok := v.vocabulary[token]; ok {
			vec[idx]++
		}
	}

	norm := 0.0
	for i := range vec {
		vec[i] *= v.idf[i]
		norm += vec[i] * vec[i]
	}
	if norm == 0 {
		return vec
	}

	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// cosine of two L2-normalized vectors.
func cosine(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
