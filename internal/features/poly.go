package features

import "strings"

// ProductSeparator joins factor names in an interaction term, e.g. shuffles*size.
const ProductSeparator = "*"

// Term lists the base feature indices multiplied together, in non-decreasing order.
type Term []int

// Terms enumerates polynomial terms over n base features up to degree:
// all degree-1 terms, then degree-2 and degree-3 combinations with
// replacement in lexicographic index order.
func Terms(n, degree int) []Term {
	var terms []Term
	for d := 1; d <= degree; d++ {
		terms = appendCombinations(terms, n, d, 0, nil)
	}
	return terms
}

func appendCombinations(terms []Term, n, size, start int, prefix Term) []Term {
	if len(prefix) == size {
		return append(terms, append(Term(nil), prefix...))
	}
	for i := start; i < n; i++ {
		terms = appendCombinations(terms, n, size, i, append(prefix, i))
	}
	return terms
}

// TermNames renders each term as its factor names joined by ProductSeparator.
func TermNames(base []string, terms []Term) []string {
	names := make([]string, len(terms))
	factors := make([]string, 0, 3)
	for i, t := range terms {
		factors = factors[:0]
		for _, idx := range t {
			factors = append(factors, base[idx])
		}
		names[i] = strings.Join(factors, ProductSeparator)
	}
	return names
}

// Product multiplies the term's factors left to right.
func Product(base []float64, t Term) float64 {
	v := base[t[0]]
	for _, idx := range t[1:] {
		v *= base[idx]
	}
	return v
}

// Expand evaluates every term against a base vector.
func Expand(base []float64, terms []Term) []float64 {
	out := make([]float64, len(terms))
	for i, t := range terms {
		out[i] = Product(base, t)
	}
	return out
}
