package providers

import (
	"sort"
	"strings"
)

// keywordFilter deletes keywords from a stream of text fragments. A fragment
// tail that could be the start of a keyword is held back until the next
// fragment shows whether it completes one.
type keywordFilter struct {
	keywords []string
	pending  string
}

func newKeywordFilter(keywords []string) *keywordFilter {
	kw := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k != "" {
			kw = append(kw, k)
		}
	}
	// Longest first so "assistant:" wins over "assistant".
	sort.SliceStable(kw, func(i, j int) bool { return len(kw[i]) > len(kw[j]) })
	return &keywordFilter{keywords: kw}
}

// Push adds a fragment and returns the text that is now safe to emit. A
// complete keyword at the end stays held while it could still grow into a
// longer one ("assistant" before "assistant:").
func (f *keywordFilter) Push(fragment string) string {
	raw := f.pending + fragment
	cut := f.safeCut(raw)
	out := f.strip(raw[:cut])
	hold := f.heldSuffix(out)
	f.pending = out[len(out)-hold:] + raw[cut:]
	return out[:len(out)-hold]
}

// Flush returns whatever is still held back.
func (f *keywordFilter) Flush() string {
	out := f.strip(f.pending)
	f.pending = ""
	return out
}

func (f *keywordFilter) strip(s string) string {
	for {
		before := s
		for _, k := range f.keywords {
			s = strings.ReplaceAll(s, k, "")
		}
		if s == before {
			return s
		}
	}
}

// safeCut is the index up to which s can be stripped now. It excludes the
// suffix that may still grow into a keyword and never splits a keyword
// occurrence.
func (f *keywordFilter) safeCut(s string) int {
	cut := len(s) - f.heldSuffix(s)
	for moved := true; moved; {
		moved = false
		for _, k := range f.keywords {
			lo := max(cut-len(k)+1, 0)
			if i := strings.Index(s[lo:], k); i >= 0 && lo+i < cut {
				cut = lo + i
				moved = true
			}
		}
	}
	return cut
}

// heldSuffix is the length of the longest suffix of s that is a proper
// prefix of some keyword.
func (f *keywordFilter) heldSuffix(s string) int {
	hold := 0
	for _, k := range f.keywords {
		n := len(k) - 1
		if n > len(s) {
			n = len(s)
		}
		for l := n; l > hold; l-- {
			if strings.HasSuffix(s, k[:l]) {
				hold = l
				break
			}
		}
	}
	return hold
}
