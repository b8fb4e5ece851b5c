package chunker

import (
	"regexp"
	"strings"
)

// separators, tried in order: paragraph, line, sentence, word, rune.
var splitSeparators = []string{"\n\n", "\n", ". ", " ", ""}

var multiBlankRe = regexp.MustCompile(`\n{3,}`)

// CleanText normalizes line endings and collapses runs of blank lines.
func CleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = multiBlankRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// SplitText splits text into pieces of at most size characters using
// recursive separator descent, keeping a tail of up to overlap
// characters between adjacent pieces so sentence boundaries survive.
func SplitText(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	return recursiveSplit(text, splitSeparators, size, overlap)
}

func recursiveSplit(text string, seps []string, size, overlap int) []string {
	sep := seps[len(seps)-1]
	var next []string
	for i, s := range seps {
		if s == "" {
			sep = ""
			break
		}
		if strings.Contains(text, s) {
			sep = s
			next = seps[i+1:]
			break
		}
	}

	var good []string
	for _, s := range splitOnSeparator(text, sep) {
		switch {
		case len(s) < size:
			good = append(good, s)
		case len(next) > 0:
			good = append(good, recursiveSplit(s, next, size, overlap)...)
		default:
			good = append(good, s)
		}
	}
	return mergeSplits(good, sep, size, overlap)
}

func splitOnSeparator(text, sep string) []string {
	if sep == "" {
		parts := make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	var out []string
	for _, s := range strings.Split(text, sep) {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// mergeSplits packs splits back together up to size, carrying the tail
// of the previous window forward until its length drops below overlap.
func mergeSplits(splits []string, sep string, size, overlap int) []string {
	var docs []string
	var current []string
	total := 0
	sepLen := len(sep)

	for _, d := range splits {
		extra := 0
		if len(current) > 0 {
			extra = sepLen
		}
		if total+len(d)+extra > size {
			if len(current) > 0 {
				if doc := strings.Join(current, sep); strings.TrimSpace(doc) != "" {
					docs = append(docs, doc)
				}
				for total > overlap && len(current) > 0 {
					total -= len(current[0]) + sepLen
					current = current[1:]
				}
			}
			if len(current) == 0 {
				total = 0
			}
		}
		current = append(current, d)
		if len(current) > 1 {
			total += len(d) + sepLen
		} else {
			total += len(d)
		}
	}
	if len(current) > 0 {
		if doc := strings.Join(current, sep); strings.TrimSpace(doc) != "" {
			docs = append(docs, doc)
		}
	}
	return docs
}
