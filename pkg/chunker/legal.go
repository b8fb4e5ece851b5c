package chunker

import (
	"regexp"
	"strings"
)

// Hierarchical section patterns, ordered by precedence.
var (
	articleRe = regexp.MustCompile(`(?mi)^\s*(ARTICLE|PART)\s+([IVXLC]+|[0-9]+)[.\s:]?\s*(.{0,120}?)(?:\s*\.{3,}|\n|$)`)

	sectionRe = regexp.MustCompile(`(?mi)^\s*(?:SECTION|§)\s+(\d+(?:\.\d+)?(?:\([a-z0-9]+\))?)[.\s:]?\s*(.{0,120}?)(?:\s*\.{3,}|\n|$)`)

	subsectionRe = regexp.MustCompile(`(?mi)^\s*\(([a-z]|[ivxlc]+|[0-9]+)\)\s+(.{0,120}?)(?:\.|\n|$)`)
)

// section is one hierarchical unit of a governing document:
// level 1 = article, 2 = section, 3 = subsection.
type section struct {
	level    int
	number   string
	title    string
	content  string
	children []section
}

func (s section) levelName() string {
	switch s.level {
	case 1:
		return "ARTICLE"
	case 3:
		return "SUBSECTION"
	default:
		return "SECTION"
	}
}

// extractSections parses the hierarchical structure of a governing
// document. Articles take precedence; a document without articles is
// parsed at section level. Returns nil when no structure is found.
func extractSections(text string) []section {
	if matches := articleRe.FindAllStringSubmatchIndex(text, -1); len(matches) > 0 {
		sections := make([]section, 0, len(matches))
		for i, m := range matches {
			start := m[0]
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			content := text[start:end]
			art := section{
				level:   1,
				number:  strings.TrimSpace(text[m[4]:m[5]]),
				title:   strings.TrimSpace(text[m[6]:m[7]]),
				content: content,
			}
			art.children = childSections(content, sectionRe, 2)
			sections = append(sections, art)
		}
		return sections
	}

	if matches := sectionRe.FindAllStringSubmatchIndex(text, -1); len(matches) > 0 {
		sections := make([]section, 0, len(matches))
		for i, m := range matches {
			start := m[0]
			end := len(text)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			content := text[start:end]
			sec := section{
				level:   2,
				number:  strings.TrimSpace(text[m[2]:m[3]]),
				title:   strings.TrimSpace(text[m[4]:m[5]]),
				content: content,
			}
			sec.children = childSections(content, subsectionRe, 3)
			sections = append(sections, sec)
		}
		return sections
	}

	return nil
}

func childSections(parent string, re *regexp.Regexp, level int) []section {
	matches := re.FindAllStringSubmatchIndex(parent, -1)
	children := make([]section, 0, len(matches))
	for i, m := range matches {
		start := m[0]
		end := len(parent)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		children = append(children, section{
			level:   level,
			number:  strings.TrimSpace(parent[m[2]:m[3]]),
			title:   strings.TrimSpace(parent[m[4]:m[5]]),
			content: parent[start:end],
		})
	}
	return children
}

// flattenSections linearizes the hierarchy. When subsection merging is
// on and a parent's children fit under maxSize together, the parent
// absorbs them so a whole section stays in one chunk.
func flattenSections(sections []section, mergeSubsections bool, maxSize int) []section {
	var flat []section
	for _, sec := range sections {
		if mergeSubsections && len(sec.children) > 0 {
			childTotal := 0
			for _, c := range sec.children {
				childTotal += len(c.content)
			}
			if childTotal < maxSize {
				merged := sec.content
				for _, c := range sec.children {
					merged += "\n\n" + c.content
				}
				sec.content = merged
				sec.children = nil
				flat = append(flat, sec)
			} else {
				// Parent text already contains the children; emit the
				// children alone so no span is indexed twice.
				flat = append(flat, sec.children...)
			}
			continue
		}
		children := sec.children
		flat = append(flat, sec)
		flat = append(flat, children...)
	}
	return flat
}

const legalSectionTag = "[LEGAL_SECTION]"

// sectionHeader prefixes chunk content with a semantic label so each
// chunk carries its own section context.
func sectionHeader(sec section, content string) string {
	if strings.HasPrefix(strings.TrimSpace(content), legalSectionTag) {
		return content
	}
	label := sec.levelName() + " " + sec.number
	if sec.title != "" {
		label += " - " + sec.title
	}
	return legalSectionTag + " " + label + "\n\n" + content
}
