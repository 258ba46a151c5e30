package document

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Block is a heading followed by the bullet lines under it. Either part may
// be empty.
type Block struct {
	Heading string
	Items   []string
}

const maxHeadingLen = 60

// FormatNarrative structures plain model prose for the report page. Short
// lines that start with a capital letter and either end with a colon or are
// all caps become headings; every other non-blank line becomes a bullet.
func FormatNarrative(text string) []Block {
	var blocks []Block
	cur := Block{}
	flush := func() {
		if cur.Heading != "" || len(cur.Items) > 0 {
			blocks = append(blocks, cur)
		}
		cur = Block{}
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if isHeading(line) {
			flush()
			cur.Heading = strings.TrimSuffix(line, ":")
			continue
		}
		cur.Items = append(cur.Items, stripBullet(line))
	}
	flush()
	return blocks
}

func isHeading(line string) bool {
	if utf8.RuneCountInString(line) > maxHeadingLen {
		return false
	}
	first, _ := utf8.DecodeRuneInString(line)
	if !unicode.IsUpper(first) {
		return false
	}
	if strings.HasSuffix(line, ":") {
		return true
	}
	return isAllCaps(line)
}

func isAllCaps(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters > 1
}

func stripBullet(line string) string {
	line = strings.TrimLeft(line, "-•· ")
	// "1. text" and "1) text"
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i+1 < len(line) && (line[i] == '.' || line[i] == ')') && line[i+1] == ' ' {
		line = line[i+2:]
	}
	return strings.TrimSpace(line)
}
