package lesson

import (
	"regexp"
	"strings"
)

var tagPattern = regexp.MustCompile(`<[^>]+>`)

// parseLineTexts extracts the text following each <mark name="lineN"/> tag,
// with markup removed and surrounding whitespace trimmed. Line numbers must
// run 0, 1, 2, ... with no gaps.
func parseLineTexts(ssml string) ([]string, error) {
	var texts []string

	for _, segment := range strings.Split(ssml, "<mark ") {
		markEnd := strings.IndexByte(segment, '>')
		if markEnd == -1 {
			continue
		}
		mark := segment[:markEnd]
		if !strings.HasPrefix(mark, `name="`) {
			continue
		}
		name := mark[len(`name="`):]
		if !strings.HasPrefix(name, "line") {
			continue
		}

		numEnd := strings.IndexByte(name, '"')
		if numEnd == -1 {
			numEnd = len(name)
		}
		lineNo, ok := atoi(name[len("line"):numEnd])
		if !ok || lineNo != len(texts) {
			got := lineNo
			if !ok {
				got = -1
			}
			return nil, &SequenceError{Got: got, Want: len(texts)}
		}

		text := tagPattern.ReplaceAllString(segment[markEnd+1:], "")
		texts = append(texts, strings.TrimSpace(text))
	}
	return texts, nil
}
