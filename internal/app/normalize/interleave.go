package normalize

import (
	"html"
	"regexp"
	"strings"
)

var paragraphBreak = regexp.MustCompile(`\n\s*\n`)

func imageTag(src string) string {
	return `<img class="bot-post-img" src="` + html.EscapeString(src) + `">`
}

// InterleaveImages spreads image tags across the paragraphs of a markdown
// text, one tag before every step-th eligible paragraph where
// step = max(1, eligible/images). Paragraphs already starting with an <img>
// tag are not eligible. Images left over once every eligible paragraph has
// one are appended at the end. Text with no eligible paragraph is returned
// unchanged.
func InterleaveImages(text string, images []string) string {
	if len(images) == 0 {
		return text
	}

	// segments alternates paragraph, separator, paragraph, ...
	var segments []string
	last := 0
	for _, loc := range paragraphBreak.FindAllStringIndex(text, -1) {
		segments = append(segments, text[last:loc[0]], text[loc[0]:loc[1]])
		last = loc[1]
	}
	segments = append(segments, text[last:])

	var eligible []int
	for i := 0; i < len(segments); i += 2 {
		trimmed := strings.TrimSpace(segments[i])
		if trimmed == "" || strings.HasPrefix(trimmed, "<img") {
			continue
		}
		eligible = append(eligible, i)
	}
	if len(eligible) == 0 {
		return text
	}

	step := len(eligible) / len(images)
	if step < 1 {
		step = 1
	}
	used := 0
	for i := 0; i < len(eligible) && used < len(images); i += step {
		idx := eligible[i]
		segments[idx] = imageTag(images[used]) + "\n\n" + segments[idx]
		used++
	}

	result := strings.Join(segments, "")
	for ; used < len(images); used++ {
		result += "\n\n" + imageTag(images[used])
	}
	return result
}
