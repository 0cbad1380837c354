package htmlutil

import (
	"html"
	"regexp"
	"strings"
)

// tagPattern matches HTML tags including self-closing tags.
var tagPattern = regexp.MustCompile(`<[^>]*>`)

// multipleSpacesPattern matches multiple consecutive whitespace characters.
var multipleSpacesPattern = regexp.MustCompile(`\s{2,}`)

// scriptStylePattern matches script and style blocks including their contents.
var scriptStylePattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)

// StripTags removes all HTML tags from a string and normalizes whitespace.
// It converts block-level tags (p, div, br, etc.) to newlines to preserve
// paragraph structure, then strips remaining tags and cleans up whitespace.
func StripTags(content string) string {
	if content == "" {
		return ""
	}

	// Script and style contents are markup noise, not article text
	result := scriptStylePattern.ReplaceAllString(content, "")

	// Replace block-level elements with newlines to preserve paragraph structure
	blockTags := []string{"</p>", "</div>", "<br>", "<br/>", "<br />", "</li>", "</blockquote>", "</h1>", "</h2>", "</h3>", "</h4>", "</h5>", "</h6>"}
	for _, tag := range blockTags {
		result = strings.ReplaceAll(result, tag, "\n")
		result = strings.ReplaceAll(result, strings.ToUpper(tag), "\n")
	}

	result = tagPattern.ReplaceAllString(result, "")
	result = html.UnescapeString(result)

	// Collapse whitespace within lines but preserve the newlines block tags
	// introduced
	lines := strings.Split(result, "\n")
	for i, line := range lines {
		line = multipleSpacesPattern.ReplaceAllString(line, " ")
		lines[i] = strings.TrimSpace(line)
	}

	var nonEmptyLines []string
	for _, line := range lines {
		if line != "" {
			nonEmptyLines = append(nonEmptyLines, line)
		}
	}

	return strings.Join(nonEmptyLines, "\n")
}

// WordCount counts the words in the readable text of an HTML document.
func WordCount(content string) int {
	return len(strings.Fields(StripTags(content)))
}
