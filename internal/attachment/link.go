// Package attachment locates trace attachment links in free-form issue text.
package attachment

import "regexp"

// linkPattern matches an http(s) github.com URL whose path ends in ".json".
// \S+ keeps whitespace, newlines included, out of a match. The pattern is
// not anchored at the end: anything after ".json" is left out of the link.
var linkPattern = regexp.MustCompile(`(?i)https?://github\.com/\S+\.json`)

// ExtractLink returns the first attachment link in body. When an issue
// carries several links, the first one wins and the rest are ignored.
func ExtractLink(body string) (string, bool) {
	link := linkPattern.FindString(body)
	return link, link != ""
}

// ExtractLinks returns every attachment link in body in order of appearance.
func ExtractLinks(body string) []string {
	return linkPattern.FindAllString(body, -1)
}
