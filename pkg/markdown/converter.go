package markdown

import (
	"regexp"
	"strings"

	"github.com/russross/blackfriday/v2"
)

var (
	paragraphRE = regexp.MustCompile(`(?s)<p>(.*?)</p>`)
	headingRE   = regexp.MustCompile(`(?s)<h[1-6]>(.*?)</h[1-6]>`)
	preCodeRE   = regexp.MustCompile(`(?s)<pre><code(?: class="[^"]*")?>(.*?)</code></pre>`)
	anyTagRE    = regexp.MustCompile(`</?([a-zA-Z]+)(?:\s[^>]*)?>`)
	tagNameRE   = regexp.MustCompile(`</?([a-zA-Z]+)`)
	newlinesRE  = regexp.MustCompile(`\n{3,}`)
)

// Telegram's HTML parse mode accepts only this tag set.
var supportedTags = map[string]bool{
	"b": true, "i": true, "u": true, "s": true,
	"code": true, "pre": true, "a": true, "br": true,
}

// ToTelegramHTML converts provider markdown output into the HTML
// subset Telegram accepts.
func ToTelegramHTML(source string) string {
	if source == "" {
		return ""
	}

	html := string(blackfriday.Run([]byte(source), blackfriday.WithExtensions(blackfriday.CommonExtensions)))

	html = paragraphRE.ReplaceAllString(html, "$1\n")
	html = headingRE.ReplaceAllString(html, "<b>$1</b>\n")
	html = preCodeRE.ReplaceAllString(html, "<pre>$1</pre>")

	html = strings.ReplaceAll(html, "<strong>", "<b>")
	html = strings.ReplaceAll(html, "</strong>", "</b>")
	html = strings.ReplaceAll(html, "<em>", "<i>")
	html = strings.ReplaceAll(html, "</em>", "</i>")

	for _, tag := range []string{"<ul>", "</ul>", "<ol>", "</ol>"} {
		html = strings.ReplaceAll(html, tag, "")
	}
	html = strings.ReplaceAll(html, "<li>", "• ")
	html = strings.ReplaceAll(html, "</li>", "\n")

	html = anyTagRE.ReplaceAllStringFunc(html, func(match string) string {
		name := tagNameRE.FindStringSubmatch(match)
		if len(name) > 1 && supportedTags[strings.ToLower(name[1])] {
			return match
		}
		return ""
	})

	html = newlinesRE.ReplaceAllString(html, "\n\n")
	return strings.TrimSpace(html)
}
