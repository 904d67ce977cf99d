package llm

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	// generatedToken matches hashed or utility class names that carry no meaning.
	generatedToken = regexp.MustCompile(`\d{2,}|^[a-z]{1,3}-[A-Za-z0-9]{4,}$|^css-|^sc-|[A-Za-z0-9]{20,}`)
	whitespaceRun  = regexp.MustCompile(`\s{2,}`)
)

var noiseTags = "script, style, noscript, svg, iframe, link, template, canvas, video, audio, picture source"

// CleanHTML strips markup that only costs tokens: scripts, styles, inline handlers,
// data attributes and generated class/id noise. Meaningful class names and ids are
// kept so the model can still point at the price element with a CSS selector.
func CleanHTML(raw string, maxChars int) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return truncate(collapse(raw), maxChars)
	}

	doc.Find(noiseTags).Remove()
	removeComments(doc.Selection)

	doc.Find("*").Each(func(_ int, s *goquery.Selection) {
		node := s.Get(0)
		kept := node.Attr[:0]
		for _, attr := range node.Attr {
			switch {
			case strings.HasPrefix(attr.Key, "on"),
				strings.HasPrefix(attr.Key, "data-"),
				strings.HasPrefix(attr.Key, "aria-"),
				attr.Key == "style", attr.Key == "srcset", attr.Key == "sizes":
				continue
			case attr.Key == "class":
				attr.Val = cleanClasses(attr.Val)
				if attr.Val == "" {
					continue
				}
			case attr.Key == "id":
				if generatedToken.MatchString(attr.Val) {
					continue
				}
			}
			kept = append(kept, attr)
		}
		node.Attr = kept
	})

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	out, err := goquery.OuterHtml(root)
	if err != nil {
		return truncate(collapse(raw), maxChars)
	}
	return truncate(collapse(out), maxChars)
}

func cleanClasses(value string) string {
	var kept []string
	for _, token := range strings.Fields(value) {
		if generatedToken.MatchString(token) {
			continue
		}
		kept = append(kept, token)
	}
	return strings.Join(kept, " ")
}

func removeComments(s *goquery.Selection) {
	for _, n := range s.Nodes {
		var walk func(*html.Node)
		walk = func(node *html.Node) {
			for child := node.FirstChild; child != nil; {
				next := child.NextSibling
				if child.Type == html.CommentNode {
					node.RemoveChild(child)
				} else {
					walk(child)
				}
				child = next
			}
		}
		walk(n)
	}
}

func collapse(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
