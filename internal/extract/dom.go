package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	workURLRegex   = regexp.MustCompile(`^https?://archiveofourown\.org/works/(\d+)(?:$|\?|#|/)`)
	authorRegex    = regexp.MustCompile(`^https?://archiveofourown\.org/users/([^/]+)/pseuds/([^/]+)(?:$|\?|#|/)`)
	seriesURLRegex = regexp.MustCompile(`^https?://archiveofourown\.org/series/(\d+)(?:$|\?|#|/)`)
	chaptersRegex  = regexp.MustCompile(`Chapters:\s*([\d,]+)/([\d,]+|\?)`)
	wordsRegex     = regexp.MustCompile(`Words:\s*([\d,]+)`)
	dateRegex      = regexp.MustCompile(`(Updated|Completed|Published):\s*(\d{4})-(\d{1,2})-(\d{1,2})`)
)

// attr returns the value of attribute key on n, or "" if absent.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// hasClass reports whether n's class attribute contains class as one of
// its space-separated tokens.
func hasClass(n *html.Node, class string) bool {
	for _, token := range strings.Fields(attr(n, "class")) {
		if token == class {
			return true
		}
	}
	return false
}

// text concatenates all text node descendants of n.
func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// findFirst returns the first descendant (including n itself) of n for
// which match returns true, in document order.
func findFirst(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, match); found != nil {
			return found
		}
	}
	return nil
}

// findAll returns every descendant (including n itself) of n for which
// match returns true, in document order.
func findAll(n *html.Node, match func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.ElementNode && match(node) {
			out = append(out, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func byID(id string) func(*html.Node) bool {
	return func(n *html.Node) bool { return attr(n, "id") == id }
}

func byTagAndClass(tag, class string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag && hasClass(n, class) }
}

func byTag(tag string) func(*html.Node) bool {
	return func(n *html.Node) bool { return n.Data == tag }
}

// findPreface locates the div#preface element, the root every field
// selector below is scoped under.
func findPreface(doc *html.Node) *html.Node {
	return findFirst(doc, byID("preface"))
}
