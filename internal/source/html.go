package source

import (
	"fmt"
	"io"
	"strings"
	"time"

	"golang.org/x/net/html"
)

type htmlPage struct {
	text      string
	published *time.Time
}

// Elements whose content is never article text
var skipped = map[string]bool{
	"script": true, "style": true, "noscript": true, "iframe": true,
	"nav": true, "footer": true, "aside": true, "form": true, "template": true, "svg": true,
}

// Elements that end a paragraph
var blocks = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"article": true, "section": true, "header": true, "figcaption": true, "pre": true,
}

func parseHTML(r io.Reader) (htmlPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return htmlPage{}, fmt.Errorf("parse HTML: %w", err)
	}

	page := htmlPage{published: publishedTime(doc)}

	root := doc
	if article := findElement(doc, "article"); article != nil {
		root = article
	} else if body := findElement(doc, "body"); body != nil {
		root = body
	}
	page.text = visibleText(root)
	return page, nil
}

// visibleText joins text nodes, starting a new paragraph at block elements
func visibleText(n *html.Node) string {
	var paragraphs []string
	var current []string

	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if skipped[n.Data] {
				return
			}
			if blocks[n.Data] {
				flush()
				defer flush()
			}
		}

		if n.Type == html.TextNode {
			if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
				current = append(current, text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	flush()
	return strings.Join(paragraphs, "\n\n")
}

func findElement(n *html.Node, tag string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, tag); found != nil {
			return found
		}
	}
	return nil
}

// publishedTime reads article:published_time, or a <time datetime> element
func publishedTime(doc *html.Node) *time.Time {
	var value string

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if value != "" {
			return
		}
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				prop := attr(n, "property")
				if prop == "" {
					prop = attr(n, "name")
				}
				if prop == "article:published_time" || prop == "date" {
					value = attr(n, "content")
				}
			case "time":
				value = attr(n, "datetime")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if value == "" {
		return nil
	}
	t, err := parseTime(value)
	if err != nil {
		return nil
	}
	return &t
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
