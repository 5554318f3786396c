package notify

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// HTMLToText renders the visible text of an HTML document, one block per
// line, with link targets in brackets after the link text.
func HTMLToText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var (
		line    strings.Builder
		skip    int
		hrefs   []string
		flushed []string
	)
	flush := func() {
		text := strings.Join(strings.Fields(line.String()), " ")
		if text != "" {
			flushed = append(flushed, text)
		}
		line.Reset()
	}

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return doc
			}
			flush()
			return strings.Join(flushed, "\n")
		case html.TextToken:
			if skip == 0 {
				line.Write(z.Text())
				line.WriteByte(' ')
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tag := string(name)
			switch {
			case tag == "style" || tag == "script" || tag == "title":
				if tt == html.StartTagToken {
					skip++
				}
			case tag == "a":
				href := ""
				for hasAttr {
					var key, val []byte
					key, val, hasAttr = z.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
				}
				hrefs = append(hrefs, href)
			case blockTags[tag]:
				flush()
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "style" || tag == "script" || tag == "title":
				if skip > 0 {
					skip--
				}
			case tag == "a":
				if n := len(hrefs); n > 0 {
					if href := hrefs[n-1]; href != "" {
						line.WriteString("[" + href + "] ")
					}
					hrefs = hrefs[:n-1]
				}
			case blockTags[tag]:
				flush()
			}
		}
	}
}
