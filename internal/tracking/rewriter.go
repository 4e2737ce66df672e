package tracking

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Rewriter instruments outbound HTML messages: it wraps links with the
// click redirect and appends the open pixel.
type Rewriter struct {
	signer  *Signer
	baseURL string
}

// NewRewriter creates a rewriter that builds tracking URLs against
// baseURL.
func NewRewriter(signer *Signer, baseURL string) *Rewriter {
	return &Rewriter{signer: signer, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// IsHTML reports whether the message headers declare an HTML body.
// Matching is case-insensitive on both the header name and the value.
func IsHTML(headers []string) bool {
	for _, header := range headers {
		lower := strings.ToLower(header)
		if strings.Contains(lower, "content-type:") && strings.Contains(lower, "text/html") {
			return true
		}
	}
	return false
}

// InjectTracking rewrites the HTML body for the given log entry:
// every absolute http(s) link is wrapped with the click redirect, and
// the open pixel is appended to the document body. The parser is
// tolerant of broken markup; if the body cannot be parsed or rendered
// at all, the original message is returned untouched rather than
// dropping the send.
func (rw *Rewriter) InjectTracking(body string, logID int64) string {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return body
	}

	var bodyNode *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.A:
				rw.wrapLink(n, logID)
			case atom.Body:
				if bodyNode == nil {
					bodyNode = n
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if bodyNode != nil {
		bodyNode.AppendChild(rw.pixelNode(logID))
	}

	var buf strings.Builder
	if err := html.Render(&buf, doc); err != nil {
		return body
	}
	return buf.String()
}

// wrapLink replaces an absolute http(s) href with the click redirect.
// Relative links, anchors and mailto: links are left alone.
func (rw *Rewriter) wrapLink(n *html.Node, logID int64) {
	for i, attr := range n.Attr {
		if attr.Key != "href" {
			continue
		}
		if !strings.HasPrefix(attr.Val, "http://") && !strings.HasPrefix(attr.Val, "https://") {
			return
		}
		n.Attr[i].Val = rw.signer.ClickURL(rw.baseURL, logID, attr.Val)
		return
	}
}

func (rw *Rewriter) pixelNode(logID int64) *html.Node {
	return &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Img,
		Data:     "img",
		Attr: []html.Attribute{
			{Key: "src", Val: rw.signer.PixelURL(rw.baseURL, logID)},
			{Key: "width", Val: "1"},
			{Key: "height", Val: "1"},
			{Key: "style", Val: "display:none;"},
			{Key: "alt", Val: ""},
		},
	}
}
