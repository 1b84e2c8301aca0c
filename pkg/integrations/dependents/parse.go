package dependents

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// page is what one dependents page yields.
type page struct {
	packages   []Package
	dependents []Dependent
	next       string
}

func parsePage(r io.Reader, base *url.URL) (*page, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	p := &page{}
	seenPkg := make(map[string]bool)
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode {
			return
		}
		// Next links of multi-package repositories carry package_id too.
		switch {
		case n.Data == "a" && strings.TrimSpace(text(n)) == "Next":
			if href := attr(n, "href"); href != "" && p.next == "" {
				p.next = resolve(base, href)
			}
		case n.Data == "a" && strings.Contains(attr(n, "href"), "package_id="):
			if pkg, ok := packageLink(n, base); ok && !seenPkg[pkg.ID] {
				seenPkg[pkg.ID] = true
				p.packages = append(p.packages, pkg)
			}
		case hasClass(n, "Box-row"):
			if d, ok := dependentRow(n); ok {
				p.dependents = append(p.dependents, d)
			}
		}
	})
	return p, nil
}

func packageLink(n *html.Node, base *url.URL) (Package, bool) {
	u, err := base.Parse(attr(n, "href"))
	if err != nil {
		return Package{}, false
	}
	id := u.Query().Get("package_id")
	if id == "" {
		return Package{}, false
	}
	name := ""
	walk(n, func(c *html.Node) {
		if name == "" && hasClass(c, "select-menu-item-text") {
			name = strings.TrimSpace(text(c))
		}
	})
	if name == "" {
		name = strings.TrimSpace(text(n))
	}
	return Package{ID: id, Name: name}, true
}

// dependentRow extracts "owner/repo" from the repository link of a row.
func dependentRow(row *html.Node) (Dependent, bool) {
	var d Dependent
	walk(row, func(n *html.Node) {
		if d.Name != "" || n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if attr(n, "data-hovercard-type") != "repository" {
			return
		}
		name := strings.Trim(attr(n, "href"), "/")
		if owner, repo, ok := strings.Cut(name, "/"); ok && owner != "" && repo != "" && !strings.Contains(repo, "/") {
			d.Name = name
		}
	})
	return d, d.Name != ""
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func text(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}

func resolve(base *url.URL, href string) string {
	u, err := base.Parse(href)
	if err != nil {
		return ""
	}
	return u.String()
}
