package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/html"
)

// maxBodyBytes caps how much of a page is read
const maxBodyBytes = 4 << 20

// ErrBlockedAddress is returned when a page resolves to a loopback, private,
// link-local or otherwise internal address
var ErrBlockedAddress = errors.New("address not allowed")

// ArticlePreview holds the attributes an editor can prefill from a page
type ArticlePreview struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Media       string     `json:"media"`
	PublishedAt *time.Time `json:"published_at"`
}

// MetadataExtractor fetches article pages and reads their metadata. Only
// public addresses are dialed, redirects and DNS answers included.
type MetadataExtractor struct {
	httpClient   *http.Client
	allowPrivate bool
}

// NewMetadataExtractor creates a new metadata extractor
func NewMetadataExtractor() *MetadataExtractor {
	me := &MetadataExtractor{}

	dialer := &net.Dialer{
		Timeout: 5 * time.Second,
		Control: me.checkAddress,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	me.httpClient = &http.Client{
		Timeout:   15 * time.Second,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	return me
}

// AllowPrivateNetworks lifts the address filter, for local development
func (me *MetadataExtractor) AllowPrivateNetworks() *MetadataExtractor {
	me.allowPrivate = true
	return me
}

// checkAddress runs on every dial with the resolved ip:port
func (me *MetadataExtractor) checkAddress(network, address string, _ syscall.RawConn) error {
	if me.allowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublic(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, host)
	}
	return nil
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}

// Preview fetches articleURL and extracts a preview of its attributes
func (me *MetadataExtractor) Preview(ctx context.Context, articleURL string) (*ArticlePreview, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "PressClippings/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := me.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	preview, err := Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	preview.URL = resp.Request.URL.String()
	return preview, nil
}

// Parse reads a preview from an HTML document. Open Graph tags win over
// JSON-LD, which wins over plain <title> and <meta name> tags.
func Parse(r io.Reader) (*ArticlePreview, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	p := &ArticlePreview{}
	meta := collectMeta(doc)

	p.Title = first(meta["og:title"], meta["twitter:title"])
	p.Description = first(meta["og:description"], meta["description"])
	p.Media = meta["og:site_name"]
	p.PublishedAt = parseTime(first(meta["article:published_time"], meta["article:published"]))

	for _, block := range scriptBlocks(doc, "application/ld+json") {
		fromJSONLD(block, p)
	}

	if p.Title == "" {
		p.Title = strings.TrimSpace(textOf(findElement(doc, "title")))
	}
	return p, nil
}

// collectMeta maps meta property or name attributes to their content; the
// first occurrence of a key wins
func collectMeta(doc *html.Node) map[string]string {
	out := map[string]string{}
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return
		}
		var key, content string
		for _, attr := range n.Attr {
			switch attr.Key {
			case "property", "name":
				key = strings.ToLower(attr.Val)
			case "content":
				content = strings.TrimSpace(attr.Val)
			}
		}
		if key != "" && content != "" {
			if _, seen := out[key]; !seen {
				out[key] = content
			}
		}
	})
	return out
}

func scriptBlocks(doc *html.Node, scriptType string) []string {
	var blocks []string
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "script" {
			return
		}
		for _, attr := range n.Attr {
			if attr.Key == "type" && attr.Val == scriptType && n.FirstChild != nil {
				blocks = append(blocks, n.FirstChild.Data)
			}
		}
	})
	return blocks
}

// fromJSONLD fills fields still empty from NewsArticle/Article objects
func fromJSONLD(text string, p *ArticlePreview) {
	var data interface{}
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return
	}

	var visit func(interface{})
	visit = func(item interface{}) {
		switch v := item.(type) {
		case []interface{}:
			for _, sub := range v {
				visit(sub)
			}
		case map[string]interface{}:
			if graph, ok := v["@graph"]; ok {
				visit(graph)
			}
			if t, _ := v["@type"].(string); t != "NewsArticle" && t != "Article" {
				return
			}
			if headline, ok := v["headline"].(string); ok && p.Title == "" {
				p.Title = strings.TrimSpace(headline)
			}
			if description, ok := v["description"].(string); ok && p.Description == "" {
				p.Description = strings.TrimSpace(description)
			}
			if publisher, ok := v["publisher"].(map[string]interface{}); ok && p.Media == "" {
				if name, ok := publisher["name"].(string); ok {
					p.Media = strings.TrimSpace(name)
				}
			}
			if published, ok := v["datePublished"].(string); ok && p.PublishedAt == nil {
				p.PublishedAt = parseTime(published)
			}
		}
	}
	visit(data)
}

func parseTime(s string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func findElement(doc *html.Node, tag string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag {
			found = n
		}
	})
	return found
}

func textOf(n *html.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	})
	return b.String()
}

func first(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
