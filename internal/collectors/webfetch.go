package collectors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hakim/recongraph/internal/collector"
	"github.com/hakim/recongraph/internal/event"
	"github.com/hakim/recongraph/internal/netutil"
)

// Headers commonly seen from web servers. Anything outside this set is
// reported as a strange header worth a second look.
var expectedHeaders = map[string]struct{}{
	"accept-ranges": {}, "access-control-allow-origin": {}, "age": {},
	"allow": {}, "alt-svc": {}, "cache-control": {}, "connection": {},
	"content-encoding": {}, "content-language": {}, "content-length": {},
	"content-security-policy": {}, "content-type": {}, "date": {},
	"etag": {}, "expires": {}, "keep-alive": {}, "last-modified": {},
	"link": {}, "location": {}, "p3p": {}, "pragma": {},
	"referrer-policy": {}, "server": {}, "set-cookie": {},
	"strict-transport-security": {}, "transfer-encoding": {}, "vary": {},
	"via": {}, "x-content-type-options": {}, "x-frame-options": {},
	"x-powered-by": {}, "x-xss-protection": {},
}

// WebFetch retrieves the landing page of in-scope hosts, reports the server
// headers and page content, and classifies outbound links as internal or
// external to the target.
type WebFetch struct {
	collector.Base
}

func init() {
	Register("webfetch", func() collector.Collector { return &WebFetch{} })
}

func (w *WebFetch) Meta() collector.Meta {
	return collector.Meta{
		Name:       "Web Fetcher",
		Summary:    "Fetches the front page of discovered hosts, analyzing headers and extracting links.",
		UseCases:   []string{"Footprint", "Investigate"},
		Categories: []string{"Crawling and Scanning"},
	}
}

func (w *WebFetch) Opts() map[string]any {
	return map[string]any{
		"https":        true,
		"fallbackhttp": true,
		"maxlinks":     128,
	}
}

func (w *WebFetch) OptDescs() map[string]string {
	return map[string]string{
		"https":        "Fetch over HTTPS first.",
		"fallbackhttp": "Retry over plain HTTP when the HTTPS fetch fails.",
		"maxlinks":     "Maximum number of links to report per page.",
	}
}

func (w *WebFetch) Setup(ctx *collector.Context, userOpts map[string]any) error {
	w.Init("webfetch")
	w.Configure(ctx, w.Opts(), userOpts)
	return nil
}

func (w *WebFetch) WatchedEvents() []string {
	return []string{"INTERNET_NAME"}
}

func (w *WebFetch) ProducedEvents() []string {
	return []string{
		"TARGET_WEB_CONTENT",
		"WEBSERVER_BANNER",
		"WEBSERVER_HTTPHEADERS",
		"WEBSERVER_STRANGEHEADER",
		"LINKED_URL_INTERNAL",
		"LINKED_URL_EXTERNAL",
	}
}

func (w *WebFetch) HandleEvent(e *event.Event) error {
	if w.CheckForStop() {
		return nil
	}
	host := strings.ToLower(e.Data)
	if w.AlreadyProcessed(host) {
		return nil
	}

	pageURL, res := w.fetch(host)
	if res == nil {
		return nil
	}
	if res.Err != nil {
		w.Debug("fetch failed", "url", pageURL, "err", res.Err)
		return nil
	}

	w.reportHeaders(res.Headers, pageURL, e)

	if res.Content == "" {
		return nil
	}
	content, err := w.NewEvent("TARGET_WEB_CONTENT", res.Content, e)
	if err == nil {
		content.ActualSource = pageURL
		w.Notify(content)
	}

	maxLinks := w.OptInt("maxlinks")
	for i, link := range netutil.ExtractURLs(pageURL, res.Content) {
		if w.CheckForStop() {
			return nil
		}
		if maxLinks > 0 && i >= maxLinks {
			break
		}
		fqdn := netutil.URLFQDN(link)
		if fqdn == "" {
			continue
		}
		if w.Target().Matches(fqdn, true, false) {
			w.EmitEvent("LINKED_URL_INTERNAL", link, e)
		} else {
			w.EmitEvent("LINKED_URL_EXTERNAL", link, e)
		}
	}
	return nil
}

// fetch tries HTTPS then optionally plain HTTP, returning the first result
// whose transport succeeded.
func (w *WebFetch) fetch(host string) (string, *netutil.FetchResult) {
	ctx, cancel := context.WithTimeout(context.Background(), w.FetchTimeout())
	defer cancel()

	if w.OptBool("https") {
		u := fmt.Sprintf("https://%s/", host)
		res := w.Ctx().Fetcher.FetchURL(ctx, u, nil, "")
		if res.Err == nil {
			return u, res
		}
		if !w.OptBool("fallbackhttp") {
			return u, res
		}
	}
	u := fmt.Sprintf("http://%s/", host)
	return u, w.Ctx().Fetcher.FetchURL(ctx, u, nil, "")
}

// reportHeaders emits the header block as one JSON fact, the Server header
// as the banner, and anything unexpected as a strange header.
func (w *WebFetch) reportHeaders(headers map[string]string, pageURL string, e *event.Event) {
	if len(headers) == 0 {
		return
	}

	if data, err := json.Marshal(headers); err == nil {
		ev, err := w.NewEvent("WEBSERVER_HTTPHEADERS", string(data), e)
		if err == nil {
			ev.ActualSource = pageURL
			w.Notify(ev)
		}
	}

	for name, value := range headers {
		lower := strings.ToLower(name)
		if lower == "server" && value != "" {
			w.EmitEvent("WEBSERVER_BANNER", value, e)
			continue
		}
		if _, known := expectedHeaders[lower]; !known {
			w.EmitEvent("WEBSERVER_STRANGEHEADER", fmt.Sprintf("%s: %s", name, value), e)
		}
	}
}

var _ collector.Collector = (*WebFetch)(nil)
