package scraper

import (
	"net/url"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

var configToProto = map[string]proto.NetworkResourceType{
	"Image":      proto.NetworkResourceTypeImage,
	"Stylesheet": proto.NetworkResourceTypeStylesheet,
	"Font":       proto.NetworkResourceTypeFont,
	"Media":      proto.NetworkResourceTypeMedia,
	"Script":     proto.NetworkResourceTypeScript,
}

// trackerDomains are analytics and ad hosts that never contribute product
// content. Subdomains match too.
var trackerDomains = map[string]struct{}{
	"doubleclick.net":       {},
	"googlesyndication.com": {},
	"googleadservices.com":  {},
	"google-analytics.com":  {},
	"googletagmanager.com":  {},
	"facebook.net":          {},
	"connect.facebook.net":  {},
	"criteo.com":            {},
	"criteo.net":            {},
	"amazon-adsystem.com":   {},
	"hotjar.com":            {},
	"mixpanel.com":          {},
	"scorecardresearch.com": {},
	"clevertap-prod.com":    {},
	"wzrkt.com":             {},
	"branch.io":             {},
	"app.link":              {},
}

func isTrackerDomain(host string) bool {
	host = strings.ToLower(host)
	for host != "" {
		if _, ok := trackerDomains[host]; ok {
			return true
		}
		idx := strings.IndexByte(host, '.')
		if idx < 0 {
			break
		}
		host = host[idx+1:]
	}
	return false
}

func blockedSet(names []string) map[proto.NetworkResourceType]struct{} {
	blocked := make(map[proto.NetworkResourceType]struct{}, len(names))
	for _, name := range names {
		if rt, ok := configToProto[name]; ok {
			blocked[rt] = struct{}{}
		}
	}
	return blocked
}

// shouldBlock decides a single intercepted request.
func shouldBlock(blocked map[proto.NetworkResourceType]struct{}, rt proto.NetworkResourceType, rawURL string) bool {
	if _, ok := blocked[rt]; ok {
		return true
	}
	if u, err := url.Parse(rawURL); err == nil && isTrackerDomain(u.Hostname()) {
		return true
	}
	return false
}

// setupHijack installs a request interceptor that fails blocked resource
// types and tracker hosts. The caller must Stop the returned router.
func setupHijack(page *rod.Page, blockedTypes []string) *rod.HijackRouter {
	blocked := blockedSet(blockedTypes)

	router := page.HijackRequests()
	_ = router.Add("*", "", func(ctx *rod.Hijack) {
		if shouldBlock(blocked, ctx.Request.Type(), ctx.Request.URL().String()) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	// Run blocks until Stop.
	go router.Run()

	return router
}
