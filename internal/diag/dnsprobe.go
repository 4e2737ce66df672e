package diag

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"
)

// Resolver is the subset of net.Resolver the probe needs. Injectable
// for tests.
type Resolver interface {
	LookupTXT(ctx context.Context, name string) ([]string, error)
	LookupMX(ctx context.Context, name string) ([]*net.MX, error)
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// blacklistZone is a domain-based DNS blacklist (RBL) to query.
type blacklistZone struct {
	Zone string
	Name string
}

var blacklistZones = []blacklistZone{
	{"dbl.spamhaus.org", "Spamhaus DBL"},
	{"multi.uribl.com", "URIBL Multi"},
	{"black.uribl.com", "URIBL Black"},
}

const blacklistRemovalURL = "https://www.spamhaus.org/domain-block-list/"

// Prober resolves DNS records for a sending domain and classifies the
// presence of SPF, DMARC, MX and DKIM entries plus blacklist hits.
// Resolution failures are classified as "record absent", never raised:
// the probe always returns a definite result.
type Prober struct {
	resolver Resolver
	domain   string
	timeout  time.Duration
}

// NewProber creates a prober for the given domain. A zero timeout
// defaults to 5 seconds per lookup.
func NewProber(domain string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Prober{
		resolver: &net.Resolver{PreferGo: true},
		domain:   domain,
		timeout:  timeout,
	}
}

// NewProberWithResolver creates a prober with a custom resolver.
func NewProberWithResolver(domain string, timeout time.Duration, r Resolver) *Prober {
	p := NewProber(domain, timeout)
	p.resolver = r
	return p
}

// Domain returns the domain under check.
func (p *Prober) Domain() string { return p.domain }

func (p *Prober) lookupTXT(ctx context.Context, name string) []string {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	records, err := p.resolver.LookupTXT(lookupCtx, name)
	if err != nil {
		// NXDOMAIN, timeout, SERVFAIL: all mean "no record" here
		return nil
	}
	return records
}

// CheckSPF reports whether the domain publishes an SPF policy: a TXT
// record whose text begins with "v=spf1".
func (p *Prober) CheckSPF(ctx context.Context) Result {
	result := baseResult("email_spf")

	found := false
	for _, txt := range p.lookupTXT(ctx, p.domain) {
		if strings.HasPrefix(txt, "v=spf1") {
			found = true
			break
		}
	}

	if !found {
		result.setCritical(
			"No SPF record found",
			"Your domain does not have an SPF record set up.",
			Action{Label: "Learn how to set up SPF", URL: "https://www.cloudflare.com/learning/email-security/what-is-spf/"},
		)
		return result
	}

	result.setGood("SPF record is set", "Your domain has an SPF record.")
	return result
}

// CheckDMARC reports whether _dmarc.<domain> publishes a TXT record
// beginning with "v=DMARC1". Absence is recommended, not critical.
func (p *Prober) CheckDMARC(ctx context.Context) Result {
	result := baseResult("email_dmarc")

	found := false
	for _, txt := range p.lookupTXT(ctx, "_dmarc."+p.domain) {
		if strings.HasPrefix(txt, "v=DMARC1") {
			found = true
			break
		}
	}

	if !found {
		result.setRecommended(
			"No DMARC record found",
			"Your domain does not have a DMARC record.",
			Action{Label: "Learn how to set up DMARC", URL: "https://www.cloudflare.com/learning/email-security/dmarc-what-is-it-how-does-it-work/"},
		)
		return result
	}

	result.setGood("DMARC record is set", "Your domain has a DMARC record.")
	return result
}

// CheckMX reports whether the domain has MX records, enumerating them
// in the description when present.
func (p *Prober) CheckMX(ctx context.Context) Result {
	result := baseResult("email_mx")

	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	records, err := p.resolver.LookupMX(lookupCtx, p.domain)
	if err != nil || len(records) == 0 {
		result.setCritical(
			"No MX records found",
			"Your domain does not have MX records set up. This may prevent receiving emails.",
			Action{Label: "Learn how to set up MX records", URL: "https://www.cloudflare.com/learning/dns/dns-records/dns-mx-record/"},
		)
		return result
	}

	entries := make([]string, 0, len(records))
	for _, mx := range records {
		entries = append(entries, fmt.Sprintf("%s (priority %d)", strings.TrimSuffix(mx.Host, "."), mx.Pref))
	}
	result.setGood(
		"MX records are set",
		"Your domain has the following MX records: "+strings.Join(entries, ", ")+".",
	)
	return result
}

// CheckDKIM reports whether _domainkey.<domain> publishes a TXT record
// beginning with "v=DKIM1". The selector is fixed, so provider-specific
// selectors (e.g. default._domainkey) will not be found; the failure
// description points this out.
func (p *Prober) CheckDKIM(ctx context.Context) Result {
	result := baseResult("email_dkim")

	found := false
	for _, txt := range p.lookupTXT(ctx, "_domainkey."+p.domain) {
		if strings.HasPrefix(txt, "v=DKIM1") {
			found = true
			break
		}
	}

	if !found {
		result.setRecommended(
			"No DKIM record found",
			"Your domain does not have a DKIM record set up. DKIM helps authenticate emails and improve deliverability. "+
				"Note: DKIM requires a specific selector (e.g., default._domainkey); check your email provider for the correct selector.",
			Action{Label: "Learn how to set up DKIM", URL: "https://www.cloudflare.com/learning/email-security/dkim/"},
		)
		return result
	}

	result.setGood("DKIM record is set", "Your domain has a DKIM record configured.")
	return result
}

// BlacklistReport lists the blacklist zones checked and those where the
// domain was found.
type BlacklistReport struct {
	Checked []string `json:"checked"`
	Listed  []string `json:"listed"`
}

// CheckBlacklists queries each configured DNS blacklist zone for
// <domain>.<zone>. A non-empty A answer means the domain is listed.
func (p *Prober) CheckBlacklists(ctx context.Context) BlacklistReport {
	report := BlacklistReport{}

	for _, bl := range blacklistZones {
		report.Checked = append(report.Checked, bl.Name)

		lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
		addrs, err := p.resolver.LookupHost(lookupCtx, p.domain+"."+bl.Zone)
		cancel()

		// NXDOMAIN means not listed (the normal case)
		if err == nil && len(addrs) > 0 {
			report.Listed = append(report.Listed, bl.Name+" ("+bl.Zone+")")
		}
	}

	return report
}

// CheckBlacklist classifies the blacklist report into a Result.
func (p *Prober) CheckBlacklist(ctx context.Context) Result {
	report := p.CheckBlacklists(ctx)
	result := baseResult("email_blacklist")

	if len(report.Listed) == 0 {
		result.setGood("Domain not blacklisted", "Your domain is not listed on any checked blacklists.")
		return result
	}

	result.setCritical(
		"Domain blacklisted",
		fmt.Sprintf("Your domain is listed on the following blacklists: %s. Checked %d blacklists.",
			strings.Join(report.Listed, ", "), len(report.Checked)),
		Action{Label: "Learn how to remove from blacklists", URL: blacklistRemovalURL},
	)
	return result
}
