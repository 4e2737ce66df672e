package diag

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeResolver struct {
	txt   map[string][]string
	mx    map[string][]*net.MX
	hosts map[string][]string
	err   error
}

func (f *fakeResolver) LookupTXT(_ context.Context, name string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.txt[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func (f *fakeResolver) LookupMX(_ context.Context, name string) ([]*net.MX, error) {
	if f.err != nil {
		return nil, f.err
	}
	records, ok := f.mx[name]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: name, IsNotFound: true}
	}
	return records, nil
}

func (f *fakeResolver) LookupHost(_ context.Context, host string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	addrs, ok := f.hosts[host]
	if !ok {
		return nil, &net.DNSError{Err: "no such host", Name: host, IsNotFound: true}
	}
	return addrs, nil
}

func newTestProber(r Resolver) *Prober {
	return NewProberWithResolver("example.com", time.Second, r)
}

func TestCheckSPF(t *testing.T) {
	t.Run("record present", func(t *testing.T) {
		p := newTestProber(&fakeResolver{txt: map[string][]string{
			"example.com": {"some-verification=abc", "v=spf1 include:_spf.example.net ~all"},
		}})
		result := p.CheckSPF(context.Background())
		assert.Equal(t, StatusGood, result.Status)
		assert.Equal(t, "email_spf", result.Test)
	})

	t.Run("record absent", func(t *testing.T) {
		p := newTestProber(&fakeResolver{txt: map[string][]string{
			"example.com": {"some-verification=abc"},
		}})
		result := p.CheckSPF(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
		assert.NotEmpty(t, result.Actions)
	})

	t.Run("prefix must match, not substring", func(t *testing.T) {
		p := newTestProber(&fakeResolver{txt: map[string][]string{
			"example.com": {"note: v=spf1 is not set here"},
		}})
		result := p.CheckSPF(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
	})

	t.Run("lookup error treated as absent", func(t *testing.T) {
		p := newTestProber(&fakeResolver{err: errors.New("dns timeout")})
		result := p.CheckSPF(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
	})
}

func TestCheckDMARC(t *testing.T) {
	t.Run("record present", func(t *testing.T) {
		p := newTestProber(&fakeResolver{txt: map[string][]string{
			"_dmarc.example.com": {"v=DMARC1; p=reject"},
		}})
		result := p.CheckDMARC(context.Background())
		assert.Equal(t, StatusGood, result.Status)
	})

	t.Run("absent is recommended not critical", func(t *testing.T) {
		p := newTestProber(&fakeResolver{})
		result := p.CheckDMARC(context.Background())
		assert.Equal(t, StatusRecommended, result.Status)
		assert.Equal(t, "orange", result.Badge.Color)
	})
}

func TestCheckMX(t *testing.T) {
	t.Run("records present lists hosts with priority", func(t *testing.T) {
		p := newTestProber(&fakeResolver{mx: map[string][]*net.MX{
			"example.com": {
				{Host: "mx1.example.com.", Pref: 10},
				{Host: "mx2.example.com.", Pref: 20},
			},
		}})
		result := p.CheckMX(context.Background())
		assert.Equal(t, StatusGood, result.Status)
		assert.Contains(t, result.Description, "mx1.example.com (priority 10)")
		assert.Contains(t, result.Description, "mx2.example.com (priority 20)")
	})

	t.Run("no records is critical", func(t *testing.T) {
		p := newTestProber(&fakeResolver{})
		result := p.CheckMX(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
	})

	t.Run("empty answer is critical", func(t *testing.T) {
		p := newTestProber(&fakeResolver{mx: map[string][]*net.MX{"example.com": {}}})
		result := p.CheckMX(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
	})
}

func TestCheckDKIM(t *testing.T) {
	t.Run("record present", func(t *testing.T) {
		p := newTestProber(&fakeResolver{txt: map[string][]string{
			"_domainkey.example.com": {"v=DKIM1; k=rsa; p=MIGf..."},
		}})
		result := p.CheckDKIM(context.Background())
		assert.Equal(t, StatusGood, result.Status)
	})

	t.Run("absent mentions selector limitation", func(t *testing.T) {
		p := newTestProber(&fakeResolver{})
		result := p.CheckDKIM(context.Background())
		assert.Equal(t, StatusRecommended, result.Status)
		assert.Contains(t, result.Description, "selector")
	})
}

func TestCheckBlacklists(t *testing.T) {
	t.Run("clean domain", func(t *testing.T) {
		p := newTestProber(&fakeResolver{})
		report := p.CheckBlacklists(context.Background())
		assert.Len(t, report.Checked, 3)
		assert.Empty(t, report.Listed)

		result := p.CheckBlacklist(context.Background())
		assert.Equal(t, StatusGood, result.Status)
	})

	t.Run("listed domain names zone", func(t *testing.T) {
		p := newTestProber(&fakeResolver{hosts: map[string][]string{
			"example.com.dbl.spamhaus.org": {"127.0.1.2"},
		}})
		report := p.CheckBlacklists(context.Background())
		assert.Equal(t, []string{"Spamhaus DBL (dbl.spamhaus.org)"}, report.Listed)

		result := p.CheckBlacklist(context.Background())
		assert.Equal(t, StatusCritical, result.Status)
		assert.Contains(t, result.Description, "Checked 3 blacklists.")
	})

	t.Run("lookup error means not listed", func(t *testing.T) {
		p := newTestProber(&fakeResolver{err: errors.New("dns timeout")})
		report := p.CheckBlacklists(context.Background())
		assert.Empty(t, report.Listed)
	})
}
