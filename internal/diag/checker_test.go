package diag

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticValidator struct {
	result Result
}

func (v *staticValidator) Name() string { return "static" }

func (v *staticValidator) Validate(_ context.Context) Result { return v.result }

func goodProviderResult() Result {
	result := providerResult()
	result.setGood("Mail provider configuration is valid", "ok")
	return result
}

func healthyResolver() *fakeResolver {
	return &fakeResolver{
		txt: map[string][]string{
			"example.com":            {"v=spf1 -all"},
			"_dmarc.example.com":     {"v=DMARC1; p=none"},
			"_domainkey.example.com": {"v=DKIM1; k=rsa; p=abc"},
		},
		mx: map[string][]*net.MX{
			"example.com": {{Host: "mx.example.com.", Pref: 10}},
		},
	}
}

func TestAllChecks(t *testing.T) {
	prober := NewProberWithResolver("example.com", time.Second, healthyResolver())
	checker := NewChecker(prober, &staticValidator{result: goodProviderResult()})

	report := checker.AllChecks(context.Background())

	assert.Equal(t, "example.com", report.Domain)
	assert.Len(t, report.Results, 6)
	for _, name := range []string{CheckSPF, CheckDMARC, CheckMX, CheckDKIM, CheckBlacklist, CheckProvider} {
		result, ok := report.Results[name]
		assert.True(t, ok, "missing check %q", name)
		assert.Equal(t, StatusGood, result.Status, "check %q", name)
	}
	assert.True(t, report.Healthy())
}

func TestAllChecksUnhealthy(t *testing.T) {
	prober := NewProberWithResolver("example.com", time.Second, &fakeResolver{})
	checker := NewChecker(prober, &staticValidator{result: goodProviderResult()})

	report := checker.AllChecks(context.Background())

	assert.False(t, report.Healthy())
	assert.Equal(t, StatusCritical, report.Results[CheckSPF].Status)
	assert.Equal(t, StatusRecommended, report.Results[CheckDMARC].Status)
}

func TestReportHealthyEmpty(t *testing.T) {
	assert.False(t, Report{}.Healthy())
}

func TestProviderCheck(t *testing.T) {
	prober := NewProberWithResolver("example.com", time.Second, &fakeResolver{})
	want := goodProviderResult()
	checker := NewChecker(prober, &staticValidator{result: want})

	assert.Equal(t, want, checker.ProviderCheck(context.Background()))
}
