package diag

import (
	"context"
	"sync"
)

// Check names as they appear in the report map.
const (
	CheckSPF       = "spf"
	CheckDMARC     = "dmarc"
	CheckMX        = "mx"
	CheckDKIM      = "dkim"
	CheckBlacklist = "blacklist"
	CheckProvider  = "provider"
)

// Report is the outcome of a full diagnostics run.
type Report struct {
	Domain  string            `json:"domain"`
	Results map[string]Result `json:"results"`
}

// Healthy reports whether every check passed.
func (r Report) Healthy() bool {
	for _, result := range r.Results {
		if result.Status != StatusGood {
			return false
		}
	}
	return len(r.Results) > 0
}

// Checker runs the full diagnostics suite: DNS probes plus provider
// validation.
type Checker struct {
	prober    *Prober
	validator ProviderValidator
}

// NewChecker composes a checker from a prober and a provider validator.
func NewChecker(prober *Prober, validator ProviderValidator) *Checker {
	return &Checker{prober: prober, validator: validator}
}

// AllChecks runs every check and returns the combined report. The DNS
// probes and the provider validation are independent, so they run
// concurrently.
func (c *Checker) AllChecks(ctx context.Context) Report {
	report := Report{
		Domain:  c.prober.Domain(),
		Results: make(map[string]Result, 6),
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	run := func(name string, check func(context.Context) Result) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result := check(ctx)
			mu.Lock()
			report.Results[name] = result
			mu.Unlock()
		}()
	}

	run(CheckSPF, c.prober.CheckSPF)
	run(CheckDMARC, c.prober.CheckDMARC)
	run(CheckMX, c.prober.CheckMX)
	run(CheckDKIM, c.prober.CheckDKIM)
	run(CheckBlacklist, c.prober.CheckBlacklist)
	run(CheckProvider, c.validator.Validate)
	wg.Wait()

	return report
}

// ProviderCheck runs only the provider validation.
func (c *Checker) ProviderCheck(ctx context.Context) Result {
	return c.validator.Validate(ctx)
}
