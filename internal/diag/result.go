// Package diag implements the deliverability diagnostics: DNS record
// probes (SPF, DMARC, MX, DKIM), DNS blacklist checks, and mail-provider
// credential validation, composed into a single health report.
package diag

// Status classifies a diagnostic outcome.
type Status string

const (
	// StatusGood means the check passed.
	StatusGood Status = "good"
	// StatusRecommended means the check found a non-critical gap.
	StatusRecommended Status = "recommended"
	// StatusCritical means the check found a problem likely to break
	// deliverability.
	StatusCritical Status = "critical"
)

// Badge is the visual tag attached to a result.
type Badge struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Action is a remediation link attached to a failing result.
type Action struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

// Result is a single diagnostic outcome. Results are transient: every
// check invocation produces a fresh one.
type Result struct {
	Test        string   `json:"test"`
	Status      Status   `json:"status"`
	Label       string   `json:"label"`
	Description string   `json:"description"`
	Actions     []Action `json:"actions,omitempty"`
	Badge       Badge    `json:"badge"`
}

func baseResult(test string) Result {
	return Result{
		Test:  test,
		Badge: Badge{Label: "Email", Color: "blue"},
	}
}

func (r *Result) setGood(label, description string) {
	r.Status = StatusGood
	r.Label = label
	r.Description = description
}

func (r *Result) setRecommended(label, description string, actions ...Action) {
	r.Status = StatusRecommended
	r.Label = label
	r.Description = description
	r.Actions = actions
	r.Badge.Color = "orange"
}

func (r *Result) setCritical(label, description string, actions ...Action) {
	r.Status = StatusCritical
	r.Label = label
	r.Description = description
	r.Actions = actions
	r.Badge.Color = "red"
}
