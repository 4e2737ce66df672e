package diag

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/librevious/deliverability-checker/internal/config"
)

// HTTPDoer executes a single HTTP request. *http.Client satisfies it;
// tests substitute their own.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ProviderValidator checks that the configured mail provider's
// credentials actually work, typically by calling a cheap authenticated
// endpoint on the provider's API.
type ProviderValidator interface {
	// Name returns the provider identifier (e.g. "sendgrid").
	Name() string
	// Validate performs the credential check and returns a Result.
	// Validators never return errors: every failure mode maps to a
	// Result status.
	Validate(ctx context.Context) Result
}

// NewProviderValidator builds the validator for the configured mailer.
// Unknown mailer names get the generic validator; "none" gets a
// validator that always recommends configuring a provider.
//
// The default client makes a single attempt with a bounded timeout.
// Validation is a diagnostic, not a delivery path; one probe per check
// is the contract.
func NewProviderValidator(cfg config.ProviderConfig, client HTTPDoer) ProviderValidator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	switch cfg.Mailer {
	case "sendgrid":
		return &SendGridValidator{cfg: cfg.SendGrid, client: client}
	case "mailgun":
		return &MailgunValidator{cfg: cfg.Mailgun, client: client}
	case "brevo":
		return &BrevoValidator{cfg: cfg.Brevo, client: client}
	case "postmark":
		return &PostmarkValidator{cfg: cfg.Postmark, client: client}
	case "smtp":
		return &SMTPValidator{cfg: cfg.SMTP}
	case "gmail":
		return &OAuthValidator{name: "gmail", cfg: cfg.Gmail}
	case "outlook":
		return &OAuthValidator{name: "outlook", cfg: cfg.Outlook}
	case "none", "default", "":
		return &NoneValidator{}
	default:
		return &GenericValidator{name: cfg.Mailer, settings: cfg.Other}
	}
}

func providerResult() Result {
	return baseResult("email_provider_config")
}

func validConfig(name string) Result {
	result := providerResult()
	result.setGood(
		"Mail provider configuration is valid",
		fmt.Sprintf("Your %s configuration is valid.", name),
	)
	return result
}

func invalidConfig(name, detail string) Result {
	result := providerResult()
	result.setCritical(
		"Mail provider configuration is invalid",
		fmt.Sprintf("Your %s configuration appears to be invalid: %s", name, detail),
		Action{Label: "Review provider settings", URL: "https://app.example.com/settings/mailer"},
	)
	return result
}

// probeEndpoint performs an authenticated GET and classifies the
// outcome. Only a 200 passes; a non-200 status and a network failure
// are both invalid, since either way the credentials could not be
// validated.
func probeEndpoint(ctx context.Context, client HTTPDoer, name, url string, auth func(*http.Request)) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return invalidConfig(name, err.Error())
	}
	auth(req)

	resp, err := client.Do(req)
	if err != nil {
		return invalidConfig(name, fmt.Sprintf("unable to validate (%v)", err))
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusOK {
		return validConfig(name)
	}
	return invalidConfig(name, fmt.Sprintf("API returned status %d", resp.StatusCode))
}

// SendGridValidator verifies a SendGrid API key against the account
// endpoint.
type SendGridValidator struct {
	cfg    config.SendGridConfig
	client HTTPDoer
}

func (v *SendGridValidator) Name() string { return "sendgrid" }

func (v *SendGridValidator) Validate(ctx context.Context) Result {
	if v.cfg.APIKey == "" {
		return invalidConfig("SendGrid", "API key is not set")
	}
	return probeEndpoint(ctx, v.client, "SendGrid", v.cfg.BaseURL+"/v3/user/account", func(req *http.Request) {
		req.Header.Set("Authorization", "Bearer "+v.cfg.APIKey)
	})
}

// MailgunValidator verifies a Mailgun API key and domain via the
// domains endpoint with HTTP basic auth (username "api").
type MailgunValidator struct {
	cfg    config.MailgunConfig
	client HTTPDoer
}

func (v *MailgunValidator) Name() string { return "mailgun" }

func (v *MailgunValidator) Validate(ctx context.Context) Result {
	if v.cfg.APIKey == "" {
		return invalidConfig("Mailgun", "API key is not set")
	}
	if v.cfg.Domain == "" {
		return invalidConfig("Mailgun", "sending domain is not set")
	}
	basic := base64.StdEncoding.EncodeToString([]byte("api:" + v.cfg.APIKey))
	return probeEndpoint(ctx, v.client, "Mailgun", v.cfg.BaseURL+"/v3/domains/"+v.cfg.Domain, func(req *http.Request) {
		req.Header.Set("Authorization", "Basic "+basic)
	})
}

// BrevoValidator verifies a Brevo API key against the account endpoint.
type BrevoValidator struct {
	cfg    config.BrevoConfig
	client HTTPDoer
}

func (v *BrevoValidator) Name() string { return "brevo" }

func (v *BrevoValidator) Validate(ctx context.Context) Result {
	if v.cfg.APIKey == "" {
		return invalidConfig("Brevo", "API key is not set")
	}
	return probeEndpoint(ctx, v.client, "Brevo", v.cfg.BaseURL+"/v3/account", func(req *http.Request) {
		req.Header.Set("api-key", v.cfg.APIKey)
	})
}

// PostmarkValidator verifies a Postmark server token against the server
// endpoint.
type PostmarkValidator struct {
	cfg    config.PostmarkConfig
	client HTTPDoer
}

func (v *PostmarkValidator) Name() string { return "postmark" }

func (v *PostmarkValidator) Validate(ctx context.Context) Result {
	if v.cfg.APIKey == "" {
		return invalidConfig("Postmark", "server token is not set")
	}
	return probeEndpoint(ctx, v.client, "Postmark", v.cfg.BaseURL+"/server", func(req *http.Request) {
		req.Header.Set("X-Postmark-Server-Token", v.cfg.APIKey)
	})
}

// SMTPValidator verifies raw SMTP settings by opening a connection to
// the configured host. For "ssl" encryption the connection is a TLS
// handshake; otherwise a plain TCP dial (STARTTLS happens after the
// banner, so a TCP connect is the most we can verify cheaply).
type SMTPValidator struct {
	cfg config.SMTPProbeConfig

	// dialTimeout overridable in tests
	dialTimeout time.Duration
}

func (v *SMTPValidator) Name() string { return "smtp" }

func (v *SMTPValidator) Validate(ctx context.Context) Result {
	if v.cfg.Host == "" {
		return invalidConfig("SMTP", "SMTP host not set.")
	}

	// Submission port 587 only applies to STARTTLS; everything else
	// defaults to plain SMTP on 25.
	port := v.cfg.Port
	if port == 0 {
		port = 25
		if strings.EqualFold(v.cfg.Encryption, "tls") {
			port = 587
		}
	}
	addr := net.JoinHostPort(v.cfg.Host, strconv.Itoa(port))

	timeout := v.dialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var (
		conn net.Conn
		err  error
	)
	dialer := &net.Dialer{Timeout: timeout}
	if strings.EqualFold(v.cfg.Encryption, "ssl") {
		tlsDialer := &tls.Dialer{NetDialer: dialer}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return invalidConfig("SMTP", fmt.Sprintf("could not connect to %s: %v", addr, err))
	}
	conn.Close()

	return validConfig("SMTP")
}

// OAuthValidator checks an OAuth mailer (Gmail, Outlook) for a live
// access token. It does not call the provider: token presence and
// expiry are the signal.
type OAuthValidator struct {
	name string
	cfg  config.OAuthMailerConfig
}

func (v *OAuthValidator) Name() string { return v.name }

func (v *OAuthValidator) displayName() string {
	switch v.name {
	case "gmail":
		return "Gmail"
	case "outlook":
		return "Outlook"
	default:
		return v.name
	}
}

func (v *OAuthValidator) Validate(ctx context.Context) Result {
	token := &oauth2.Token{
		AccessToken: v.cfg.AccessToken,
		Expiry:      v.cfg.Expiry,
	}
	if token.Valid() {
		return validConfig(v.displayName())
	}

	result := providerResult()
	result.setRecommended(
		"Mail provider token needs attention",
		fmt.Sprintf("Your %s access token is not set or has expired. Re-authorize to keep sending.", v.name),
		Action{Label: "Re-authorize mailer", URL: "https://app.example.com/settings/mailer"},
	)
	return result
}

// GenericValidator covers providers without a dedicated probe. It only
// checks that the settings look complete; credentials are not verified.
type GenericValidator struct {
	name     string
	settings map[string]string
}

func (v *GenericValidator) Name() string { return v.name }

func (v *GenericValidator) Validate(ctx context.Context) Result {
	complete := len(v.settings) > 0
	for _, val := range v.settings {
		if val == "" {
			complete = false
			break
		}
	}

	result := providerResult()
	if !complete {
		result.setCritical(
			"Mail provider configuration is incomplete",
			fmt.Sprintf("Your %s configuration is missing required settings.", v.name),
		)
		return result
	}

	result.setRecommended(
		"Mail provider configured but not verified",
		fmt.Sprintf("Your %s configuration looks complete, but its credentials cannot be verified automatically. Send a test email to confirm.", v.name),
	)
	return result
}

// NoneValidator is the validator when no mailer is configured.
type NoneValidator struct{}

func (v *NoneValidator) Name() string { return "none" }

func (v *NoneValidator) Validate(ctx context.Context) Result {
	result := providerResult()
	result.setRecommended(
		"No mail provider configured",
		"You have not configured a mail provider. Emails will be sent using the default transport, which often lands in spam.",
		Action{Label: "Configure a mailer", URL: "https://app.example.com/settings/mailer"},
	)
	return result
}
