package avatax

import (
	"errors"
	"strings"
	"time"
)

// Protocol selects the wire protocol of the remote tax service endpoint
type Protocol string

const (
	ProtocolREST Protocol = "rest"
	ProtocolSOAP Protocol = "soap"
)

// IsValid checks if the protocol is supported
func (p Protocol) IsValid() bool {
	return p == ProtocolREST || p == ProtocolSOAP
}

// Config holds the connection settings for the remote tax service.
// Behavioral flags live in the domain settings; this is transport only.
type Config struct {
	// AccountNumber and LicenseKey authenticate against the service.
	AccountNumber string
	LicenseKey    string
	// ServiceURL is the endpoint base URL.
	ServiceURL string
	// Protocol selects the adapter. Empty means detect from the URL once
	// at load time.
	Protocol Protocol
	// Timeout bounds every remote call.
	Timeout time.Duration
	// Verbose logs full request/response payloads. Never enable in
	// production: payloads carry customer addresses.
	Verbose bool
}

// DetectProtocol guesses the protocol from an endpoint URL. Only used while
// normalizing configuration; runtime dispatch goes through the explicit
// Protocol field.
func DetectProtocol(serviceURL string) Protocol {
	if strings.Contains(strings.ToLower(serviceURL), "rest") {
		return ProtocolREST
	}
	return ProtocolSOAP
}

// Normalize fills defaults and resolves the protocol from the URL when it
// was not set explicitly.
func (c *Config) Normalize() {
	c.ServiceURL = strings.TrimRight(strings.TrimSpace(c.ServiceURL), "/")
	if c.Protocol == "" {
		c.Protocol = DetectProtocol(c.ServiceURL)
	}
	if c.Timeout <= 0 {
		c.Timeout = 300 * time.Second
	}
}

// Validate checks the configuration is usable
func (c *Config) Validate() error {
	if c.AccountNumber == "" {
		return errors.New("avatax: account number is required")
	}
	if c.LicenseKey == "" {
		return errors.New("avatax: license key is required")
	}
	if c.ServiceURL == "" {
		return errors.New("avatax: service URL is required")
	}
	if !c.Protocol.IsValid() {
		return errors.New("avatax: protocol must be rest or soap")
	}
	return nil
}
