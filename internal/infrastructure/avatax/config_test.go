package avatax

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetectProtocol(t *testing.T) {
	tests := []struct {
		url  string
		want Protocol
	}{
		{"https://rest.avatax.com", ProtocolREST},
		{"https://sandbox-rest.avatax.com/api/v2", ProtocolREST},
		{"https://REST.AVATAX.COM", ProtocolREST},
		{"https://avatax.avalara.net", ProtocolSOAP},
		{"https://development.avalara.net/tax/taxsvc.asmx", ProtocolSOAP},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProtocol(tt.url))
		})
	}
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{ServiceURL: " https://rest.avatax.com/ "}
	cfg.Normalize()
	assert.Equal(t, "https://rest.avatax.com", cfg.ServiceURL)
	assert.Equal(t, ProtocolREST, cfg.Protocol)
	assert.Equal(t, 300*time.Second, cfg.Timeout)

	// An explicit protocol is never second-guessed from the URL
	cfg = Config{ServiceURL: "https://rest.avatax.com", Protocol: ProtocolSOAP}
	cfg.Normalize()
	assert.Equal(t, ProtocolSOAP, cfg.Protocol)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		AccountNumber: "2000000001",
		LicenseKey:    "secret",
		ServiceURL:    "https://rest.avatax.com",
		Protocol:      ProtocolREST,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing account", func(c *Config) { c.AccountNumber = "" }},
		{"missing license", func(c *Config) { c.LicenseKey = "" }},
		{"missing url", func(c *Config) { c.ServiceURL = "" }},
		{"bad protocol", func(c *Config) { c.Protocol = "grpc" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewCalculatorDispatch(t *testing.T) {
	logger := zap.NewNop()

	calc, err := NewCalculator(Config{
		AccountNumber: "2000000001",
		LicenseKey:    "secret",
		ServiceURL:    "https://rest.avatax.com",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &RESTAdapter{}, calc)

	calc, err = NewCalculator(Config{
		AccountNumber: "2000000001",
		LicenseKey:    "secret",
		ServiceURL:    "https://avatax.avalara.net",
	}, logger)
	require.NoError(t, err)
	assert.IsType(t, &SOAPAdapter{}, calc)

	_, err = NewCalculator(Config{}, logger)
	require.Error(t, err)
}
