package avatax

import (
	"fmt"

	"github.com/erp/taxconnector/internal/domain/tax"
	"go.uber.org/zap"
)

// NewCalculator builds the protocol adapter selected by the configuration
func NewCalculator(config Config, logger *zap.Logger) (tax.Calculator, error) {
	config.Normalize()
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Protocol {
	case ProtocolREST:
		return NewRESTAdapter(config, logger), nil
	case ProtocolSOAP:
		return NewSOAPAdapter(config, logger), nil
	default:
		return nil, fmt.Errorf("avatax: unsupported protocol %q", config.Protocol)
	}
}
