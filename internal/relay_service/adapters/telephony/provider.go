package telephony

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// NewProvider builds the provider named by name ("vonage" or "mock"). keyPath is
// read for the Vonage voice application key when cfg carries none.
func NewProvider(name string, cfg VonageConfig, keyPath string, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mock":
		logger.Warn("Using mock telephony provider; no messages or calls will leave this process")
		return NewMockProvider(logger, false, 0), nil
	case "vonage", "":
		if len(cfg.PrivateKeyPEM) == 0 && keyPath != "" {
			pem, err := os.ReadFile(keyPath)
			if err != nil {
				return nil, fmt.Errorf("read vonage private key: %w", err)
			}
			cfg.PrivateKeyPEM = pem
		}
		return NewVonageProvider(logger, cfg, nil)
	default:
		return nil, fmt.Errorf("unknown telephony provider %q", name)
	}
}
