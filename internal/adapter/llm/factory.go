package llm

import (
	"log"
	"os"
	"time"
)

const (
	// EnvGogoMode is the environment variable name for mode selection.
	EnvGogoMode = "GOGO_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewOracle creates an oracle based on the GOGO_MODE environment variable.
// If GOGO_MODE=MOCK, returns a MockOracle; otherwise returns a real Client.
func NewOracle(baseURL, apiKey, model string, temperature float32, timeout time.Duration) Oracle {
	if os.Getenv(EnvGogoMode) == ModeMock {
		log.Println("GOGO_MODE=MOCK detected, using mock oracle")
		return NewMockOracle()
	}
	return NewClient(baseURL, apiKey, model, temperature, timeout)
}
