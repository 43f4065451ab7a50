package embedding

import "fmt"

// Supported embedding providers.
const (
	ProviderMock = "mock"
	ProviderONNX = "onnx"
)

// ONNXConfig configures NewONNXEmbedder.
type ONNXConfig struct {
	ModelPath  string
	Dimensions int
	MaxTokens  int
	CacheSize  int
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	if c.CacheSize <= 0 {
		c.CacheSize = 10000
	}
	return c
}

// New creates an embedder for provider. A positive cacheSize wraps the mock provider
// in an LRU cache; the ONNX provider always caches.
func New(provider string, cfg ONNXConfig) (Embedder, error) {
	switch provider {
	case ProviderMock, "":
		mock := NewMockEmbedder(cfg.Dimensions)
		if cfg.CacheSize <= 0 {
			return mock, nil
		}
		cached, err := WithCache(mock, cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	case ProviderONNX:
		if cfg.ModelPath == "" {
			return nil, fmt.Errorf("onnx provider needs a model path")
		}
		e, err := NewONNXEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: %s, %s)", provider, ProviderMock, ProviderONNX)
	}
}
