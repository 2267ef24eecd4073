package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient permite tests sin llamar a un LLM real.
type MockClient struct {
	Response  string
	Embedding []float32
	Err       error
}

func (m *MockClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	return m.Response, m.Err
}

func (m *MockClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Embedding != nil {
		return m.Embedding, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

// ScriptedClient devuelve respuestas en orden segun un selector por prompt;
// util para pipelines que hacen varias llamadas distintas en un turno.
type ScriptedClient struct {
	mu sync.Mutex
	// Responses mapea una subcadena del prompt a la respuesta a devolver.
	Responses map[string]string
	// Fallback se usa cuando ningun selector matchea.
	Fallback string
	Err      error
	// Prompts registra cada prompt recibido, en orden.
	Prompts []string
}

func (s *ScriptedClient) Complete(ctx context.Context, prompt string, opts Options) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Prompts = append(s.Prompts, prompt)
	if s.Err != nil {
		return "", s.Err
	}
	lower := strings.ToLower(prompt)
	for marker, resp := range s.Responses {
		if strings.Contains(lower, strings.ToLower(marker)) {
			return resp, nil
		}
	}
	return s.Fallback, nil
}

func (s *ScriptedClient) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}
