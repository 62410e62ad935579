package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubProvider struct {
	name        string
	completeErr error
	content     string
	calls       int
}

func (s *stubProvider) Complete(_ context.Context, _ *Prompt, _ *RequestOptions) (*Response, error) {
	s.calls++
	if s.completeErr != nil {
		return nil, s.completeErr
	}
	return &Response{Content: s.content}, nil
}

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func (s *stubProvider) Name() string { return s.name }

func TestFactoryCreate_NoneProvider(t *testing.T) {
	f := NewFactory()

	for _, name := range []string{"", "none"} {
		p, err := f.Create(ProviderConfig{Provider: name})
		if err != nil {
			t.Fatalf("provider %q: unexpected error: %v", name, err)
		}
		if p != nil {
			t.Fatalf("provider %q: expected nil provider", name)
		}
	}
}

func TestFactoryCreate_UnknownProvider(t *testing.T) {
	f := NewFactory()
	f.Register("openai", func(cfg ProviderConfig) (Provider, error) {
		return &stubProvider{name: "openai"}, nil
	})

	_, err := f.Create(ProviderConfig{Provider: "mystery"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFactoryCreate_WrapsWithRetry(t *testing.T) {
	f := NewFactory()
	f.Register("stub", func(cfg ProviderConfig) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "stub", MaxRetries: 2, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*RetryProvider); !ok {
		t.Fatalf("expected RetryProvider wrapper, got %T", p)
	}
	if p.Name() != "stub" {
		t.Errorf("wrapper should delegate Name, got %q", p.Name())
	}
}

func TestFactoryCreate_WrapsWithRateLimit(t *testing.T) {
	f := NewFactory()
	f.Register("stub", func(cfg ProviderConfig) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	})

	p, err := f.Create(ProviderConfig{Provider: "stub", RequestsPerMinute: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := p.(*RateLimitProvider); !ok {
		t.Fatalf("expected RateLimitProvider wrapper, got %T", p)
	}
}

func TestFactoryCreate_ConstructorError(t *testing.T) {
	f := NewFactory()
	boom := errors.New("bad credentials")
	f.Register("stub", func(cfg ProviderConfig) (Provider, error) {
		return nil, boom
	})

	_, err := f.Create(ProviderConfig{Provider: "stub"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected constructor error, got %v", err)
	}
}

func TestPing_Success(t *testing.T) {
	p := &stubProvider{name: "stub", content: "Hello"}
	if err := Ping(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 1 {
		t.Errorf("expected 1 completion call, got %d", p.calls)
	}
}

func TestPing_Unavailable(t *testing.T) {
	p := &stubProvider{name: "stub", completeErr: errors.New("connection refused")}
	err := Ping(context.Background(), p)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestPing_NilProvider(t *testing.T) {
	if err := Ping(context.Background(), nil); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatal("expected ErrProviderUnavailable for nil provider")
	}
}
