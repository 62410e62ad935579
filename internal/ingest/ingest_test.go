package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gapscan/gapscan/internal/chunker"
	"github.com/gapscan/gapscan/internal/embedding"
	"github.com/gapscan/gapscan/internal/llm"
	"github.com/gapscan/gapscan/internal/vector"
)

// hashProvider embeds each text as a fixed-dimension vector derived from its
// length, and records batch sizes to verify batching.
type hashProvider struct {
	batches  [][]string
	embedErr error
}

func (h *hashProvider) Complete(_ context.Context, _ *llm.Prompt, _ *llm.RequestOptions) (*llm.Response, error) {
	return &llm.Response{Content: "ok"}, nil
}

func (h *hashProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if h.embedErr != nil {
		return nil, h.embedErr
	}
	h.batches = append(h.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), 1}
	}
	return out, nil
}

func (h *hashProvider) Name() string { return "hash" }

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestRun_FullPipeline(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"access.txt":  "Access is restricted.\n\nPasswords rotate quarterly.\n",
		"network.txt": "Firewalls guard the perimeter.\n",
	})

	p := &hashProvider{}
	idx := vector.NewMemoryIndex()
	pipe := New(embedding.NewGateway(p), idx)

	res, err := pipe.Run(context.Background(), Config{DataDir: dir, Collection: "c"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.Documents != 2 || res.Statements != 3 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Dimension != 2 {
		t.Fatalf("expected dimension 2, got %d", res.Dimension)
	}

	count, err := idx.Count(context.Background(), "c")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 indexed statements, got %d", count)
	}
}

func TestRun_RepeatIsIdempotent(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy.txt": "one\ntwo\nthree\n",
	})

	p := &hashProvider{}
	idx := vector.NewMemoryIndex()
	pipe := New(embedding.NewGateway(p), idx)

	for i := 0; i < 2; i++ {
		if _, err := pipe.Run(context.Background(), Config{DataDir: dir, Collection: "c"}); err != nil {
			t.Fatalf("run %d: %v", i+1, err)
		}
	}

	count, _ := idx.Count(context.Background(), "c")
	if count != 3 {
		t.Fatalf("rebuild must replace, not append: got %d", count)
	}
}

func TestRun_BatchesEmbeddings(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy.txt": "a\nb\nc\nd\ne\n",
	})

	p := &hashProvider{}
	pipe := New(embedding.NewGateway(p), vector.NewMemoryIndex())

	if _, err := pipe.Run(context.Background(), Config{DataDir: dir, Collection: "c", BatchSize: 2}); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(p.batches) != 3 {
		t.Fatalf("expected 3 batches of size <=2, got %d", len(p.batches))
	}
	if len(p.batches[0]) != 2 || len(p.batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %d, %d, %d",
			len(p.batches[0]), len(p.batches[1]), len(p.batches[2]))
	}
}

func TestRun_EmptyCorpus(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"blank.txt": "\n   \n\n",
	})

	pipe := New(embedding.NewGateway(&hashProvider{}), vector.NewMemoryIndex())

	_, err := pipe.Run(context.Background(), Config{DataDir: dir, Collection: "c"})
	if !errors.Is(err, chunker.ErrEmptyCorpus) {
		t.Fatalf("got %v, want ErrEmptyCorpus", err)
	}
}

func TestRun_MissingDataDir(t *testing.T) {
	pipe := New(embedding.NewGateway(&hashProvider{}), vector.NewMemoryIndex())

	_, err := pipe.Run(context.Background(), Config{DataDir: "/nonexistent/policies", Collection: "c"})
	if err == nil {
		t.Fatal("expected error for missing data directory")
	}
}

func TestRun_ProviderFailureLeavesIndexUntouched(t *testing.T) {
	dir := writeCorpus(t, map[string]string{
		"policy.txt": "one\ntwo\n",
	})

	good := &hashProvider{}
	idx := vector.NewMemoryIndex()
	if _, err := New(embedding.NewGateway(good), idx).Run(context.Background(),
		Config{DataDir: dir, Collection: "c"}); err != nil {
		t.Fatalf("seed run: %v", err)
	}

	bad := &hashProvider{embedErr: errors.New("backend down")}
	_, err := New(embedding.NewGateway(bad), idx).Run(context.Background(),
		Config{DataDir: dir, Collection: "c"})
	if err == nil {
		t.Fatal("expected embed failure")
	}

	// The failed run must not have reset the existing collection.
	count, err := idx.Count(context.Background(), "c")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Fatalf("failed run corrupted the index: count %d", count)
	}
}
