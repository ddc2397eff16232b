// Package embedder provides two ports.Embedder
// adapters, one backed by an OpenAI-compatible embeddings endpoint and one
// deterministic hash-based embedder for tests and offline development.
package embedder

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ragserver/internal/config"
)

// Client is an Embedder backed by an OpenAI-compatible /embeddings endpoint.
type Client struct {
	sdk   sdk.Client
	model string
	dim   int
}

func New(cfg config.EmbeddingConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{
		sdk:   sdk.NewClient(opts...),
		model: cfg.Model,
		dim:   cfg.Dimension,
	}
}

func (c *Client) Dimension() int { return c.dim }

func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	copy(inputs, texts)
	resp, err := c.sdk.Embeddings.New(ctx, sdk.EmbeddingNewParams{
		Model: sdk.EmbeddingModel(c.model),
		Input: sdk.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response size mismatch: got %d want %d", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		out[i] = vec
	}
	return out, nil
}

// Deterministic is a lightweight, deterministic Embedder suitable for tests
// and local runs with no embedding endpoint configured. It feature-hashes
// words (lowercased runs of ASCII letters and digits) into a fixed-size
// vector and optionally L2-normalizes.
type Deterministic struct {
	dim       int
	normalize bool
	seed      uint64
}

func NewDeterministic(dim int, normalize bool, seed uint64) *Deterministic {
	if dim <= 0 {
		dim = 64
	}
	return &Deterministic{dim: dim, normalize: normalize, seed: seed}
}

func (d *Deterministic) Dimension() int { return d.dim }

func (d *Deterministic) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = d.embedOne(t)
	}
	return out, nil
}

// embedOne hashes s into a fixed-width vector using the feature-hashing
// trick: every lowercase word is routed into two buckets by two
// independently-seeded FNV-32a hashes, each contributing a signed unit
// weight, so collisions partially cancel instead of compounding in a
// single bucket. A word shorter than 2 bytes still gets one bucket to
// avoid dropping one-character tokens entirely.
func (d *Deterministic) embedOne(s string) []float32 {
	v := make([]float32, d.dim)
	words := splitWords(s)
	for _, w := range words {
		i1, s1 := d.bucket(w, 0x9e3779b1)
		v[i1] += s1
		if len(w) >= 2 {
			i2, s2 := d.bucket(w, 0x85ebca77)
			v[i2] += s2
		}
	}
	if d.normalize {
		normalizeL2(v)
	}
	return v
}

// bucket hashes token under salt (mixed with the embedder's seed) and
// returns a bucket index plus a +1/-1 weight derived from a separate bit
// of the same digest, so sign and placement don't correlate.
func (d *Deterministic) bucket(token string, salt uint32) (int, float32) {
	h := fnv.New32a()
	var seedBytes [12]byte
	binary.LittleEndian.PutUint64(seedBytes[0:8], d.seed)
	binary.LittleEndian.PutUint32(seedBytes[8:12], salt)
	_, _ = h.Write(seedBytes[:])
	_, _ = h.Write([]byte(token))
	hv := h.Sum32()
	idx := int(hv % uint32(d.dim))
	sign := float32(1)
	if hv&(1<<17) != 0 {
		sign = -1
	}
	return idx, sign
}

// splitWords lowercases s and splits it on anything that isn't an ASCII
// letter or digit, dropping empty tokens. A non-empty s with no such
// characters becomes a single token holding s unchanged.
func splitWords(s string) []string {
	var out []string
	var cur []byte
	flush := func() {
		if len(cur) > 0 {
			out = append(out, string(cur))
			cur = cur[:0]
		}
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			cur = append(cur, byte(r))
		case r >= 'A' && r <= 'Z':
			cur = append(cur, byte(r-'A'+'a'))
		default:
			flush()
		}
	}
	flush()
	if len(out) == 0 && len(s) > 0 {
		out = append(out, s)
	}
	return out
}

func normalizeL2(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
