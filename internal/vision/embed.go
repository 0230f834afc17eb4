package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
	"gonum.org/v1/gonum/floats"
)

// EmbedderConfig describes a face embedding model with a 1x3xHxW input.
type EmbedderConfig struct {
	ModelPath  string
	InputName  string
	OutputName string
	InputSize  int
	Dim        int
}

// Embedder extracts L2-normalised face embeddings.
type Embedder struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	size    int
	dim     int
}

func NewEmbedder(cfg EmbedderConfig, opts *ort.SessionOptions) (*Embedder, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, int64(cfg.InputSize), int64(cfg.InputSize)))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(cfg.Dim)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.Value{input},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create embedder session: %w", err)
	}

	return &Embedder{session: session, input: input, output: output, size: cfg.InputSize, dim: cfg.Dim}, nil
}

// Extract embeds one face crop preprocessed to the model's input size.
func (e *Embedder) Extract(chw []float32) ([]float32, error) {
	copy(e.input.GetData(), chw)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("run embedding: %w", err)
	}

	emb := make([]float32, e.dim)
	copy(emb, e.output.GetData())
	normalize(emb)
	return emb, nil
}

func (e *Embedder) Dim() int { return e.dim }

func (e *Embedder) Close() {
	if e.session != nil {
		e.session.Destroy()
	}
	e.input.Destroy()
	e.output.Destroy()
}

// normalize scales v to unit length in place. A zero vector is left as is.
func normalize(v []float32) {
	w := make([]float64, len(v))
	for i, x := range v {
		w[i] = float64(x)
	}
	n := floats.Norm(w, 2)
	if n == 0 {
		return
	}
	for i := range v {
		v[i] = float32(w[i] / n)
	}
}
