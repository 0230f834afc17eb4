package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"path/filepath"
	"time"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attention/internal/config"
	"github.com/your-org/attention/internal/models"
	"github.com/your-org/attention/internal/observability"
)

// ErrNoFace is returned by Embed when the image holds no detectable face.
var ErrNoFace = errors.New("no face detected in image")

// Analyzer turns a frame into face observations: detect, crop, embed and
// estimate demographics.
type Analyzer struct {
	detector   *FaceDetector
	embedder   *Embedder
	attributes *AttributePredictor
}

// NewAnalyzer loads the three models from cfg.ModelsDir. The ONNX Runtime
// environment must already be initialised.
func NewAnalyzer(cfg config.DetectorConfig) (*Analyzer, error) {
	detPath := filepath.Join(cfg.ModelsDir, "det_10g.onnx")
	attrPath := filepath.Join(cfg.ModelsDir, "genderage.onnx")
	embCfg := embedderFor(cfg)

	slog.Info("loading detection model", "path", detPath)
	det, err := NewFaceDetector(detPath, float32(cfg.DetectionThreshold), nil)
	if err != nil {
		return nil, fmt.Errorf("load detector: %w", err)
	}

	slog.Info("loading embedding model", "path", embCfg.ModelPath, "dim", embCfg.Dim)
	emb, err := NewEmbedder(embCfg, nil)
	if err != nil {
		det.Close()
		return nil, fmt.Errorf("load embedder: %w", err)
	}

	slog.Info("loading attribute model", "path", attrPath)
	attr, err := NewAttributePredictor(attrPath, nil)
	if err != nil {
		det.Close()
		emb.Close()
		return nil, fmt.Errorf("load attributes: %w", err)
	}

	return &Analyzer{detector: det, embedder: emb, attributes: attr}, nil
}

// embedderFor picks the embedding model for the configured dimension:
// ArcFace w600k_r50 for 512, a 128-d MobileFaceNet export otherwise.
func embedderFor(cfg config.DetectorConfig) EmbedderConfig {
	if cfg.EmbeddingDim == 512 {
		return EmbedderConfig{
			ModelPath:  filepath.Join(cfg.ModelsDir, "w600k_r50.onnx"),
			InputName:  "input.1",
			OutputName: "683",
			InputSize:  112,
			Dim:        512,
		}
	}
	return EmbedderConfig{
		ModelPath:  filepath.Join(cfg.ModelsDir, "mobilefacenet.onnx"),
		InputName:  "input",
		OutputName: "embedding",
		InputSize:  112,
		Dim:        cfg.EmbeddingDim,
	}
}

// Analyze finds every face in img. A face whose embedding fails is skipped
// with a warning; demographic failures leave the estimates empty.
func (a *Analyzer) Analyze(img image.Image, at time.Time) ([]models.FaceObservation, error) {
	detections, err := a.detect(img)
	if err != nil {
		return nil, err
	}

	observations := make([]models.FaceObservation, 0, len(detections))
	for _, det := range detections {
		crop := cropFace(img, det.Box)
		if crop == nil {
			continue
		}

		start := time.Now()
		emb, err := a.embedder.Extract(toCHW(crop, a.embedder.size, embeddingNorm))
		if err != nil {
			slog.Warn("embed face", "error", err)
			continue
		}
		observability.InferenceDuration.WithLabelValues("embed").Observe(time.Since(start).Seconds())

		obs := models.FaceObservation{
			Embedding:      emb,
			BoundingBox:    det.Box,
			DetectionScore: det.Confidence,
			GenderEstimate: models.GenderEstimate{Label: "unknown"},
			Timestamp:      at,
		}

		start = time.Now()
		if g, age, err := a.attributes.Predict(toCHW(crop, attributeInput, attributeNorm)); err != nil {
			slog.Warn("predict attributes", "error", err)
		} else {
			obs.GenderEstimate = g
			obs.AgeEstimate = age
		}
		observability.InferenceDuration.WithLabelValues("attributes").Observe(time.Since(start).Seconds())

		observations = append(observations, obs)
	}
	return observations, nil
}

// Embed returns the embedding of the most confident face in an encoded
// image, with its detection score as a quality measure.
func (a *Analyzer) Embed(data []byte) ([]float32, float64, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("decode image: %w", err)
	}

	detections, err := a.detect(img)
	if err != nil {
		return nil, 0, err
	}
	if len(detections) == 0 {
		return nil, 0, ErrNoFace
	}
	best := detections[0] // nms sorts by confidence

	crop := cropFace(img, best.Box)
	if crop == nil {
		return nil, 0, ErrNoFace
	}
	emb, err := a.embedder.Extract(toCHW(crop, a.embedder.size, embeddingNorm))
	if err != nil {
		return nil, 0, fmt.Errorf("embed: %w", err)
	}
	return emb, float64(best.Confidence), nil
}

func (a *Analyzer) detect(img image.Image) ([]Detection, error) {
	b := img.Bounds()

	start := time.Now()
	input := toCHW(img, a.detector.size, detectionNorm)
	observability.InferenceDuration.WithLabelValues("preprocess").Observe(time.Since(start).Seconds())

	start = time.Now()
	detections, err := a.detector.Detect(input, b.Dx(), b.Dy())
	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}
	observability.InferenceDuration.WithLabelValues("detect").Observe(time.Since(start).Seconds())
	return detections, nil
}

// Close releases all ONNX sessions.
func (a *Analyzer) Close() {
	a.detector.Close()
	a.embedder.Close()
	a.attributes.Close()
}

// InitRuntime loads the ONNX Runtime shared library and initialises its
// environment. libPath may be empty for the platform default.
func InitRuntime(libPath string) error {
	if libPath == "" {
		libPath = defaultLibPath()
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	return nil
}

// DestroyRuntime tears down the environment created by InitRuntime.
func DestroyRuntime() {
	if err := ort.DestroyEnvironment(); err != nil {
		slog.Warn("destroy onnx runtime", "error", err)
	}
}
