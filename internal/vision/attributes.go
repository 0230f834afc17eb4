package vision

import (
	"fmt"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attention/internal/models"
)

const attributeInput = 96

// AttributePredictor estimates gender and age with the InsightFace
// genderage model.
type AttributePredictor struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewAttributePredictor(modelPath string, opts *ort.SessionOptions) (*AttributePredictor, error) {
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, attributeInput, attributeInput))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// fc1 is [female, male, age/100].
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"data"},
		[]string{"fc1"},
		[]ort.Value{input},
		[]ort.Value{output},
		opts,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("create attribute session: %w", err)
	}

	return &AttributePredictor{session: session, input: input, output: output}, nil
}

// Predict returns the gender estimate and age for one face crop.
func (p *AttributePredictor) Predict(chw []float32) (models.GenderEstimate, int, error) {
	copy(p.input.GetData(), chw)

	if err := p.session.Run(); err != nil {
		return models.GenderEstimate{}, 0, fmt.Errorf("run attributes: %w", err)
	}
	g, age := decodeAttributes(p.output.GetData())
	return g, age, nil
}

func decodeAttributes(out []float32) (models.GenderEstimate, int) {
	if len(out) < 3 {
		return models.GenderEstimate{Label: "unknown"}, 0
	}
	female, male := out[0], out[1]

	g := models.GenderEstimate{Label: "female", Probability: softmax2(female, male)}
	if male > female {
		g = models.GenderEstimate{Label: "male", Probability: softmax2(male, female)}
	}

	age := int(out[2]*100 + 0.5)
	return g, max(0, min(age, 100))
}

func (p *AttributePredictor) Close() {
	if p.session != nil {
		p.session.Destroy()
	}
	p.input.Destroy()
	p.output.Destroy()
}
