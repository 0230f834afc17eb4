package vision

import (
	"fmt"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/your-org/attention/internal/models"
)

// Detection is one face found by the detector, in source image pixels.
type Detection struct {
	Box        models.BoundingBox
	Confidence float32
}

// retinaStrides are the feature map strides of RetinaFace det_10g, each with
// two anchors per cell.
var retinaStrides = []int{8, 16, 32}

const (
	retinaAnchors = 2
	retinaInput   = 640
	nmsIoU        = 0.4
)

// FaceDetector runs RetinaFace face detection using ONNX Runtime.
type FaceDetector struct {
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	scores    []*ort.Tensor[float32]
	boxes     []*ort.Tensor[float32]
	threshold float32
	size      int
}

// NewFaceDetector loads the RetinaFace model. opts may be nil.
func NewFaceDetector(modelPath string, threshold float32, opts *ort.SessionOptions) (*FaceDetector, error) {
	d := &FaceDetector{threshold: threshold, size: retinaInput}

	var err error
	d.input, err = ort.NewEmptyTensor[float32](ort.NewShape(1, 3, retinaInput, retinaInput))
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	// det_10g output names: scores then boxes, per stride. Landmarks are not
	// bound because nothing downstream aligns faces.
	scoreNames := []string{"448", "471", "494"}
	boxNames := []string{"451", "474", "497"}

	var outputNames []string
	var outputs []ort.Value
	for i, stride := range retinaStrides {
		cells := int64((retinaInput / stride) * (retinaInput / stride) * retinaAnchors)

		s, err := ort.NewEmptyTensor[float32](ort.NewShape(cells, 1))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create score tensor (stride %d): %w", stride, err)
		}
		d.scores = append(d.scores, s)

		b, err := ort.NewEmptyTensor[float32](ort.NewShape(cells, 4))
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("create box tensor (stride %d): %w", stride, err)
		}
		d.boxes = append(d.boxes, b)

		outputNames = append(outputNames, scoreNames[i], boxNames[i])
		outputs = append(outputs, s, b)
	}

	d.session, err = ort.NewAdvancedSession(modelPath,
		[]string{"input.1"},
		outputNames,
		[]ort.Value{d.input},
		outputs,
		opts,
	)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("create detector session: %w", err)
	}
	return d, nil
}

// Detect runs detection on a CHW tensor produced by preprocessForDetection.
// origW and origH scale the boxes back to the source image.
func (d *FaceDetector) Detect(chw []float32, origW, origH int) ([]Detection, error) {
	copy(d.input.GetData(), chw)

	if err := d.session.Run(); err != nil {
		return nil, fmt.Errorf("run detection: %w", err)
	}
	return nms(d.decode(origW, origH), nmsIoU), nil
}

// decode turns anchor offsets into boxes. Offsets are distances from the
// anchor centre to each edge, in stride units.
func (d *FaceDetector) decode(origW, origH int) []Detection {
	var out []Detection
	sx := float32(origW) / float32(d.size)
	sy := float32(origH) / float32(d.size)

	for si, stride := range retinaStrides {
		scores := d.scores[si].GetData()
		boxes := d.boxes[si].GetData()
		cellsPerRow := d.size / stride
		st := float32(stride)

		for idx, score := range scores {
			if score < d.threshold {
				continue
			}
			cell := idx / retinaAnchors
			ax := float32(cell%cellsPerRow) * st
			ay := float32(cell/cellsPerRow) * st

			out = append(out, Detection{
				Box: models.BoundingBox{
					X1: clamp((ax-boxes[idx*4]*st)*sx, 0, float32(origW)),
					Y1: clamp((ay-boxes[idx*4+1]*st)*sy, 0, float32(origH)),
					X2: clamp((ax+boxes[idx*4+2]*st)*sx, 0, float32(origW)),
					Y2: clamp((ay+boxes[idx*4+3]*st)*sy, 0, float32(origH)),
				},
				Confidence: score,
			})
		}
	}
	return out
}

func (d *FaceDetector) Close() {
	if d.session != nil {
		d.session.Destroy()
	}
	if d.input != nil {
		d.input.Destroy()
	}
	for _, t := range append(d.scores, d.boxes...) {
		t.Destroy()
	}
}

// nms keeps the most confident of every group of overlapping detections.
func nms(detections []Detection, threshold float32) []Detection {
	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Confidence > detections[j].Confidence
	})

	var kept []Detection
	for _, det := range detections {
		overlaps := false
		for _, k := range kept {
			if iou(det.Box, k.Box) > threshold {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, det)
		}
	}
	return kept
}

func iou(a, b models.BoundingBox) float32 {
	w := min(a.X2, b.X2) - max(a.X1, b.X1)
	h := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := area(a) + area(b) - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

func area(b models.BoundingBox) float32 {
	return (b.X2 - b.X1) * (b.Y2 - b.Y1)
}

func clamp(v, lo, hi float32) float32 {
	return max(lo, min(v, hi))
}
