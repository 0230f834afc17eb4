package vision

import (
	"image"
	"math"

	"github.com/your-org/attention/internal/models"
)

// normalization is a per-channel (pixel - mean) / std.
type normalization struct {
	mean, std float32
}

var (
	detectionNorm = normalization{mean: 127.5, std: 128}
	embeddingNorm = normalization{mean: 127.5, std: 127.5}
	attributeNorm = normalization{mean: 0, std: 1}
)

// toCHW resizes img to size x size (nearest neighbour) and lays it out as a
// normalised RGB CHW tensor.
func toCHW(img image.Image, size int, n normalization) []float32 {
	b := img.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	plane := size * size
	data := make([]float32, 3*plane)

	for y := 0; y < size; y++ {
		sy := b.Min.Y + y*srcH/size
		for x := 0; x < size; x++ {
			sx := b.Min.X + x*srcW/size
			r, g, bl, _ := img.At(sx, sy).RGBA()

			i := y*size + x
			data[i] = (float32(r>>8) - n.mean) / n.std
			data[plane+i] = (float32(g>>8) - n.mean) / n.std
			data[2*plane+i] = (float32(bl>>8) - n.mean) / n.std
		}
	}
	return data
}

// cropFace cuts the box out of img with 10% padding on each side, clamped to
// the image. It returns nil for an empty box.
func cropFace(img image.Image, box models.BoundingBox) image.Image {
	b := img.Bounds()
	r := image.Rect(int(box.X1), int(box.Y1), int(box.X2), int(box.Y2)).Intersect(b)
	if r.Empty() {
		return nil
	}

	padW, padH := r.Dx()/10, r.Dy()/10
	r = image.Rect(r.Min.X-padW, r.Min.Y-padH, r.Max.X+padW, r.Max.Y+padH).Intersect(b)

	crop := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			crop.Set(x-r.Min.X, y-r.Min.Y, img.At(x, y))
		}
	}
	return crop
}

// softmax2 is the probability of a over b for two logits.
func softmax2(a, b float32) float32 {
	return float32(1 / (1 + math.Exp(float64(b-a))))
}
