package facerec

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
)

// maxAnalysisSize caps the working resolution for quality statistics so that
// large uploads do not dominate request latency.
const maxAnalysisSize = 512

// QualityError describes why an image failed the pre-enrollment screening.
type QualityError struct {
	Reason string
}

func (e *QualityError) Error() string {
	return e.Reason
}

// QualityThresholds holds the screening limits for captured frames.
type QualityThresholds struct {
	MinBlurVariance float64
	MinContrast     float64
}

// CheckQuality screens an image before embedding extraction. It rejects
// frames that are too blurry (low Laplacian variance, typical for photos of
// screens) or too uniform (low grayscale standard deviation).
func CheckQuality(imageData []byte, thresholds QualityThresholds) error {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}

	gray := toGrayscale(downscale(img, maxAnalysisSize))

	if v := laplacianVariance(gray); v < thresholds.MinBlurVariance {
		return &QualityError{Reason: "Image appears to be blurry or a photo of a screen"}
	}

	if sd := stdDev(gray); sd < thresholds.MinContrast {
		return &QualityError{Reason: "Image has unusually low contrast"}
	}

	return nil
}

// downscale fits an image within maxSize while keeping aspect ratio. Images
// already within bounds are only converted to RGBA.
func downscale(img image.Image, maxSize int) *image.RGBA {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	if width <= maxSize && height <= maxSize {
		dst := image.NewRGBA(image.Rect(0, 0, width, height))
		draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
		return dst
	}

	var newWidth, newHeight int
	if width > height {
		newWidth = maxSize
		newHeight = int(float64(height) * float64(maxSize) / float64(width))
	} else {
		newHeight = maxSize
		newWidth = int(float64(width) * float64(maxSize) / float64(height))
	}

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// toGrayscale converts an image to a 2D array of grayscale values (0-255).
func toGrayscale(img *image.RGBA) [][]float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	gray := make([][]float64, width)
	for x := range width {
		gray[x] = make([]float64, height)
		for y := range height {
			r, g, b, _ := img.At(x, y).RGBA()
			// ITU-R BT.601 luma formula.
			luma := 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			gray[x][y] = luma
		}
	}

	return gray
}

// laplacianVariance computes the variance of the 4-neighbor Laplacian, a
// standard sharpness measure. Border pixels are skipped.
func laplacianVariance(gray [][]float64) float64 {
	width := len(gray)
	if width < 3 {
		return 0
	}
	height := len(gray[0])
	if height < 3 {
		return 0
	}

	var sum, sumSq float64
	n := 0
	for x := 1; x < width-1; x++ {
		for y := 1; y < height-1; y++ {
			lap := gray[x-1][y] + gray[x+1][y] + gray[x][y-1] + gray[x][y+1] - 4*gray[x][y]
			sum += lap
			sumSq += lap * lap
			n++
		}
	}

	mean := sum / float64(n)
	return sumSq/float64(n) - mean*mean
}

// stdDev computes the standard deviation of grayscale values.
func stdDev(gray [][]float64) float64 {
	var sum, sumSq float64
	n := 0
	for x := range gray {
		for y := range gray[x] {
			sum += gray[x][y]
			sumSq += gray[x][y] * gray[x][y]
			n++
		}
	}
	if n == 0 {
		return 0
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance)
}
