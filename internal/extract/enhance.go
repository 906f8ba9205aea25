package extract

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	_ "image/jpeg" // register decoders for scanned statement formats
)

// enhanceImage normalizes, sharpens and binarizes an image to improve OCR on
// low-contrast phone photos of statements. Returns the path of a temporary
// PNG the caller must remove.
func enhanceImage(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	gray := toGray(src)
	normalizeContrast(gray)
	sharpened := sharpen(gray)
	binarize(sharpened)

	out, err := os.CreateTemp("", "creditlens-enhanced-*.png")
	if err != nil {
		return "", err
	}
	defer out.Close()

	if err := png.Encode(out, sharpened); err != nil {
		os.Remove(out.Name())
		return "", fmt.Errorf("encode enhanced image: %w", err)
	}
	return out.Name(), nil
}

func toGray(src image.Image) *image.Gray {
	b := src.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, src.At(x, y))
		}
	}
	return gray
}

// normalizeContrast stretches pixel intensities to the full 0..255 range.
func normalizeContrast(img *image.Gray) {
	minV, maxV := uint8(255), uint8(0)
	for _, p := range img.Pix {
		if p < minV {
			minV = p
		}
		if p > maxV {
			maxV = p
		}
	}
	if maxV <= minV {
		return
	}
	scale := 255.0 / float64(maxV-minV)
	for i, p := range img.Pix {
		img.Pix[i] = uint8(float64(p-minV) * scale)
	}
}

// sharpen applies a 3x3 unsharp kernel.
func sharpen(img *image.Gray) *image.Gray {
	b := img.Bounds()
	out := image.NewGray(b)
	copy(out.Pix, img.Pix)

	kernel := [3][3]int{{0, -1, 0}, {-1, 5, -1}, {0, -1, 0}}
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			sum := 0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					sum += int(img.GrayAt(x+kx, y+ky).Y) * kernel[ky+1][kx+1]
				}
			}
			if sum < 0 {
				sum = 0
			}
			if sum > 255 {
				sum = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(sum)})
		}
	}
	return out
}

// binarize thresholds at the mean intensity.
func binarize(img *image.Gray) {
	var total uint64
	for _, p := range img.Pix {
		total += uint64(p)
	}
	if len(img.Pix) == 0 {
		return
	}
	threshold := uint8(total / uint64(len(img.Pix)))
	for i, p := range img.Pix {
		if p > threshold {
			img.Pix[i] = 255
		} else {
			img.Pix[i] = 0
		}
	}
}
