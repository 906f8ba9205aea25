package extract

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ocrBaseConfidence is assigned to tesseract output before the readability
// adjustment; tesseract itself does not report a usable document-level score.
const ocrBaseConfidence = 0.75

// runTesseract OCRs a single image (or other) file and returns the text with
// a heuristic confidence. Requires the tesseract binary.
func runTesseract(ctx context.Context, path, language string) (string, float64, error) {
	if _, err := exec.LookPath("tesseract"); err != nil {
		return "", 0, fmt.Errorf("tesseract not available (install tesseract-ocr): %w", err)
	}
	if language == "" {
		language = "eng"
	}

	outDir, err := os.MkdirTemp("", "creditlens-ocr-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(outDir)

	outBase := outDir + "/out"
	// PSM 4: single column of text of variable sizes, which suits statements.
	cmd := exec.CommandContext(ctx, "tesseract", path, outBase, "-l", language, "--psm", "4")
	if out, err := cmd.CombinedOutput(); err != nil {
		return "", 0, fmt.Errorf("tesseract failed: %v (output: %s)", err, string(out))
	}

	data, err := os.ReadFile(outBase + ".txt")
	if err != nil {
		return "", 0, fmt.Errorf("read tesseract output: %w", err)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", 0, fmt.Errorf("tesseract produced no text")
	}

	confidence := ocrBaseConfidence * textQuality([]string{text})
	return text, confidence, nil
}

// extractImageText OCRs an image, optionally preprocessing it first.
func (e *Extractor) extractImageText(ctx context.Context, path string, opts Options) (string, float64, error) {
	ocrPath := path
	if opts.EnhanceImage {
		enhanced, err := enhanceImage(path)
		if err != nil {
			// Enhancement is best-effort; fall back to the raw image.
			e.log.Warn().Err(err).Str("path", path).Msg("image enhancement failed, using raw image")
		} else {
			defer os.Remove(enhanced)
			ocrPath = enhanced
		}
	}
	return runTesseract(ctx, ocrPath, opts.Language)
}
