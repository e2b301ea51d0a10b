package extractor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const ocrTimeout = 120 * time.Second

// ocrRunner shells out to tesseract (and pdftoppm for PDF page rendering).
// OCR is CPU-bound and can run long on large documents, so every invocation
// is bounded by its own timeout.
type ocrRunner struct {
	tesseract string
	pdftoppm  string
}

func newOCRRunner(tesseractBin, pdftoppmBin string) *ocrRunner {
	if tesseractBin == "" {
		tesseractBin = os.Getenv("TESSERACT_BIN")
	}
	if tesseractBin == "" {
		tesseractBin = "tesseract"
	}
	if pdftoppmBin == "" {
		pdftoppmBin = os.Getenv("PDFTOPPM_BIN")
	}
	if pdftoppmBin == "" {
		pdftoppmBin = "pdftoppm"
	}
	return &ocrRunner{tesseract: tesseractBin, pdftoppm: pdftoppmBin}
}

// image runs tesseract over raw image bytes.
func (o *ocrRunner) image(ctx context.Context, raw []byte) (string, error) {
	tmp, err := os.CreateTemp("", "crawl-*.img")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return "", err
	}
	tmp.Close()

	return o.runTesseract(ctx, tmp.Name())
}

// pdf renders each page to PNG via pdftoppm and OCRs them in order.
func (o *ocrRunner) pdf(ctx context.Context, raw []byte) (string, error) {
	dir, err := os.MkdirTemp("", "crawl-pdf-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdfPath, raw, 0o644); err != nil {
		return "", err
	}

	cmdCtx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()
	cmd := exec.CommandContext(cmdCtx, o.pdftoppm, "-png", "-r", "150", pdfPath, filepath.Join(dir, "page"))
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftoppm failed: %w", err)
	}

	pages, err := filepath.Glob(filepath.Join(dir, "page-*.png"))
	if err != nil || len(pages) == 0 {
		return "", fmt.Errorf("no pages rendered")
	}
	sort.Strings(pages)

	var sb strings.Builder
	for _, page := range pages {
		text, err := o.runTesseract(ctx, page)
		if err != nil {
			return "", err
		}
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

func (o *ocrRunner) runTesseract(ctx context.Context, imagePath string) (string, error) {
	cmdCtx, cancel := context.WithTimeout(ctx, ocrTimeout)
	defer cancel()

	// "stdout" as the output base makes tesseract print instead of writing files.
	cmd := exec.CommandContext(cmdCtx, o.tesseract, imagePath, "stdout")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract failed: %w", err)
	}
	return string(out), nil
}
