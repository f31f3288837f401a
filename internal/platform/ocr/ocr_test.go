package ocr

import (
	"context"
	"testing"
)

func TestStdExtractor_PlainTextIsVerbatim(t *testing.T) {
	e := &StdExtractor{}
	res, err := e.Extract(context.Background(), "text/plain", []byte("Patient reports no symptoms."))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Method != MethodVerbatim || res.Text != "Patient reports no symptoms." {
		t.Errorf("unexpected result: %+v", res)
	}
	if res.Failed() {
		t.Error("verbatim text should never be ocr_failed")
	}
}

func TestStdExtractor_UnsupportedContentType(t *testing.T) {
	e := &StdExtractor{}
	_, err := e.Extract(context.Background(), "image/png", []byte{0x89, 0x50, 0x4e, 0x47})
	if err == nil {
		t.Fatal("expected an error for a content type with no embedded-text path and no RasterOCR configured")
	}
}

func TestStdExtractor_PDFWithNoEmbeddedTextAndNoRasterOCR_ReturnsLowConfidence(t *testing.T) {
	e := &StdExtractor{}
	res, err := e.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4\n%binary garbage\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Failed() {
		t.Error("expected a PDF with no embedded text and no RasterOCR fallback to be ocr_failed")
	}
}

func TestStdExtractor_PDFWithRasterOCRFallback(t *testing.T) {
	called := false
	e := &StdExtractor{
		RasterOCR: func(ctx context.Context, pdfBytes []byte) (Result, error) {
			called = true
			return Result{Text: "scanned text", Confidence: 0.8, Method: MethodRasterOCR, Pages: 1}, nil
		},
	}
	res, err := e.Extract(context.Background(), "application/pdf", []byte("%PDF-1.4\n%binary garbage\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected RasterOCR fallback to be invoked")
	}
	if res.Failed() {
		t.Error("expected the configured RasterOCR result to be above the confidence floor")
	}
}

func TestResult_Failed_ConfidenceFloor(t *testing.T) {
	if (Result{Confidence: ConfidenceFloor}).Failed() {
		t.Error("confidence exactly at the floor should not be failed")
	}
	if !(Result{Confidence: ConfidenceFloor - 0.01}).Failed() {
		t.Error("confidence just below the floor should be failed")
	}
}

func TestExtractPDFEmbeddedText_FindsStreamText(t *testing.T) {
	pdf := []byte("%PDF-1.4\n/Type /Page\nstream\nPatient note: blood pressure 120/80 stable.\nendstream\n")
	text, pages, ok := extractPDFEmbeddedText(pdf)
	if !ok {
		t.Fatal("expected embedded text to be found")
	}
	if pages != 1 {
		t.Errorf("pages = %d, want 1", pages)
	}
	if len(text) == 0 {
		t.Error("expected non-empty extracted text")
	}
}
