// Package ocr extracts text from document attachments (text, PDF-embedded
// text, or rasterized-page OCR). The actual OCR vendor is the excluded
// external collaborator named in spec §1; Extractor is the seam a real
// vendor implementation plugs into. The shipped Extractor handles plain
// text and PDF-embedded-text only, using the standard library.
package ocr

import (
	"bytes"
	"context"
	"fmt"
)

// Method names how text was obtained from an attachment.
type Method string

const (
	MethodVerbatim    Method = "verbatim"     // plain text, used as-is
	MethodPDFEmbedded Method = "pdf_embedded" // text layer extracted from a PDF
	MethodRasterOCR   Method = "raster_ocr"   // page rasterized then OCR'd
)

// ConfidenceFloor is the minimum confidence below which an extraction is
// logged as ocr_failed rather than fed to the PHI filter (spec §4.4).
const ConfidenceFloor = 0.6

// Result is what an Extractor returns for one attachment.
type Result struct {
	Text       string
	Confidence float64
	Method     Method
	Pages      int
}

// Failed reports whether this result is below ConfidenceFloor and should
// be treated as ocr_failed rather than usable text.
func (r Result) Failed() bool {
	return r.Confidence < ConfidenceFloor
}

// Extractor extracts text from a document attachment's raw bytes given its
// MIME content type.
type Extractor interface {
	Extract(ctx context.Context, contentType string, data []byte) (Result, error)
}

// StdExtractor implements the decision tree of spec §4.4 using only the
// standard library: text/plain attachments are used verbatim; PDFs are
// tried as embedded text first. Rasterize+OCR (the vendor-specific path)
// is left unimplemented — it returns a zero-confidence Result rather than
// fabricating a vendor integration, so callers see an explicit ocr_failed
// rather than silently-wrong text.
type StdExtractor struct {
	// RasterOCR, if set, handles the rasterize+OCR fallback for PDFs with
	// no usable embedded text layer. Left nil in the shipped binary; a
	// real OCR vendor client satisfies this field's signature.
	RasterOCR func(ctx context.Context, pdfBytes []byte) (Result, error)
}

// Extract runs the text/PDF decision tree against data.
func (e *StdExtractor) Extract(ctx context.Context, contentType string, data []byte) (Result, error) {
	switch {
	case isTextContentType(contentType):
		return Result{Text: string(data), Confidence: 1.0, Method: MethodVerbatim, Pages: 1}, nil

	case isPDFContentType(contentType):
		if text, pages, ok := extractPDFEmbeddedText(data); ok && text != "" {
			return Result{Text: text, Confidence: 0.95, Method: MethodPDFEmbedded, Pages: pages}, nil
		}
		if e.RasterOCR != nil {
			return e.RasterOCR(ctx, data)
		}
		return Result{Method: MethodRasterOCR, Confidence: 0}, nil

	default:
		return Result{}, fmt.Errorf("ocr: unsupported content type %q", contentType)
	}
}

func isTextContentType(ct string) bool {
	return ct == "text/plain" || ct == "" || ct == "text/html"
}

func isPDFContentType(ct string) bool {
	return ct == "application/pdf"
}

// pdfStreamMarker and pdfEndStreamMarker bound the text-bearing streams
// inside an uncompressed PDF — the simplest embedded-text layer shape,
// sufficient for the tenant-generated prep sheets HealthPrep round-trips
// and for many EMR-exported clinical documents. Compressed (FlateDecode)
// streams are not decoded here; they fall through to the RasterOCR path.
var (
	pdfStreamMarker    = []byte("stream")
	pdfEndStreamMarker = []byte("endstream")
)

// extractPDFEmbeddedText performs a best-effort scan for readable text
// runs inside a PDF's uncompressed content streams. It is deliberately
// simple: a full PDF content-stream interpreter is out of scope, and
// "good enough to detect a usable text layer vs. needing OCR" is all the
// decision tree in spec §4.4 requires of this step.
func extractPDFEmbeddedText(data []byte) (string, int, bool) {
	var out bytes.Buffer
	pages := bytes.Count(data, []byte("/Type /Page"))
	if pages == 0 {
		pages = 1
	}

	rest := data
	found := false
	for {
		i := bytes.Index(rest, pdfStreamMarker)
		if i < 0 {
			break
		}
		rest = rest[i+len(pdfStreamMarker):]
		j := bytes.Index(rest, pdfEndStreamMarker)
		if j < 0 {
			break
		}
		chunk := rest[:j]
		rest = rest[j+len(pdfEndStreamMarker):]

		text := extractReadableASCII(chunk)
		if len(text) > 0 {
			out.WriteString(text)
			out.WriteByte('\n')
			found = true
		}
	}
	return out.String(), pages, found
}

// extractReadableASCII keeps printable ASCII runs of at least 4 bytes,
// a cheap heuristic for "this chunk has a text layer" vs. binary/
// compressed stream data.
func extractReadableASCII(chunk []byte) string {
	var out bytes.Buffer
	var run bytes.Buffer
	flush := func() {
		if run.Len() >= 4 {
			out.Write(run.Bytes())
			out.WriteByte(' ')
		}
		run.Reset()
	}
	for _, b := range chunk {
		if b >= 0x20 && b < 0x7f {
			run.WriteByte(b)
		} else {
			flush()
		}
	}
	flush()
	return out.String()
}
