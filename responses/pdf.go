package responses

import (
	"log"
	"mime"
	"net/http"
	"strconv"
)

func WritePDFBytesWithFilename(w http.ResponseWriter, filename string, PDFBytes []byte) {
	writePDF(w, "inline", filename, PDFBytes)
}

// WritePDFAttachment sends the PDF as a download.
func WritePDFAttachment(w http.ResponseWriter, filename string, PDFBytes []byte) {
	writePDF(w, "attachment", filename, PDFBytes)
}

func writePDF(w http.ResponseWriter, disposition string, filename string, PDFBytes []byte) {
	w.Header().Set("Content-Length", strconv.Itoa(len(PDFBytes)))
	WritePDFResponseHeaders(w, disposition, filename)
	if _, err := w.Write(PDFBytes); err != nil {
		log.Printf("[ERROR] writing PDF to response: %v", err)
	}
}

// WritePDFResponseHeaders write HTTP response headers for PDF response. i.e. headers are frozen
func WritePDFResponseHeaders(w http.ResponseWriter, disposition string, filename string) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK) // Response Header Sent & Frozen
}
