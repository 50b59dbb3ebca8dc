package extract

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MimePDF  = "application/pdf"
	MimeWebM = "audio/webm"
	MimeMP3  = "audio/mpeg"
	MimeWAV  = "audio/wav"
	MimeM4A  = "audio/mp4"
	MimeOGG  = "audio/ogg"
	MimeFLAC = "audio/flac"
)

var extToMime = map[string]string{
	".pdf":  MimePDF,
	".webm": MimeWebM,
	".mp3":  MimeMP3,
	".wav":  MimeWAV,
	".m4a":  MimeM4A,
	".mp4":  MimeM4A,
	".ogg":  MimeOGG,
	".oga":  MimeOGG,
	".flac": MimeFLAC,
}

// NormalizeMimeType maps a client-supplied content type onto a canonical
// media type, falling back to the file extension when the client sent
// something generic like application/octet-stream.
func NormalizeMimeType(mimeType string, fileName string) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case "", "application/octet-stream", "binary/octet-stream":
		if mapped, ok := extToMime[strings.ToLower(filepath.Ext(fileName))]; ok {
			return mapped
		}
		return clean
	case "audio/x-wav", "audio/wave":
		return MimeWAV
	case "audio/mp3":
		return MimeMP3
	case "video/webm":
		// Browser recorders label audio-only captures as video/webm.
		return MimeWebM
	}
	return clean
}

// IsAudio reports whether the media type denotes an audio recording.
func IsAudio(mimeType string) bool {
	return strings.HasPrefix(mimeType, "audio/")
}

// IsDocument reports whether the media type denotes a reference document.
func IsDocument(mimeType string) bool {
	return mimeType == MimePDF
}

// Supported reports whether the pipeline accepts the media type.
func Supported(mimeType string) bool {
	return IsAudio(mimeType) || IsDocument(mimeType)
}

// ValidatePDF checks that the payload is a readable PDF with at least one
// page. Library used: github.com/ledongthuc/pdf.
func ValidatePDF(data []byte) error {
	if len(data) == 0 {
		return errors.New("empty pdf data")
	}
	reader := bytes.NewReader(data)
	pdfReader, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}
	if pdfReader.NumPage() < 1 {
		return errors.New("pdf has no pages")
	}
	return nil
}
