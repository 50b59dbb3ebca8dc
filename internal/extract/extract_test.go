package extract

import "testing"

func TestNormalizeMimeType(t *testing.T) {
	cases := []struct {
		name     string
		mimeType string
		fileName string
		want     string
	}{
		{"passthrough audio", "audio/webm", "a.webm", MimeWebM},
		{"strips parameters", "audio/webm; codecs=opus", "a.webm", MimeWebM},
		{"video webm recorder", "video/webm", "a.webm", MimeWebM},
		{"wav alias", "audio/x-wav", "a.wav", MimeWAV},
		{"mp3 alias", "audio/mp3", "a.mp3", MimeMP3},
		{"octet stream by extension", "application/octet-stream", "scan.pdf", MimePDF},
		{"empty type by extension", "", "take.m4a", MimeM4A},
		{"unknown stays unknown", "application/octet-stream", "a.xyz", "application/octet-stream"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeMimeType(tc.mimeType, tc.fileName); got != tc.want {
				t.Fatalf("NormalizeMimeType(%q, %q) = %q, want %q", tc.mimeType, tc.fileName, got, tc.want)
			}
		})
	}
}

func TestSupported(t *testing.T) {
	if !Supported(MimeWebM) || !Supported(MimePDF) {
		t.Fatalf("expected webm and pdf to be supported")
	}
	if Supported("image/png") || Supported("text/plain") {
		t.Fatalf("unexpected media types supported")
	}
	if !IsAudio(MimeOGG) || IsAudio(MimePDF) {
		t.Fatalf("IsAudio misclassifies")
	}
	if !IsDocument(MimePDF) || IsDocument(MimeWebM) {
		t.Fatalf("IsDocument misclassifies")
	}
}

func TestValidatePDFRejectsGarbage(t *testing.T) {
	if err := ValidatePDF(nil); err == nil {
		t.Fatalf("expected error for empty data")
	}
	if err := ValidatePDF([]byte("not a pdf")); err == nil {
		t.Fatalf("expected error for non-pdf payload")
	}
}
