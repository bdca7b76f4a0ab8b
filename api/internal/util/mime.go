package util

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// SniffMimeHTTP picks the MIME type of an image or PDF from its leading bytes.
func SniffMimeHTTP(b []byte) string {
	if len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8 {
		return "image/jpeg"
	}
	if len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A {
		return "image/png"
	}
	if len(b) >= 5 && string(b[:5]) == "%PDF-" {
		return "application/pdf"
	}
	return http.DetectContentType(b)
}

// PickMIME prefers an explicit type, then the upstream header, then sniffing.
func PickMIME(explicit, hint string, data []byte) string {
	for _, c := range []string{explicit, hint} {
		if mt := mediaType(c); mt != "" && mt != "application/octet-stream" {
			return mt
		}
	}
	if len(data) > 0 {
		return SniffMimeHTTP(data)
	}
	return "image/jpeg"
}

// IsAudioContentType accepts any audio/* media type, parameters ignored.
func IsAudioContentType(ct string) bool {
	return strings.HasPrefix(mediaType(ct), "audio/")
}

// Ext returns the lower-cased extension of a file name, including the dot.
func Ext(name string) string {
	return strings.ToLower(filepath.Ext(strings.TrimSpace(name)))
}

// SHA256Hex is the archive key of an uploaded document.
func SHA256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func mediaType(ct string) string {
	ct = strings.TrimSpace(ct)
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(ct)
	}
	return strings.ToLower(mt)
}
