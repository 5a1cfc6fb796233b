package domain

import (
	"encoding/base64"
	"net/http"
	"strings"
)

// ImageDataURL encodes image bytes as a data: URL using the sniffed content type.
// Unrecognized bytes are labelled image/png.
func ImageDataURL(image []byte) string {
	mime := http.DetectContentType(image)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(image)
}
