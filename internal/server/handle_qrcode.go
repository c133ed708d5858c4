package server

import (
	"net/http"

	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// handleQRCode serves a PNG invite pointing guests at the entry form.
func handleQRCode(publicURL string) http.HandlerFunc {
	png, err := qrcode.Encode(publicURL, qrcode.Medium, qrSize)

	return func(w http.ResponseWriter, r *http.Request) {
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		_, _ = w.Write(png)
	}
}
