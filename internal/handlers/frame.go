package handlers

import (
	"net/http"
	"strconv"
)

// LatestFrameHandler serves the last annotated frame as JPEG, or 204 before
// the first frame.
func LatestFrameHandler(src FrameSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		frame, ok := src.Latest()
		if !ok || len(frame.JPEG) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Frame-Seq", strconv.FormatUint(frame.Seq, 10))
		w.Header().Set("Content-Length", strconv.Itoa(len(frame.JPEG)))
		w.Write(frame.JPEG)
	}
}
