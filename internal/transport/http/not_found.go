package http

import "net/http"

// NotFoundHandler returns a JSON 404 for routes outside the booking API.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "route not found")
	})
}
