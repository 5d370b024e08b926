package server

import (
	"encoding/json"
	"net/http"

	"github.com/adwatch/adwatch/store"
)

// The API speaks one envelope: {"data": …} on success, {"error": …} on
// failure, always HTTP 200. Clients treat a non-null error field as
// terminal for the request.

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func writeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// writeStoreError maps a store failure to an error envelope. Caller
// mistakes carry their own message; anything else is an internal failure
// whose details stay in the log.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case store.IsDataArgument(err), store.IsNotFound(err):
		writeError(w, err.Error())
	default:
		s.logger.Errorw("Request failed", "path", r.URL.Path, "error", err)
		writeError(w, "internal error")
	}
}
