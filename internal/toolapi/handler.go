// internal/toolapi/handler.go
package toolapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"zsbroker/internal/dispatcher"
)

// Register mounts the single surface the orchestrator depends on: one
// invocation call in, one structured result out. Failures are carried in the
// result body, never as transport-level errors.
func Register(r chi.Router, d *dispatcher.Dispatcher) {
	r.Post("/v1/invoke", func(w http.ResponseWriter, req *http.Request) {
		var inv dispatcher.Invocation
		if err := json.NewDecoder(req.Body).Decode(&inv); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(dispatcher.Result{
				Status: "error", ErrorKind: "InvalidParameter", Message: "invocation body is not valid JSON",
			})
			return
		}
		res := d.Invoke(req.Context(), inv)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(res)
	})
}
