package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/erazemk/manutencao/internal/model"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("error encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// buffer is how binary column values travel over JSON.
type buffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

// wireRow prepares a stored row for JSON: binary values become Buffer
// envelopes, everything else passes through.
func wireRow(row model.Row) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		b, ok := v.([]byte)
		if !ok {
			out[k] = v
			continue
		}
		data := make([]int, len(b))
		for i, c := range b {
			data[i] = int(c)
		}
		out[k] = buffer{Type: "Buffer", Data: data}
	}
	return out
}

func wireRows(rows []model.Row) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, wireRow(row))
	}
	return out
}
