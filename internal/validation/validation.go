package validation

import (
	"encoding/json"
	"net/http"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns the configured validator shared by all handlers.
func New() *validatorv10.Validate {
	return validatorv10.New()
}

// Problem is the 400 payload for rejected requests.
type Problem struct {
	Success bool              `json:"success"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// BindAndValidate decodes the JSON body into out and runs tag validation.
// On failure it writes the 400 response itself and returns an error so the
// handler can short-circuit.
func BindAndValidate(w http.ResponseWriter, r *http.Request, out any, v *validatorv10.Validate) error {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeProblem(w, Problem{Error: "invalid request body"})
		return err
	}
	if err := v.Struct(out); err != nil {
		writeProblem(w, Problem{Error: "validation failed", Fields: ErrorsToMap(err)})
		return err
	}
	return nil
}

// ErrorsToMap flattens validator errors into a field -> constraint map.
func ErrorsToMap(err error) map[string]string {
	out := map[string]string{}
	if ve, ok := err.(validatorv10.ValidationErrors); ok {
		for _, fe := range ve {
			out[fe.Field()] = fe.Tag()
		}
	} else if err != nil {
		out["error"] = err.Error()
	}
	return out
}

func writeProblem(w http.ResponseWriter, p Problem) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(p)
}
