package controller

import (
	"encoding/json"
	"net/http"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
	"github.com/unclebandit/wa-dispatch/internal/payload"
)

// TemplateController renders template-creation components for operators
// registering templates with a provider.
type TemplateController struct{}

type registrationHeaderRequest struct {
	Kind    model.HeaderKind `json:"kind"`
	Text    string           `json:"text"`
	Handles []string         `json:"handles"`
}

// RegistrationHeader returns the HEADER component to submit with a new
// template. Media kinds without a sample handle answer 400.
func (c *TemplateController) RegistrationHeader(w http.ResponseWriter, r *http.Request) {
	var body registrationHeaderRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	header, err := payload.NewRegistrationHeader(body.Kind, body.Text, body.Handles)
	if err != nil {
		if appErrors.IsBuildError(err) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"header": header})
}
