package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/solvane/phonefleet-console/pkg/api"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// login signs the operator in with their upstream fleet account. Bad
// credentials surface inline here; they never tear down an existing session.
func (wr *WebRouter) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, loginResponse{Message: "Email and password are required"})
		return
	}

	if err := wr.apiClient.Login(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, api.ErrUnauthorized) {
			writeJSON(w, http.StatusUnauthorized, loginResponse{Message: "Invalid email or password"})
			return
		}
		wr.upstreamError(w, err)
		return
	}

	session, _ := wr.getSession(r)
	session.Values["authenticated"] = true
	if err := session.Save(r, w); err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}

func (wr *WebRouter) logout(w http.ResponseWriter, r *http.Request) {
	wr.apiClient.Session().Clear()

	session, err := wr.getSession(r)
	if err == nil {
		session.Options.MaxAge = -1
		session.Save(r, w)
	}

	writeJSON(w, http.StatusOK, loginResponse{Success: true})
}
