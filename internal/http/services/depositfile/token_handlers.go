package depositfile

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rcsb/depfile/pkg/errtypes"
)

type tokenRequest struct {
	Subject          string `json:"subject"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
}

// handleToken issues a signed bearer token for a configured subject,
// grounded on the original service's tokenRequest.py helper endpoint.
func (s *Service) handleToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, r, errtypes.BadRequest("malformed request body: "+err.Error()))
			return
		}
	}
	subject := req.Subject
	if subject == "" {
		subject = s.cfg.JWTSubject
	}

	var expiresDelta time.Duration
	if req.ExpiresInSeconds > 0 {
		expiresDelta = time.Duration(req.ExpiresInSeconds) * time.Second
	}

	token, err := s.authMgr.CreateToken(nil, subject, expiresDelta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
