package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/voxhire/voxhire/pkg/core/extract"
	"github.com/voxhire/voxhire/pkg/gateway/config"
	"github.com/voxhire/voxhire/pkg/gateway/mw"
	"github.com/voxhire/voxhire/pkg/gateway/uploads"
)

// UploadHandler accepts a candidate's CV and contact details ahead of an
// interview and hands back a one-time session token.
type UploadHandler struct {
	Config  config.Config
	Logger  *slog.Logger
	Uploads *uploads.Store
}

type uploadResponse struct {
	Success   bool             `json:"success"`
	SessionID string           `json:"session_id"`
	Candidate candidatePayload `json:"candidate"`
}

type candidatePayload struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (h UploadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, reqID, apiError{Code: "method_not_allowed", Message: "method not allowed"})
		return
	}

	maxBytes := h.Config.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 10 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, reqID, apiError{Code: "file_too_large", Message: "upload exceeds the size limit", Param: "cv_file"})
			return
		}
		writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "bad_request", Message: "invalid multipart form"})
		return
	}

	profile := uploads.CandidateProfile{
		FirstName: strings.TrimSpace(r.FormValue("first_name")),
		LastName:  strings.TrimSpace(r.FormValue("last_name")),
		Email:     strings.TrimSpace(r.FormValue("email")),
	}
	for param, value := range map[string]string{
		"first_name": profile.FirstName,
		"last_name":  profile.LastName,
		"email":      profile.Email,
	} {
		if value == "" {
			writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "missing_field", Message: param + " is required", Param: param})
			return
		}
	}

	file, header, err := r.FormFile("cv_file")
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "missing_field", Message: "cv_file is required", Param: "cv_file"})
		return
	}
	defer file.Close()

	if ext := strings.ToLower(filepath.Ext(header.Filename)); ext != ".pdf" {
		writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "unsupported_format", Message: "only PDF files are accepted", Param: "cv_file"})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "bad_request", Message: "failed to read upload", Param: "cv_file"})
		return
	}

	cvText, err := extract.PDFText(data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedFormat) {
			writeJSONError(w, http.StatusBadRequest, reqID, apiError{Code: "unsupported_format", Message: "only PDF files are accepted", Param: "cv_file"})
			return
		}
		if h.Logger != nil {
			h.Logger.Warn("cv text extraction failed", "request_id", reqID, "error", err)
		}
		writeJSONError(w, http.StatusUnprocessableEntity, reqID, apiError{Code: "extraction_failed", Message: "could not extract text from the PDF", Param: "cv_file"})
		return
	}

	token := h.Uploads.Put(profile, cvText)
	if h.Logger != nil {
		h.Logger.Info("cv uploaded", "request_id", reqID, "session_id", token, "cv_chars", len(cvText))
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		Success:   true,
		SessionID: token,
		Candidate: candidatePayload{
			FirstName: profile.FirstName,
			LastName:  profile.LastName,
			Email:     profile.Email,
		},
	})
}
