package httpapi

import (
	"io"
	"net/http"

	"github.com/andy/timeledger/internal/service"
)

// maxImportBytes bounds uploaded spreadsheets
const maxImportBytes = 32 << 20

// analyzeImport takes the CSV as the raw request body
func (s *Server) analyzeImport(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.svc.Import.Analyze(r.Context(), io.LimitReader(r.Body, maxImportBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (s *Server) runImport(w http.ResponseWriter, r *http.Request) {
	var req service.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.UserID == 0 {
		req.UserID = scopeOf(r).UserID
	}

	result, err := s.svc.Import.Import(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
