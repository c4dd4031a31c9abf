package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/schema"
	"github.com/mkarlsen/opsimport/internal/template"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// handleCreateSession accepts a multipart upload and starts parse +
// validation in the background. The response carries the session ID; the
// caller polls the session or subscribes to the progress stream.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxFileSize)
	if err := r.ParseMultipartForm(s.maxFileSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, r, fmt.Errorf("read upload: %w", err), http.StatusBadRequest)
		return
	}

	sessionID, err := s.service.StartValidation(tenantID, header.Filename, data)
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, map[string]string{"sessionId": sessionID.String()})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, ok := s.service.Session(sessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, session)
}

// handleCommit starts the batch insert for a validated session.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	if err := s.service.Commit(sessionID); err != nil {
		status := http.StatusConflict
		if errors.Is(err, ingest.ErrSessionNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, r, err, status)
		return
	}

	session, _ := s.service.Session(sessionID)
	w.WriteHeader(http.StatusAccepted)
	writeJSON(w, session)
}

// handleProgress streams session progress as server-sent events. Clients
// may resume after a dropped connection by passing the last seen event ID
// (the progress percentage) as ?lastEventId=N.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	// The logging middleware wraps the ResponseWriter, so reach Flush
	// through the controller, which follows Unwrap.
	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				rc.Flush()
				return
			}

			if lastEventIDStr != "" && progress.Percentage <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", progress.Percentage, data)
			if err := rc.Flush(); err != nil {
				return
			}

		case <-r.Context().Done():
			return
		}
	}
}

// handleTemplate serves a blank import template in CSV or XLSX form.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	var (
		data        []byte
		err         error
		contentType string
		fileName    string
	)
	switch format {
	case "csv":
		data, err = template.CSV()
		contentType = "text/csv"
		fileName = "service-orders-template.csv"
	case "xlsx":
		data, err = template.XLSX()
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		fileName = "service-orders-template.xlsx"
	default:
		writeError(w, http.StatusBadRequest, "format must be csv or xlsx")
		return
	}
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
	w.Write(data)
}

// fieldInfo describes one canonical template column for mapping UIs.
type fieldInfo struct {
	Name     string   `json:"name"`
	Header   string   `json:"header"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Synonyms []string `json:"synonyms"`
}

func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	fields := make([]fieldInfo, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		fields = append(fields, fieldInfo{
			Name:     f.Name,
			Header:   f.Header,
			Type:     f.Type.String(),
			Required: f.Required,
			Synonyms: f.Synonyms,
		})
	}
	writeJSON(w, fields)
}

func tenantFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.Header.Get("X-Tenant-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-Tenant-ID header")
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid X-Tenant-ID: %w", err)
	}
	return tenantID, nil
}
