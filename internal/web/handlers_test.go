package web

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkarlsen/opsimport/internal/catalog"
	"github.com/mkarlsen/opsimport/internal/ingest"
	"github.com/mkarlsen/opsimport/internal/store"
	"github.com/mkarlsen/opsimport/internal/tabular"
)

func testCatalog() *catalog.Catalog {
	return &catalog.Catalog{
		Counterparties: []catalog.Entry{
			{ID: uuid.New(), NaturalKey: "TML860512AB1", DisplayName: "Talleres Monterrey"},
		},
		Units: []catalog.Entry{
			{ID: uuid.New(), NaturalKey: "ECO-102", DisplayName: "Eco 102"},
		},
		Personnel: []catalog.Entry{
			{ID: uuid.New(), NaturalKey: "EMP-31", DisplayName: "J. Rivera"},
		},
		Categories: []catalog.Entry{
			{ID: uuid.New(), NaturalKey: "MANT", DisplayName: "Mantenimiento"},
		},
		UsedKeys: map[string]bool{},
	}
}

func newTestServer(t *testing.T) (*Server, *store.Memory) {
	t.Helper()
	mem := store.NewMemory(testCatalog())
	svc := ingest.NewService(mem, mem, ingest.Options{
		DefaultPolicy: catalog.FirstEntry,
		BatchPause:    time.Millisecond,
	})
	return NewServer(svc, tabular.MaxFileSize), mem
}

func multipartCSV(t *testing.T, name, body string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestTemplateEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template?format=csv", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Document Number")

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/template?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFieldsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/fields", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var fields []fieldInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fields))
	require.NotEmpty(t, fields)
	assert.Equal(t, "documentNumber", fields[0].Name)
	assert.True(t, fields[0].Required)
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	srv, mem := newTestServer(t)
	tenantID := uuid.New()

	csvBody := "Document Number,Request Date,Counterparty Tax ID,Unit Code,Personnel Code,Category,Amount,Description\n" +
		"A-77,2026-03-15,TML860512AB1,ECO-102,EMP-31,MANT,1500.00,Servicio de frenos\n"
	buf, contentType := multipartCSV(t, "orders.csv", csvBody)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	sessionID, err := uuid.Parse(created["sessionId"])
	require.NoError(t, err)

	session, ok := srv.service.Wait(sessionID)
	require.True(t, ok)
	require.Equal(t, ingest.StateReadyToCommit, session.State)

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID.String()+"/commit", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	session, ok = srv.service.Wait(sessionID)
	require.True(t, ok)
	assert.Equal(t, ingest.StateCompleted, session.State)
	assert.Equal(t, 1, mem.Created())

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID.String(), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var snapshot ingest.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	assert.Equal(t, tenantID, snapshot.TenantID)
}

func TestProgressEndpointStreams(t *testing.T) {
	srv, _ := newTestServer(t)
	tenantID := uuid.New()

	csvBody := "Document Number,Request Date,Counterparty Tax ID,Unit Code,Personnel Code,Category,Amount,Description\n" +
		"A-90,2026-04-01,TML860512AB1,ECO-102,EMP-31,MANT,800.00,Cambio de aceite\n"
	buf, contentType := multipartCSV(t, "orders.csv", csvBody)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", buf)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	sessionID, err := uuid.Parse(created["sessionId"])
	require.NoError(t, err)

	_, ok := srv.service.Wait(sessionID)
	require.True(t, ok)
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+sessionID.String()+"/commit", nil))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	_, ok = srv.service.Wait(sessionID)
	require.True(t, ok)

	// The stream must work through the full middleware chain, which wraps
	// the ResponseWriter.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID.String()+"/progress", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: progress")
	assert.Contains(t, rec.Body.String(), "event: complete")

	// Resuming past the last event replays nothing but the completion
	// marker.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+sessionID.String()+"/progress?lastEventId=100", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "event: progress")
	assert.Contains(t, rec.Body.String(), "event: complete")

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions/"+uuid.NewString()+"/progress", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSessionRequiresTenant(t *testing.T) {
	srv, _ := newTestServer(t)

	buf, contentType := multipartCSV(t, "orders.csv", "Document Number\nA-1\n")
	req := httptest.NewRequest(http.MethodPost, "/api/sessions", buf)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCommitUnknownSession(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sessions/"+uuid.NewString()+"/commit", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
