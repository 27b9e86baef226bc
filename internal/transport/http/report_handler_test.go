package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"classroom-quiz-service/internal/auth"
	"classroom-quiz-service/internal/report"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newReportRouter(t *testing.T, verifier TokenVerifier) chi.Router {
	t.Helper()
	store := report.NewMemoryStore()
	require.NoError(t, store.Save(context.Background(), report.Report{
		RoomCode:  "ABC123",
		Analytics: report.Analytics{RoomCode: "ABC123", ClassAverageScore: 71},
		Workbook:  []byte("PK-fake-xlsx"),
	}))
	r := chi.NewRouter()
	NewReportHandler(store, verifier, nil).Routes(r)
	return r
}

func TestReportDownload(t *testing.T) {
	router := newReportRouter(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/abc123/report", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "report-ABC123.xlsx")
	assert.Equal(t, "PK-fake-xlsx", rec.Body.String())

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ABC123/report?format=json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var a report.Analytics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, 71.0, a.ClassAverageScore)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ABC123/report?format=png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/NOPE/report", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReportRequiresTeacherToken(t *testing.T) {
	issuer := auth.NewIssuer("s3cret")
	router := newReportRouter(t, issuer)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/rooms/ABC123/report", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := issuer.Issue("teacher-1", "ABC123", time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/rooms/ABC123/report", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
