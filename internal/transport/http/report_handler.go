package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"classroom-quiz-service/internal/domain"
	"classroom-quiz-service/internal/report"
	"github.com/go-chi/chi/v5"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ReportHandler serves archived session reports to teachers.
type ReportHandler struct {
	store  report.Store
	auth   TokenVerifier
	logger *slog.Logger
}

func NewReportHandler(store report.Store, verifier TokenVerifier, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{store: store, auth: verifier, logger: logger}
}

// Routes mounts GET /rooms/{code}/report. format=xlsx (default), json or png.
func (h *ReportHandler) Routes(r chi.Router) {
	r.Get("/rooms/{code}/report", h.getReport)
}

func (h *ReportHandler) getReport(w http.ResponseWriter, r *http.Request) {
	code := domain.NormalizeRoomCode(chi.URLParam(r, "code"))
	if code == "" {
		http.Error(w, domain.ErrInvalidRoomCode.Error(), http.StatusBadRequest)
		return
	}
	if h.auth != nil && h.auth.Enabled() {
		if _, err := h.auth.VerifyTeacher(bearerToken(r), code); err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
	}

	rep, err := h.store.Get(r.Context(), code)
	if errors.Is(err, report.ErrReportNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "load report failed", slog.String("room", code), slog.Any("error", err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	switch r.URL.Query().Get("format") {
	case "json":
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rep.Analytics)
	case "png":
		if len(rep.Chart) == 0 {
			http.Error(w, "no chart for this report", http.StatusNotFound)
			return
		}
		writeFile(w, "image/png", "scores-"+code+".png", rep.Chart)
	case "", "xlsx":
		writeFile(w, xlsxContentType, "report-"+code+".xlsx", rep.Workbook)
	default:
		http.Error(w, "unsupported format", http.StatusBadRequest)
	}
}

func writeFile(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}
