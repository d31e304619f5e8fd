package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"codeberg.org/mutker/dronedash/internal/arena"
	"codeberg.org/mutker/dronedash/internal/errors"
	"codeberg.org/mutker/dronedash/internal/history"
	"codeberg.org/mutker/dronedash/internal/telemetry"
)

const (
	defaultDays = 1
	maxDays     = 366

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// parseDays reads the days query parameter. Missing means one day.
func parseDays(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("days")
	if raw == "" {
		return defaultDays, nil
	}

	days, err := strconv.Atoi(raw)
	if err != nil || days < 1 || days > maxDays {
		return 0, errors.New().WithMessage(ErrInvalidQuery,
			fmt.Sprintf("days must be an integer between 1 and %d", maxDays))
	}

	return days, nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusBadRequest, errorResponse{
		Status: history.StatusError,
		Error:  err.Error(),
		Code:   errors.CodeOf(err).String(),
	})
}

// GET /api/history?days=N
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	res := s.history.Query(r.Context(), days)
	if !res.OK() {
		writeJSON(w, http.StatusInternalServerError, historyResponse{
			Status: res.Status,
			Data:   []telemetry.Snapshot{},
			Error:  res.Error,
			Code:   res.Code,
		})
		return
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Status: res.Status,
		Data:   res.Data,
		Count:  len(res.Data),
	})
}

// POST /api/history/collect
func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	res := s.history.Collect(r.Context())

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// DELETE /api/history
func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	res := s.history.PurgeAll(r.Context())
	if !res.OK() {
		writeJSON(w, http.StatusInternalServerError, purgeResponse{
			Status: res.Status,
			Error:  res.Error,
			Code:   res.Code,
		})
		return
	}

	s.log.Info().Int("deleted_partitions", res.Data).Msg("History cleared over API")

	writeJSON(w, http.StatusOK, purgeResponse{
		Status:            res.Status,
		DeletedPartitions: res.Data,
	})
}

// GET /api/history/partitions
func (s *Server) handlePartitions(w http.ResponseWriter, r *http.Request) {
	res := s.history.Partitions(r.Context())

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, res)
}

// GET /api/history/export?days=N
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r)
	if err != nil {
		badRequest(w, err)
		return
	}

	res := s.history.Query(r.Context(), days)
	if !res.OK() {
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status: res.Status,
			Error:  res.Error,
			Code:   res.Code,
		})
		return
	}

	// render fully before writing headers so a failure can still be reported
	var buf bytes.Buffer
	if err := history.WriteXLSX(&buf, res.Data); err != nil {
		s.log.Error().Err(err).Msg("History export failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Status: history.StatusError,
			Error:  err.Error(),
			Code:   errors.CodeOf(err).String(),
		})
		return
	}

	filename := fmt.Sprintf("telemetry_%s_%dd.xlsx", s.now().Format("2006-01-02"), days)
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// GET /api/geofence
func (s *Server) handleGeofence(w http.ResponseWriter, _ *http.Request) {
	resp := geofenceResponse{Status: history.StatusSuccess}
	if s.mission != nil {
		resp.Mission = s.mission.State()
	}
	if s.arena != nil {
		resp.Arena = s.arena.Status()
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/arena/mock
func (s *Server) handleMockArena(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, arena.MockData(s.now()))
}
