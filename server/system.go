package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aschepis/backscratcher/debot/printer"
)

// Health is the body of GET /healthz.
type Health struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	StartedAt time.Time `json:"started_at"`
	Uptime    string    `json:"uptime"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{
		Status:    "running",
		Version:   s.cfg.Version,
		StartedAt: s.startedAt,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

func (s *Server) handlePrinterWebhook(w http.ResponseWriter, r *http.Request) {
	if s.printer == nil || s.poster == nil || s.cfg.AlertChannel == "" {
		http.Error(w, "printer alerts are not configured", http.StatusNotFound)
		return
	}

	var payload printer.Payload
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		s.logger.Warn().Err(err).Msg("malformed printer webhook")
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	alert, ok := s.printer.Handle(payload)
	if !ok {
		_, _ = w.Write([]byte("OK"))
		return
	}
	if _, err := s.poster.PostMessage(r.Context(), s.cfg.AlertChannel, "", alert); err != nil {
		s.logger.Error().Err(err).Str("printer", payload.PrinterName).Msg("failed to post printer alert")
		http.Error(w, "failed to post alert", http.StatusInternalServerError)
		return
	}
	s.logger.Info().Str("printer", payload.PrinterName).Msg("posted printer alert")
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
