package scheduler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// Handler accepts POST /meetings/{id}/transcriptions?reprocess=true and
// answers 202 with the Ack. It must be mounted on a pattern that binds {id}.
func Handler(s *Scheduler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "invalid meeting id"})
			return
		}
		reprocess, _ := strconv.ParseBool(r.URL.Query().Get("reprocess"))

		ack, err := s.Submit(r.Context(), id, reprocess)
		switch {
		case errors.Is(err, ErrNoAudio):
			writeJSON(w, http.StatusBadRequest, map[string]string{"detail": err.Error()})
		case errors.Is(err, ErrAlreadyProcessed):
			writeJSON(w, http.StatusConflict, map[string]string{"detail": err.Error()})
		case err != nil:
			s.logger().WithError(err).WithField("meeting_id", id).Error("submit failed")
			writeJSON(w, http.StatusInternalServerError, map[string]string{"detail": "could not queue transcription"})
		default:
			writeJSON(w, http.StatusAccepted, ack)
		}
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
