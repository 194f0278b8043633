package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/campusplay/dicearena/internal/catalog"
	"github.com/campusplay/dicearena/internal/venue"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleScenarios(deck *catalog.Catalog) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, deck.All())
	}
}

func handleGameState(venues *venue.Registry, state StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		venueID := r.URL.Query().Get("venue")
		if venueID == "" {
			venueID = venues.DefaultID()
		}
		if !venues.Exists(venueID) {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}
		writeJSON(w, http.StatusOK, state.Snapshot(venueID))
	}
}

func handleVenues(venues *venue.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, venues.Snapshot())
	}
}

// handleVenueQR returns a PNG QR code of the venue's join URL, for putting
// up at the door.
func handleVenueQR(venues *venue.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		venueID := chi.URLParam(r, "venueID")
		if !venues.Exists(venueID) {
			writeError(w, http.StatusNotFound, "venue not found")
			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		joinURL := scheme + "://" + r.Host + "/?venue=" + venueID
		if !strings.HasPrefix(joinURL, "http") {
			writeError(w, http.StatusBadRequest, "cannot derive join url")
			return
		}

		const qrSize = 320
		png, err := qrcode.Encode(joinURL, qrcode.Medium, qrSize)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "qr generation failed")
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}
