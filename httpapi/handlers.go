package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"time"

	"github.com/aaileenssyed/LocalFlow/export"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/go-chi/chi/v5"
)

const maxBodyBytes = 1 << 20

type preferencesRequest struct {
	VibeScore       int                 `json:"vibeScore" validate:"min=0,max=100"`
	VibeDescription string              `json:"vibeDescription" validate:"max=500"`
	Dietary         []string            `json:"dietary" validate:"max=20,dive,max=50"`
	Location        string              `json:"location" validate:"required,max=200"`
	Budget          string              `json:"budget" validate:"required,budget"`
	TripStartTime   string              `json:"tripStartTime" validate:"required,clock"`
	TripEndTime     string              `json:"tripEndTime" validate:"required,clock"`
	Commitments     []commitmentRequest `json:"fixedCommitments" validate:"max=20,dive"`
}

type commitmentRequest struct {
	ID          string                 `json:"id" validate:"max=64"`
	StartTime   string                 `json:"startTime" validate:"required,clock"`
	EndTime     string                 `json:"endTime" validate:"omitempty,clock"`
	Location    string                 `json:"location" validate:"required,max=200"`
	Description string                 `json:"description" validate:"max=200"`
	Coordinates *itinerary.Coordinates `json:"coordinates,omitempty"`
	// Resolve looks the location up and stores its coordinates.
	Resolve bool `json:"resolve"`
}

type recalculateRequest struct {
	Reason string   `json:"reason" validate:"required,max=500"`
	Lat    *float64 `json:"lat" validate:"omitempty,latitude"`
	Lng    *float64 `json:"lng" validate:"omitempty,longitude"`
}

type itineraryResponse struct {
	Itinerary *itinerary.Itinerary `json:"itinerary"`
	Status    session.Status       `json:"status"`
}

func (s *Server) getStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) getPreferences(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Preferences())
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !s.decode(w, r, &req) {
		return
	}
	prefs := itinerary.UserPreferences{
		VibeScore:        req.VibeScore,
		VibeDescription:  req.VibeDescription,
		Dietary:          req.Dietary,
		Location:         req.Location,
		Budget:           itinerary.Budget(req.Budget),
		TripStartTime:    req.TripStartTime,
		TripEndTime:      req.TripEndTime,
		FixedCommitments: make([]itinerary.FixedCommitment, 0, len(req.Commitments)),
	}
	if prefs.Dietary == nil {
		prefs.Dietary = []string{}
	}
	for _, c := range req.Commitments {
		end := c.EndTime
		if end == "" {
			end = c.StartTime
		}
		desc := c.Description
		if desc == "" {
			desc = itinerary.DefaultCommitmentDescription
		}
		prefs.FixedCommitments = append(prefs.FixedCommitments, itinerary.FixedCommitment{
			ID:          c.ID,
			StartTime:   c.StartTime,
			EndTime:     end,
			Location:    c.Location,
			Description: desc,
			Coordinates: c.Coordinates,
		})
	}
	if err := s.engine.SetPreferences(r.Context(), prefs); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Preferences())
}

func (s *Server) listCommitments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Commitments())
}

func (s *Server) addCommitment(w http.ResponseWriter, r *http.Request) {
	var req commitmentRequest
	if !s.decode(w, r, &req) {
		return
	}
	fc, err := s.engine.AddCommitment(r.Context(), session.CommitmentInput{
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Location:    req.Location,
		Description: req.Description,
	}, req.Resolve)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, fc)
}

func (s *Server) removeCommitment(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveCommitment(r.Context(), chi.URLParam(r, "commitmentID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getItinerary(w http.ResponseWriter, r *http.Request) {
	it := s.engine.Current()
	if it == nil {
		s.writeError(w, r, session.ErrNoItinerary)
		return
	}
	writeJSON(w, http.StatusOK, itineraryResponse{Itinerary: it, Status: s.engine.Status()})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	it, err := s.engine.Generate(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itineraryResponse{Itinerary: it, Status: s.engine.Status()})
}

func (s *Server) reset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recalculate(w http.ResponseWriter, r *http.Request) {
	var req recalculateRequest
	if !s.decode(w, r, &req) {
		return
	}
	if (req.Lat == nil) != (req.Lng == nil) {
		s.writeError(w, r, fmt.Errorf("%w: lat and lng go together", ErrValidation))
		return
	}
	var opts []session.RecalcOption
	if req.Lat != nil {
		opts = append(opts, session.At(itinerary.Coordinates{Lat: *req.Lat, Lng: *req.Lng}))
	}
	it, err := s.engine.Recalculate(r.Context(), req.Reason, opts...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itineraryResponse{Itinerary: it, Status: s.engine.Status()})
}

func (s *Server) getLinks(w http.ResponseWriter, r *http.Request) {
	it := s.engine.Current()
	if it == nil {
		s.writeError(w, r, session.ErrNoItinerary)
		return
	}
	writeJSON(w, http.StatusOK, itinerary.Links(it))
}

func (s *Server) exportItinerary(w http.ResponseWriter, r *http.Request) {
	it := s.engine.Current()
	if it == nil {
		s.writeError(w, r, session.ErrNoItinerary)
		return
	}

	format := export.FormatMarkdown
	if q := r.URL.Query().Get("format"); q != "" {
		f, err := export.ParseFormat(q)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: %v", ErrValidation, err))
			return
		}
		format = f
	}
	opts := export.Options{City: s.engine.Preferences().Location}
	if q := r.URL.Query().Get("date"); q != "" {
		day, err := time.ParseInLocation(time.DateOnly, q, time.Local)
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrValidation, q))
			return
		}
		opts.Date = day
	}

	data, err := export.Render(it, format, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	info, _ := export.GetFormatInfo(format)
	w.Header().Set("Content-Type", info.MIMEType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment",
		map[string]string{"filename": "itinerary-" + it.ID + info.Extension}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// decode reads and validates a JSON body, writing a 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid JSON body: %v", ErrValidation, err))
		return false
	}
	if err := s.validator.Validate(dst); err != nil {
		s.writeError(w, r, err)
		return false
	}
	return true
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeError maps domain errors to status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("Request failed", "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: code, Message: itinerary.UserMessage(err)})
}

func classify(err error) (int, string) {
	var genErr *itinerary.GenerationError
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, itinerary.ErrInvalidPreferences),
		errors.Is(err, itinerary.ErrInvalidCommitment),
		errors.Is(err, itinerary.ErrInvalidReason),
		errors.Is(err, itinerary.ErrOverlappingCommitments):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, itinerary.ErrSwapTargetNotFound):
		return http.StatusUnprocessableEntity, "swap_target_not_found"
	case errors.Is(err, session.ErrNoItinerary):
		return http.StatusNotFound, "no_itinerary"
	case errors.Is(err, session.ErrCommitmentNotFound):
		return http.StatusNotFound, "commitment_not_found"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "busy"
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.As(err, &genErr):
		return http.StatusBadGateway, "generation_failed"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
