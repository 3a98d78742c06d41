package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 16

// defaultActivityLimit is used when ?limit is absent.
const defaultActivityLimit = 50

type sessionKey struct{}

// withSession resolves {userID} to a loaded session.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		svc, err := s.sessions.Get(r.Context(), chi.URLParam(r, "userID"))
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		defer s.sessions.Release(r.Context(), svc)
		ctx := context.WithValue(r.Context(), sessionKey{}, svc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func session(r *http.Request) *engagement.Service {
	return r.Context().Value(sessionKey{}).(*engagement.Service)
}

// decodeBody reads an optional JSON body into v.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ─── Projections ────────────────────────────────────────────────────────────

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Summary())
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).StreakSummary())
}

func (s *Server) handleLevel(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Level())
}

func (s *Server) handleTrophies(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Trophies())
}

func (s *Server) handleBadges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Badges())
}

func (s *Server) handleChallenges(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Challenges())
}

func (s *Server) handleGoals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, session(r).Goals())
}

func (s *Server) handleActivities(w http.ResponseWriter, r *http.Request) {
	limit := defaultActivityLimit
	if q := r.URL.Query().Get("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, map[string]any{"activities": session(r).Activities(limit)})
}

func (s *Server) handleCelebrations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"celebrations": session(r).Celebrations()})
}

// ─── Entry Points ───────────────────────────────────────────────────────────

func (s *Server) handleWorkout(w http.ResponseWriter, r *http.Request) {
	var req engagement.Workout
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.RecordWorkoutCompleted(ctx, req)
	})
}

func (s *Server) handleDiet(w http.ResponseWriter, r *http.Request) {
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.RecordDietFollowed(ctx)
	})
}

func (s *Server) handleCompleteDaily(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.CompleteDailyChallenge(ctx, id)
	})
}

func (s *Server) handleCompleteWeekly(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.CompleteWeeklyChallenge(ctx, id)
	})
}

type addXPRequest struct {
	Amount int    `json:"amount"`
	Reason string `json:"reason"`
}

func (s *Server) handleAddXP(w http.ResponseWriter, r *http.Request) {
	var req addXPRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.AddXP(ctx, req.Amount, req.Reason)
	})
}

type profileRequest struct {
	WeeklyTrainingDays int `json:"weeklyTrainingDays"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	s.writeOutcome(w, r, func(ctx context.Context, svc *engagement.Service) (engagement.Outcome, error) {
		return svc.SetWeeklyTrainingDays(ctx, req.WeeklyTrainingDays)
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	svc := session(r)
	if err := svc.Refresh(r.Context()); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, svc.Summary())
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	svc := session(r)
	saved := svc.ForceSave(r.Context())
	status := http.StatusOK
	if !saved {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{"saved": saved, "status": svc.SaveStatus()})
}

func (s *Server) handleAckCelebrations(w http.ResponseWriter, r *http.Request) {
	shown := session(r).AcknowledgeCelebrations(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"acknowledged": shown})
}

func (s *Server) writeOutcome(w http.ResponseWriter, r *http.Request,
	fn func(context.Context, *engagement.Service) (engagement.Outcome, error)) {
	out, err := fn(r.Context(), session(r))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
