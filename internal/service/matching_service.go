package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/Freeeeeet/tutoring_portal/internal/civil"
	"github.com/Freeeeeet/tutoring_portal/internal/model"
	"go.uber.org/zap"
)

// Веса подбора репетитора, в сумме 100
const (
	previousSessionsWeight = 40.0
	ratingWeight           = 25.0
	scheduleWeight         = 20.0
	mediumWeight           = 15.0

	sessionsForFullScore = 5
	defaultMatchLimit    = 5
)

// MatchPreferences пожелания ученика, все поля необязательны
type MatchPreferences struct {
	DayOfWeek *int
	Time      *civil.Clock
	Medium    model.SessionMedium
}

type ScoreBreakdown struct {
	PreviousSessions      float64 `json:"previous_sessions"`
	Rating                float64 `json:"rating"`
	ScheduleCompatibility float64 `json:"schedule_compatibility"`
	SessionTypeMatch      float64 `json:"session_type_match"`
}

type TutorMatch struct {
	TutorID    int64          `json:"tutor_id"`
	TutorName  string         `json:"tutor_name"`
	TutorEmail string         `json:"tutor_email"`
	TotalScore float64        `json:"total_score"`
	Breakdown  ScoreBreakdown `json:"score_breakdown"`
}

type MatchingService struct {
	windows  AvailabilityStore
	sessions SessionStore
	users    UserStore
	logger   *zap.Logger
}

func NewMatchingService(windows AvailabilityStore, sessions SessionStore, users UserStore, logger *zap.Logger) *MatchingService {
	return &MatchingService{
		windows:  windows,
		sessions: sessions,
		users:    users,
		logger:   logger,
	}
}

// Recommend лучшие репетиторы для ученика по убыванию оценки
func (s *MatchingService) Recommend(ctx context.Context, studentID int64, prefs MatchPreferences, limit int) ([]TutorMatch, error) {
	if limit <= 0 {
		limit = defaultMatchLimit
	}
	if prefs.DayOfWeek != nil && (*prefs.DayOfWeek < 0 || *prefs.DayOfWeek > 6) {
		return nil, invalid("day", "must be 0 to 6")
	}

	if _, err := getUser(ctx, s.users, studentID); err != nil {
		return nil, err
	}

	tutors, err := s.users.ListByRole(ctx, model.RoleTutor)
	if err != nil {
		return nil, fmt.Errorf("list tutors: %w", err)
	}

	matches := make([]TutorMatch, 0, len(tutors))
	for _, tutor := range tutors {
		previous, err := s.sessions.CountBooked(ctx, studentID, tutor.ID)
		if err != nil {
			return nil, fmt.Errorf("count sessions with tutor %d: %w", tutor.ID, err)
		}
		avg, rated, err := s.sessions.AverageRating(ctx, tutor.ID)
		if err != nil {
			return nil, fmt.Errorf("average rating of tutor %d: %w", tutor.ID, err)
		}
		windows, err := s.windows.ListByTutor(ctx, tutor.ID)
		if err != nil {
			return nil, fmt.Errorf("list availability of tutor %d: %w", tutor.ID, err)
		}

		b := ScoreBreakdown{
			PreviousSessions:      previousSessionsScore(previous),
			Rating:                ratingScore(avg, rated),
			ScheduleCompatibility: scheduleScore(windows, prefs),
			SessionTypeMatch:      mediumScore(windows, prefs.Medium),
		}
		total := b.PreviousSessions + b.Rating + b.ScheduleCompatibility + b.SessionTypeMatch

		matches = append(matches, TutorMatch{
			TutorID:    tutor.ID,
			TutorName:  tutor.Name,
			TutorEmail: tutor.Email,
			TotalScore: math.Round(total*100) / 100,
			Breakdown:  b,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].TotalScore > matches[j].TotalScore
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	s.logger.Debug("Tutor recommendations computed",
		zap.Int64("student_id", studentID),
		zap.Int("tutors", len(tutors)),
		zap.Int("returned", len(matches)),
	)

	return matches, nil
}

func previousSessionsScore(count int) float64 {
	if count <= 0 {
		return 0
	}
	return previousSessionsWeight * math.Min(float64(count)/sessionsForFullScore, 1)
}

// ratingScore без оценок репетитор получает половину веса
func ratingScore(avg float64, rated int) float64 {
	if rated == 0 {
		return ratingWeight * 0.5
	}
	return ratingWeight * avg / 5
}

func scheduleScore(windows []*model.AvailabilityWindow, prefs MatchPreferences) float64 {
	if len(windows) == 0 {
		return 0
	}
	if prefs.DayOfWeek == nil && prefs.Time == nil {
		return scheduleWeight * 0.5
	}

	best := 0.0
	for _, w := range windows {
		match := 0.0
		if prefs.DayOfWeek != nil && w.DayOfWeek == *prefs.DayOfWeek {
			match += 0.5
		}
		if prefs.Time != nil {
			m := prefs.Time.Minutes()
			if m >= w.Start.Minutes() && m <= w.End.Minutes() {
				match += 0.5
			}
		}
		best = math.Max(best, match)
	}
	return scheduleWeight * best
}

func mediumScore(windows []*model.AvailabilityWindow, medium model.SessionMedium) float64 {
	if medium == "" {
		return mediumWeight * 0.5
	}
	for _, w := range windows {
		if w.Medium == medium {
			return mediumWeight
		}
	}
	return 0
}
