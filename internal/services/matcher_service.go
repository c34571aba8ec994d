package services

import (
	"context"

	"sosalert/internal/lifecycle"
	"sosalert/internal/models"
	"sosalert/internal/repositories/interfaces"
	"sosalert/internal/utils"
)

// MatcherService finds volunteers near an alert.
type MatcherService interface {
	// FindCandidates returns at most the configured number of active
	// volunteers inside a square of ±delta degrees around the alert, each
	// with its haversine distance. Results keep store order and are not
	// sorted by distance.
	FindCandidates(ctx context.Context, alert *models.EmergencyAlert) ([]lifecycle.Candidate, error)
}

type matcherService struct {
	users         interfaces.UserRepository
	delta         float64
	maxCandidates int
}

func NewMatcherService(users interfaces.UserRepository, delta float64, maxCandidates int) MatcherService {
	if delta <= 0 {
		delta = utils.DefaultMatchDelta
	}
	if maxCandidates <= 0 {
		maxCandidates = utils.DefaultMaxCandidates
	}
	return &matcherService{
		users:         users,
		delta:         delta,
		maxCandidates: maxCandidates,
	}
}

func (s *matcherService) FindCandidates(ctx context.Context, alert *models.EmergencyAlert) ([]lifecycle.Candidate, error) {
	box := utils.BoxAround(alert.Location.Latitude, alert.Location.Longitude, s.delta)

	volunteers, err := s.users.FindVolunteersInBox(ctx, box, s.maxCandidates)
	if err != nil {
		return nil, err
	}

	candidates := make([]lifecycle.Candidate, 0, len(volunteers))
	for _, v := range volunteers {
		// The store filters too; this keeps the guarantee independent of it.
		if !v.IsVolunteer() || !v.IsActive || v.Location == nil {
			continue
		}
		d := utils.DistanceKm(alert.Location.Latitude, alert.Location.Longitude, v.Location.Latitude, v.Location.Longitude)
		candidates = append(candidates, lifecycle.Candidate{
			Volunteer:  v,
			DistanceKm: utils.RoundKm(d),
		})
		if len(candidates) == s.maxCandidates {
			break
		}
	}
	return candidates, nil
}
