package service

import (
	"context"
	"slices"

	"github.com/pokewar-server/internal/domain"
	"github.com/pokewar-server/internal/store"
)

// Matches handles champion selection and match resolution inside servers
type Matches struct {
	*env
	rooms *Rooms
}

func (s *Matches) selections(ctx context.Context) []domain.ServerSelection {
	return store.Read(ctx, s.kv, SelectionsKey, []domain.ServerSelection{})
}

func (s *Matches) matches(ctx context.Context) []domain.MatchRecord {
	return store.Read(ctx, s.kv, MatchesKey, []domain.MatchRecord{})
}

// SetServerSelection records the trainer's champion for the next match in
// a server. A second pick by the same trainer replaces the first and keeps
// its id. Membership is checked by the caller.
func (s *Matches) SetServerSelection(ctx context.Context, req domain.SelectionRequest) (*domain.ServerSelection, error) {
	if req.ServerID == "" || req.UserID == "" || req.PokemonID == "" {
		return nil, domain.ErrInvalidRequest
	}

	var saved domain.ServerSelection
	_, err := store.Update(ctx, s.kv, SelectionsKey, []domain.ServerSelection{}, func(selections []domain.ServerSelection) ([]domain.ServerSelection, error) {
		saved = domain.ServerSelection{
			ServerID:    req.ServerID,
			UserID:      req.UserID,
			PokemonID:   req.PokemonID,
			PokemonName: req.PokemonName,
			CreatedAt:   s.timestamp(),
		}
		idx := slices.IndexFunc(selections, func(sel domain.ServerSelection) bool {
			return sel.ServerID == req.ServerID && sel.UserID == req.UserID
		})
		if idx >= 0 {
			saved.ID = selections[idx].ID
			selections[idx] = saved
			return selections, nil
		}
		saved.ID = s.newID()
		return append(selections, saved), nil
	})
	if err != nil {
		return nil, err
	}

	return &saved, nil
}

// GetSelectionsForServer returns the live picks for a server in storage order
func (s *Matches) GetSelectionsForServer(ctx context.Context, serverID string) []domain.ServerSelection {
	result := []domain.ServerSelection{}
	for _, sel := range s.selections(ctx) {
		if sel.ServerID == serverID {
			result = append(result, sel)
		}
	}
	return result
}

// ClearSelectionsForServer drops every pick made in a server
func (s *Matches) ClearSelectionsForServer(ctx context.Context, serverID string) error {
	_, err := store.Update(ctx, s.kv, SelectionsKey, []domain.ServerSelection{}, func(selections []domain.ServerSelection) ([]domain.ServerSelection, error) {
		return dropServer(selections, serverID), nil
	})
	return err
}

func dropServer(selections []domain.ServerSelection, serverID string) []domain.ServerSelection {
	return slices.DeleteFunc(selections, func(sel domain.ServerSelection) bool {
		return sel.ServerID == serverID
	})
}

// CreateMatchFromSelections resolves a duel between the first two picks of
// a server. The winner is a coin flip. All picks in the server are
// consumed, so both trainers pick again for the next match.
func (s *Matches) CreateMatchFromSelections(ctx context.Context, serverID string) (*domain.MatchRecord, error) {
	if _, err := s.rooms.GetServer(ctx, serverID); err != nil {
		return nil, err
	}

	var first, second domain.ServerSelection
	_, err := store.Update(ctx, s.kv, SelectionsKey, []domain.ServerSelection{}, func(selections []domain.ServerSelection) ([]domain.ServerSelection, error) {
		var picks []domain.ServerSelection
		for _, sel := range selections {
			if sel.ServerID == serverID {
				picks = append(picks, sel)
			}
		}
		if len(picks) < 2 {
			return nil, domain.ErrInsufficientSelections
		}
		if picks[0].UserID == picks[1].UserID {
			return nil, domain.ErrSameUser
		}
		first, second = picks[0], picks[1]
		return dropServer(selections, serverID), nil
	})
	if err != nil {
		return nil, err
	}

	winner := second.UserID
	if s.random() > 0.5 {
		winner = first.UserID
	}

	match := domain.MatchRecord{
		ID:                 s.newID(),
		ServerID:           serverID,
		Player1ID:          first.UserID,
		Player2ID:          second.UserID,
		Player1PokemonID:   first.PokemonID,
		Player1PokemonName: first.PokemonName,
		Player2PokemonID:   second.PokemonID,
		Player2PokemonName: second.PokemonName,
		WinnerID:           winner,
		CreatedAt:          s.timestamp(),
	}

	_, err = store.Update(ctx, s.kv, MatchesKey, []domain.MatchRecord{}, func(matches []domain.MatchRecord) ([]domain.MatchRecord, error) {
		return append(matches, match), nil
	})
	if err != nil {
		s.logger.Error("selections consumed but match could not be stored",
			"server_id", serverID,
			"match_id", match.ID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("match resolved",
		"match_id", match.ID,
		"server_id", serverID,
		"winner_id", winner,
	)

	if err := s.publisher.PublishMatch(ctx, match); err != nil {
		s.logger.Warn("failed to publish match", "match_id", match.ID, "error", err)
	}

	return &match, nil
}

// GetMatchesForUser returns every match the trainer played, oldest first
func (s *Matches) GetMatchesForUser(ctx context.Context, userID string) []domain.MatchRecord {
	result := []domain.MatchRecord{}
	for _, m := range s.matches(ctx) {
		if m.Involves(userID) {
			result = append(result, m)
		}
	}
	return result
}

// GetStatsForUser counts the trainer's wins and losses
func (s *Matches) GetStatsForUser(ctx context.Context, userID string) domain.MatchStats {
	var stats domain.MatchStats
	for _, m := range s.GetMatchesForUser(ctx, userID) {
		stats.Played++
		if m.WinnerID == userID {
			stats.Wins++
		}
	}
	stats.Losses = stats.Played - stats.Wins
	return stats
}

// GetMatchHistoryForServer returns the matches played in a server, oldest first
func (s *Matches) GetMatchHistoryForServer(ctx context.Context, serverID string) []domain.MatchRecord {
	result := []domain.MatchRecord{}
	for _, m := range s.matches(ctx) {
		if m.ServerID == serverID {
			result = append(result, m)
		}
	}
	return result
}
