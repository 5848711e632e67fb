package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/store"
)

// Common errors for friend operations.
var (
	ErrCannotFriendSelf = errors.New("cannot add yourself as a friend")
	ErrUserNotFound     = errors.New("user not found")
)

// Store is the persistence this service needs.
type Store interface {
	store.FriendStore
	GetUserByID(ctx context.Context, id int64) (*store.User, error)
}

// Service is the friend store collaborator: directed edges in, mutual ids out.
type Service struct {
	store Store
	log   *zerolog.Logger
}

// New creates a new friend service.
func New(st Store, logger *zerolog.Logger) *Service {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Service{
		store: st,
		log:   logger,
	}
}

// AddDirectedEdge records that fromID added toID.
func (s *Service) AddDirectedEdge(ctx context.Context, fromID, toID int64) error {
	if fromID == toID {
		return ErrCannotFriendSelf
	}

	if _, err := s.store.GetUserByID(ctx, toID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		s.log.Error().Err(err).Int64("to_id", toID).Msg("friend target lookup failed")
		return fmt.Errorf("lookup friend target: %w", err)
	}

	if err := s.store.AddFriendEdge(ctx, fromID, toID); err != nil {
		s.log.Error().Err(err).Int64("from_id", fromID).Int64("to_id", toID).Msg("add friend edge failed")
		return fmt.Errorf("add friend edge: %w", err)
	}

	s.log.Debug().Int64("from_id", fromID).Int64("to_id", toID).Msg("friend edge added")
	return nil
}

// MutualFriendIDs returns the set of ids connected to userID in both directions.
func (s *Service) MutualFriendIDs(ctx context.Context, userID int64) (map[int64]struct{}, error) {
	ids, err := s.store.ListMutualFriendIDs(ctx, userID)
	if err != nil {
		s.log.Error().Err(err).Int64("user_id", userID).Msg("list mutual friends failed")
		return nil, fmt.Errorf("list mutual friends: %w", err)
	}

	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}
