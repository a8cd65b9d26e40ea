package service

import (
	"context"

	"go-inventory-tree/internal/model"
	"go-inventory-tree/internal/repository"
	"go-inventory-tree/pkg/apperror"

	"github.com/google/uuid"
)

type HistoryService interface {
	History(ctx context.Context, entityID uuid.UUID, offset, limit int) ([]model.EntityHistory, error)
}

type historyService struct {
	entities repository.EntityRepository
	history  repository.HistoryRepository
}

func NewHistoryService(entities repository.EntityRepository, history repository.HistoryRepository) HistoryService {
	return &historyService{entities: entities, history: history}
}

// History returns the entity's audit trail, newest first. A zero limit
// means 50.
func (s *historyService) History(ctx context.Context, entityID uuid.UUID, offset, limit int) ([]model.EntityHistory, error) {
	if _, err := s.entities.FindByID(ctx, entityID); err != nil {
		return nil, notFoundOr(err, apperror.CodeEntityNotFound, "entity", entityID)
	}
	entries, err := s.history.ListByEntity(ctx, entityID, repository.Page{Offset: offset, Limit: limit})
	if err != nil {
		return nil, apperror.Unexpected(err, "list history")
	}
	return entries, nil
}
