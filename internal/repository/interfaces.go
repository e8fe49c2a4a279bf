package repository

import (
	"context"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

// MessageRepository is the local archive of every message this bridge has
// observed. The in-memory session stays authoritative for live state; the
// archive serves offline transcript reads and search.
type MessageRepository interface {
	CreateOrIgnore(ctx context.Context, conversationKey string, msg *domain.Message) error
	GetByConversation(ctx context.Context, conversationKey string, limit, offset int) ([]*domain.Message, error)
	Search(ctx context.Context, query string, limit int) ([]*domain.Message, error)
	DeleteByConversation(ctx context.Context, conversationKey string) error
}

type DoctorRepository interface {
	Upsert(ctx context.Context, doctor *domain.Doctor) error
	GetByKey(ctx context.Context, key string) (*domain.Doctor, error)
	GetAll(ctx context.Context) ([]*domain.Doctor, error)
}
