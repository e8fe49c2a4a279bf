package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

type gormMessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &gormMessageRepository{db: db}
}

func (r *gormMessageRepository) CreateOrIgnore(ctx context.Context, conversationKey string, msg *domain.Message) error {
	model := MessageDomainToModel(conversationKey, msg)
	// INSERT OR IGNORE keeps replays of the same message id harmless (SQLite)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(model).Error
}

func (r *gormMessageRepository) GetByConversation(ctx context.Context, conversationKey string, limit, offset int) ([]*domain.Message, error) {
	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("conversation_key = ?", conversationKey).
		Order("timestamp ASC").
		Limit(limit).
		Offset(offset).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) Search(ctx context.Context, query string, limit int) ([]*domain.Message, error) {
	// Escape LIKE special characters to prevent pattern injection
	escapedQuery := strings.ReplaceAll(query, "%", "\\%")
	escapedQuery = strings.ReplaceAll(escapedQuery, "_", "\\_")
	likePattern := "%" + escapedQuery + "%"

	var models []MessageModel
	err := r.db.WithContext(ctx).
		Where("body LIKE ? ESCAPE '\\'", likePattern).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	messages := make([]*domain.Message, len(models))
	for i := range models {
		messages[i] = MessageModelToDomain(&models[i])
	}
	return messages, nil
}

func (r *gormMessageRepository) DeleteByConversation(ctx context.Context, conversationKey string) error {
	return r.db.WithContext(ctx).
		Where("conversation_key = ?", conversationKey).
		Delete(&MessageModel{}).Error
}
