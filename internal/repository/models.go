package repository

import (
	"time"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

type MessageModel struct {
	ID              string    `gorm:"primaryKey;column:id"`
	ConversationKey string    `gorm:"column:conversation_key;index:idx_conv_timestamp"`
	SenderID        string    `gorm:"column:sender_id"`
	ReceiverID      string    `gorm:"column:receiver_id"`
	SenderName      string    `gorm:"column:sender_name"`
	Body            string    `gorm:"column:body"`
	Timestamp       time.Time `gorm:"column:timestamp;index:idx_conv_timestamp"`
	IsMine          bool      `gorm:"column:is_mine"`
	Pending         bool      `gorm:"column:pending"`
	CreatedAt       time.Time `gorm:"column:created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (MessageModel) TableName() string { return "messages" }

type DoctorModel struct {
	Key       string    `gorm:"primaryKey;column:key"`
	LegacyID  string    `gorm:"column:legacy_id;index"`
	Name      string    `gorm:"column:name"`
	Email     string    `gorm:"column:email"`
	Specialty string    `gorm:"column:specialty"`
	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (DoctorModel) TableName() string { return "doctors" }

// Conversion functions
func MessageModelToDomain(m *MessageModel) *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		SenderName: m.SenderName,
		Body:       m.Body,
		Timestamp:  m.Timestamp,
		IsMine:     m.IsMine,
		Pending:    m.Pending,
	}
}

func MessageDomainToModel(conversationKey string, msg *domain.Message) *MessageModel {
	if msg == nil {
		return nil
	}
	return &MessageModel{
		ID:              msg.ID,
		ConversationKey: conversationKey,
		SenderID:        msg.SenderID,
		ReceiverID:      msg.ReceiverID,
		SenderName:      msg.SenderName,
		Body:            msg.Body,
		Timestamp:       msg.Timestamp,
		IsMine:          msg.IsMine,
		Pending:         msg.Pending,
	}
}

func DoctorModelToDomain(m *DoctorModel) *domain.Doctor {
	if m == nil {
		return nil
	}
	d := &domain.Doctor{
		ID:        m.LegacyID,
		Name:      m.Name,
		Email:     m.Email,
		Specialty: m.Specialty,
		Status:    domain.PresenceOffline,
	}
	if m.Key != m.LegacyID {
		d.UID = m.Key
	}
	return d
}

func DoctorDomainToModel(doctor *domain.Doctor) *DoctorModel {
	if doctor == nil {
		return nil
	}
	return &DoctorModel{
		Key:       doctor.Key(),
		LegacyID:  doctor.ID,
		Name:      doctor.Name,
		Email:     doctor.Email,
		Specialty: doctor.Specialty,
	}
}
