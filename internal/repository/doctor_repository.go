package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/medsc/clinic-chat-bridge/internal/domain"
)

type gormDoctorRepository struct {
	db *gorm.DB
}

func NewDoctorRepository(db *gorm.DB) DoctorRepository {
	return &gormDoctorRepository{db: db}
}

func (r *gormDoctorRepository) Upsert(ctx context.Context, doctor *domain.Doctor) error {
	model := DoctorDomainToModel(doctor)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			UpdateAll: true,
		}).
		Create(model).Error
}

func (r *gormDoctorRepository) GetByKey(ctx context.Context, key string) (*domain.Doctor, error) {
	var model DoctorModel
	err := r.db.WithContext(ctx).
		Where("key = ? OR legacy_id = ?", key, key).
		First(&model).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return DoctorModelToDomain(&model), nil
}

func (r *gormDoctorRepository) GetAll(ctx context.Context) ([]*domain.Doctor, error) {
	var models []DoctorModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	doctors := make([]*domain.Doctor, len(models))
	for i := range models {
		doctors[i] = DoctorModelToDomain(&models[i])
	}
	return doctors, nil
}
