package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type relationRepository struct {
	db *gorm.DB
}

// NewRelationRepository 创建 RelationRepository 实例
func NewRelationRepository(db *gorm.DB) RelationRepository {
	return &relationRepository{db: db}
}

// ExistsBetween 过去、待确认、进行中的关系都算
func (r *relationRepository) ExistsBetween(ctx context.Context, teacherId, parentId string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.TeachingRelation{}).
		Where("teacher_id = ? AND parent_id = ?", teacherId, parentId).
		Count(&count).Error
	if err != nil {
		return false, wrapDBErrorf(err, "查询教学关系 teacher=%s parent=%s", teacherId, parentId)
	}
	return count > 0, nil
}

func (r *relationRepository) Find(ctx context.Context, teacherId, parentId, studentId string) (*model.TeachingRelation, error) {
	var rel model.TeachingRelation
	err := r.db.WithContext(ctx).
		Where("teacher_id = ? AND parent_id = ? AND student_id = ?", teacherId, parentId, studentId).
		First(&rel).Error
	if err != nil {
		return nil, wrapDBErrorf(err, "查询教学关系 teacher=%s student=%s", teacherId, studentId)
	}
	return &rel, nil
}

func (r *relationRepository) Upsert(ctx context.Context, rel *model.TeachingRelation) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "teacher_id"}, {Name: "parent_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(rel).Error
	if err != nil {
		return wrapDBErrorf(err, "写入教学关系 teacher=%s student=%s", rel.TeacherId, rel.StudentId)
	}
	return nil
}
