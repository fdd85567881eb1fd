package repository

import (
	"context"

	"tutor_chat_server/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建 UserRepository 实例
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) FindByUuid(ctx context.Context, uuid string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&user).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 uuid=%s", uuid)
	}
	return &user, nil
}

func (r *userRepository) FindByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	var users []model.UserInfo
	if err := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量查询用户")
	}
	return users, nil
}

// Upsert 身份信息以事件为准，昵称为空时保留旧值
func (r *userRepository) Upsert(ctx context.Context, user *model.UserInfo) error {
	columns := []string{"role", "updated_at"}
	if user.Nickname != "" {
		columns = append(columns, "nickname")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(user).Error
	if err != nil {
		return wrapDBErrorf(err, "写入用户 uuid=%s", user.Uuid)
	}
	return nil
}
