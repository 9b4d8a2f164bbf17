package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"showroom/internal/model"
	"showroom/internal/repository"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestItemService_CreateRollsBack(t *testing.T) {
	actor, _ := actorState(model.RoleGeneral, model.StatusApproved)
	tagID := uuid.New()
	now := time.Now()

	tests := []struct {
		name     string
		expectTx func(mock sqlmock.Sqlmock)
	}{
		{
			name: "tag link fails",
			expectTx: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO `items`").WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(".+").WillReturnError(errors.New("foreign key violation"))
				mock.ExpectRollback()
			},
		},
		{
			name: "row insert fails",
			expectTx: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec("INSERT INTO `items`").WillReturnError(errors.New("disk full"))
				mock.ExpectRollback()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			svc := NewItemService(
				repository.NewItemRepository(db),
				repository.NewBrandRepository(db),
				repository.NewTagRepository(db),
				&recorder{},
			)

			// Tag references resolve before the transaction opens.
			mock.ExpectQuery("SELECT \\* FROM `tags`").
				WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "name", "slug", "created_at", "updated_at"}).
					AddRow(tagID.String(), uuid.NewString(), "Lounge", "lounge", now, now))
			tt.expectTx(mock)

			item := &model.Item{Name: "Egg Chair", Price: decimal.NewFromInt(9850), Tags: []model.Tag{{ID: tagID}}}
			_, err := svc.Create(context.Background(), actor, item)

			assert.Error(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
