package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"flashsale/internal/model"
)

func setupCampaignMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock database: %v", err)
	}

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("Failed to create GORM database: %v", err)
	}

	return gormDB, mock
}

func TestCampaignRepository_Create(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)
	ctx := context.Background()

	campaign := &model.Campaign{
		Name:           "Spring Sale",
		StartTime:      time.Now(),
		EndTime:        time.Now().Add(time.Hour),
		MaxQuantity:    100,
		LimitPerUser:   2,
		OriginalPrice:  19900,
		FlashSalePrice: 9900,
		Enabled:        true,
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `campaigns`").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := repo.Create(ctx, campaign); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_GetByID(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "max_quantity", "sold_quantity", "enabled"}).
		AddRow(1, "Spring Sale", 100, 40, true)

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\? ORDER BY `campaigns`.`id` LIMIT \\?").
		WithArgs(uint64(1), 1).
		WillReturnRows(rows)

	campaign, err := repo.GetByID(context.Background(), 1)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if campaign == nil {
		t.Fatal("Expected campaign, got nil")
	}
	if campaign.SoldQuantity != 40 {
		t.Errorf("Expected sold quantity 40, got %d", campaign.SoldQuantity)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_GetByIDNotFound(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\?").
		WithArgs(uint64(42), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepository_SetEnabled(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns` SET `enabled`=\\?,`updated_at`=\\? WHERE id = \\?").
		WithArgs(false, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.SetEnabled(context.Background(), 1, false); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_SetEnabledNotFound(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	err := repo.SetEnabled(context.Background(), 42, true)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepository_AtomicIncrementSold(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns` SET `sold_quantity`=sold_quantity \\+ \\?,`updated_at`=\\? WHERE id = \\? AND sold_quantity \\+ \\? <= max_quantity").
		WithArgs(2, sqlmock.AnyArg(), uint64(1), 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.AtomicIncrementSold(context.Background(), 1, 2); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_AtomicIncrementSoldExhausted(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	// No rows updated and the campaign exists: the guard rejected the delta.
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	rows := sqlmock.NewRows([]string{"id", "max_quantity", "sold_quantity"}).
		AddRow(1, 100, 100)
	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\?").
		WithArgs(uint64(1), 1).
		WillReturnRows(rows)

	err := repo.AtomicIncrementSold(context.Background(), 1, 1)
	if !errors.Is(err, ErrStockExceeded) {
		t.Errorf("Expected ErrStockExceeded, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_AtomicIncrementSoldUnknownCampaign(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns`").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE id = \\?").
		WithArgs(uint64(42), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	err := repo.AtomicIncrementSold(context.Background(), 42, 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCampaignRepository_DecrementSold(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `campaigns` SET `sold_quantity`=sold_quantity - \\?,`updated_at`=\\? WHERE id = \\? AND sold_quantity >= \\?").
		WithArgs(1, sqlmock.AnyArg(), uint64(1), 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.DecrementSold(context.Background(), 1, 1); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_ListUnfinished(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	rows := sqlmock.NewRows([]string{"id", "name", "max_quantity"}).
		AddRow(1, "Sale A", 100).
		AddRow(2, "Sale B", 50)

	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE end_time > \\? ORDER BY start_time ASC").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	campaigns, err := repo.ListUnfinished(context.Background(), time.Now())
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if len(campaigns) != 2 {
		t.Errorf("Expected 2 campaigns, got %d", len(campaigns))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_ListActive(t *testing.T) {
	db, mock := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	repo := NewCampaignRepository(db)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `campaigns` WHERE enabled = \\? AND start_time <= \\? AND end_time >= \\?").
		WithArgs(true, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(countRows)

	rows := sqlmock.NewRows([]string{"id", "name", "max_quantity"}).
		AddRow(1, "Sale A", 100)
	mock.ExpectQuery("SELECT \\* FROM `campaigns` WHERE enabled = \\? AND start_time <= \\? AND end_time >= \\? ORDER BY end_time ASC LIMIT \\?").
		WithArgs(true, sqlmock.AnyArg(), sqlmock.AnyArg(), 10).
		WillReturnRows(rows)

	campaigns, total, err := repo.ListActive(context.Background(), time.Now(), 1, 10)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if total != 1 {
		t.Errorf("Expected total 1, got %d", total)
	}
	if len(campaigns) != 1 {
		t.Errorf("Expected 1 campaign, got %d", len(campaigns))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %v", err)
	}
}

func TestCampaignRepository_Interface(t *testing.T) {
	db, _ := setupCampaignMockDB(t)
	defer func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}()

	var _ CampaignRepository = NewCampaignRepository(db)
}
