package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/mmdatafocus/clients_backend/config"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"gorm.io/gorm"
)

// Client is the canonical client record owned by the persistence layer.
// SourceBatchId is a non-owning back-reference to the import batch that
// created the record; it is only used to scope batch reversal and is never
// changed by updates.
type Client struct {
	ID              int           `gorm:"primary_key" json:"id"`
	BusinessId      string        `gorm:"index;not null" json:"business_id" binding:"required"`
	FirstName       string        `gorm:"size:100" json:"first_name"`
	LastName        string        `gorm:"size:100" json:"last_name"`
	Phone           string        `gorm:"size:30" json:"phone"`
	PhoneNormalized string        `gorm:"size:30;index" json:"-"`
	Email           string        `gorm:"size:100" json:"email"`
	EmailNormalized string        `gorm:"size:100;index" json:"-"`
	EffectiveDate   *time.Time    `json:"effective_date"`
	Carrier         string        `gorm:"size:100" json:"carrier"`
	Plan            string        `gorm:"size:100" json:"plan"`
	PlanType        string        `gorm:"size:100" json:"plan_type"`
	Status          ClientStatus  `gorm:"type:enum('active','inactive','lost','churned');not null;default:'active'" json:"status"`
	DateOfBirth     *time.Time    `json:"date_of_birth"`
	Street          string        `gorm:"size:255" json:"street"`
	City            string        `gorm:"size:100" json:"city"`
	State           string        `gorm:"size:100" json:"state"`
	Zip             string        `gorm:"size:20" json:"zip"`
	Notes           string        `gorm:"type:text" json:"notes"`
	SourceBatchId   *string       `gorm:"size:36;index" json:"source_batch_id"`
	CreatedAt       time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

// HasName reports whether at least one name part is present, the minimum a
// stored record must satisfy.
func (c *Client) HasName() bool {
	return c.FirstName != "" || c.LastName != ""
}

// ClientStore is the gorm-backed persistence surface used by the import
// reconciliation engine and the record browser.
type ClientStore struct{}

// FindByPhone looks up one client by exact normalized-phone match.
// Returns (nil, nil) when no record exists.
func (ClientStore) FindByPhone(ctx context.Context, businessId string, normalizedPhone string) (*Client, error) {
	return findClientWhere(ctx, businessId, "phone_normalized = ?", normalizedPhone)
}

// FindByEmail looks up one client by exact case-insensitive email match.
// Returns (nil, nil) when no record exists.
func (ClientStore) FindByEmail(ctx context.Context, businessId string, normalizedEmail string) (*Client, error) {
	return findClientWhere(ctx, businessId, "email_normalized = ?", normalizedEmail)
}

func findClientWhere(ctx context.Context, businessId string, condition string, value interface{}) (*Client, error) {
	db := config.GetDB()
	var client Client
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Where(condition, value).
		Order("id asc").
		First(&client).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &client, nil
}

func (ClientStore) Create(ctx context.Context, client *Client) error {
	db := config.GetDB()
	return db.WithContext(ctx).Create(client).Error
}

func (ClientStore) Update(ctx context.Context, client *Client) error {
	db := config.GetDB()
	return db.WithContext(ctx).Save(client).Error
}

// DeleteByBatch removes every client created by the given batch and reports
// how many rows went away. Records the batch merely updated keep their
// original sourceBatchId and are untouched.
func (ClientStore) DeleteByBatch(ctx context.Context, businessId string, batchId string) (int64, error) {
	db := config.GetDB()
	res := db.WithContext(ctx).
		Where("business_id = ? AND source_batch_id = ?", businessId, batchId).
		Delete(&Client{})
	return res.RowsAffected, res.Error
}

func GetClient(ctx context.Context, id int) (*Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	return utils.FetchModel[Client](ctx, businessId, id)
}

func ListClients(ctx context.Context) ([]Client, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}
	db := config.GetDB()
	var clients []Client
	err := db.WithContext(ctx).
		Where("business_id = ?", businessId).
		Order("last_name asc, first_name asc, id asc").
		Find(&clients).Error
	return clients, err
}
