package models

import (
	"bitbucket.org/mmdatafocus/clients_backend/utils"
	"gorm.io/gorm"
)

// BeforeSave keeps the normalized identity columns in sync with whatever
// formatting the operator typed or the spreadsheet carried, so identity
// lookups match "(555) 111-2222" against "555-111-2222".
func (c *Client) BeforeSave(tx *gorm.DB) (err error) {
	c.PhoneNormalized = utils.NormalizePhone(c.Phone)
	c.EmailNormalized = utils.NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = ClientStatusActive
	}
	return nil
}
