package imports_test

import (
	"context"
	"errors"

	"bitbucket.org/mmdatafocus/clients_backend/imports"
	"bitbucket.org/mmdatafocus/clients_backend/models"
	"bitbucket.org/mmdatafocus/clients_backend/utils"
)

// fakeStore is an in-memory stand-in for models.ClientStore. It mirrors the
// BeforeSave hook by deriving normalized identity columns on every write.
type fakeStore struct {
	nextID  int
	clients []*models.Client

	failCreateFor string // phone whose create should fail, for partial-failure tests
}

func (s *fakeStore) normalize(c *models.Client) {
	c.PhoneNormalized = utils.NormalizePhone(c.Phone)
	c.EmailNormalized = utils.NormalizeEmail(c.Email)
	if c.Status == "" {
		c.Status = models.ClientStatusActive
	}
}

func (s *fakeStore) FindByPhone(ctx context.Context, businessId string, normalizedPhone string) (*models.Client, error) {
	for _, c := range s.clients {
		if c.BusinessId == businessId && c.PhoneNormalized == normalizedPhone {
			return cloneClient(c), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) FindByEmail(ctx context.Context, businessId string, normalizedEmail string) (*models.Client, error) {
	for _, c := range s.clients {
		if c.BusinessId == businessId && c.EmailNormalized == normalizedEmail {
			return cloneClient(c), nil
		}
	}
	return nil, nil
}

func (s *fakeStore) Create(ctx context.Context, client *models.Client) error {
	if s.failCreateFor != "" && client.Phone == s.failCreateFor {
		return errors.New("simulated create failure")
	}
	s.nextID++
	client.ID = s.nextID
	s.normalize(client)
	s.clients = append(s.clients, cloneClient(client))
	return nil
}

func (s *fakeStore) Update(ctx context.Context, client *models.Client) error {
	s.normalize(client)
	for i, c := range s.clients {
		if c.ID == client.ID {
			s.clients[i] = cloneClient(client)
			return nil
		}
	}
	return errors.New("update: client not found")
}

func (s *fakeStore) DeleteByBatch(ctx context.Context, businessId string, batchId string) (int64, error) {
	var kept []*models.Client
	var removed int64
	for _, c := range s.clients {
		if c.BusinessId == businessId && c.SourceBatchId != nil && *c.SourceBatchId == batchId {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	s.clients = kept
	return removed, nil
}

func (s *fakeStore) byPhone(normalizedPhone string) *models.Client {
	for _, c := range s.clients {
		if c.PhoneNormalized == normalizedPhone {
			return c
		}
	}
	return nil
}

func cloneClient(c *models.Client) *models.Client {
	cp := *c
	if c.SourceBatchId != nil {
		v := *c.SourceBatchId
		cp.SourceBatchId = &v
	}
	if c.EffectiveDate != nil {
		v := *c.EffectiveDate
		cp.EffectiveDate = &v
	}
	if c.DateOfBirth != nil {
		v := *c.DateOfBirth
		cp.DateOfBirth = &v
	}
	return &cp
}

type fakeLedger struct {
	batches []*models.ImportBatch
}

func (l *fakeLedger) RecordBatch(ctx context.Context, batch *models.ImportBatch) error {
	if batch.ID == "" {
		batch.ID = models.NewImportBatchId()
	}
	if batch.Status == "" {
		batch.Status = models.ImportBatchStatusCompleted
	}
	l.batches = append(l.batches, batch)
	return nil
}

type fakeCache struct {
	entries map[string]imports.ColumnMapping
	saves   int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]imports.ColumnMapping{}}
}

func (c *fakeCache) Get(ctx context.Context, businessId string, fingerprint string) (imports.ColumnMapping, bool, error) {
	m, ok := c.entries[businessId+":"+fingerprint]
	return m, ok, nil
}

func (c *fakeCache) Save(ctx context.Context, businessId string, fingerprint string, mapping imports.ColumnMapping) error {
	c.saves++
	c.entries[businessId+":"+fingerprint] = mapping
	return nil
}
