package booking

import (
	"context"

	"github.com/google/uuid"
	mongoadapter "github.com/quicktix/quicktix/internal/adapters/mongo"
)

// MongoCatalog adapts the mongo-backed event catalog to the EventCatalog
// interface the service consumes.
type MongoCatalog struct {
	repo *mongoadapter.CatalogRepository
}

func NewMongoCatalog(repo *mongoadapter.CatalogRepository) *MongoCatalog {
	return &MongoCatalog{repo: repo}
}

func (c *MongoCatalog) GetEvent(ctx context.Context, id uuid.UUID) (*EventInfo, error) {
	doc, err := c.repo.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	return &EventInfo{
		ID:        doc.ID,
		Name:      doc.Name,
		StartDate: doc.StartDate,
		EndDate:   doc.EndDate,
	}, nil
}
