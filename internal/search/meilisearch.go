// Package search keeps the property listings searchable in Meilisearch.
package search

import (
	"context"
	"fmt"
	"strings"

	"akinmueble/internal/models"
	"akinmueble/internal/observability"

	"github.com/meilisearch/meilisearch-go"
)

const serviceName = "meilisearch"

// Document is the indexed form of a property.
type Document struct {
	ID             uint    `json:"id"`
	Address        string  `json:"address"`
	Description    string  `json:"description"`
	CityID         uint    `json:"cityId"`
	PropertyTypeID uint    `json:"propertyTypeId"`
	AdviserID      uint    `json:"adviserId"`
	Sell           bool    `json:"sell"`
	Rent           bool    `json:"rent"`
	SalePrice      float64 `json:"salePrice"`
	RentalPrice    float64 `json:"rentalPrice"`
}

// NewDocument maps a property to its search document.
func NewDocument(p models.Property) Document {
	return Document{
		ID:             p.ID,
		Address:        p.Address,
		Description:    p.Description,
		CityID:         p.CityID,
		PropertyTypeID: p.PropertyTypeID,
		AdviserID:      p.AdviserID,
		Sell:           p.Sell,
		Rent:           p.Rent,
		SalePrice:      p.SalePrice,
		RentalPrice:    p.RentalPrice,
	}
}

// Query is a property search. Nil filters are not applied.
type Query struct {
	Text           string
	CityID         *uint
	PropertyTypeID *uint
	Sell           *bool
	Rent           *bool
	MaxSalePrice   *float64
	MaxRentalPrice *float64
	Sort           string
	Limit          int64
	Offset         int64
}

// Filter renders the Meilisearch filter expression for q.
func (q Query) Filter() string {
	var filters []string
	if q.CityID != nil {
		filters = append(filters, fmt.Sprintf("cityId = %d", *q.CityID))
	}
	if q.PropertyTypeID != nil {
		filters = append(filters, fmt.Sprintf("propertyTypeId = %d", *q.PropertyTypeID))
	}
	if q.Sell != nil {
		filters = append(filters, fmt.Sprintf("sell = %t", *q.Sell))
	}
	if q.Rent != nil {
		filters = append(filters, fmt.Sprintf("rent = %t", *q.Rent))
	}
	if q.MaxSalePrice != nil {
		filters = append(filters, fmt.Sprintf("salePrice <= %g", *q.MaxSalePrice))
	}
	if q.MaxRentalPrice != nil {
		filters = append(filters, fmt.Sprintf("rentalPrice <= %g", *q.MaxRentalPrice))
	}
	return strings.Join(filters, " AND ")
}

// Result lists matching property IDs in rank order.
type Result struct {
	IDs   []uint
	Total int64
}

// PropertyIndex is the properties index in Meilisearch.
type PropertyIndex struct {
	client *meilisearch.Client
	uid    string
}

// NewPropertyIndex connects to the Meilisearch host.
func NewPropertyIndex(host, apiKey, uid string) *PropertyIndex {
	if uid == "" {
		uid = "properties"
	}
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})
	return &PropertyIndex{client: client, uid: uid}
}

// EnsureIndex creates the index and applies its settings.
func (ix *PropertyIndex) EnsureIndex(ctx context.Context) (err error) {
	_, span := observability.StartClientSpan(ctx, serviceName, "ensure_index")
	defer func() { observability.EndSpan(span, err) }()

	_, err = ix.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        ix.uid,
		PrimaryKey: "id",
	})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create index %s: %w", ix.uid, err)
	}

	index := ix.client.Index(ix.uid)
	if _, err = index.UpdateSearchableAttributes(&[]string{"address", "description"}); err != nil {
		return fmt.Errorf("searchable attributes: %w", err)
	}
	if _, err = index.UpdateFilterableAttributes(&[]string{
		"cityId", "propertyTypeId", "adviserId", "sell", "rent", "salePrice", "rentalPrice",
	}); err != nil {
		return fmt.Errorf("filterable attributes: %w", err)
	}
	if _, err = index.UpdateSortableAttributes(&[]string{"salePrice", "rentalPrice"}); err != nil {
		return fmt.Errorf("sortable attributes: %w", err)
	}
	return nil
}

// Upsert adds or replaces the documents for properties.
func (ix *PropertyIndex) Upsert(ctx context.Context, properties ...models.Property) (err error) {
	if len(properties) == 0 {
		return nil
	}
	_, span := observability.StartClientSpan(ctx, serviceName, "upsert")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackUpstream(serviceName, "upsert")()

	docs := make([]Document, 0, len(properties))
	for _, p := range properties {
		docs = append(docs, NewDocument(p))
	}
	_, err = ix.client.Index(ix.uid).AddDocuments(docs, "id")
	return err
}

// Delete removes a property document.
func (ix *PropertyIndex) Delete(ctx context.Context, id uint) (err error) {
	_, span := observability.StartClientSpan(ctx, serviceName, "delete")
	defer func() { observability.EndSpan(span, err) }()

	_, err = ix.client.Index(ix.uid).DeleteDocument(fmt.Sprint(id))
	return err
}

// Search runs q against the index.
func (ix *PropertyIndex) Search(ctx context.Context, q Query) (_ *Result, err error) {
	_, span := observability.StartClientSpan(ctx, serviceName, "search")
	defer func() { observability.EndSpan(span, err) }()
	defer observability.TrackUpstream(serviceName, "search")()

	if q.Limit <= 0 {
		q.Limit = 20
	}
	req := &meilisearch.SearchRequest{
		Limit:                q.Limit,
		Offset:               q.Offset,
		AttributesToRetrieve: []string{"id"},
	}
	if filter := q.Filter(); filter != "" {
		req.Filter = filter
	}
	if q.Sort != "" {
		req.Sort = []string{q.Sort}
	}

	res, err := ix.client.Index(ix.uid).Search(q.Text, req)
	if err != nil {
		return nil, err
	}
	return &Result{IDs: hitIDs(res.Hits), Total: res.EstimatedTotalHits}, nil
}

func hitIDs(hits []interface{}) []uint {
	ids := make([]uint, 0, len(hits))
	for _, hit := range hits {
		m, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := m["id"].(float64); ok && id > 0 {
			ids = append(ids, uint(id))
		}
	}
	return ids
}
