package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/Skotchmaster/agro_shop/services/order/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
)

// OrderDoc is the indexed projection of an order.
type OrderDoc struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Status          string    `json:"status"`
	TotalAmount     string    `json:"total_amount"`
	ShippingAddress string    `json:"shipping_address"`
	Phone           string    `json:"phone"`
	Notes           string    `json:"notes,omitempty"`
	ItemCount       int       `json:"item_count"`
	ProductIDs      []string  `json:"product_ids,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func NewOrderDoc(o *models.Order) OrderDoc {
	doc := OrderDoc{
		ID:              o.ID.String(),
		UserID:          o.UserID.String(),
		Status:          string(o.Status),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		ItemCount:       len(o.Items),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.Notes != nil {
		doc.Notes = *o.Notes
	}
	for _, it := range o.Items {
		doc.ProductIDs = append(doc.ProductIDs, it.ProductID.String())
	}
	return doc
}

func NewClient(url, user, password string) (*elasticsearch.Client, error) {
	log.Printf("connecting to elasticsearch at %s", url)

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
		Username:  user,
		Password:  password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("elasticsearch info: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch info: %s: %s", res.Status(), body)
	}
	return client, nil
}

type Index struct {
	ES   *elasticsearch.Client
	Name string
}

var indexMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":               map[string]any{"type": "keyword"},
			"user_id":          map[string]any{"type": "keyword"},
			"status":           map[string]any{"type": "keyword"},
			"total_amount":     map[string]any{"type": "scaled_float", "scaling_factor": 100},
			"shipping_address": map[string]any{"type": "text"},
			"phone":            map[string]any{"type": "text"},
			"notes":            map[string]any{"type": "text"},
			"item_count":       map[string]any{"type": "integer"},
			"product_ids":      map[string]any{"type": "keyword"},
			"created_at":       map[string]any{"type": "date"},
			"updated_at":       map[string]any{"type": "date"},
		},
	},
}

// EnsureIndex creates the index with its mapping unless it already exists.
func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.ES.Indices.Exists([]string{i.Name}, i.ES.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("index exists %s: %w", i.Name, err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("index exists %s: %s", i.Name, res.Status())
	}

	body, err := json.Marshal(indexMapping)
	if err != nil {
		return err
	}
	res, err = i.ES.Indices.Create(i.Name,
		i.ES.Indices.Create.WithContext(ctx),
		i.ES.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.Name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.Name, res.Status())
	}
	return nil
}

func (i *Index) IndexOrder(ctx context.Context, o *models.Order) error {
	body, err := json.Marshal(NewOrderDoc(o))
	if err != nil {
		return err
	}
	res, err := i.ES.Index(i.Name, bytes.NewReader(body),
		i.ES.Index.WithContext(ctx),
		i.ES.Index.WithDocumentID(o.ID.String()),
	)
	if err != nil {
		return fmt.Errorf("index order %s: %w", o.ID, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index order %s: %s", o.ID, res.Status())
	}
	return nil
}

func (i *Index) Search(ctx context.Context, query string, from, size int) (int64, []OrderDoc, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"shipping_address^2", "phone", "notes", "status"},
				"fuzziness": "AUTO",
			},
		},
		"sort": []any{map[string]any{"created_at": "desc"}},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search encode: %w", err)
	}

	res, err := i.ES.Search(
		i.ES.Search.WithContext(ctx),
		i.ES.Search.WithIndex(i.Name),
		i.ES.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 } `json:"total"`
			Hits  []struct {
				Source OrderDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search decode: %w", err)
	}

	docs := make([]OrderDoc, len(r.Hits.Hits))
	for n, hit := range r.Hits.Hits {
		docs[n] = hit.Source
	}
	return r.Hits.Total.Value, docs, nil
}

type Noop struct{}

func (Noop) IndexOrder(context.Context, *models.Order) error { return nil }

func (Noop) Search(context.Context, string, int, int) (int64, []OrderDoc, error) {
	return 0, []OrderDoc{}, nil
}
