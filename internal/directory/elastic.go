package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/olivere/elastic/v7"

	"github.com/Clark-Hu/portion-finder/internal/domain"
)

const siteMapping = `{
	"mappings": {
		"properties": {
			"id":        {"type": "long"},
			"name":      {"type": "text"},
			"address":   {"type": "text"},
			"status":    {"type": "keyword"},
			"conceptId": {"type": "keyword"},
			"location":  {"type": "geo_point"}
		}
	}
}`

// SiteDocument is the indexed form of a site.
type SiteDocument struct {
	ID        int64            `json:"id"`
	Name      string           `json:"name"`
	Address   string           `json:"address"`
	Status    string           `json:"status"`
	ConceptID string           `json:"conceptId"`
	Location  elastic.GeoPoint `json:"location"`
}

// ElasticDirectory searches a self-hosted Elasticsearch index of sites.
type ElasticDirectory struct {
	client *elastic.Client
	index  string
	opts   SearchOptions
	logger *slog.Logger
}

// NewElasticDirectory wraps an Elasticsearch client.
func NewElasticDirectory(client *elastic.Client, index string, opts SearchOptions, logger *slog.Logger) *ElasticDirectory {
	if logger == nil {
		logger = slog.Default()
	}
	return &ElasticDirectory{client: client, index: index, opts: opts, logger: logger}
}

// Search runs a geo-distance filtered query sorted by ascending distance.
func (d *ElasticDirectory) Search(ctx context.Context, center domain.Coordinate, radiusMeters int) ([]domain.Site, error) {
	query := elastic.NewBoolQuery().Filter(
		elastic.NewGeoDistanceQuery("location").
			Lat(center.Lat).
			Lon(center.Lng).
			Distance(strconv.Itoa(radiusMeters) + "m"),
	)
	if len(d.opts.Statuses) > 0 {
		query = query.Filter(elastic.NewTermsQuery("status", toInterfaces(d.opts.Statuses)...))
	}
	if len(d.opts.ConceptIDs) > 0 {
		query = query.Filter(elastic.NewTermsQuery("conceptId", toInterfaces(d.opts.ConceptIDs)...))
	}

	result, err := d.client.Search().
		Index(d.index).
		Query(query).
		SortBy(elastic.NewGeoDistanceSort("location").
			Point(center.Lat, center.Lng).
			Asc().
			Unit("m").
			DistanceType("arc").
			IgnoreUnmapped(true)).
		Size(d.opts.PageSize).
		Do(ctx)
	if err != nil {
		return nil, elasticError("search", err)
	}

	sites := make([]domain.Site, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		var doc SiteDocument
		if err := json.Unmarshal(hit.Source, &doc); err != nil {
			d.logger.WarnContext(ctx, "directory: skipping malformed document",
				slog.String("id", hit.Id),
				slog.String("error", err.Error()),
			)
			continue
		}
		sites = append(sites, doc.Site())
	}
	return sites, nil
}

// EnsureIndex creates the index with a geo_point mapping when it does not exist.
func (d *ElasticDirectory) EnsureIndex(ctx context.Context) error {
	exists, err := d.client.IndexExists(d.index).Do(ctx)
	if err != nil {
		return elasticError("check index", err)
	}
	if exists {
		return nil
	}
	created, err := d.client.CreateIndex(d.index).BodyString(siteMapping).Do(ctx)
	if err != nil {
		return elasticError("create index", err)
	}
	if !created.Acknowledged {
		d.logger.WarnContext(ctx, "directory: create index not acknowledged", slog.String("index", d.index))
	}
	return nil
}

// IndexSites bulk-loads docs, keyed by site id. It returns the number of
// documents Elasticsearch rejected.
func (d *ElasticDirectory) IndexSites(ctx context.Context, docs []SiteDocument) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	bulk := d.client.Bulk()
	for _, doc := range docs {
		bulk = bulk.Add(elastic.NewBulkIndexRequest().
			Index(d.index).
			Id(strconv.FormatInt(doc.ID, 10)).
			Doc(doc))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return 0, elasticError("bulk index", err)
	}

	failed := 0
	for _, item := range resp.Failed() {
		failed++
		if item.Error != nil {
			d.logger.WarnContext(ctx, "directory: document rejected",
				slog.String("id", item.Id),
				slog.String("reason", item.Error.Reason),
			)
		}
	}
	return failed, nil
}

// Site converts the document to a domain site.
func (doc SiteDocument) Site() domain.Site {
	return domain.Site{
		ID:         doc.ID,
		Name:       doc.Name,
		Address:    doc.Address,
		Coordinate: domain.Coordinate{Lat: doc.Location.Lat, Lng: doc.Location.Lon},
	}
}

func elasticError(op string, err error) *Error {
	var esErr *elastic.Error
	if errors.As(err, &esErr) {
		msg := fmt.Sprintf("%s returned %d", op, esErr.Status)
		if esErr.Details != nil && esErr.Details.Reason != "" {
			msg = op + ": " + esErr.Details.Reason
		}
		return &Error{StatusCode: esErr.Status, Message: msg, Err: err}
	}
	return &Error{Message: op + " failed", Err: err}
}

func toInterfaces(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
