package directory

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/olivere/elastic/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/logger"
)

func newElasticDirectory(t *testing.T, handler http.HandlerFunc) *ElasticDirectory {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := elastic.NewSimpleClient(elastic.SetURL(srv.URL))
	require.NoError(t, err)
	return NewElasticDirectory(client, "sites", DefaultSearchOptions(), logger.Discard())
}

func TestElasticDirectory_Search(t *testing.T) {
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sites/_search", r.URL.Path)

		body, _ := io.ReadAll(r.Body)
		var query map[string]any
		require.NoError(t, json.Unmarshal(body, &query))
		assert.EqualValues(t, 1000, query["size"])
		assert.Contains(t, string(body), `"geo_distance"`)
		assert.Contains(t, string(body), `"100000m"`)
		assert.Contains(t, string(body), `"OPEN"`)
		assert.Contains(t, string(body), `"CMG"`)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"took": 1,
			"hits": {
				"total": {"value": 3, "relation": "eq"},
				"hits": [
					{"_index": "sites", "_id": "101", "_source": {"id": 101, "name": "Broadway", "address": "200 Broadway, New York, NY 10038", "status": "OPEN", "conceptId": "CMG", "location": {"lat": 40.7102, "lon": -74.0094}}},
					{"_index": "sites", "_id": "bad", "_source": {"id": "not-a-number"}},
					{"_index": "sites", "_id": "202", "_source": {"id": 202, "name": "Park Row", "address": "1 Park Row, New York, NY 10038", "status": "LAB", "conceptId": "CMG", "location": {"lat": 40.7115, "lon": -74.0068}}}
				]
			}
		}`))
	})

	sites, err := d.Search(context.Background(), domain.Coordinate{Lat: 40.7128, Lng: -74.006}, 100000)
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, int64(101), sites[0].ID)
	assert.Equal(t, domain.Coordinate{Lat: 40.7102, Lng: -74.0094}, sites[0].Coordinate)
	assert.Equal(t, "Park Row", sites[1].Name)
}

func TestElasticDirectory_SearchError(t *testing.T) {
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"type": "index_not_found_exception", "reason": "no such index [sites]"}, "status": 404}`))
	})

	_, err := d.Search(context.Background(), domain.Coordinate{}, 1000)
	var derr *Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, http.StatusNotFound, derr.StatusCode)
	assert.Contains(t, derr.Message, "no such index")
}

func TestElasticDirectory_EnsureIndexCreatesWhenMissing(t *testing.T) {
	var created bool
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), "geo_point")
			created = true
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"acknowledged": true, "shards_acknowledged": true, "index": "sites"}`))
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})

	require.NoError(t, d.EnsureIndex(context.Background()))
	assert.True(t, created)
}

func TestElasticDirectory_EnsureIndexNoopWhenPresent(t *testing.T) {
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, d.EnsureIndex(context.Background()))
}

func TestElasticDirectory_IndexSites(t *testing.T) {
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_bulk", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		lines := strings.Split(strings.TrimSpace(string(body)), "\n")
		assert.Len(t, lines, 4)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"took": 3,
			"errors": true,
			"items": [
				{"index": {"_index": "sites", "_id": "101", "status": 201}},
				{"index": {"_index": "sites", "_id": "202", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "failed to parse field [location]"}}}
			]
		}`))
	})

	docs := []SiteDocument{
		{ID: 101, Name: "Broadway", Status: "OPEN", ConceptID: "CMG", Location: elastic.GeoPoint{Lat: 40.7, Lon: -74}},
		{ID: 202, Name: "Park Row", Status: "OPEN", ConceptID: "CMG", Location: elastic.GeoPoint{Lat: 95, Lon: -74}},
	}
	failed, err := d.IndexSites(context.Background(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestElasticDirectory_IndexSitesEmpty(t *testing.T) {
	d := newElasticDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected, got %s %s", r.Method, r.URL.Path)
	})

	failed, err := d.IndexSites(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, failed)
}
