package main

import (
	"context"
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/Clark-Hu/portion-finder/internal/directory"
	"github.com/Clark-Hu/portion-finder/internal/domain"
	"github.com/Clark-Hu/portion-finder/internal/logger"
)

// Expected header: id,name,address,status,concept_id,lat,lng
var columns = []string{"id", "name", "address", "status", "concept_id", "lat", "lng"}

func main() {
	var (
		file     = flag.String("file", "", "CSV file of sites")
		comma    = flag.String("comma", ",", "field separator")
		url      = flag.String("elastic-url", envOr("ELASTIC_URL", "http://localhost:9200"), "Elasticsearch URL")
		index    = flag.String("index", envOr("ELASTIC_INDEX", "sites"), "index name")
		batch    = flag.Int("batch", 500, "documents per bulk request")
		logLevel = flag.String("log-level", "info", "log level")
	)
	flag.Parse()

	log := logger.New("site-indexer", *logLevel)
	if err := run(*file, *comma, *url, *index, *batch, log); err != nil {
		log.Error("indexing failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(path, comma, url, index string, batch int, log *slog.Logger) error {
	if path == "" {
		return errors.New("-file is required")
	}
	if batch <= 0 {
		return errors.New("-batch must be positive")
	}
	sep, err := separator(comma)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	docs, err := readSites(f, sep)
	if err != nil {
		return err
	}
	log.Info("parsed sites", slog.Int("count", len(docs)))

	client, err := elastic.NewClient(
		elastic.SetURL(url),
		elastic.SetSniff(false),
		elastic.SetHealthcheckTimeout(10*time.Second),
	)
	if err != nil {
		return fmt.Errorf("connect elasticsearch: %w", err)
	}
	dir := directory.NewElasticDirectory(client, index, directory.DefaultSearchOptions(), log)
	if err := dir.EnsureIndex(ctx); err != nil {
		return err
	}

	total := 0
	for start := 0; start < len(docs); start += batch {
		end := min(start+batch, len(docs))
		failed, err := dir.IndexSites(ctx, docs[start:end])
		if err != nil {
			return err
		}
		total += failed
		log.Info("indexed batch",
			slog.Int("from", start),
			slog.Int("to", end),
			slog.Int("rejected", failed),
		)
	}
	if total > 0 {
		return fmt.Errorf("%d documents rejected", total)
	}
	log.Info("done", slog.String("index", index), slog.Int("documents", len(docs)))
	return nil
}

func separator(s string) (rune, error) {
	if s == `\t` || s == "tab" {
		return '\t', nil
	}
	r := []rune(s)
	if len(r) != 1 {
		return 0, fmt.Errorf("-comma must be a single character, got %q", s)
	}
	return r[0], nil
}

// readSites parses a CSV with a header row into site documents.
func readSites(r io.Reader, comma rune) ([]directory.SiteDocument, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	pos, err := columnPositions(header)
	if err != nil {
		return nil, err
	}

	var docs []directory.SiteDocument
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		doc, err := toDocument(record, pos)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		docs = append(docs, doc)
	}
}

func columnPositions(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		pos[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range columns {
		if _, ok := pos[c]; !ok {
			return nil, fmt.Errorf("missing column %q", c)
		}
	}
	return pos, nil
}

func toDocument(record []string, pos map[string]int) (directory.SiteDocument, error) {
	field := func(name string) string { return strings.TrimSpace(record[pos[name]]) }

	id, err := strconv.ParseInt(field("id"), 10, 64)
	if err != nil || id <= 0 {
		return directory.SiteDocument{}, fmt.Errorf("invalid id %q", field("id"))
	}
	lat, err := strconv.ParseFloat(field("lat"), 64)
	if err != nil {
		return directory.SiteDocument{}, fmt.Errorf("invalid lat %q", field("lat"))
	}
	lng, err := strconv.ParseFloat(field("lng"), 64)
	if err != nil {
		return directory.SiteDocument{}, fmt.Errorf("invalid lng %q", field("lng"))
	}
	if err := (domain.Coordinate{Lat: lat, Lng: lng}).Validate(); err != nil {
		return directory.SiteDocument{}, err
	}
	address := field("address")
	if address == "" {
		return directory.SiteDocument{}, errors.New("address is required")
	}

	return directory.SiteDocument{
		ID:        id,
		Name:      field("name"),
		Address:   address,
		Status:    strings.ToUpper(field("status")),
		ConceptID: strings.ToUpper(field("concept_id")),
		Location:  elastic.GeoPoint{Lat: lat, Lon: lng},
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
