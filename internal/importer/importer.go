package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"storefront/internal/domain"
)

type ProductWriter interface {
	Upsert(ctx context.Context, product domain.Product) (*domain.Product, error)
}

// CSVImporter reads catalog CSV exports and inserts/updates products by SKU.
//
// Recognised columns: sku, name, description, price (decimal, e.g. 19.99) or
// price_cents, stock, image_url. Column order is free; unknown columns are ignored.
type CSVImporter struct {
	reader      *csv.Reader
	productRepo ProductWriter
}

func NewCSVImporter(r io.Reader, repo ProductWriter) *CSVImporter {
	csvr := csv.NewReader(r)
	csvr.FieldsPerRecord = -1 // rows may have trailing commas
	return &CSVImporter{
		reader:      csvr,
		productRepo: repo,
	}
}

// Run parses CSV rows and upserts one product per row. Blank rows are skipped.
func (i *CSVImporter) Run(ctx context.Context) (int, error) {
	headers, err := i.reader.Read()
	if err != nil {
		return 0, fmt.Errorf("read headers: %w", err)
	}
	index := headerIndex(headers)
	if _, ok := index["sku"]; !ok {
		return 0, errors.New("missing required column sku")
	}

	imported := 0
	for line := 2; ; line++ {
		record, err := i.reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("read row %d: %w", line, err)
		}

		p, err := parseRow(record, index)
		if err != nil {
			return imported, fmt.Errorf("row %d: %w", line, err)
		}
		if p == nil {
			continue
		}
		if _, err := i.productRepo.Upsert(ctx, *p); err != nil {
			return imported, fmt.Errorf("upsert product %q: %w", p.SKU, err)
		}
		imported++
	}

	return imported, nil
}

func headerIndex(headers []string) map[string]int {
	idx := make(map[string]int, len(headers))
	for i, h := range headers {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	return idx
}

func parseRow(record []string, index map[string]int) (*domain.Product, error) {
	sku := pick(record, index, "sku")
	if sku == "" {
		return nil, nil
	}
	name := pick(record, index, "name")
	if name == "" {
		return nil, fmt.Errorf("product %q: name is required", sku)
	}

	cents, err := parsePrice(record, index)
	if err != nil {
		return nil, fmt.Errorf("product %q: %w", sku, err)
	}

	stock := 0
	if s := pick(record, index, "stock"); s != "" {
		stock, err = strconv.Atoi(s)
		if err != nil || stock < 0 {
			return nil, fmt.Errorf("product %q: invalid stock %q", sku, s)
		}
	}

	return &domain.Product{
		SKU:         sku,
		Name:        name,
		Description: pick(record, index, "description"),
		PriceCents:  cents,
		Stock:       stock,
		ImageURL:    pick(record, index, "image_url"),
	}, nil
}

// parsePrice prefers price_cents and falls back to a decimal price column.
func parsePrice(record []string, index map[string]int) (int64, error) {
	if s := pick(record, index, "price_cents"); s != "" {
		cents, err := strconv.ParseInt(s, 10, 64)
		if err != nil || cents < 0 {
			return 0, fmt.Errorf("invalid price_cents %q", s)
		}
		return cents, nil
	}
	s := pick(record, index, "price")
	if s == "" {
		return 0, errors.New("price is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return 0, fmt.Errorf("invalid price %q", s)
	}
	return d.Shift(2).Round(0).IntPart(), nil
}

func pick(record []string, index map[string]int, key string) string {
	pos, ok := index[key]
	if !ok || pos >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[pos])
}
