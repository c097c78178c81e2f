// Command mapper maps the SKU column of an input file to Master SKUs
// using a mapping file, appends the result as an MSKU column, and
// writes the output. Input, mapping, and output may each be CSV or an
// Excel workbook; the extension decides.
//
// Unresolved SKUs are not failures: each gets the MAPPING_NOT_FOUND
// marker and a warning, and the run exits 0.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/wareloop/skulink/internal/logging"
	"github.com/wareloop/skulink/internal/sku"
	"github.com/wareloop/skulink/internal/tabular"
)

const mskuColumn = "MSKU"

type report struct {
	Rows     int
	Unmapped int
	Keys     int
}

func main() {
	mappingPath := flag.String("mapping", "", "mapping file with SKU and MSKU columns (csv/xlsx)")
	inPath := flag.String("in", "", "input file with a SKU column (csv/xlsx)")
	outPath := flag.String("out", "", "output file; format chosen by extension (csv/xlsx)")
	foldCase := flag.Bool("fold-case", false, "match SKUs case-insensitively")
	quiet := flag.Bool("quiet", false, "suppress per-SKU warnings")
	flag.Parse()

	level := "info"
	if *quiet {
		level = "error"
	}
	logging.Setup(level, "text")

	if *mappingPath == "" || *inPath == "" || *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: mapper -mapping mapping.csv -in sales.xlsx -out mapped.csv")
		flag.PrintDefaults()
		os.Exit(2)
	}

	rep, err := mapFiles(*mappingPath, *inPath, *outPath, *foldCase)
	if err != nil {
		slog.Error("mapping run failed", "error", err)
		os.Exit(1)
	}

	slog.Info("mapping completed",
		"rows", rep.Rows,
		"unmapped", rep.Unmapped,
		"mapping_keys", rep.Keys,
		"output", *outPath,
	)
}

// mapFiles runs the whole mapping pass: load, resolve, write.
func mapFiles(mappingPath, inPath, outPath string, foldCase bool) (*report, error) {
	mapping, err := tabular.ReadFile(mappingPath)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	if err := mapping.Require("SKU", "MSKU"); err != nil {
		return nil, fmt.Errorf("mapping file: %w", err)
	}

	entries := make([]sku.MappingEntry, len(mapping.Rows))
	for i, row := range mapping.Rows {
		entries[i] = sku.MappingEntry{
			SKU:  mapping.Get(row, "SKU"),
			MSKU: mapping.Get(row, "MSKU"),
		}
	}

	var opts []sku.Option
	if foldCase {
		opts = append(opts, sku.WithCaseFold())
	}
	index := sku.BuildIndex(entries, opts...)

	input, err := tabular.ReadFile(inPath)
	if err != nil {
		return nil, fmt.Errorf("read input file: %w", err)
	}
	if err := input.Require("SKU"); err != nil {
		return nil, fmt.Errorf("input file: %w", err)
	}

	out := appendMSKU(input, index)

	if err := tabular.WriteFile(outPath, out.table); err != nil {
		return nil, fmt.Errorf("write output file: %w", err)
	}

	return &report{Rows: len(input.Rows), Unmapped: out.unmapped, Keys: index.Len()}, nil
}

type mapped struct {
	table    *tabular.Table
	unmapped int
}

// appendMSKU resolves every input row and returns a table with the
// MSKU column filled in. An existing MSKU column is overwritten;
// otherwise one is appended.
func appendMSKU(input *tabular.Table, index *sku.Index) mapped {
	mskuPos := -1
	for i, h := range input.Headers {
		if strings.EqualFold(strings.TrimSpace(h), mskuColumn) {
			mskuPos = i
			break
		}
	}

	headers := append([]string(nil), input.Headers...)
	if mskuPos < 0 {
		headers = append(headers, mskuColumn)
	}

	unmapped := 0
	rows := make([][]string, len(input.Rows))
	for i, row := range input.Rows {
		code := input.Get(row, "SKU")
		msku, ok := index.Resolve(code)
		if !ok {
			msku = sku.NotFound
			unmapped++
			slog.Warn("no mapping found for SKU", "sku", strings.TrimSpace(code), "row", i+2)
		}

		out := append([]string(nil), row...)
		if mskuPos >= 0 {
			out[mskuPos] = msku
		} else {
			out = append(out, msku)
		}
		rows[i] = out
	}

	return mapped{
		table:    &tabular.Table{Headers: headers, Rows: rows},
		unmapped: unmapped,
	}
}
