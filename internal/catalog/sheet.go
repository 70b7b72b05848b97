package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// downloadSheet pulls the published care sheet as an xlsx export.
func downloadSheet(ctx context.Context, client *http.Client, sheetID string) ([]byte, error) {
	exportURL := fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/export?format=xlsx", sheetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, exportURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sheet download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sheet download returned %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet export: %w", err)
	}
	log.Info("Care sheet downloaded (%d bytes)", len(data))
	return data, nil
}

// sheet columns are located by header substring so minor renames in the
// spreadsheet do not break the import.
var sheetColumns = []struct {
	match  string
	assign func(*Plant, string)
}{
	{"название", func(p *Plant, v string) { p.Name = v }},
	{"растение", func(p *Plant, v string) { p.Kind = v }},
	{"грунт", func(p *Plant, v string) { p.Soil = v }},
	{"пересадка", func(p *Plant, v string) { p.Transplant = v }},
	{"кашпо", func(p *Plant, v string) { p.Pot = v }},
	{"уход", func(p *Plant, v string) { p.Care = v }},
	{"освещение", func(p *Plant, v string) { p.Light = v }},
	{"полив", func(p *Plant, v string) { p.Water = v }},
	{"розничная цена", func(p *Plant, v string) { p.Price = v }},
	{"тег", func(p *Plant, v string) { p.Tag = v }},
	{"символьный код", func(p *Plant, v string) { p.SymbolCode = v }},
	{"ссылка", func(p *Plant, v string) { p.URL = v }},
}

// parseSheet reads every worksheet of the xlsx export into plants,
// stripping the [NNN] reference fragments the sheet editors leave in
// text cells.
func parseSheet(data []byte) ([]Plant, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open sheet export: %w", err)
	}
	defer f.Close()

	var plants []Plant
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("failed to read worksheet %s: %w", sheetName, err)
		}
		if len(rows) < 2 {
			continue
		}

		header := rows[0]
		for _, row := range rows[1:] {
			var plant Plant
			filled := false
			for col, cell := range row {
				if col >= len(header) {
					break
				}
				value := strings.TrimSpace(refPattern.ReplaceAllString(cell, ""))
				if value == "" {
					continue
				}
				headerName := strings.ToLower(header[col])
				for _, mapping := range sheetColumns {
					if strings.Contains(headerName, mapping.match) {
						mapping.assign(&plant, value)
						filled = true
						break
					}
				}
			}
			if filled && (plant.Name != "" || plant.Kind != "") {
				plants = append(plants, plant)
			}
		}
	}
	log.Info("Parsed %d care sheet rows", len(plants))
	return plants, nil
}

type stockInfo struct {
	row   StockRow
	found bool
}

// formatPrice renders a stock price the way the sheet stores it: whole
// rubles when integral.
func formatPrice(price float64) string {
	if price == float64(int64(price)) {
		return strconv.FormatInt(int64(price), 10)
	}
	return strconv.FormatFloat(price, 'f', 2, 64)
}

func placeholderPlant(name string, row StockRow, code string) Plant {
	return Plant{
		Name:       name,
		Kind:       "-",
		Soil:       "-",
		Transplant: "-",
		Pot:        TechnicalPotMarker,
		Care:       "-",
		Light:      "-",
		Water:      "-",
		Price:      formatPrice(row.Price),
		SymbolCode: code,
		URL:        "ссылка",
		Article:    row.Article,
		Folder:     row.Folder,
		Group:      row.Group,
		Stock:      row.Stock,
	}
}

// mergeStockWithSheet joins the MoySklad stock into the care sheet rows
// by normalized base name. Stock positions absent from the sheet are
// appended with placeholder care fields, and every stock position also
// yields a technical-pot variant.
func mergeStockWithSheet(stock []StockRow, sheet []Plant) []Plant {
	stockByName := make(map[string]*stockInfo, len(stock))
	for i := range stock {
		key := normalizeName(stock[i].Name)
		stockByName[key] = &stockInfo{row: stock[i]}
	}

	merged := make([]Plant, len(sheet))
	copy(merged, sheet)
	for i := range merged {
		matchName := merged[i].Kind
		if matchName == "" || matchName == "-" {
			matchName = merged[i].Name
		}
		if info, ok := stockByName[normalizeName(matchName)]; ok {
			merged[i].Stock = info.row.Stock
			info.found = true
		}
	}

	for _, info := range stockByName {
		if info.found {
			continue
		}
		name := strings.TrimSpace(info.row.Name)
		merged = append(merged, placeholderPlant(name, info.row, generateSymbolicCode(name)))
	}

	// Every stock position is also sellable as-is in its technical pot.
	for _, info := range stockByName {
		name := strings.TrimSpace(info.row.Name)
		merged = append(merged, placeholderPlant(name+" (тех)", info.row, generateSymbolicCode(name+"_tech")))
	}

	log.Info("Merged catalog has %d positions (%d sheet rows, %d stock rows)",
		len(merged), len(sheet), len(stock))
	return merged
}

// filterInStock keeps positions with at least one unit on hand; only
// those enter the search corpus.
func filterInStock(plants []Plant) []Plant {
	var inStock []Plant
	for _, p := range plants {
		if p.Stock >= 1 {
			inStock = append(inStock, p)
		}
	}
	log.Info("%d of %d positions are in stock", len(inStock), len(plants))
	return inStock
}
