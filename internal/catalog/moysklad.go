package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Folders in MoySklad that hold plants; everything else in the stock
// report is pots, soil and accessories.
var plantFolderKeywords = []string{
	"КОМНАТНЫЕ РАСТЕНИЯ",
	"ИСКУССТВЕННЫЕ РАСТЕНИЯ",
	"Для флорариума",
}

const stockPageLimit = 1000

// StockRow is one position of the MoySklad stock report after reduction
// to the fields the bot needs.
type StockRow struct {
	Folder  string  `json:"folder"`
	Group   string  `json:"group"`
	Name    string  `json:"name"`
	Article string  `json:"article"`
	Stock   float64 `json:"stock"`
	Price   float64 `json:"price"`
}

type moySkladItem struct {
	Name      string  `json:"name"`
	Article   string  `json:"article"`
	Stock     float64 `json:"stock"`
	SalePrice float64 `json:"salePrice"`
	Folder    struct {
		PathName string `json:"pathName"`
		Name     string `json:"name"`
	} `json:"folder"`
}

// MoySkladClient pulls the paginated stock report.
type MoySkladClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewMoySkladClient(baseURL, token string, client *http.Client) *MoySkladClient {
	if client == nil {
		client = &http.Client{}
	}
	return &MoySkladClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  client,
	}
}

// FetchStock reads /report/stock/all page by page until a short page.
func (m *MoySkladClient) FetchStock(ctx context.Context) ([]moySkladItem, error) {
	var all []moySkladItem
	offset := 0

	for {
		params := url.Values{}
		params.Set("limit", fmt.Sprintf("%d", stockPageLimit))
		params.Set("offset", fmt.Sprintf("%d", offset))

		req, err := http.NewRequestWithContext(ctx, http.MethodGet,
			m.baseURL+"/report/stock/all?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+m.token)
		req.Header.Set("Accept", "application/json;charset=utf-8")

		resp, err := m.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("moysklad request failed: %w", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read moysklad response: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("moysklad returned %d: %s", resp.StatusCode, string(body))
		}

		var page struct {
			Rows []moySkladItem `json:"rows"`
		}
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to parse moysklad response: %w", err)
		}
		if len(page.Rows) == 0 {
			break
		}

		all = append(all, page.Rows...)
		offset += len(page.Rows)
		if len(page.Rows) < stockPageLimit {
			break
		}
	}

	log.Info("Fetched %d stock records from MoySklad", len(all))
	return all, nil
}

// reduceStock keeps positions with positive stock, converts the price
// from kopecks and flattens the folder reference.
func reduceStock(items []moySkladItem) []StockRow {
	var rows []StockRow
	for _, item := range items {
		if item.Stock <= 0 {
			continue
		}
		price := 0.0
		if item.SalePrice != 0 {
			price = item.SalePrice / 100
		}
		rows = append(rows, StockRow{
			Folder:  item.Folder.PathName,
			Group:   item.Folder.Name,
			Name:    item.Name,
			Article: item.Article,
			Stock:   item.Stock,
			Price:   price,
		})
	}
	return rows
}

// filterPlantRows keeps rows whose folder path or group names a plant
// folder.
func filterPlantRows(rows []StockRow) []StockRow {
	var filtered []StockRow
	for _, row := range rows {
		folderName := row.Folder + " " + row.Group
		for _, keyword := range plantFolderKeywords {
			if strings.Contains(folderName, keyword) {
				filtered = append(filtered, row)
				break
			}
		}
	}
	log.Info("Filtered %d plants out of %d stock rows", len(filtered), len(rows))
	return filtered
}
