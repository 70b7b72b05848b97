package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFetchStock(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/report/stock/all", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")

		offset := r.URL.Query().Get("offset")
		rows := []map[string]interface{}{}
		if offset == "0" {
			rows = append(rows, map[string]interface{}{
				"name":      "Фикус Лирата 17/60 см",
				"article":   "F-17",
				"stock":     2.0,
				"salePrice": 450000.0,
				"folder":    map[string]string{"pathName": "КОМНАТНЫЕ РАСТЕНИЯ/Фикусы", "name": "Фикусы"},
			})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"rows": rows})
	}))
	defer server.Close()

	client := NewMoySkladClient(server.URL, "secret", nil)
	items, err := client.FetchStock(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "Bearer secret", gotAuth)
	require.Equal(t, "Фикус Лирата 17/60 см", items[0].Name)
}

func TestFetchStockServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewMoySkladClient(server.URL, "secret", nil)
	_, err := client.FetchStock(context.Background())
	require.Error(t, err)
}

func TestFetchStockPagination(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		count := stockPageLimit
		if pages == 2 {
			count = 10
		}
		rows := make([]map[string]interface{}, count)
		for i := range rows {
			rows[i] = map[string]interface{}{"name": fmt.Sprintf("позиция %d", i), "stock": 1.0}
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"rows": rows})
	}))
	defer server.Close()

	client := NewMoySkladClient(server.URL, "secret", nil)
	items, err := client.FetchStock(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, pages)
	require.Len(t, items, stockPageLimit+10)
}

func TestReduceStock(t *testing.T) {
	items := []moySkladItem{
		{Name: "в наличии", Stock: 2, SalePrice: 199000},
		{Name: "распродано", Stock: 0, SalePrice: 99000},
	}
	items[0].Folder.PathName = "КОМНАТНЫЕ РАСТЕНИЯ/Фикусы"
	items[0].Folder.Name = "Фикусы"

	rows := reduceStock(items)
	require.Len(t, rows, 1)
	require.Equal(t, 1990.0, rows[0].Price)
	require.Equal(t, "КОМНАТНЫЕ РАСТЕНИЯ/Фикусы", rows[0].Folder)
}

func TestFilterPlantRows(t *testing.T) {
	rows := []StockRow{
		{Name: "Фикус", Folder: "КОМНАТНЫЕ РАСТЕНИЯ/Фикусы"},
		{Name: "Мох", Folder: "Декор", Group: "Для флорариума"},
		{Name: "Кашпо", Folder: "ГОРШКИ И КАШПО"},
	}
	filtered := filterPlantRows(rows)
	require.Len(t, filtered, 2)
	require.Equal(t, "Фикус", filtered[0].Name)
	require.Equal(t, "Мох", filtered[1].Name)
}
