package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sheetFixture(t *testing.T) []byte {
	t.Helper()

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]interface{}{
		{"Название", "Растение", "Уход (список)", "Кашпо/Горшок", "Розничная цена", "Ссылка на товар"},
		{"Аглаонема Сильвер Бей", "Аглаонема Сильвер Бей 12/40 см", "Легкий (подходит новичкам) [12]", "в техническом горшке", "1990", "https://tropichouse.ru/catalog/aglaonema/"},
		{"Фикус Лирата", "Фикус Лирата 17/60 см", "Средний (для опытных)", "керамическое кашпо", "4500", "https://tropichouse.ru/catalog/fikus/"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseSheet(t *testing.T) {
	plants, err := parseSheet(sheetFixture(t))
	require.NoError(t, err)
	require.Len(t, plants, 2)

	require.Equal(t, "Аглаонема Сильвер Бей", plants[0].Name)
	require.Equal(t, "Аглаонема Сильвер Бей 12/40 см", plants[0].Kind)
	// Reference fragments like [12] are stripped from cell values.
	require.Equal(t, "Легкий (подходит новичкам)", plants[0].Care)
	require.True(t, plants[0].InTechnicalPot())
	require.Equal(t, "4500", plants[1].Price)
}

func TestMergeStockWithSheet(t *testing.T) {
	sheet := []Plant{
		{Name: "Аглаонема Сильвер Бей", Kind: "Аглаонема Сильвер Бей 12/40 см"},
		{Name: "Фикус Лирата", Kind: "Фикус Лирата 17/60 см"},
	}
	stock := []StockRow{
		{Name: "Аглаонема Сильвер Бей 12/40 см", Stock: 3, Price: 1990},
		{Name: "Спатифиллум Штраус 9/30 см", Stock: 5, Price: 790, Article: "SP-9"},
	}

	merged := mergeStockWithSheet(stock, sheet)
	// 2 sheet rows + 1 missing stock row + 2 tech variants.
	require.Len(t, merged, 5)

	byName := make(map[string]Plant, len(merged))
	for _, p := range merged {
		byName[p.Name] = p
	}

	require.Equal(t, 3.0, byName["Аглаонема Сильвер Бей"].Stock)
	require.Equal(t, 0.0, byName["Фикус Лирата"].Stock)

	missing := byName["Спатифиллум Штраус 9/30 см"]
	require.Equal(t, 5.0, missing.Stock)
	require.Equal(t, TechnicalPotMarker, missing.Pot)
	require.Equal(t, "790", missing.Price)
	require.Equal(t, "ссылка", missing.URL)
	require.Equal(t, "SP-9", missing.Article)

	tech := byName["Спатифиллум Штраус 9/30 см (тех)"]
	require.Equal(t, 5.0, tech.Stock)
	require.Equal(t, generateSymbolicCode("Спатифиллум Штраус 9/30 см_tech"), tech.SymbolCode)
	_, hasAglaonemaTech := byName["Аглаонема Сильвер Бей 12/40 см (тех)"]
	require.True(t, hasAglaonemaTech)
}

func TestFilterInStock(t *testing.T) {
	plants := []Plant{
		{Name: "в наличии", Stock: 2},
		{Name: "распродано", Stock: 0},
		{Name: "дробный остаток", Stock: 0.5},
	}
	inStock := filterInStock(plants)
	require.Len(t, inStock, 1)
	require.Equal(t, "в наличии", inStock[0].Name)
}

func TestFormatPrice(t *testing.T) {
	require.Equal(t, "1990", formatPrice(1990))
	require.Equal(t, "1990.50", formatPrice(1990.5))
}
