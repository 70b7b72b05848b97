package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
)

func TestExtractPlantDiameter(t *testing.T) {
	for scenario, tc := range map[string]struct {
		name string
		want int
	}{
		"slash form":       {"Аглаонема Лемон Минт 12/45 см", 12},
		"d-prefix form":    {"Фикус d17 см", 17},
		"plain form":       {"Монстера 21 см", 21},
		"tall plant":       {"Фикус Лирата 21/110 см", 21},
		"no size":          {"Фикус Бенджамина", 0},
		"out of range":     {"Паллета 200 см", 0},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractPlantDiameter(tc.name))
		})
	}
}

func TestGeneratePotLink(t *testing.T) {
	a := &Agent{storeURL: "https://tropichouse.ru"}

	require.Equal(t,
		"https://tropichouse.ru/catalog/gorshki_i_kashpo/filter/diameter-from-12-to-15/apply/",
		a.GeneratePotLink(12))

	// Unmapped diameters snap to the closest mapped one.
	require.Equal(t,
		"https://tropichouse.ru/catalog/gorshki_i_kashpo/filter/diameter-from-60-to-70/apply/",
		a.GeneratePotLink(58))
	require.Equal(t,
		"https://tropichouse.ru/catalog/gorshki_i_kashpo/filter/diameter-from-10-to-12/apply/",
		a.GeneratePotLink(5))
}

func TestExtractPotSize(t *testing.T) {
	for scenario, tc := range map[string]struct {
		text string
		want int
	}{
		"cm suffix":      {"нужно кашпо 20 см", 20},
		"d prefix":       {"есть что-то вроде d15?", 15},
		"diameter word":  {"кашпо диаметр 25", 25},
		"size word":      {"размер 30 подойдет", 30},
		"no size":        {"покажите кашпо", 0},
		"too small":      {"кашпо 5 см", 0},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.want, ExtractPotSize(tc.text))
		})
	}
}

func TestPotSuggestionMessage(t *testing.T) {
	a := &Agent{storeURL: "https://tropichouse.ru"}

	t.Run("with recognizable diameter", func(t *testing.T) {
		msg := a.potSuggestionMessage(catalog.Plant{Name: "Фикус 12/40 см"})
		require.Contains(t, msg, `"Фикус 12/40 см"`)
		require.Contains(t, msg, "diameter-from-12-to-15")
	})

	t.Run("without diameter falls back to the catalog", func(t *testing.T) {
		msg := a.potSuggestionMessage(catalog.Plant{Name: "Фикус"})
		require.Contains(t, msg, "https://tropichouse.ru/catalog/gorshki_i_kashpo/")
		require.NotContains(t, msg, "diameter-from")
	})
}
