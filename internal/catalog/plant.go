package catalog

import (
	"regexp"
	"strings"

	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("catalog")

// Plant is one sellable catalog position after the stock and care-sheet
// data are merged. JSON tags match the column names of the care sheet so
// snapshots stay readable next to the source data.
type Plant struct {
	Name       string  `json:"Название"`
	Kind       string  `json:"Растение,omitempty"`
	Soil       string  `json:"Грунт,omitempty"`
	Transplant string  `json:"Пересадка,omitempty"`
	Pot        string  `json:"Кашпо/Горшок,omitempty"`
	Care       string  `json:"Уход (список),omitempty"`
	Light      string  `json:"Освещение,omitempty"`
	Water      string  `json:"Полив,omitempty"`
	Price      string  `json:"Розничная цена,omitempty"`
	Tag        string  `json:"Тег (Народное название),omitempty"`
	SymbolCode string  `json:"Символьный код в админке (не удалять),omitempty"`
	URL        string  `json:"Ссылка на товар,omitempty"`
	Article    string  `json:"article,omitempty"`
	Folder     string  `json:"folder,omitempty"`
	Group      string  `json:"group,omitempty"`
	Stock      float64 `json:"остаток (мойсклад)"`
}

// TechnicalPotMarker marks plants shipped in a plain technical pot; such
// positions get a planter suggestion after ordering.
const TechnicalPotMarker = "в техническом горшке"

// InTechnicalPot reports whether the plant ships without a planter.
func (p Plant) InTechnicalPot() bool {
	return strings.Contains(p.Pot, TechnicalPotMarker)
}

// searchText flattens every descriptive field for the fuzzy name search.
func (p Plant) searchText() string {
	parts := []string{p.Name, p.Kind, p.Care, p.Article, p.Folder, p.Group, p.Pot, p.Light, p.Water, p.Tag}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}

// description builds the text a plant is embedded from: every non-empty
// field as a "label: value" pair.
func (p Plant) description() string {
	pairs := []struct{ label, value string }{
		{"Название", p.Name},
		{"Растение", p.Kind},
		{"Грунт", p.Soil},
		{"Пересадка", p.Transplant},
		{"Кашпо/Горшок", p.Pot},
		{"Уход (список)", p.Care},
		{"Освещение", p.Light},
		{"Полив", p.Water},
		{"Розничная цена", p.Price},
		{"Тег (Народное название)", p.Tag},
		{"Ссылка на товар", p.URL},
	}
	var parts []string
	for _, pair := range pairs {
		if strings.TrimSpace(pair.value) != "" {
			parts = append(parts, pair.label+": "+pair.value)
		}
	}
	return strings.Join(parts, ". ")
}

var (
	sizePattern = regexp.MustCompile(`(\d+/\d+)`)
	refPattern  = regexp.MustCompile(`\[\d+\]`)
)

// extractBaseName lowercases a plant name and splits it into the base
// name, the size fragment and the joined form without units:
// "Аглаонема Лемон Минт 12/40 см" ->
// ("аглаонема лемон минт", "12/40", "аглаонема лемон минт 12/40").
func extractBaseName(name string) (base, size, full string) {
	name = strings.ToLower(strings.TrimSpace(name))
	loc := sizePattern.FindStringIndex(name)
	if loc == nil {
		return name, "", name
	}
	size = name[loc[0]:loc[1]]
	base = strings.TrimSpace(name[:loc[0]])
	full = strings.TrimSpace(base + " " + size)
	return base, size, full
}

// normalizeName strips [NNN] reference fragments and reduces the name to
// its comparable form.
func normalizeName(name string) string {
	name = refPattern.ReplaceAllString(name, "")
	_, _, full := extractBaseName(name)
	return full
}

var translit = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "e",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "kh", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch",
	'ъ': "", 'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

var (
	punctPattern = regexp.MustCompile(`[^\p{L}\p{N}\s_]`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// generateSymbolicCode derives a storefront admin code from a plant name:
// lowercase, punctuation stripped, spaces to underscores, Cyrillic
// transliterated.
func generateSymbolicCode(name string) string {
	name = refPattern.ReplaceAllString(strings.ToLower(name), "")
	name = punctPattern.ReplaceAllString(name, "")
	code := spacePattern.ReplaceAllString(strings.TrimSpace(name), "_")

	var b strings.Builder
	for _, r := range code {
		if repl, ok := translit[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
