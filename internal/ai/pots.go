package ai

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
)

// potRange is the planter diameter range suggested for a plant pot
// diameter.
type potRange struct {
	min, max int
}

// plantPotSizes maps the technical pot diameter of a plant to the
// planter range that fits it.
var plantPotSizes = map[int]potRange{
	9:  {10, 12},
	10: {10, 12},
	11: {12, 15},
	12: {12, 15},
	13: {15, 18},
	14: {15, 18},
	15: {15, 18},
	16: {19, 21},
	17: {19, 21},
	18: {19, 21},
	19: {21, 25},
	20: {21, 25},
	21: {21, 25},
	22: {21, 25},
	23: {26, 29},
	24: {28, 30},
	25: {30, 35},
	26: {30, 35},
	27: {30, 35},
	28: {30, 35},
	29: {35, 40},
	30: {35, 40},
	31: {35, 40},
	32: {35, 40},
	33: {40, 45},
	34: {40, 45},
	35: {40, 45},
	36: {43, 50},
	37: {50, 59},
	38: {50, 59},
	39: {50, 59},
	40: {50, 59},
	41: {50, 59},
	42: {50, 59},
	43: {50, 59},
	44: {50, 59},
	45: {50, 59},
	46: {60, 70},
	47: {60, 70},
	48: {60, 70},
	49: {60, 70},
	50: {60, 70},
	51: {60, 70},
	52: {60, 70},
	53: {60, 70},
}

// Plant names carry the pot diameter in forms like "12/45 см",
// "d17 см" or "21 см".
var plantDiameterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)/\d+\s*см`),
	regexp.MustCompile(`d(\d+)\s*см`),
	regexp.MustCompile(`(\d+)\s*см`),
}

// ExtractPlantDiameter pulls the technical pot diameter out of a plant
// name; 0 when nothing plausible (5-60 cm) is found.
func ExtractPlantDiameter(plantName string) int {
	for _, pattern := range plantDiameterPatterns {
		match := pattern.FindStringSubmatch(plantName)
		if match == nil {
			continue
		}
		diameter, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if diameter >= 5 && diameter <= 60 {
			return diameter
		}
	}
	return 0
}

// GeneratePotLink builds a storefront filter URL for planters matching
// a plant pot diameter. Unknown diameters snap to the closest mapped
// one.
func (a *Agent) GeneratePotLink(plantDiameter int) string {
	r, ok := plantPotSizes[plantDiameter]
	if !ok {
		closest := 0
		for d := range plantPotSizes {
			if closest == 0 || abs(d-plantDiameter) < abs(closest-plantDiameter) {
				closest = d
			}
		}
		r = plantPotSizes[closest]
	}
	return fmt.Sprintf("%s/catalog/gorshki_i_kashpo/filter/diameter-from-%d-to-%d/apply/",
		a.storeURL, r.min, r.max)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

var potSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d+)\s*см`),
	regexp.MustCompile(`d(\d+)`),
	regexp.MustCompile(`диаметр\s*(\d+)`),
	regexp.MustCompile(`размер\s*(\d+)`),
}

// ExtractPotSize finds the planter diameter a customer asks for; 0 when
// the text names nothing in the plausible 10-70 cm range.
func ExtractPotSize(text string) int {
	text = strings.ToLower(text)
	for _, pattern := range potSizePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		size, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		if size >= 10 && size <= 70 {
			return size
		}
	}
	return 0
}

// potSuggestionMessage offers a planter for a plant shipped in a
// technical pot.
func (a *Agent) potSuggestionMessage(plant catalog.Plant) string {
	name := plant.Name
	if name == "" {
		name = "растение"
	}
	if diameter := ExtractPlantDiameter(name); diameter > 0 {
		return fmt.Sprintf(`🪴 Кстати! Ваше растение "%s" поставляется в техническом горшке.

Рекомендуем дополнить заказ красивым кашпо подходящего размера:
%s

Это не только украсит интерьер, но и обеспечит растению лучшие условия! 🌿✨`, name, a.GeneratePotLink(diameter))
	}
	return fmt.Sprintf(`🪴 Кстати! Ваше растение "%s" поставляется в техническом горшке.

Рекомендуем дополнить заказ красивым кашпо:
%s/catalog/gorshki_i_kashpo/

Это не только украсит интерьер, но и обеспечит растению лучшие условия! 🌿✨`, name, a.storeURL)
}

// sendPotSuggestions messages the customer about every ordered plant
// that ships in a technical pot.
func (a *Agent) sendPotSuggestions(ctx context.Context, chatID int64, plants []catalog.Plant) {
	for _, plant := range plants {
		if !plant.InTechnicalPot() {
			continue
		}
		a.send(ctx, chatID, a.potSuggestionMessage(plant))
	}
}

// accessoriesMessage is the post-checkout upsell with care accessory
// links.
func (a *Agent) accessoriesMessage() string {
	return fmt.Sprintf(`🌿 Отлично! Ваш заказ оформлен!

А чтобы ваше растение чувствовало себя максимально комфортно, предлагаю полезные аксессуары:

🚿 **Лейки и опрыскиватели**
%[1]s/catalog/aksessuary/leyki_i_opryskivateli/

🌱 **Удобрения**
%[1]s/catalog/udobreniya/udobreniya_1/

💡 **Фитолампы**
%[1]s/catalog/aksessuary/fitolampy/

🔧 **Приборы для ухода**
%[1]s/catalog/aksessuary/pribory_dlya_rasteniy/

Нужна консультация по аксессуарам? Обращайтесь! 😊`, a.storeURL)
}
