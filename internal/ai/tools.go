package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
)

func functionTool(name, description string, schema string) openai.Tool {
	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(schema),
		},
	}
}

var agentTools = []openai.Tool{
	functionTool("search", "Ищет растения в базе данных по запросу пользователя.", `{
		"type": "object",
		"properties": {
			"query": {"type": "string", "description": "Поисковый запрос"}
		},
		"required": ["query"]
	}`),
	functionTool("order", "Оповещает менеджера о заказе.", `{
		"type": "object",
		"properties": {
			"plant": {"type": "string", "description": "Название растения"},
			"quantity": {"type": "integer", "description": "Количество"},
			"customer_info": {"type": "string", "description": "Контактная информация клиента"}
		},
		"required": ["plant", "quantity"]
	}`),
	functionTool("preorder", "Оповещает менеджера о предзаказе растения, которого нет в наличии.", `{
		"type": "object",
		"properties": {
			"plant": {"type": "string", "description": "Название растения"},
			"quantity": {"type": "integer", "description": "Количество"},
			"customer_info": {"type": "string", "description": "Контактная информация клиента"}
		},
		"required": ["plant", "quantity"]
	}`),
	functionTool("suggest_accessories", "Предлагает дополнительные товары после покупки растения.", `{
		"type": "object",
		"properties": {}
	}`),
	functionTool("add_to_cart", "Добавляет растение в корзину для последующего оформления заказа.", `{
		"type": "object",
		"properties": {
			"plant": {"type": "string", "description": "Название растения"},
			"quantity": {"type": "integer", "description": "Количество"},
			"order_type": {"type": "string", "enum": ["order", "preorder"], "description": "Тип: order или preorder"}
		},
		"required": ["plant", "quantity"]
	}`),
	functionTool("show_cart", "Показывает содержимое корзины.", `{
		"type": "object",
		"properties": {}
	}`),
	functionTool("checkout_cart", "Оформляет заказ всех растений из корзины.", `{
		"type": "object",
		"properties": {
			"customer_info": {"type": "string", "description": "Контактная информация клиента"}
		}
	}`),
	functionTool("remove_from_cart", "Удаляет растение из корзины по названию.", `{
		"type": "object",
		"properties": {
			"plant_name": {"type": "string", "description": "Название растения"}
		},
		"required": ["plant_name"]
	}`),
}

// dispatchTool executes one tool call and returns the text the model
// sees as the call result. Bad arguments come back as an error string,
// never a Go error: the model should get a chance to retry.
func (a *Agent) dispatchTool(ctx context.Context, chat *dialog.ChatContext, name, arguments string) string {
	log.Info("Chat %d: tool %s(%s)", chat.ChatID, name, arguments)

	switch name {
	case "search":
		var args struct {
			Query string `json:"query"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "Некорректные аргументы: " + err.Error()
		}
		return a.toolSearch(ctx, chat, args.Query)
	case "order", "preorder":
		var args struct {
			Plant        string `json:"plant"`
			Quantity     int    `json:"quantity"`
			CustomerInfo string `json:"customer_info"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "Некорректные аргументы: " + err.Error()
		}
		return a.toolOrder(ctx, chat, args.Plant, args.Quantity, args.CustomerInfo, name == "preorder")
	case "suggest_accessories":
		chat.ChangeState(dialog.StateUpsell)
		return a.toolSuggestAccessories()
	case "add_to_cart":
		var args struct {
			Plant     string `json:"plant"`
			Quantity  int    `json:"quantity"`
			OrderType string `json:"order_type"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "Некорректные аргументы: " + err.Error()
		}
		return a.toolAddToCart(chat, args.Plant, args.Quantity, args.OrderType)
	case "show_cart":
		return a.toolShowCart(chat)
	case "checkout_cart":
		var args struct {
			CustomerInfo string `json:"customer_info"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "Некорректные аргументы: " + err.Error()
		}
		return a.toolCheckoutCart(ctx, chat, args.CustomerInfo)
	case "remove_from_cart":
		var args struct {
			PlantName string `json:"plant_name"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return "Некорректные аргументы: " + err.Error()
		}
		return a.toolRemoveFromCart(chat, args.PlantName)
	}
	return fmt.Sprintf("Неизвестная функция: %s", name)
}

type searchHit struct {
	catalog.Plant
	Relevance float64 `json:"relevance_score"`
}

// toolSearch combines the vector search with the direct name search;
// name hits missing from the vector results join with full relevance.
func (a *Agent) toolSearch(ctx context.Context, chat *dialog.ChatContext, query string) string {
	chat.LastSearchQuery = query

	var hits []searchHit
	scored, err := a.catalog.VectorSearch(ctx, query, searchTopK)
	if err != nil {
		log.Error("Vector search failed for %q: %v", query, err)
	}
	seen := make(map[string]bool)
	for _, s := range scored {
		hits = append(hits, searchHit{Plant: s.Plant, Relevance: s.Score})
		seen[s.Plant.Name] = true
	}
	for _, p := range a.catalog.SearchByName(query) {
		if seen[p.Name] {
			continue
		}
		hits = append(hits, searchHit{Plant: p, Relevance: 1.0})
	}

	data, err := json.Marshal(map[string]interface{}{
		"results":     hits,
		"total_count": len(hits),
		"query":       query,
	})
	if err != nil {
		return "Ошибка поиска: " + err.Error()
	}
	return string(data)
}

func (a *Agent) toolOrder(ctx context.Context, chat *dialog.ChatContext, plant string, quantity int, customerInfo string, preorder bool) string {
	label := "Заказ"
	if preorder {
		label = "ПРЕДЗАКАЗ"
	}
	details := fmt.Sprintf("%s: %s\nКоличество: %d", label, plant, quantity)
	if customerInfo != "" {
		details += "\nКонтактная информация: " + customerInfo
	}

	confirmation, err := a.notifier.NotifySeller(ctx, details, preorder, chat)
	if err != nil {
		log.Error("Seller notification failed for chat %d: %v", chat.ChatID, err)
	}

	if found := a.catalog.SearchByName(plant); len(found) > 0 {
		a.sendPotSuggestions(ctx, chat.ChatID, found)
	}
	chat.ChangeState(dialog.StateUpsell)
	return notifyResult(confirmation, err)
}

func (a *Agent) toolSuggestAccessories() string {
	data, _ := json.Marshal(map[string]map[string]string{
		"accessories": {
			"Лейки и опрыскиватели": a.storeURL + "/catalog/aksessuary/leyki_i_opryskivateli/",
			"Удобрения":             a.storeURL + "/catalog/udobreniya/udobreniya_1/",
			"Фитолампы":             a.storeURL + "/catalog/aksessuary/fitolampy/",
			"Приборы для ухода":     a.storeURL + "/catalog/aksessuary/pribory_dlya_rasteniy/",
		},
	})
	return string(data)
}

func (a *Agent) toolAddToCart(chat *dialog.ChatContext, plant string, quantity int, orderType string) string {
	found := a.catalog.SearchByName(plant)
	if len(found) == 0 {
		return "Растение не найдено в каталоге"
	}
	if quantity < 1 {
		quantity = 1
	}

	t := dialog.OrderTypeOrder
	if orderType == string(dialog.OrderTypePreorder) {
		t = dialog.OrderTypePreorder
	}
	selected := found[0]
	chat.AddToCart(selected, quantity, t)
	chat.ChangeState(dialog.StateCart)

	return fmt.Sprintf("✅ Растение '%s' добавлено в корзину (количество: %d)", selected.Name, quantity)
}

func (a *Agent) toolShowCart(chat *dialog.ChatContext) string {
	summary := chat.CartSummary()
	if len(chat.Cart) == 0 {
		return summary
	}
	chat.ChangeState(dialog.StateCart)
	return summary + "\n\nВы можете добавить еще растения, удалить что-то из корзины или оформить заказ."
}

// toolCheckoutCart submits the cart as up to two notifications, one for
// in-stock orders and one for preorders, then clears the cart.
func (a *Agent) toolCheckoutCart(ctx context.Context, chat *dialog.ChatContext, customerInfo string) string {
	if len(chat.Cart) == 0 {
		return "Корзина пуста, нечего заказывать"
	}

	var orders, preorders []string
	var orderPlants, preorderPlants []catalog.Plant
	for _, item := range chat.Cart {
		name := item.Plant.Name
		if name == "" {
			name = "Неизвестное растение"
		}
		line := fmt.Sprintf("%s - %d шт.", name, item.Quantity)
		if item.Type == dialog.OrderTypePreorder {
			preorders = append(preorders, line)
			preorderPlants = append(preorderPlants, item.Plant)
		} else {
			orders = append(orders, line)
			orderPlants = append(orderPlants, item.Plant)
		}
	}

	submit := func(label string, lines []string, plants []catalog.Plant, preorder bool) {
		details := label + ":\n" + strings.Join(lines, "\n")
		if customerInfo != "" {
			details += "\n\nКонтактная информация: " + customerInfo
		}
		if _, err := a.notifier.NotifySeller(ctx, details, preorder, chat); err != nil {
			log.Error("Seller notification failed for chat %d: %v", chat.ChatID, err)
		}
		a.sendPotSuggestions(ctx, chat.ChatID, plants)
	}
	if len(orders) > 0 {
		submit("ЗАКАЗ", orders, orderPlants, false)
	}
	if len(preorders) > 0 {
		submit("ПРЕДЗАКАЗ", preorders, preorderPlants, true)
	}

	chat.ClearCart()
	chat.ChangeState(dialog.StateUpsell)

	data, _ := json.Marshal(map[string]interface{}{"success": true, "message": "Заказ оформлен"})
	return string(data)
}

func (a *Agent) toolRemoveFromCart(chat *dialog.ChatContext, plantName string) string {
	if !chat.RemoveFromCart(plantName) {
		return fmt.Sprintf("Растение '%s' не найдено в корзине", plantName)
	}
	chat.ChangeState(dialog.StateCart)
	return fmt.Sprintf("✅ Растение '%s' удалено из корзины", plantName)
}
