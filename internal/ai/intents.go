package ai

import (
	"context"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
)

// Intent categories that route a customer message to a manager instead
// of the assistant.
const (
	IntentLivePhoto      = "live_photo"
	IntentMultiplePlants = "multiple_plants"
	IntentOrderQuestion  = "order_question"
	IntentCallRequest    = "call_request"
	IntentPotRequest     = "pot_request"
	IntentReclamation    = "reclamation"
	IntentAskHuman       = "ask_human"
	IntentDelivery       = "delivery"
	IntentOfficePlant    = "office_plant"
	IntentNone           = "none"
	IntentReviewIgnore   = "review_ignore"
)

// categoryReplies are the canned customer replies for intents that call
// a manager.
var categoryReplies = map[string]string{
	IntentLivePhoto:      "Сейчас я спрошу у коллеги, чтобы он сделал для вас свеженькое фото растения 📸 Немного подождите, хорошо?",
	IntentMultiplePlants: "Для вашего большого заказа я уже зову нашего менеджера 🤗 Пожалуйста, подождите немного!",
	IntentOrderQuestion:  "Сейчас уточню детали вашего заказа и скоро вернусь с ответом 📦",
	IntentCallRequest:    "Понял, сейчас попрошу менеджера связаться с вами по телефону 📞",
	IntentReclamation:    "Я передам ваш вопрос нашему менеджеру по рекламациям 🙏 Подождите, пожалуйста.",
	IntentAskHuman:       "Конечно, я позову менеджера, который поможет лично 🤝 Подождите чуть-чуть!",
	IntentOfficePlant:    "Зову нашего эксперта по озеленению офисов 🌿 Он скоро свяжется с вами.",
}

// detailsPrefix labels the manager notification per intent.
var detailsPrefix = map[string]string{
	IntentLivePhoto:      "Пользователь запрашивает живое фото растения",
	IntentMultiplePlants: "Пользователь спрашивает про заказ нескольких растений",
	IntentOrderQuestion:  "Вопрос по текущему заказу",
	IntentCallRequest:    "Пользователь просит позвонить",
	IntentReclamation:    "Рекламация",
	IntentAskHuman:       "Пользователь просит связать с менеджером",
	IntentOfficePlant:    "Пользователь интересуется растениями для офиса",
}

// reviewRequestText is the fixed post-delivery review message another
// bot sends into the same chats; it and the numeric answers to it are
// ignored.
const reviewRequestText = "Ваш заказ доставлен 🏡\n" +
	"Благодарим за покупку в TropicHouse! 🌿\n\n" +
	"Ваш выбор — лучшая награда для нашей команды. Мы постоянно совершенствуем сервис и хотим, чтобы вам было приятно возвращаться🌴\n\n" +
	"Пожалуйста, оцените наш сервис по 5-балльной шкале:\n" +
	"5 — 😍 всё отлично\n" +
	"3 — 😐 есть, что улучшить\n" +
	"1 — 😞 остались недовольны"

var reviewAnswers = map[string]bool{
	"1":                        true,
	"3":                        true,
	"5":                        true,
	"1 - 3":                    true,
	"5 - отлично":              true,
	"5 — всё отлично":          true,
	"3 — есть, что улучшить":   true,
	"1 — остались недовольны":  true,
}

const intentSystemPrompt = `
# Инструкция по классификации запросов клиентов
Ты анализируешь запросы клиентов магазина растений и классифицируешь их по следующим категориям:

## Категории (верни ТОЛЬКО одну из этих категорий):
- live_photo: запрос живого фото растения
- multiple_plants: запрос на заказ нескольких растений
- order_question: вопросы по ранее сделанному заказу (статус заказа, отмена заказа, проблемы с доставкой уже оформленного заказа)
- call_request: просьба позвонить, связаться по телефону
- pot_request: вопросы только про кашпо и горшки (без растений)
- reclamation: рекламации (только серьёзные случаи)
- ask_human: просьба позвать менеджера/человека
- delivery: вопросы по доставке
- office_plant: вопросы о растениях для офиса, озеленение офиса, b2b заказы
- none: все прочие запросы

## Приоритизация:
ОСОБЕННО ВНИМАТЕЛЬНО отслеживай запросы связанные с:
- растения для офиса
- озеленение офиса
- b2b услуги
- корпоративные заказы
- вопросы по уже сделанным заказам (когда и что привезут, изменить заказ, отменить заказ, где мой заказ)
- просьбы позвонить, связаться по телефону (перезвоните, позвоните мне, нужен звонок)
- вопросы только про кашпо и горшки (покажите кашпо, нужен горшок, какие кашпо есть)

## Формат ответа:
Верни ТОЛЬКО ОДНО СЛОВО из списка категорий выше, без пояснений.
`

// isReviewExchange detects the review bot's fixed message and the
// customer's numeric reply to it.
func isReviewExchange(chat *dialog.ChatContext, text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == strings.TrimSpace(reviewRequestText) {
		log.Info("Ignoring fixed review request message from another bot")
		return true
	}
	if n := len(chat.Messages); n > 0 {
		last := strings.TrimSpace(chat.Messages[n-1].Content)
		if last == strings.TrimSpace(reviewRequestText) && reviewAnswers[trimmed] {
			log.Info("Ignoring customer reply to a review request")
			return true
		}
	}
	return false
}

// ClassifyIntent asks the model for a single-word category; anything
// outside the known manager categories collapses to none.
func (a *Agent) ClassifyIntent(ctx context.Context, chat *dialog.ChatContext, text string) (string, error) {
	if isReviewExchange(chat, text) {
		return IntentReviewIgnore, nil
	}

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: intentSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return IntentNone, err
	}
	if len(resp.Choices) == 0 {
		return IntentNone, nil
	}

	category := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	if category == IntentPotRequest {
		return category, nil
	}
	if _, ok := categoryReplies[category]; !ok {
		return IntentNone, nil
	}
	return category, nil
}

const quantitySystemPrompt = `
Определи количество растений, которое хочет заказать пользователь в офис.

Если пользователь:
- Спрашивает про одно конкретное растение → верни 1
- Спрашивает про несколько растений, озеленение офиса, много растений → верни 2 или больше
- Просто интересуется растениями для офиса без указания количества → верни 1

Верни ТОЛЬКО ЧИСЛО (1, 2, 3 и т.д.) без дополнительного текста.
`

// ExtractPlantQuantity estimates how many plants an office request is
// about. Defaults to 1 when the model answer is unusable.
func (a *Agent) ExtractPlantQuantity(ctx context.Context, text string) int {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: quantitySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil || len(resp.Choices) == 0 {
		return 1
	}
	quantity := 0
	for _, r := range strings.TrimSpace(resp.Choices[0].Message.Content) {
		if r < '0' || r > '9' {
			break
		}
		quantity = quantity*10 + int(r-'0')
	}
	if quantity < 1 {
		return 1
	}
	return quantity
}
