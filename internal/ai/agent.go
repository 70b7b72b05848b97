package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/config"
	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/gateway"
	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("ai")

const (
	historyWindow = 20
	maxToolRounds = 10
	searchTopK    = 50
	// Managers go offline at 19:00; later requests wait for the morning.
	workdayEndHour = 19
)

// Notifier delivers order and escalation details to the sales team.
type Notifier interface {
	NotifySeller(ctx context.Context, details string, preorder bool, chat *dialog.ChatContext) (string, error)
}

// Sender pushes a text message to a customer chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
}

// ManagerDirectory lists the online managers of a CRM group.
type ManagerDirectory interface {
	OnlineManagers(ctx context.Context, groupID int) ([]gateway.Manager, error)
}

// Options wires the agent to its collaborators.
type Options struct {
	Client     *openai.Client
	OpenAI     config.OpenAIConfig
	StoreURL   string
	Catalog    *catalog.Catalog
	Notifier   Notifier
	Sender     Sender
	Managers   ManagerDirectory
	ManagerB2B config.ManagerGroup
	ManagerB2C config.ManagerGroup
	HTTPClient *http.Client
	// Now is the clock used for the working-hours check; nil means
	// time.Now.
	Now func() time.Time
}

// Agent drives customer dialogs: it classifies intents, escalates to
// managers and runs the tool-calling conversation loop.
type Agent struct {
	client         *openai.Client
	model          string
	visionModel    string
	embeddingModel string
	storeURL       string

	catalog  *catalog.Catalog
	notifier Notifier
	sender   Sender
	managers ManagerDirectory

	managerB2B config.ManagerGroup
	managerB2C config.ManagerGroup

	httpClient *http.Client
	now        func() time.Time
}

func New(opts Options) *Agent {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Agent{
		client:         opts.Client,
		model:          opts.OpenAI.Model,
		visionModel:    opts.OpenAI.VisionModel,
		embeddingModel: opts.OpenAI.EmbeddingModel,
		storeURL:       opts.StoreURL,
		catalog:        opts.Catalog,
		notifier:       opts.Notifier,
		sender:         opts.Sender,
		managers:       opts.Managers,
		managerB2B:     opts.ManagerB2B,
		managerB2C:     opts.ManagerB2C,
		httpClient:     httpClient,
		now:            now,
	}
}

// SetCatalog wires the catalog in after construction. The agent is the
// catalog's embedder, so the two cannot be built in one shot.
func (a *Agent) SetCatalog(c *catalog.Catalog) {
	a.catalog = c
}

// Embed implements catalog.Embedder through the OpenAI embeddings API.
func (a *Agent) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: texts,
		Model: openai.EmbeddingModel(a.embeddingModel),
	})
	if err != nil {
		return nil, fmt.Errorf("embeddings request failed: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(vectors) {
			vectors[item.Index] = item.Embedding
		}
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("embeddings response is missing vector %d", i)
		}
	}
	return vectors, nil
}

func (a *Agent) send(ctx context.Context, chatID int64, text string) {
	if a.sender == nil {
		return
	}
	if _, err := a.sender.SendMessage(ctx, chatID, text); err != nil {
		log.Error("Failed to send message to chat %d: %v", chatID, err)
	}
}

// escalationCategories are the intents that need a human online before
// the canned reply goes out.
var escalationCategories = map[string]bool{
	IntentOfficePlant:    true,
	IntentMultiplePlants: true,
	IntentLivePhoto:      true,
	IntentAskHuman:       true,
	IntentReclamation:    true,
	IntentOrderQuestion:  true,
	IntentCallRequest:    true,
}

// workingHoursAndManagers reports whether it is working time and, for
// escalation intents, whether any manager of the matching group is
// online.
func (a *Agent) workingHoursAndManagers(ctx context.Context, category string) (workingHours, managersOnline bool) {
	workingHours = a.now().Hour() < workdayEndHour

	if !escalationCategories[category] || a.managers == nil {
		return workingHours, false
	}

	group := a.managerB2C
	if category == IntentOfficePlant {
		group = a.managerB2B
	}
	online, err := a.managers.OnlineManagers(ctx, group.ID)
	if err != nil {
		log.Error("Failed to check online managers: %v", err)
		return workingHours, false
	}
	return workingHours, len(online) > 0
}

// RunUnified handles one customer message end to end and returns the
// reply text. An empty reply means the bot stays silent.
func (a *Agent) RunUnified(ctx context.Context, chat *dialog.ChatContext, userMessage string) (string, error) {
	category, err := a.ClassifyIntent(ctx, chat, userMessage)
	if err != nil {
		log.Error("Intent classification failed for chat %d: %v", chat.ChatID, err)
		category = IntentNone
	}
	if category == IntentReviewIgnore {
		return "", nil
	}

	chat.AddUserMessage(userMessage)

	if chat.State == dialog.StateManagerCalled && userMessage != "/start" {
		log.Info("Manager already called for chat %d, staying silent", chat.ChatID)
		return "", nil
	}

	// A single office plant is a normal consultation, not a B2B lead.
	if category == IntentOfficePlant && a.ExtractPlantQuantity(ctx, userMessage) <= 1 {
		category = IntentNone
	}

	// Planter-only questions get a catalog link straight away.
	if category == IntentPotRequest {
		var reply string
		if size := ExtractPotSize(userMessage); size > 0 {
			reply = fmt.Sprintf("🪴 Вот подходящие кашпо диаметром %d см:\n%s", size, a.GeneratePotLink(size))
		} else {
			reply = fmt.Sprintf("🪴 Вот наш каталог кашпо и горшков:\n%s/catalog/gorshki_i_kashpo/", a.storeURL)
		}
		chat.AddAssistantMessage(reply)
		return reply, nil
	}

	if category != IntentNone && category != IntentDelivery {
		return a.escalate(ctx, chat, category, userMessage)
	}

	return a.runConversation(ctx, chat)
}

// escalate notifies the sales team about an intent the bot does not
// handle itself and answers the customer with the canned reply.
func (a *Agent) escalate(ctx context.Context, chat *dialog.ChatContext, category, userMessage string) (string, error) {
	details := fmt.Sprintf("%s: %s", detailsPrefix[category], userMessage)
	chat.Subject = detailsPrefix[category]

	// Order status and call-back requests are handed over silently so the
	// manager's answer is the next thing the customer sees.
	if category == IntentOrderQuestion || category == IntentCallRequest {
		if _, err := a.notifier.NotifySeller(ctx, details, false, chat); err != nil {
			log.Error("Seller notification failed for chat %d: %v", chat.ChatID, err)
		}
		chat.ChangeState(dialog.StateManagerCalled)
		return "", nil
	}

	workingHours, managersOnline := a.workingHoursAndManagers(ctx, category)
	if !workingHours && !managersOnline {
		const afterHours = "Запрос принят, свяжемся с Вами в рабочее время ⏰"
		chat.AddAssistantMessage(afterHours)
		if _, err := a.notifier.NotifySeller(ctx, details, false, chat); err != nil {
			log.Error("Seller notification failed for chat %d: %v", chat.ChatID, err)
		}
		return afterHours, nil
	}

	if _, err := a.notifier.NotifySeller(ctx, details, false, chat); err != nil {
		log.Error("Seller notification failed for chat %d: %v", chat.ChatID, err)
	}
	reply := categoryReplies[category]
	chat.AddAssistantMessage(reply)
	chat.ChangeState(dialog.StateManagerCalled)
	return reply, nil
}

// runConversation drives the tool-calling loop over the recent history.
func (a *Agent) runConversation(ctx context.Context, chat *dialog.ChatContext) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: buildInstructions(chat)},
	}
	messages = append(messages, historyToOpenAI(chat.LastMessages(historyWindow))...)

	for round := 0; round < maxToolRounds; round++ {
		resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:    a.model,
			Messages: messages,
			Tools:    agentTools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return "", fmt.Errorf("chat completion returned no choices")
		}
		answer := resp.Choices[0].Message

		if len(answer.ToolCalls) == 0 {
			if chat.State == dialog.StateUpsell {
				// The accessories message replaces the model's own text.
				a.send(ctx, chat.ChatID, a.accessoriesMessage())
				chat.ChangeState(dialog.StateCompleted)
				return "", nil
			}
			if answer.Content != "" {
				chat.AddAssistantMessage(answer.Content)
			}
			return answer.Content, nil
		}

		messages = append(messages, answer)
		chat.AddMessage(assistantToolMessage(answer))

		for _, call := range answer.ToolCalls {
			result := a.dispatchTool(ctx, chat, call.Function.Name, call.Function.Arguments)
			messages = append(messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
			chat.AddMessage(dialog.ChatMessage{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				Name:       call.Function.Name,
			})
		}
	}

	return "", fmt.Errorf("tool loop did not converge after %d rounds", maxToolRounds)
}

func historyToOpenAI(history []dialog.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, msg := range history {
		m := openai.ChatCompletionMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}
		for _, call := range msg.ToolCalls {
			m.ToolCalls = append(m.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		out = append(out, m)
	}
	return out
}

func assistantToolMessage(msg openai.ChatCompletionMessage) dialog.ChatMessage {
	out := dialog.ChatMessage{Role: "assistant", Content: msg.Content}
	for _, call := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, dialog.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return out
}

// notifyResult is the JSON a manager-notifying tool hands back to the
// model.
func notifyResult(confirmation string, err error) string {
	if err != nil {
		data, _ := json.Marshal(map[string]string{
			"status":        "error",
			"error_message": "К сожалению, при оформлении заказа произошла ошибка. 😥 Пожалуйста, попробуйте еще раз или свяжитесь с нами напрямую.",
		})
		return string(data)
	}
	data, _ := json.Marshal(map[string]string{
		"status":               "success",
		"confirmation_message": confirmation,
	})
	return string(data)
}
