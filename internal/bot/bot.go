package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Lavr-18/AI-agent-Olivia/internal/ai"
	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/gateway"
	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("bot")

const (
	emptyMessageApology = "Извините, я получил пустое сообщение. Пожалуйста, повторите ваш запрос."
	errorApology        = "Извините, произошла ошибка при обработке вашего запроса. Пожалуйста, повторите или введите /start для перезапуска диалога."
	imageErrorApology   = "Извините, произошла ошибка при обработке вашего фото. Пожалуйста, попробуйте еще раз."
	imageFetchApology   = "Извините, не удалось загрузить фотографию. Попробуйте отправить её снова."
)

// Conversation is the agent surface the orchestrator drives.
type Conversation interface {
	RunUnified(ctx context.Context, chat *dialog.ChatContext, userMessage string) (string, error)
	FetchImage(ctx context.Context, imageURL string) ([]byte, error)
	AnalyzeImage(ctx context.Context, imageData []byte) ai.ImageAnalysis
}

// Gateway is the outbound slice of the message gateway the orchestrator
// needs.
type Gateway interface {
	SendMessage(ctx context.Context, chatID int64, text string) (int64, error)
	DialogAssigned(ctx context.Context, dialogID int64) bool
}

// Bot routes gateway events into dialogs: it filters channels, detects
// manager takeovers, debounces bursts and runs the agent.
type Bot struct {
	gw       Gateway
	agent    Conversation
	store    *dialog.Store
	channels map[int]bool
	debounce *debouncer

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(gw Gateway, agent Conversation, store *dialog.Store, channels []int) *Bot {
	allowed := make(map[int]bool, len(channels))
	for _, id := range channels {
		allowed[id] = true
	}
	b := &Bot{
		gw:       gw,
		agent:    agent,
		store:    store,
		channels: allowed,
		locks:    make(map[int64]*sync.Mutex),
	}
	b.debounce = newDebouncer(DebounceDelay, b.processBatch)
	return b
}

// chatLock returns the mutex serializing all work on one chat. Gateway
// events arrive on the websocket goroutine while debounced batches run
// on timer goroutines; both mutate the same ChatContext, so every such
// path takes this lock first.
func (b *Bot) chatLock(chatID int64) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	l, ok := b.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[chatID] = l
	}
	return l
}

// Stop cancels pending debounce timers.
func (b *Bot) Stop() {
	b.debounce.stop()
}

// HandleEvent is the websocket consumer callback.
func (b *Bot) HandleEvent(ctx context.Context, event gateway.Event) {
	if event.Type != "message_new" {
		return
	}
	msg := event.Data.Message
	if msg.ChatID == 0 {
		log.Warn("Event without chat_id, skipping")
		return
	}

	channel := msg.Chat.Channel
	if !b.channels[channel.ID] {
		log.Info("Message from channel %q (%d) ignored", channel.Name, channel.ID)
		return
	}

	switch msg.From.Type {
	case "customer":
		b.handleCustomerMessage(ctx, msg)
	case "manager", "user":
		// A human wrote in the chat; the bot goes quiet there.
		log.Info("Message from %s in chat %d, switching to manager mode", msg.From.Type, msg.ChatID)
		l := b.chatLock(msg.ChatID)
		l.Lock()
		chat := b.store.Get(msg.ChatID)
		chat.DialogID = msg.Dialog.ID
		chat.ChangeState(dialog.StateManagerCalled)
		l.Unlock()
	default:
		log.Warn("Unknown sender type %q in chat %d, ignoring", msg.From.Type, msg.ChatID)
	}
}

func (b *Bot) handleCustomerMessage(ctx context.Context, msg gateway.Message) {
	l := b.chatLock(msg.ChatID)
	l.Lock()
	defer l.Unlock()

	if b.gw.DialogAssigned(ctx, msg.Dialog.ID) {
		log.Info("Dialog %d already assigned, switching chat %d to manager mode", msg.Dialog.ID, msg.ChatID)
		chat := b.store.Get(msg.ChatID)
		chat.DialogID = msg.Dialog.ID
		chat.ChangeState(dialog.StateManagerCalled)
		return
	}

	chat := b.store.Get(msg.ChatID)
	chat.DialogID = msg.Dialog.ID
	chat.ChannelID = msg.Chat.Channel.ID
	chat.ChannelName = strings.ToLower(msg.Chat.Channel.Name)
	chat.UserID = msg.From.ID
	if msg.From.Name != "" {
		chat.UserName = msg.From.Name
	} else if chat.UserName == "" {
		chat.UserName = "Неизвестный пользователь"
	}

	switch msg.Type {
	case "text":
		text := msg.Text()
		if strings.TrimSpace(text) == "" {
			log.Warn("Empty text message in chat %d", msg.ChatID)
			return
		}
		log.Info("Customer text in chat %d: %.50s", msg.ChatID, text)
		b.debounce.add(msg.ChatID, text, "")
	case "image":
		url := msg.ImageURL()
		if url == "" {
			log.Warn("Image message without preview url in chat %d", msg.ChatID)
			return
		}
		log.Info("Customer image in chat %d: %s", msg.ChatID, url)
		b.debounce.add(msg.ChatID, "", url)
	default:
		log.Info("Unsupported message type %q in chat %d, ignoring", msg.Type, msg.ChatID)
	}
}

// processBatch handles one debounced burst: images first, one by one,
// then all texts merged into a single agent turn. The chat lock is held
// for the whole batch, so a burst that arrives mid-run queues up behind
// it instead of entering the agent concurrently.
func (b *Bot) processBatch(chatID int64, batch batch) {
	l := b.chatLock(chatID)
	l.Lock()
	defer l.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	for _, imageURL := range batch.images {
		b.processImage(ctx, chatID, imageURL)
	}
	if len(batch.texts) > 0 {
		b.processText(ctx, chatID, strings.Join(batch.texts, "\n"))
	}
}

func (b *Bot) processText(ctx context.Context, chatID int64, text string) {
	// /start always discards the old dialog before the agent runs, so the
	// customer gets the greeting from a clean state.
	if strings.ToLower(strings.TrimSpace(text)) == "/start" {
		log.Info("Reset command in chat %d", chatID)
		b.store.Reset(chatID)
	}
	chat := b.store.Get(chatID)

	if strings.TrimSpace(text) == "" {
		b.reply(ctx, chatID, emptyMessageApology)
		return
	}

	reply, err := b.agent.RunUnified(ctx, chat, text)
	if err != nil {
		log.Error("Agent failed for chat %d: %v", chatID, err)
		b.reply(ctx, chatID, errorApology)
		return
	}
	// An empty reply means the bot deliberately stays silent.
	if reply != "" {
		b.reply(ctx, chatID, reply)
	}
}

func (b *Bot) processImage(ctx context.Context, chatID int64, imageURL string) {
	chat := b.store.Get(chatID)

	imageData, err := b.agent.FetchImage(ctx, imageURL)
	if err != nil {
		log.Error("Failed to fetch image for chat %d: %v", chatID, err)
		b.reply(ctx, chatID, imageFetchApology)
		return
	}

	analysis := b.agent.AnalyzeImage(ctx, imageData)
	var internal string
	if analysis.IsPlant {
		internal = fmt.Sprintf("Пользователь прислал фото растения: %s. %s", analysis.PlantName, analysis.Description)
		log.Info("Image in chat %d recognized as %s", chatID, analysis.PlantName)
	} else if analysis.Description != "" {
		internal = fmt.Sprintf("Пользователь прислал фото, но это похоже не растение. Описание: %s", analysis.Description)
	} else {
		internal = "Пользователь прислал фото, но распознать его не удалось."
	}

	reply, err := b.agent.RunUnified(ctx, chat, internal)
	if err != nil {
		log.Error("Agent failed after image for chat %d: %v", chatID, err)
		b.reply(ctx, chatID, imageErrorApology)
		return
	}
	if reply != "" {
		b.reply(ctx, chatID, reply)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	if _, err := b.gw.SendMessage(ctx, chatID, text); err != nil {
		log.Error("Failed to send reply to chat %d: %v", chatID, err)
	}
}
