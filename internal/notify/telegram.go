package notify

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Lavr-18/AI-agent-Olivia/internal/config"
	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/gateway"
	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("notify")

const (
	orderConfirmation = "Отлично! Ваш заказ успешно оформлен! 🎉 Я уже передала информацию нашему менеджеру, и с вами скоро свяжутся. Если возникнут вопросы, обращайтесь в любое время! Спасибо за выбор нашего магазина! 💚"

	preorderConfirmation = "Ура! Ваш предзаказ успешно оформлен! 🎉 Растение будет доступно в течение 7-10 дней. Я лично прослежу, чтобы с вами связались для подтверждения заказа и уточнения деталей доставки. Спасибо, что выбрали наш магазин! 💚"
)

// CRM is the slice of the gateway API the notifier needs for dialog
// assignment.
type CRM interface {
	GetDialog(ctx context.Context, dialogID int64) (*gateway.Dialog, error)
	OnlineManagers(ctx context.Context, groupID int) ([]gateway.Manager, error)
	AssignDialog(ctx context.Context, dialogID int64, userID int) error
}

// AssignmentResult describes the outcome of handing a dialog to a
// manager; its message goes into the seller notification.
type AssignmentResult struct {
	Status  string
	Message string
}

// TelegramNotifier posts order and escalation notifications into the
// sales supergroup topic and assigns the CRM dialog to a manager.
type TelegramNotifier struct {
	bot     *tgbotapi.BotAPI
	chatID  int64
	topicID int

	crm        CRM
	managerB2B config.ManagerGroup
	managerB2C config.ManagerGroup

	now func() time.Time
}

type Options struct {
	BotToken   string
	ChatID     int64
	TopicID    int
	CRM        CRM
	ManagerB2B config.ManagerGroup
	ManagerB2C config.ManagerGroup
	Now        func() time.Time
}

func NewTelegramNotifier(opts Options) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(opts.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	log.Info("Telegram bot initialized as @%s", bot.Self.UserName)

	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &TelegramNotifier{
		bot:        bot,
		chatID:     opts.ChatID,
		topicID:    opts.TopicID,
		crm:        opts.CRM,
		managerB2B: opts.ManagerB2B,
		managerB2C: opts.ManagerB2C,
		now:        now,
	}, nil
}

// isB2BOrder detects corporate orders from the escalation subject and
// the order details.
func isB2BOrder(subject, details string) bool {
	subject = strings.ToLower(subject)
	if strings.Contains(subject, "офис") || strings.Contains(subject, "b2b") {
		return true
	}
	details = strings.ToLower(details)
	return strings.Contains(details, "цветы в офис") || strings.Contains(details, "растения для офиса")
}

// chooseManager picks the manager with the fewest active dialogs.
func chooseManager(managers []gateway.Manager) *gateway.Manager {
	if len(managers) == 0 {
		return nil
	}
	best := &managers[0]
	for i := range managers[1:] {
		if managers[i+1].ActiveDialogs < best.ActiveDialogs {
			best = &managers[i+1]
		}
	}
	return best
}

// handleManagerAssignment routes a dialog to the least busy online
// manager of the matching group.
func (n *TelegramNotifier) handleManagerAssignment(ctx context.Context, b2b bool, dialogID int64) AssignmentResult {
	if dialogID == 0 {
		return AssignmentResult{Status: "warning", Message: "Не указан диалог для назначения"}
	}

	d, err := n.crm.GetDialog(ctx, dialogID)
	if err != nil {
		log.Warn("Dialog %d lookup failed: %v", dialogID, err)
		return AssignmentResult{Status: "error", Message: fmt.Sprintf("Диалог %d не найден", dialogID)}
	}
	if d.Responsible != nil && d.Responsible.Type == "user" {
		return AssignmentResult{Status: "warning", Message: "Диалог уже назначен менеджеру"}
	}

	group := n.managerB2C
	if b2b {
		group = n.managerB2B
	}
	managers, err := n.crm.OnlineManagers(ctx, group.ID)
	if err != nil {
		log.Error("Failed to list online managers: %v", err)
		return AssignmentResult{Status: "error", Message: err.Error()}
	}
	target := chooseManager(managers)
	if target == nil {
		return AssignmentResult{
			Status:  "warning",
			Message: fmt.Sprintf("Нет онлайн-менеджеров группы %s. Диалог остается в очереди.", group.Group),
		}
	}

	if err := n.crm.AssignDialog(ctx, d.ID, target.ID); err != nil {
		log.Error("Failed to assign dialog %d: %v", d.ID, err)
		return AssignmentResult{
			Status:  "error",
			Message: fmt.Sprintf("Не удалось назначить диалог %d менеджеру", dialogID),
		}
	}
	return AssignmentResult{
		Status: "success",
		Message: fmt.Sprintf("Диалог %d назначен менеджеру %s группы %s",
			dialogID, target.Name(), group.Group),
	}
}

// formatSellerMessage renders the HTML notification for the sales chat.
func (n *TelegramNotifier) formatSellerMessage(chat *dialog.ChatContext, details string, preorder, b2b bool, assignment *AssignmentResult) string {
	var b strings.Builder

	switch {
	case preorder:
		b.WriteString("🔔 <b>Новый ПРЕДЗАКАЗ!</b>\n\n")
	case chat != nil && chat.Subject != "":
		b.WriteString("🔔 <b>Обращение клиента!</b>\n\n")
	default:
		b.WriteString("🔔 <b>Новый заказ!</b>\n\n")
	}

	if chat != nil && chat.Subject != "" {
		fmt.Fprintf(&b, "<b>Тема:</b> %s\n\n", html.EscapeString(chat.Subject))
	}

	clientType := "B2C"
	if b2b {
		clientType = "B2B"
	}
	fmt.Fprintf(&b, "<b>Тип клиента:</b> %s\n\n", clientType)

	if chat != nil && chat.ChatID != 0 {
		b.WriteString("<b>Информация о клиенте:</b>\n")
		if chat.DialogID != 0 {
			fmt.Fprintf(&b, "• ID диалога: <code>%d</code>\n", chat.DialogID)
		}
		fmt.Fprintf(&b, "• ID чата: <code>%d</code>\n", chat.ChatID)
		if chat.ChannelName != "" || chat.ChannelID != 0 {
			fmt.Fprintf(&b, "• Канал: %s (ID: %d)\n", html.EscapeString(chat.ChannelName), chat.ChannelID)
		}
		if chat.UserName != "" || chat.UserID != 0 {
			fmt.Fprintf(&b, "• Клиент: %s (ID: %d)\n", html.EscapeString(chat.UserName), chat.UserID)
		}
	}

	if preorder {
		b.WriteString("\n<b>ПРЕДЗАКАЗ (поставка через 7-10 дней):</b>\n")
		if chat != nil && chat.OutOfStockPlant != nil {
			plant := chat.OutOfStockPlant
			fmt.Fprintf(&b, "• Растение: %s\n", html.EscapeString(plant.Name))
			if plant.Price != "" {
				fmt.Fprintf(&b, "• Цена: %s\n", html.EscapeString(plant.Price))
			}
			if plant.URL != "" {
				fmt.Fprintf(&b, "• Ссылка: %s\n", html.EscapeString(plant.URL))
			}
		}
	}

	if assignment != nil {
		fmt.Fprintf(&b, "\n<b>Назначение диалога:</b>\n• %s\n", html.EscapeString(assignment.Message))
	}

	fmt.Fprintf(&b, "\n<b>Дополнительная информация:</b>\n%s", html.EscapeString(details))
	fmt.Fprintf(&b, "\n\n<i>Заказ получен: %s</i>", n.now().Format("2006-01-02 15:04:05"))

	return b.String()
}

// sendToTopic posts an HTML message into the configured supergroup
// topic. The typed message config predates forum topics, so the request
// is built from raw params.
func (n *TelegramNotifier) sendToTopic(text string) error {
	params := tgbotapi.Params{}
	params.AddNonZero64("chat_id", n.chatID)
	params.AddNonZero("message_thread_id", n.topicID)
	params.AddNonEmpty("parse_mode", tgbotapi.ModeHTML)
	params.AddNonEmpty("text", text)

	_, err := n.bot.MakeRequest("sendMessage", params)
	return err
}

// NotifySeller assigns the dialog to a manager, posts the notification
// to Telegram and returns the confirmation text for the customer.
func (n *TelegramNotifier) NotifySeller(ctx context.Context, details string, preorder bool, chat *dialog.ChatContext) (string, error) {
	subject := ""
	var dialogID int64
	if chat != nil {
		subject = chat.Subject
		dialogID = chat.DialogID
	}
	b2b := isB2BOrder(subject, details)

	var assignment AssignmentResult
	if dialogID != 0 {
		assignment = n.handleManagerAssignment(ctx, b2b, dialogID)
		log.Info("Dialog %d assignment: %s (%s)", dialogID, assignment.Status, assignment.Message)
	} else {
		log.Warn("No dialog id in context, skipping manager assignment")
		assignment = AssignmentResult{Status: "warning", Message: "Не указан диалог для назначения"}
	}

	message := n.formatSellerMessage(chat, details, preorder, b2b, &assignment)
	if err := n.sendToTopic(message); err != nil {
		log.Error("Failed to notify seller: %v", err)
		return "", err
	}
	log.Info("Seller notified (chat %d, preorder=%v)", n.chatID, preorder)

	if preorder {
		return preorderConfirmation, nil
	}
	return orderConfirmation, nil
}
