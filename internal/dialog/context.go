package dialog

import (
	"fmt"
	"strings"
	"time"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
	"github.com/Lavr-18/AI-agent-Olivia/internal/logging"
)

var log = logging.NewLogger("dialog")

// State is the current phase of a customer dialog.
type State string

const (
	StateStart         State = "start"          // beginning of the dialog
	StateAskSize       State = "ask_size"       // clarifying the plant size
	StateAskLocation   State = "ask_location"   // clarifying the placement
	StateSearch        State = "search"         // searching and picking plants
	StateOutOfStock    State = "outofstock"     // wanted plant has no stock
	StateOrdering      State = "order"          // placing an order
	StateCart          State = "cart"           // managing the cart
	StateCheckout      State = "checkout"       // checking out the whole cart
	StateUpsell        State = "upsell"         // suggesting accessories
	StateCompleted     State = "completed"      // dialog finished
	StateManagerCalled State = "manager_called" // a human took over, bot stays silent
)

// OrderType distinguishes in-stock orders from preorders in the cart.
type OrderType string

const (
	OrderTypeOrder    OrderType = "order"
	OrderTypePreorder OrderType = "preorder"
)

// ContextTTL is how long a context stays valid after creation.
const ContextTTL = 7 * 24 * time.Hour

// ToolCall records a tool invocation the assistant made, kept in history
// so the model sees its own calls on the next turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// ChatMessage is one history entry in the OpenAI role convention.
type ChatMessage struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// CartItem is one cart line; quantities of the same plant merge.
type CartItem struct {
	Plant    catalog.Plant
	Quantity int
	Type     OrderType
}

// ChatContext holds everything about an ongoing dialog: history, state,
// cart, channel and user info. Methods are not synchronized; the
// orchestrator serializes all work per chat.
type ChatContext struct {
	ChatID    int64
	DialogID  int64
	CreatedAt time.Time

	Messages []ChatMessage
	State    State

	DesiredSize     string // "floor", "tabletop", "any"
	DesiredLocation string // "home", "office", "gift", "any"

	Cart []CartItem

	ChannelID   int
	ChannelName string
	UserID      int64
	UserName    string

	Subject         string
	OutOfStockPlant *catalog.Plant
	LastSearchQuery string
}

func NewChatContext(chatID int64) *ChatContext {
	return &ChatContext{
		ChatID:    chatID,
		CreatedAt: time.Now(),
		State:     StateStart,
	}
}

func (c *ChatContext) IsExpired() bool {
	return time.Now().After(c.CreatedAt.Add(ContextTTL))
}

func (c *ChatContext) AddMessage(msg ChatMessage) {
	c.Messages = append(c.Messages, msg)
}

func (c *ChatContext) AddUserMessage(text string) {
	c.AddMessage(ChatMessage{Role: "user", Content: text})
}

func (c *ChatContext) AddAssistantMessage(text string) {
	c.AddMessage(ChatMessage{Role: "assistant", Content: text})
}

// LastMessages returns the up-to-n most recent history entries.
func (c *ChatContext) LastMessages(n int) []ChatMessage {
	if len(c.Messages) <= n {
		return c.Messages
	}
	return c.Messages[len(c.Messages)-n:]
}

func (c *ChatContext) resetOutOfStock() {
	c.OutOfStockPlant = nil
}

func (c *ChatContext) resetPreferences() {
	c.DesiredSize = ""
	c.DesiredLocation = ""
}

// ChangeState moves the dialog to a new state, applying the side effects
// tied to specific transitions.
func (c *ChatContext) ChangeState(newState State) {
	log.Info("Chat %d: state change %s -> %s", c.ChatID, c.State, newState)

	if c.State == StateOutOfStock && newState != StateOutOfStock {
		c.resetOutOfStock()
	}

	if newState == StateCompleted {
		log.Info("Dialog in chat %d completed", c.ChatID)
		c.ClearCart()
	}

	// A fresh search keeps the cart but forgets preferences.
	if (newState == StateStart || newState == StateSearch) &&
		c.State != StateStart && c.State != StateSearch && c.State != StateCart {
		c.resetPreferences()
	}

	c.State = newState
}

// AddToCart puts a plant in the cart, merging quantities by name.
func (c *ChatContext) AddToCart(plant catalog.Plant, quantity int, orderType OrderType) {
	for i := range c.Cart {
		if c.Cart[i].Plant.Name == plant.Name {
			c.Cart[i].Quantity += quantity
			return
		}
	}
	c.Cart = append(c.Cart, CartItem{Plant: plant, Quantity: quantity, Type: orderType})
}

// RemoveFromCart drops cart lines whose plant name contains the given
// name, case-insensitively.
func (c *ChatContext) RemoveFromCart(plantName string) bool {
	needle := strings.ToLower(plantName)
	kept := c.Cart[:0]
	removed := false
	for _, item := range c.Cart {
		if strings.Contains(strings.ToLower(item.Plant.Name), needle) {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Cart = kept
	return removed
}

// CartSummary renders the cart for the customer and the model prompt.
func (c *ChatContext) CartSummary() string {
	if len(c.Cart) == 0 {
		return "Корзина пуста"
	}

	total := 0
	var lines []string
	for _, item := range c.Cart {
		total += item.Quantity
		name := item.Plant.Name
		if name == "" {
			name = "Неизвестное растение"
		}
		suffix := ""
		if item.Type == OrderTypePreorder {
			suffix = " (предзаказ)"
		}
		lines = append(lines, fmt.Sprintf("• %s - %d шт.%s", name, item.Quantity, suffix))
	}
	return fmt.Sprintf("🛒 В корзине (%d растений):\n%s", total, strings.Join(lines, "\n"))
}

func (c *ChatContext) ClearCart() {
	c.Cart = nil
}
