package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Lavr-18/AI-agent-Olivia/internal/catalog"
)

func TestContextExpiry(t *testing.T) {
	chat := NewChatContext(1)
	require.False(t, chat.IsExpired())

	chat.CreatedAt = time.Now().Add(-ContextTTL - time.Minute)
	require.True(t, chat.IsExpired())
}

func TestStateTransitions(t *testing.T) {
	t.Run("leaving out of stock clears the pending plant", func(t *testing.T) {
		chat := NewChatContext(1)
		chat.ChangeState(StateOutOfStock)
		chat.OutOfStockPlant = &catalog.Plant{Name: "Монстера Делициоза"}

		chat.ChangeState(StateSearch)
		require.Nil(t, chat.OutOfStockPlant)
	})

	t.Run("completion clears the cart", func(t *testing.T) {
		chat := NewChatContext(1)
		chat.AddToCart(catalog.Plant{Name: "Фикус Бенджамина"}, 1, OrderTypeOrder)

		chat.ChangeState(StateCompleted)
		require.Empty(t, chat.Cart)
	})

	t.Run("new search resets preferences but keeps the cart", func(t *testing.T) {
		chat := NewChatContext(1)
		chat.DesiredSize = "floor"
		chat.DesiredLocation = "office"
		chat.AddToCart(catalog.Plant{Name: "Фикус Бенджамина"}, 1, OrderTypeOrder)
		chat.State = StateUpsell

		chat.ChangeState(StateSearch)
		require.Empty(t, chat.DesiredSize)
		require.Empty(t, chat.DesiredLocation)
		require.Len(t, chat.Cart, 1)
	})

	t.Run("search from cart keeps preferences", func(t *testing.T) {
		chat := NewChatContext(1)
		chat.DesiredSize = "tabletop"
		chat.State = StateCart

		chat.ChangeState(StateSearch)
		require.Equal(t, "tabletop", chat.DesiredSize)
	})
}

func TestCart(t *testing.T) {
	chat := NewChatContext(1)

	chat.AddToCart(catalog.Plant{Name: "Фикус Бенджамина"}, 1, OrderTypeOrder)
	chat.AddToCart(catalog.Plant{Name: "Фикус Бенджамина"}, 2, OrderTypeOrder)
	chat.AddToCart(catalog.Plant{Name: "Монстера Делициоза"}, 1, OrderTypePreorder)

	require.Len(t, chat.Cart, 2)
	require.Equal(t, 3, chat.Cart[0].Quantity)

	summary := chat.CartSummary()
	require.Contains(t, summary, "В корзине (4 растений)")
	require.Contains(t, summary, "• Фикус Бенджамина - 3 шт.")
	require.Contains(t, summary, "• Монстера Делициоза - 1 шт. (предзаказ)")

	require.True(t, chat.RemoveFromCart("фикус"))
	require.Len(t, chat.Cart, 1)
	require.False(t, chat.RemoveFromCart("фикус"))

	chat.ClearCart()
	require.Equal(t, "Корзина пуста", chat.CartSummary())
}

func TestLastMessages(t *testing.T) {
	chat := NewChatContext(1)
	for i := 0; i < 30; i++ {
		chat.AddUserMessage("сообщение")
	}
	require.Len(t, chat.LastMessages(20), 20)
	require.Len(t, chat.LastMessages(50), 30)
}

func TestStore(t *testing.T) {
	store := NewStore()

	first := store.Get(7)
	require.Same(t, first, store.Get(7))
	require.Equal(t, 1, store.Len())

	first.CreatedAt = time.Now().Add(-ContextTTL - time.Hour)
	replaced := store.Get(7)
	require.NotSame(t, first, replaced)

	reset := store.Reset(7)
	require.NotSame(t, replaced, reset)
	require.Equal(t, StateStart, reset.State)

	reset.CreatedAt = time.Now().Add(-ContextTTL - time.Hour)
	require.Equal(t, 1, store.CleanupExpired())
	require.Equal(t, 0, store.Len())
}
