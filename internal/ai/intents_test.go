package ai

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Lavr-18/AI-agent-Olivia/internal/dialog"
)

func TestIsReviewExchange(t *testing.T) {
	t.Run("the review bot's own message is ignored", func(t *testing.T) {
		chat := dialog.NewChatContext(1)
		require.True(t, isReviewExchange(chat, reviewRequestText))
	})

	t.Run("numeric answer right after the review request is ignored", func(t *testing.T) {
		chat := dialog.NewChatContext(1)
		chat.AddUserMessage(reviewRequestText)
		require.True(t, isReviewExchange(chat, "5"))
		require.True(t, isReviewExchange(chat, "1 — остались недовольны"))
	})

	t.Run("numeric answer without preceding review request is handled", func(t *testing.T) {
		chat := dialog.NewChatContext(1)
		chat.AddUserMessage("сколько стоит фикус?")
		require.False(t, isReviewExchange(chat, "5"))
	})

	t.Run("ordinary message passes through", func(t *testing.T) {
		chat := dialog.NewChatContext(1)
		require.False(t, isReviewExchange(chat, "хочу растение в подарок"))
	})
}

func TestCategoryTables(t *testing.T) {
	// Every canned reply has a matching notification prefix.
	for category := range categoryReplies {
		require.Contains(t, detailsPrefix, category)
	}
	// Silent-handover categories still need a notification prefix.
	require.Contains(t, detailsPrefix, IntentOrderQuestion)
	require.Contains(t, detailsPrefix, IntentCallRequest)
	// pot_request is answered with a link, never escalated.
	require.NotContains(t, categoryReplies, IntentPotRequest)
}
