package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageText(t *testing.T) {
	for scenario, tc := range map[string]struct {
		content string
		want    string
	}{
		"object content": {`{"text":"хочу фикус"}`, "хочу фикус"},
		"string content": {`"просто строка"`, "просто строка"},
		"empty object":   {`{}`, ""},
		"missing":        {``, ""},
	} {
		t.Run(scenario, func(t *testing.T) {
			m := Message{Content: json.RawMessage(tc.content)}
			require.Equal(t, tc.want, m.Text())
		})
	}
}

func TestMessageImageURL(t *testing.T) {
	m := Message{Items: []Item{
		{Kind: "file", PreviewURL: "https://cdn/doc.pdf"},
		{Kind: "image", PreviewURL: "https://cdn/plant.jpg"},
	}}
	require.Equal(t, "https://cdn/plant.jpg", m.ImageURL())

	require.Empty(t, Message{}.ImageURL())
}

func TestManagerName(t *testing.T) {
	for scenario, tc := range map[string]struct {
		m    Manager
		want string
	}{
		"first and last": {Manager{FirstName: "Анна", LastName: "Иванова"}, "Анна Иванова"},
		"full name only": {Manager{FullName: "Борис Петров"}, "Борис Петров"},
		"nothing":        {Manager{}, "Unknown"},
	} {
		t.Run(scenario, func(t *testing.T) {
			require.Equal(t, tc.want, tc.m.Name())
		})
	}
}
