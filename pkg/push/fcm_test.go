package push

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildMessageTopic(t *testing.T) {
	msg := buildMessage(&NotificationRequest{
		Topic: "volunteers",
		Title: "Emergency nearby",
		Body:  "Someone needs help",
		Data:  map[string]string{"alertId": "abc"},
	})

	assert.Equal(t, "volunteers", msg.Topic)
	assert.Empty(t, msg.Token)
	require.NotNil(t, msg.Notification)
	assert.Equal(t, "Emergency nearby", msg.Notification.Title)
	assert.Equal(t, "high", msg.Android.Priority)
	assert.Equal(t, "abc", msg.Data["alertId"])
}

func TestBuildMessageTokenWins(t *testing.T) {
	msg := buildMessage(&NotificationRequest{Token: "device", Topic: "volunteers", Priority: "normal"})

	assert.Equal(t, "device", msg.Token)
	assert.Empty(t, msg.Topic)
	assert.Nil(t, msg.Notification)
	assert.Equal(t, "normal", msg.Android.Priority)
}
