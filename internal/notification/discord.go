// Package notification posts packaging-run outcomes to Discord
// webhooks. Notifications are best-effort: an unset webhook URL is
// skipped silently so unattended runs work without any configuration.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/earth-archive/eo3pack/internal/properties"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// SendDiscordErrorNotification reports a failed packaging run.
func SendDiscordErrorNotification(errorMessage string) error {
	return post(properties.DiscordErrorNotificationUrl(), DiscordEmbed{
		Title:       "🚨 Packaging failed",
		Description: errorMessage,
		Color:       colorRed,
	})
}

// SendDiscordSuccessNotification reports a completed packaging run.
func SendDiscordSuccessNotification(successMessage string) error {
	return post(properties.DiscordSuccessNotificationUrl(), DiscordEmbed{
		Title:       "✅ Packaging complete",
		Description: successMessage,
		Color:       colorGreen,
	})
}

func post(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}
	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}
	return nil
}
