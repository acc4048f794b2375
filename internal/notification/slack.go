package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const slackPostMessageURL = "https://slack.com/api/chat.postMessage"

type SlackNotificationService struct {
	SlackToken string
	Channel    string
	client     *http.Client
}

func NewSlackNotificationService(slackToken string, channel string) NotificationService {
	return &SlackNotificationService{
		SlackToken: slackToken,
		Channel:    channel,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *SlackNotificationService) SendNotification(message string) error {
	payload, err := json.Marshal(slackMessage{
		Channel: s.Channel,
		Text:    message,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %v", err)
	}

	req, err := http.NewRequest("POST", slackPostMessageURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.SlackToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read Slack response: %v", err)
	}

	// Slack reports API-level failures in the body with a 200 status
	var parsed slackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return fmt.Errorf("failed to decode Slack response: %v", err)
	}
	if !parsed.Ok {
		return fmt.Errorf("slack API error: %s", parsed.Error)
	}
	return nil
}
