package api

import "time"

const (
	SenderUser = "USER"
	SenderAI   = "AI"
)

type SendMessageRequest struct {
	Message   string `json:"message"`
	SessionId string `json:"sessionId,omitempty"`
}

type SendMessageResponse struct {
	Reply     string `json:"reply"`
	SessionId string `json:"sessionId"`
}

type Message struct {
	Id             string    `json:"id"`
	ConversationId string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Text           string    `json:"text"`
	CreatedAt      time.Time `json:"createdAt"`
}

type HistoryParams struct {
	Limit int `schema:"limit"`
}

type HistoryResponse struct {
	SessionId string    `json:"sessionId"`
	Messages  []Message `json:"messages"`
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
