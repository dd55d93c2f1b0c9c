package api

import (
	"net/http"

	"support-backend/internal/chat"
	"support-backend/internal/database"
	"support-backend/pkg/api"

	"github.com/go-chi/chi/v5"
)

type ChatService struct {
	chat      *chat.Service
	responder Responder
}

func NewChatService(service *chat.Service, responder Responder) *ChatService {
	return &ChatService{chat: service, responder: responder}
}

func (s *ChatService) AddRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Post("/message", s.responder.RestHandler(s.SendMessage))
		r.Get("/history/{session_id}", s.responder.RestHandler(s.GetHistory))
	})
}

func (s *ChatService) SendMessage(r *http.Request) (any, error) {
	req, err := ParseRequest[api.SendMessageRequest](r)
	if err != nil {
		return nil, err
	}

	var metadata map[string]any
	if ua := r.UserAgent(); ua != "" {
		metadata = map[string]any{"user_agent": ua}
	}

	res, err := s.chat.Exchange(r.Context(), chat.ExchangeRequest{
		Text:      req.Message,
		SessionID: req.SessionId,
		Metadata:  metadata,
	})
	if err != nil {
		return nil, err
	}

	return api.SendMessageResponse{Reply: res.Reply, SessionId: res.SessionID}, nil
}

func (s *ChatService) GetHistory(r *http.Request) (any, error) {
	sessionID, err := URLParam(r, "session_id")
	if err != nil {
		return nil, err
	}

	params, err := ParseRequestQueryParams[api.HistoryParams](r)
	if err != nil {
		return nil, err
	}
	if params.Limit < 0 {
		return nil, fieldValidationError("limit", "limit must not be negative")
	}

	messages, err := s.chat.History(r.Context(), sessionID, params.Limit)
	if err != nil {
		return nil, err
	}

	return api.HistoryResponse{SessionId: sessionID, Messages: convertMessages(messages)}, nil
}

func convertMessage(m database.Message) api.Message {
	return api.Message{
		Id:             m.ID,
		ConversationId: m.ConversationID,
		Sender:         m.Sender,
		Text:           m.Text,
		CreatedAt:      m.CreatedAt,
	}
}

func convertMessages(ms []database.Message) []api.Message {
	messages := make([]api.Message, 0, len(ms))
	for _, m := range ms {
		messages = append(messages, convertMessage(m))
	}
	return messages
}
