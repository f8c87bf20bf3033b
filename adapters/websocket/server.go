package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/promptalchemy/alchemy/domain"
	"github.com/promptalchemy/alchemy/usecase"
	"github.com/promptalchemy/alchemy/utils/log"
)

// Server streams conversation turns over a persistent WebSocket. The
// client sends one turn request per frame and receives chunk frames
// followed by a done frame, or a single error frame.
type Server struct {
	upgrader      websocket.Upgrader
	conversations *usecase.ConversationService
}

func NewServer(conversations *usecase.ConversationService) *Server {
	return &Server{
		upgrader:      websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		conversations: conversations,
	}
}

type turnRequest struct {
	PromptType   domain.Strategy `json:"prompt_type"`
	Message      string          `json:"message"`
	History      [][]string      `json:"history"`
	LatestPrompt string          `json:"latest_prompt"`
}

type frame struct {
	Type    string `json:"type"` // chunk | done | error
	Content string `json:"content,omitempty"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// Handler upgrades the connection and serves turns until the client
// disconnects.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	client := NewClient(conn, uuid.NewString())
	client.Run()
	go s.serve(client)
	return nil
}

func (s *Server) serve(client *Client) {
	defer client.Close()

	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithCtx(client.Context()).Debug("WebSocket read failed", zap.Error(err))
			}
			return
		}

		var in turnRequest
		if err := json.Unmarshal(raw, &in); err != nil {
			s.sendFrame(client, frame{Type: "error", Kind: string(domain.KindUnexpected), Message: "invalid turn request"})
			continue
		}
		s.handleTurn(client, in)
	}
}

func (s *Server) handleTurn(client *Client, in turnRequest) {
	if in.PromptType == "" {
		in.PromptType = domain.StrategyEnhance
	}

	history := make(domain.History, 0, len(in.History))
	for i, pair := range in.History {
		if len(pair) != 2 {
			s.sendFrame(client, frame{
				Type: "error", Kind: string(domain.KindUnexpected),
				Message: fmt.Sprintf("history entry %d must be a [user, assistant] pair", i),
			})
			return
		}
		history = append(history, domain.Turn{User: pair[0], Assistant: pair[1]})
	}

	ctx := client.Context()
	stream, err := s.conversations.RespondStream(ctx, domain.ConversationRequest{
		Strategy:     in.PromptType,
		Message:      in.Message,
		History:      history,
		Stream:       true,
		LatestPrompt: in.LatestPrompt,
	})
	if err != nil {
		s.sendFrame(client, errorFrame(err))
		return
	}

	for chunk := range stream {
		if chunk.Err != nil {
			s.sendFrame(client, errorFrame(chunk.Err))
			return
		}
		if err := s.sendFrame(client, frame{Type: "chunk", Content: chunk.Content}); err != nil {
			// client is gone; ctx cancellation stops the producer
			return
		}
	}
	s.sendFrame(client, frame{Type: "done"})
}

func (s *Server) sendFrame(client *Client, f frame) error {
	raw, err := json.Marshal(f)
	if err != nil {
		return err
	}
	return client.Send(raw)
}

func errorFrame(err error) frame {
	kind := domain.KindOf(err)
	return frame{Type: "error", Kind: string(kind), Message: err.Error()}
}
