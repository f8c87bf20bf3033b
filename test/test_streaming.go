package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

const baseURL = "http://localhost:8080"

type conversationRequest struct {
	PromptType   string     `json:"prompt_type"`
	History      [][]string `json:"history"`
	Stream       bool       `json:"stream"`
	LatestPrompt string     `json:"latest_prompt"`
}

type conversationResponse struct {
	Response string `json:"response"`
}

func main() {
	fmt.Println("🚀 Starting gateway streaming test...")

	if err := checkHealth(); err != nil {
		log.Fatalf("Health check failed: %v", err)
	}
	fmt.Println("✅ Gateway is healthy")

	answer, err := runConversation()
	if err != nil {
		log.Fatalf("Conversation failed: %v", err)
	}
	fmt.Printf("✅ Non-streaming answer received (%d bytes)\n", len(answer))

	if err := runStreamingConversation(answer); err != nil {
		log.Fatalf("Streaming conversation failed: %v", err)
	}

	fmt.Println("✅ Streaming test completed successfully!")
}

func checkHealth() error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(baseURL + "/api/v1/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

// runConversation sends a first turn, which the gateway enhances before
// generating.
func runConversation() (string, error) {
	payload, _ := json.Marshal(conversationRequest{
		PromptType:   "chain_of_thought_prompt",
		Stream:       false,
		LatestPrompt: "Why does ice float on water?",
	})

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Post(baseURL+"/api/conversation", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	var out conversationResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding response: %v", err)
	}
	return out.Response, nil
}

// runStreamingConversation sends a follow-up turn carrying history, so
// the gateway skips enhancement and streams the raw increments.
func runStreamingConversation(previousAnswer string) error {
	payload, _ := json.Marshal(conversationRequest{
		PromptType: "chain_of_thought_prompt",
		History: [][]string{
			{"Why does ice float on water?", previousAnswer},
		},
		Stream:       true,
		LatestPrompt: "Summarize that in one sentence.",
	})

	req, err := http.NewRequest("POST", baseURL+"/api/conversation", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// No client timeout: the stream stays open for the whole generation.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}

	fmt.Println("📡 Streaming response:")
	start := time.Now()
	chunks := 0
	reader := bufio.NewReader(resp.Body)
	buf := make([]byte, 4096)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			chunks++
			fmt.Print(string(buf[:n]))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading stream: %v", err)
		}
	}
	fmt.Printf("\n📦 Received %d chunks in %v\n", chunks, time.Since(start))
	return nil
}
