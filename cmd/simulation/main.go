// Scripted conversation client for exercising a running dialog server.
// Walks one conversation through a top-level question, a follow-up, and a
// context switch, printing every decision the server takes.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
)

var (
	baseURL     = envOr("SIM_BASE_URL", "http://localhost:3000/api/dialog/v1")
	accessToken = os.Getenv("SIM_ACCESS_TOKEN")
)

// Simplified DTOs for the script
type CreateConversationResponse struct {
	Data struct {
		ID      string `json:"id"`
		Welcome string `json:"welcome"`
	} `json:"data"`
}

type SendMessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type SendMessageResponse struct {
	Data struct {
		State     string `json:"state"`
		Decision  string `json:"decision"`
		Kind      string `json:"kind"`
		Text      string `json:"text"`
		Answer    string `json:"answer"`
		Uncertain bool   `json:"uncertain"`
		Options   []struct {
			Label   string `json:"label"`
			Payload string `json:"payload"`
		} `json:"options"`
	} `json:"data"`
}

func main() {
	title := color.New(color.FgCyan, color.Bold)
	title.Println("=== QnA Dialog Simulation Client ===")

	if accessToken == "" {
		color.Yellow("SIM_ACCESS_TOKEN not set; requests will be rejected by the JWT middleware")
	}

	conversationID, welcome, err := createConversation()
	if err != nil {
		log.Fatalf("Failed to create conversation: %v", err)
	}
	fmt.Printf("Conversation: %s\n", conversationID)
	color.Green("bot> %s", welcome)

	script := []string{
		"how do I reset my password",
		"can I change my email too",
		"@Billing: how do I cancel my plan",
		"1",
	}

	for _, msg := range script {
		color.White("\nuser> %s", msg)
		res, err := sendMessage(conversationID, msg)
		if err != nil {
			color.Red("error: %v", err)
			continue
		}

		color.HiBlack("[state=%s decision=%s kind=%s]", res.Data.State, res.Data.Decision, res.Data.Kind)
		color.Green("bot> %s", res.Data.Text)
		if res.Data.Answer != "" {
			color.Green("     %s", res.Data.Answer)
		}
		if res.Data.Uncertain {
			color.Yellow("     (low confidence)")
		}
		for i, opt := range res.Data.Options {
			color.Blue("     %d) %s  [%s]", i+1, opt.Label, opt.Payload)
		}

		time.Sleep(300 * time.Millisecond)
	}
}

func createConversation() (string, string, error) {
	body, err := doPost(baseURL+"/conversations", []byte(`{}`))
	if err != nil {
		return "", "", err
	}

	var res CreateConversationResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", "", err
	}
	return res.Data.ID, res.Data.Welcome, nil
}

func sendMessage(conversationID, message string) (*SendMessageResponse, error) {
	payload, err := json.Marshal(SendMessageRequest{
		ConversationID: conversationID,
		Message:        message,
	})
	if err != nil {
		return nil, err
	}

	body, err := doPost(baseURL+"/message", payload)
	if err != nil {
		return nil, err
	}

	var res SendMessageResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func doPost(url string, payload []byte) ([]byte, error) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
