package integration

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"qna-dialog-be/internal/bootstrap"
	"qna-dialog-be/internal/config"
	"qna-dialog-be/internal/model"
	"qna-dialog-be/internal/server"
	"qna-dialog-be/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
)

// fakeUpstream serves the scoring collaborator API with canned responses so
// the whole HTTP surface can be exercised without the real services.
func fakeUpstream(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()

	mux.HandleFunc("/search-and-score", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)

		if strings.Contains(req.Question, "password") {
			writeJSON(w, map[string]interface{}{
				"answers": []map[string]interface{}{
					{"question_matched": "How do I reset my password?", "name": "Accounts", "entity": "Use the forgot-password link.", "score": 0.9},
				},
				"contexts": []map[string]interface{}{
					{"name": "Accounts", "entity": "Account management", "score": 0.9},
				},
				"score": 0.9,
			})
			return
		}
		// Ambiguous question: two near-tied contexts
		writeJSON(w, map[string]interface{}{
			"answers": []map[string]interface{}{
				{"question_matched": "How do I cancel?", "name": "Billing", "entity": "Cancel from the billing page.", "score": 0.75},
			},
			"contexts": []map[string]interface{}{
				{"name": "Billing", "entity": "Billing questions", "score": 0.75},
				{"name": "Accounts", "entity": "Account management", "score": 0.70},
			},
			"score": 0.75,
		})
	})

	mux.HandleFunc("/relevant-docs", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"contexts": []interface{}{}})
	})

	mux.HandleFunc("/score-answers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"answers": []interface{}{}})
	})

	mux.HandleFunc("/score-question", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"answers": []map[string]interface{}{
				{"question_matched": "How do I cancel?", "name": "Billing", "entity": "Cancel from the billing page.", "score": 0.85},
			},
		})
	})

	return httptest.NewServer(mux)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func mintToken(t *testing.T, secret string, userId uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

func TestDialogFlow(t *testing.T) {
	if err := godotenv.Load("../../.env"); err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	upstream := fakeUpstream(t)
	defer upstream.Close()

	os.Setenv("SEARCH_GATEWAY_URL", upstream.URL)
	os.Setenv("QNA_GATEWAY_URL", upstream.URL)
	os.Setenv("CONVERSATION_STORE", "memory")
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "integration-secret")
	}

	cfg := config.Load()

	db, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}
	if err := db.AutoMigrate(&model.Conversation{}, &model.ConversationTurn{}); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}

	container := bootstrap.NewContainer(db, cfg)
	if err := container.ConsumerService.Consume(context.Background()); err != nil {
		t.Fatalf("Failed to start transcript consumer: %v", err)
	}
	srv := server.New(cfg, container)
	app := srv.GetApp()

	userId := uuid.New()
	token := mintToken(t, os.Getenv("JWT_SECRET"), userId)

	var conversationId string

	t.Run("create conversation", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/dialog/v1/conversations", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Id    string `json:"id"`
				State string `json:"state"`
			} `json:"data"`
		}
		raw, _ := io.ReadAll(resp.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "WELCOME", body.Data.State)
		conversationId = body.Data.Id
	})

	t.Cleanup(func() {
		if conversationId == "" {
			return
		}
		db.Unscoped().Where("conversation_id = ?", conversationId).Delete(&model.ConversationTurn{})
		db.Unscoped().Delete(&model.Conversation{}, "id = ?", conversationId)
	})

	t.Run("unauthorized without token", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/dialog/v1/message", strings.NewReader(`{}`))
		req.Header.Set("Content-Type", "application/json")

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("confident question is answered", func(t *testing.T) {
		payload := `{"conversation_id":"` + conversationId + `","message":"how do I reset my password"}`
		req := httptest.NewRequest("POST", "/api/dialog/v1/message", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				State    string `json:"state"`
				Decision string `json:"decision"`
				Kind     string `json:"kind"`
				Answer   string `json:"answer"`
			} `json:"data"`
		}
		raw, _ := io.ReadAll(resp.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "ANSWER", body.Data.Decision)
		assert.Equal(t, "FOLLOWUP_QUESTION", body.Data.State)
		assert.Equal(t, "Use the forgot-password link.", body.Data.Answer)
	})

	t.Run("follow-up scored in context", func(t *testing.T) {
		payload := `{"conversation_id":"` + conversationId + `","message":"how do I cancel"}`
		req := httptest.NewRequest("POST", "/api/dialog/v1/message", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data struct {
				Decision string `json:"decision"`
			} `json:"data"`
		}
		raw, _ := io.ReadAll(resp.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "ANSWER", body.Data.Decision)
	})

	t.Run("history records the turns", func(t *testing.T) {
		// The transcript consumer runs async; give it a moment
		time.Sleep(500 * time.Millisecond)

		req := httptest.NewRequest("GET", "/api/dialog/v1/history/"+conversationId, nil)
		req.Header.Set("Authorization", "Bearer "+token)

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)

		var body struct {
			Data []struct {
				Role    string `json:"role"`
				Message string `json:"message"`
			} `json:"data"`
		}
		raw, _ := io.ReadAll(resp.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))
		assert.GreaterOrEqual(t, len(body.Data), 2)
	})

	t.Run("foreign conversation is not found", func(t *testing.T) {
		otherToken := mintToken(t, os.Getenv("JWT_SECRET"), uuid.New())
		payload := `{"conversation_id":"` + conversationId + `","message":"hello"}`
		req := httptest.NewRequest("POST", "/api/dialog/v1/message", strings.NewReader(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+otherToken)

		resp, _ := app.Test(req, -1)
		assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	})
}
