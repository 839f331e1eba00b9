package board

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

// a minimal in-process stand-in for the board server
func newTestApiServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		route := r.Method + " " + r.URL.Path
		switch route {
		case "GET /api/questions":
			w.Write([]byte(`[
				{"question_id":2,"message":"urgent","status":"Escalated","created_at":"2024-01-02T00:00:00Z","guest_name":"visitor","response_count":0},
				{"question_id":1,"message":"older","status":"Pending","created_at":"2024-01-01T00:00:00Z","username":"alice","response_count":3}
			]`))
		case "POST /api/questions":
			var args CreateQuestionArgs
			json.NewDecoder(r.Body).Decode(&args)
			if r.Header.Get("Authorization") == "" && args.GuestName == "" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"detail":"Guest name is required for non-logged-in users"}`))
				return
			}
			json.NewEncoder(w).Encode(&Question{
				QuestionId: 3,
				Message:    args.Message,
				Status:     StatusPending,
				GuestName:  args.GuestName,
			})
		case "PUT /api/questions/7":
			if r.Header.Get("Authorization") == "" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Not authenticated"}`))
				return
			}
			var args UpdateQuestionStatusArgs
			json.NewDecoder(r.Body).Decode(&args)
			json.NewEncoder(w).Encode(&Question{
				QuestionId: 7,
				Status:     args.Status,
			})
		case "GET /api/questions/7/responses":
			w.Write([]byte(`[
				{"response_id":1,"question_id":7,"message":"first","created_at":"2024-01-01T00:00:00Z","username":"alice"}
			]`))
		case "POST /api/questions/7/responses":
			var args CreateResponseArgs
			json.NewDecoder(r.Body).Decode(&args)
			json.NewEncoder(w).Encode(&Response{
				ResponseId: 2,
				QuestionId: 7,
				Message:    args.Message,
				GuestName:  args.GuestName,
			})
		case "POST /api/login":
			var args AuthLoginArgs
			json.NewDecoder(r.Body).Decode(&args)
			if args.Password != "opensesame" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"detail":"Incorrect username or password"}`))
				return
			}
			json.NewEncoder(w).Encode(&AuthTokenResult{
				AccessToken: "token-for-" + args.Username,
				TokenType:   "bearer",
				Username:    args.Username,
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"detail":"Not found"}`))
		}
	}))
}

func TestGetQuestionsSync(t *testing.T) {
	server := newTestApiServer(t)
	defer server.Close()

	api := NewApi(server.URL)
	questions, err := api.GetQuestionsSync()
	assert.Equal(t, err, nil)
	assert.Equal(t, len(questions), 2)
	assert.Equal(t, questions[0].QuestionId, 2)
	assert.Equal(t, questions[0].Status, StatusEscalated)
	assert.Equal(t, questions[1].AuthorName(), "alice")
}

func TestApiCallback(t *testing.T) {
	server := newTestApiServer(t)
	defer server.Close()

	api := NewApi(server.URL)
	callback, c := NewBlockingApiCallback[[]*Question]()
	api.GetQuestions(callback)

	result := <-c
	assert.Equal(t, result.Error, nil)
	assert.Equal(t, len(result.Result), 2)
}

func TestCreateQuestionGuestRequired(t *testing.T) {
	server := newTestApiServer(t)
	defer server.Close()

	api := NewApi(server.URL)
	_, err := api.CreateQuestionSync(&CreateQuestionArgs{Message: "anonymous?"})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, err.Error(), "Guest name is required for non-logged-in users")

	question, err := api.CreateQuestionSync(&CreateQuestionArgs{Message: "anonymous?", GuestName: "visitor"})
	assert.Equal(t, err, nil)
	assert.Equal(t, question.GuestName, "visitor")
}

func TestUpdateQuestionStatusRequiresBearer(t *testing.T) {
	server := newTestApiServer(t)
	defer server.Close()

	api := NewApi(server.URL)
	_, err := api.UpdateQuestionStatusSync(7, &UpdateQuestionStatusArgs{Status: StatusAnswered})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, err.Error(), "Not authenticated")

	api.SetAuthJwt("a-credential")
	question, err := api.UpdateQuestionStatusSync(7, &UpdateQuestionStatusArgs{Status: StatusAnswered})
	assert.Equal(t, err, nil)
	assert.Equal(t, question.Status, StatusAnswered)
}

func TestAuthLoginSync(t *testing.T) {
	server := newTestApiServer(t)
	defer server.Close()

	api := NewApi(server.URL)
	result, err := api.AuthLoginSync(&AuthLoginArgs{Username: "alice", Password: "opensesame"})
	assert.Equal(t, err, nil)
	assert.Equal(t, result.Username, "alice")
	assert.Equal(t, result.TokenType, "bearer")

	_, err = api.AuthLoginSync(&AuthLoginArgs{Username: "alice", Password: "wrong"})
	assert.NotEqual(t, err, nil)
	assert.Equal(t, err.Error(), "Incorrect username or password")
}

func TestErrorFromResponse(t *testing.T) {
	err := errorFromResponse(400, []byte(`{"detail":"Invalid status value"}`))
	assert.Equal(t, err.Error(), "Invalid status value")

	err = errorFromResponse(502, []byte("bad gateway"))
	assert.Equal(t, err.Error(), "bad gateway")

	err = errorFromResponse(500, []byte(""))
	assert.Equal(t, strings.Contains(err.Error(), "500"), true)
}

func TestActionErrorFallback(t *testing.T) {
	err := actionError(errors.New("   "), defaultGetQuestionsError)
	assert.Equal(t, err.Error(), defaultGetQuestionsError)

	err = actionError(errors.New("a real message"), defaultGetQuestionsError)
	assert.Equal(t, err.Error(), "a real message")
}
