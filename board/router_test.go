package board

import (
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestRouteNewQuestion(t *testing.T) {
	store := NewStore()
	router := NewRouter(store)

	router.Route([]byte(`{
		"type": "new_question",
		"data": {
			"question_id": 1,
			"message": "does this sync",
			"status": "Pending",
			"created_at": "2024-01-01T00:00:00Z",
			"guest_name": "visitor",
			"response_count": 0
		}
	}`))

	snapshot := store.Snapshot()
	assert.Equal(t, len(snapshot.Questions), 1)
	assert.Equal(t, snapshot.Questions[0].Message, "does this sync")
	assert.Equal(t, snapshot.Questions[0].AuthorName(), "visitor")
}

func TestRouteQuestionUpdated(t *testing.T) {
	store := NewStore()
	router := NewRouter(store)

	router.Route([]byte(`{"type":"new_question","data":{"question_id":1,"message":"m","status":"Pending","created_at":"2024-01-01T00:00:00Z","response_count":0}}`))
	router.Route([]byte(`{"type":"question_updated","data":{"question_id":1,"message":"m","status":"Answered","created_at":"2024-01-01T00:00:00Z","username":"moderator","response_count":0}}`))

	snapshot := store.Snapshot()
	assert.Equal(t, len(snapshot.Questions), 1)
	assert.Equal(t, snapshot.Questions[0].Status, StatusAnswered)
	assert.Equal(t, snapshot.Questions[0].Username, "moderator")
}

func TestRouteNewResponse(t *testing.T) {
	store := NewStore()
	router := NewRouter(store)

	store.ApplyQuestionList([]*Question{
		{QuestionId: 1, Status: StatusPending, ResponseCount: 3},
	})

	router.Route([]byte(`{"type":"new_response","data":{"response_id":9,"question_id":1,"message":"a","created_at":"2024-01-02T00:00:00Z","guest_name":"visitor"}}`))

	snapshot := store.Snapshot()
	assert.Equal(t, snapshot.Questions[0].ResponseCount, 4)
}

func TestRouteUnknownType(t *testing.T) {
	store := NewStore()
	router := NewRouter(store)

	store.ApplyQuestionList([]*Question{
		{QuestionId: 1, Status: StatusPending, ResponseCount: 3},
	})
	before := store.Snapshot()

	router.Route([]byte(`{"type":"ping"}`))

	after := store.Snapshot()
	assert.Equal(t, after.Questions, before.Questions)
	assert.Equal(t, after.Err, nil)
}

func TestRouteMalformed(t *testing.T) {
	store := NewStore()
	router := NewRouter(store)
	before := store.Snapshot()

	router.Route([]byte(`{`))
	router.Route([]byte(``))
	router.Route([]byte(`not json at all`))
	router.Route([]byte(`{"type":"new_question","data":"not an object"}`))
	router.Route([]byte(`{"type":"new_response","data":{"question_id":"wrong type"}}`))

	after := store.Snapshot()
	assert.Equal(t, after.Questions, before.Questions)
	assert.Equal(t, after.Responses, before.Responses)
	assert.Equal(t, after.Err, nil)
}
