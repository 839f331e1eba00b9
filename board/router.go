package board

import (
	"encoding/json"

	"github.com/golang/glog"
)

const (
	EventTypeNewQuestion     = "new_question"
	EventTypeQuestionUpdated = "question_updated"
	EventTypeNewResponse     = "new_response"
)

// push channel envelope
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Router decodes inbound push payloads and dispatches them to the store.
// Decode failures and unknown event types are logged and dropped. Routing
// never fails, so a bad payload can never take down the channel or leave an
// error in the store.
type Router struct {
	store *Store
}

func NewRouter(store *Store) *Router {
	return &Router{
		store: store,
	}
}

func (self *Router) Route(message []byte) {
	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		glog.Infof("[r]drop malformed event = %s\n", err)
		return
	}

	switch event.Type {
	case EventTypeNewQuestion:
		var question Question
		if err := json.Unmarshal(event.Data, &question); err != nil {
			glog.Infof("[r]drop malformed %s = %s\n", event.Type, err)
			return
		}
		self.store.InsertQuestion(&question)
	case EventTypeQuestionUpdated:
		var question Question
		if err := json.Unmarshal(event.Data, &question); err != nil {
			glog.Infof("[r]drop malformed %s = %s\n", event.Type, err)
			return
		}
		self.store.UpdateQuestion(&question)
	case EventTypeNewResponse:
		var response Response
		if err := json.Unmarshal(event.Data, &response); err != nil {
			glog.Infof("[r]drop malformed %s = %s\n", event.Type, err)
			return
		}
		self.store.AppendResponse(&response)
	default:
		glog.V(2).Infof("[r]drop unknown event type=%s\n", event.Type)
	}
}
