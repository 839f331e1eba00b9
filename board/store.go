package board

import (
	"sync"

	"golang.org/x/exp/slices"
)

type SnapshotFunction func(snapshot *Snapshot)

// Snapshot is an immutable view of the store at one point in time.
// The slices and entries are copies. Mutating a snapshot has no effect on
// the store or on other snapshots.
type Snapshot struct {
	Questions []*Question
	// resolved from the question collection by the selected id, nil when
	// nothing is selected or the selected question is not in the collection
	SelectedQuestion *Question
	// responses for the currently selected question
	Responses []*Response
	Loading   bool
	Err       error
}

// Store holds the client-side view of questions and responses. Mutations
// come from two sources under one merge policy: fetched results are applied
// as full replaces, pushed single entities are upserted. Mutations are
// applied in call order and the last mutation applied wins, so a fetched
// snapshot can momentarily overwrite a push that logically arrived earlier
// but completed later in wall-clock time.
//
// Every mutation publishes a new snapshot to the registered snapshot
// callbacks. All mutations are total. Upstream validation is the router's
// and the action layer's job.
type Store struct {
	stateLock sync.Mutex

	questions          []*Question
	selectedQuestionId *int
	responses          []*Response
	loading            bool
	err                error

	snapshotCallbacks *CallbackList[SnapshotFunction]
}

func NewStore() *Store {
	return &Store{
		questions:         []*Question{},
		responses:         []*Response{},
		snapshotCallbacks: NewCallbackList[SnapshotFunction](),
	}
}

// AddSnapshotCallback registers an observer called with a new snapshot
// after every mutation. Returns a function to remove the callback.
func (self *Store) AddSnapshotCallback(snapshotCallback SnapshotFunction) func() {
	callbackId := self.snapshotCallbacks.Add(snapshotCallback)
	return func() {
		self.snapshotCallbacks.Remove(callbackId)
	}
}

func (self *Store) Snapshot() *Snapshot {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.snapshot()
}

// must be called with `stateLock`
func (self *Store) snapshot() *Snapshot {
	questions := make([]*Question, 0, len(self.questions))
	var selectedQuestion *Question
	for _, question := range self.questions {
		questionCopy := *question
		questions = append(questions, &questionCopy)
		if self.selectedQuestionId != nil && question.QuestionId == *self.selectedQuestionId {
			selectedQuestion = &questionCopy
		}
	}
	responses := make([]*Response, 0, len(self.responses))
	for _, response := range self.responses {
		responseCopy := *response
		responses = append(responses, &responseCopy)
	}
	return &Snapshot{
		Questions:        questions,
		SelectedQuestion: selectedQuestion,
		Responses:        responses,
		Loading:          self.loading,
		Err:              self.err,
	}
}

func (self *Store) publish() {
	self.stateLock.Lock()
	snapshot := self.snapshot()
	self.stateLock.Unlock()

	for _, snapshotCallback := range self.snapshotCallbacks.Get() {
		snapshotCallback(snapshot)
	}
}

// ApplyQuestionList replaces the full question collection with a freshly
// fetched list. A full refetch always wins over any local optimistic state.
func (self *Store) ApplyQuestionList(questions []*Question) {
	self.stateLock.Lock()
	self.questions = make([]*Question, 0, len(questions))
	for _, question := range questions {
		questionCopy := *question
		self.questions = append(self.questions, &questionCopy)
	}
	self.sortQuestions()
	self.stateLock.Unlock()

	self.publish()
}

// InsertQuestion upserts a question pushed from the channel.
// Duplicate delivery of the same id overwrites the earlier entry instead of
// creating a second one.
func (self *Store) InsertQuestion(question *Question) {
	self.stateLock.Lock()
	questionCopy := *question
	i := slices.IndexFunc(self.questions, func(q *Question) bool {
		return q.QuestionId == question.QuestionId
	})
	if 0 <= i {
		self.questions[i] = &questionCopy
	} else {
		self.questions = append(self.questions, &questionCopy)
	}
	self.sortQuestions()
	self.stateLock.Unlock()

	self.publish()
}

// UpdateQuestion replaces the question with the matching id.
// No-op when the id is not present. The selected-question reference is
// resolved by id at snapshot time, so a selected question never goes stale.
func (self *Store) UpdateQuestion(question *Question) {
	self.stateLock.Lock()
	i := slices.IndexFunc(self.questions, func(q *Question) bool {
		return q.QuestionId == question.QuestionId
	})
	if i < 0 {
		self.stateLock.Unlock()
		return
	}
	questionCopy := *question
	self.questions[i] = &questionCopy
	self.sortQuestions()
	self.stateLock.Unlock()

	self.publish()
}

// AppendResponse tracks a response pushed from the channel.
// The response joins the tracked set only when it belongs to the currently
// selected question. The response count of the matching question is bumped
// by exactly one either way; a missing question is tolerated.
// Response counts do not affect ordering, so there is no re-sort here.
func (self *Store) AppendResponse(response *Response) {
	self.stateLock.Lock()
	if self.selectedQuestionId != nil && response.QuestionId == *self.selectedQuestionId {
		responseCopy := *response
		self.responses = append(self.responses, &responseCopy)
	}
	i := slices.IndexFunc(self.questions, func(q *Question) bool {
		return q.QuestionId == response.QuestionId
	})
	if 0 <= i {
		self.questions[i].ResponseCount += 1
	}
	self.stateLock.Unlock()

	self.publish()
}

// ReplaceResponses fully replaces the tracked response set after a
// confirmed fetch.
func (self *Store) ReplaceResponses(responses []*Response) {
	self.stateLock.Lock()
	self.responses = make([]*Response, 0, len(responses))
	for _, response := range responses {
		responseCopy := *response
		self.responses = append(self.responses, &responseCopy)
	}
	self.stateLock.Unlock()

	self.publish()
}

func (self *Store) SetSelectedQuestion(questionId *int) {
	self.stateLock.Lock()
	if questionId == nil {
		self.selectedQuestionId = nil
	} else {
		selectedQuestionId := *questionId
		self.selectedQuestionId = &selectedQuestionId
	}
	self.stateLock.Unlock()

	self.publish()
}

func (self *Store) SetLoading(loading bool) {
	self.stateLock.Lock()
	self.loading = loading
	self.stateLock.Unlock()

	self.publish()
}

// SetError sets the last request error. nil clears it.
func (self *Store) SetError(err error) {
	self.stateLock.Lock()
	self.err = err
	self.stateLock.Unlock()

	self.publish()
}

// must be called with `stateLock`
// primary key is status priority ascending, secondary key is creation time
// descending. stable, re-applied after every structural mutation.
func (self *Store) sortQuestions() {
	slices.SortStableFunc(self.questions, func(a *Question, b *Question) int {
		if d := a.Status.Priority() - b.Status.Priority(); d != 0 {
			return d
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}
