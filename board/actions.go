package board

import (
	"errors"
	"strings"

	"github.com/golang/glog"
)

// fixed fallback messages, used when a failure carries no message of its own
const (
	defaultGetQuestionsError         = "Could not load questions."
	defaultCreateQuestionError       = "Could not post the question."
	defaultUpdateQuestionStatusError = "Could not update the question status."
	defaultGetResponsesError         = "Could not load responses."
	defaultCreateResponseError       = "Could not post the response."
	defaultAuthRegisterError         = "Could not register."
	defaultAuthLoginError            = "Could not log in."
)

// Actions binds the api to the store with the loading/error contract:
// pending sets loading and clears the last error, fulfilled merges fetched
// payloads via the store, rejected surfaces a human-readable message.
//
// Creation calls deliberately do not insert their own result into the store.
// The server broadcast on the push channel is the single insert path, which
// avoids duplicate entries when the broadcast races the http response.
type Actions struct {
	api   *Api
	store *Store
}

func NewActions(api *Api, store *Store) *Actions {
	return &Actions{
		api:   api,
		store: store,
	}
}

func (self *Actions) pending() {
	self.store.SetLoading(true)
	self.store.SetError(nil)
}

func (self *Actions) fulfilled() {
	self.store.SetLoading(false)
}

func (self *Actions) rejected(err error, defaultMessage string) {
	self.store.SetLoading(false)
	self.store.SetError(actionError(err, defaultMessage))
}

func (self *Actions) FetchQuestions() error {
	self.pending()
	questions, err := self.api.GetQuestionsSync()
	if err != nil {
		glog.Infof("[a]fetch questions error = %s\n", err)
		self.rejected(err, defaultGetQuestionsError)
		return err
	}
	self.fulfilled()
	self.store.ApplyQuestionList(questions)
	return nil
}

func (self *Actions) CreateQuestion(message string, guestName string) error {
	self.pending()
	args := &CreateQuestionArgs{
		Message: message,
	}
	// the server nulls guest names for authenticated authors
	if self.api.AuthJwt() == "" {
		args.GuestName = guestName
	}
	_, err := self.api.CreateQuestionSync(args)
	if err != nil {
		glog.Infof("[a]create question error = %s\n", err)
		self.rejected(err, defaultCreateQuestionError)
		return err
	}
	self.fulfilled()
	return nil
}

func (self *Actions) UpdateQuestionStatus(questionId int, status QuestionStatus) error {
	self.pending()
	args := &UpdateQuestionStatusArgs{
		Status: status,
	}
	_, err := self.api.UpdateQuestionStatusSync(questionId, args)
	if err != nil {
		glog.Infof("[a]update question status error = %s\n", err)
		self.rejected(err, defaultUpdateQuestionStatusError)
		return err
	}
	self.fulfilled()
	return nil
}

func (self *Actions) FetchResponses(questionId int) error {
	self.pending()
	responses, err := self.api.GetResponsesSync(questionId)
	if err != nil {
		glog.Infof("[a]fetch responses error = %s\n", err)
		self.rejected(err, defaultGetResponsesError)
		return err
	}
	self.fulfilled()
	self.store.ReplaceResponses(responses)
	return nil
}

// SelectQuestion points the store at a question and loads its responses.
// nil clears the selection and the tracked response set.
func (self *Actions) SelectQuestion(questionId *int) error {
	self.store.SetSelectedQuestion(questionId)
	if questionId == nil {
		self.store.ReplaceResponses([]*Response{})
		return nil
	}
	return self.FetchResponses(*questionId)
}

func (self *Actions) CreateResponse(questionId int, message string, guestName string) error {
	self.pending()
	args := &CreateResponseArgs{
		Message: message,
	}
	if self.api.AuthJwt() == "" {
		args.GuestName = guestName
	}
	_, err := self.api.CreateResponseSync(questionId, args)
	if err != nil {
		glog.Infof("[a]create response error = %s\n", err)
		self.rejected(err, defaultCreateResponseError)
		return err
	}
	self.fulfilled()
	return nil
}

// Register creates an account and attaches the returned bearer credential
// to subsequent api calls.
func (self *Actions) Register(username string, email string, password string) (*AuthTokenResult, error) {
	self.pending()
	result, err := self.api.AuthRegisterSync(&AuthRegisterArgs{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		glog.Infof("[a]register error = %s\n", err)
		self.rejected(err, defaultAuthRegisterError)
		return nil, err
	}
	self.api.SetAuthJwt(result.AccessToken)
	self.fulfilled()
	return result, nil
}

// Login attaches the returned bearer credential to subsequent api calls.
func (self *Actions) Login(username string, password string) (*AuthTokenResult, error) {
	self.pending()
	result, err := self.api.AuthLoginSync(&AuthLoginArgs{
		Username: username,
		Password: password,
	})
	if err != nil {
		glog.Infof("[a]login error = %s\n", err)
		self.rejected(err, defaultAuthLoginError)
		return nil, err
	}
	self.api.SetAuthJwt(result.AccessToken)
	self.fulfilled()
	return result, nil
}

// DismissError clears the last request error without waiting for the next
// successful action.
func (self *Actions) DismissError() {
	self.store.SetError(nil)
}

func actionError(err error, defaultMessage string) error {
	if message := strings.TrimSpace(err.Error()); message != "" {
		return errors.New(message)
	}
	return errors.New(defaultMessage)
}
