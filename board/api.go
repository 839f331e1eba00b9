package board

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const defaultHttpTimeout = 60 * time.Second
const defaultHttpConnectTimeout = 5 * time.Second
const defaultHttpTlsTimeout = 5 * time.Second

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

type apiCallback[R any] interface {
	Result(result R, err error)
}

// for internal use
type simpleApiCallback[R any] struct {
	callback func(result R, err error)
}

func NewApiCallback[R any](callback func(result R, err error)) apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: callback,
	}
}

func NewNoopApiCallback[R any]() apiCallback[R] {
	return &simpleApiCallback[R]{
		callback: func(result R, err error) {},
	}
}

func (self *simpleApiCallback[R]) Result(result R, err error) {
	self.callback(result, err)
}

type ApiCallbackResult[R any] struct {
	Result R
	Error  error
}

func NewBlockingApiCallback[R any]() (apiCallback[R], chan ApiCallbackResult[R]) {
	c := make(chan ApiCallbackResult[R])
	apiCallback := NewApiCallback[R](func(result R, err error) {
		c <- ApiCallbackResult[R]{
			Result: result,
			Error:  err,
		}
	})
	return apiCallback, c
}

// Api issues request/response calls against the board server.
// It holds no board state. Results reach the store through `Actions`.
type Api struct {
	ctx    context.Context
	cancel context.CancelFunc

	apiUrl string

	authJwt string
}

func NewApi(apiUrl string) *Api {
	return NewApiWithContext(context.Background(), apiUrl)
}

func NewApiWithContext(ctx context.Context, apiUrl string) *Api {
	cancelCtx, cancel := context.WithCancel(ctx)

	return &Api{
		ctx:    cancelCtx,
		cancel: cancel,
		apiUrl: apiUrl,
	}
}

// this gets attached to api calls that need it
func (self *Api) SetAuthJwt(authJwt string) {
	self.authJwt = authJwt
}

func (self *Api) AuthJwt() string {
	return self.authJwt
}

type GetQuestionsCallback apiCallback[[]*Question]

func (self *Api) GetQuestions(callback GetQuestionsCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/questions", self.apiUrl),
		self.authJwt,
		[]*Question{},
		callback,
	)
}

func (self *Api) GetQuestionsSync() ([]*Question, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/api/questions", self.apiUrl),
		self.authJwt,
		[]*Question{},
		NewNoopApiCallback[[]*Question](),
	)
}

type CreateQuestionCallback apiCallback[*Question]

type CreateQuestionArgs struct {
	Message   string `json:"message"`
	GuestName string `json:"guest_name,omitempty"`
}

func (self *Api) CreateQuestion(createQuestion *CreateQuestionArgs, callback CreateQuestionCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/questions", self.apiUrl),
		createQuestion,
		self.authJwt,
		&Question{},
		callback,
	)
}

func (self *Api) CreateQuestionSync(createQuestion *CreateQuestionArgs) (*Question, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/questions", self.apiUrl),
		createQuestion,
		self.authJwt,
		&Question{},
		NewNoopApiCallback[*Question](),
	)
}

type UpdateQuestionStatusCallback apiCallback[*Question]

type UpdateQuestionStatusArgs struct {
	Status QuestionStatus `json:"status"`
}

// authorization gated: the server requires a bearer credential
func (self *Api) UpdateQuestionStatus(questionId int, updateQuestionStatus *UpdateQuestionStatusArgs, callback UpdateQuestionStatusCallback) {
	go put(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d", self.apiUrl, questionId),
		updateQuestionStatus,
		self.authJwt,
		&Question{},
		callback,
	)
}

func (self *Api) UpdateQuestionStatusSync(questionId int, updateQuestionStatus *UpdateQuestionStatusArgs) (*Question, error) {
	return put(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d", self.apiUrl, questionId),
		updateQuestionStatus,
		self.authJwt,
		&Question{},
		NewNoopApiCallback[*Question](),
	)
}

type GetResponsesCallback apiCallback[[]*Response]

func (self *Api) GetResponses(questionId int, callback GetResponsesCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d/responses", self.apiUrl, questionId),
		self.authJwt,
		[]*Response{},
		callback,
	)
}

func (self *Api) GetResponsesSync(questionId int) ([]*Response, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d/responses", self.apiUrl, questionId),
		self.authJwt,
		[]*Response{},
		NewNoopApiCallback[[]*Response](),
	)
}

type CreateResponseCallback apiCallback[*Response]

type CreateResponseArgs struct {
	Message   string `json:"message"`
	GuestName string `json:"guest_name,omitempty"`
}

func (self *Api) CreateResponse(questionId int, createResponse *CreateResponseArgs, callback CreateResponseCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d/responses", self.apiUrl, questionId),
		createResponse,
		self.authJwt,
		&Response{},
		callback,
	)
}

func (self *Api) CreateResponseSync(questionId int, createResponse *CreateResponseArgs) (*Response, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/questions/%d/responses", self.apiUrl, questionId),
		createResponse,
		self.authJwt,
		&Response{},
		NewNoopApiCallback[*Response](),
	)
}

type AuthRegisterCallback apiCallback[*AuthTokenResult]

type AuthRegisterArgs struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthTokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Username    string `json:"username"`
}

func (self *Api) AuthRegister(authRegister *AuthRegisterArgs, callback AuthRegisterCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/register", self.apiUrl),
		authRegister,
		self.authJwt,
		&AuthTokenResult{},
		callback,
	)
}

func (self *Api) AuthRegisterSync(authRegister *AuthRegisterArgs) (*AuthTokenResult, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/register", self.apiUrl),
		authRegister,
		self.authJwt,
		&AuthTokenResult{},
		NewNoopApiCallback[*AuthTokenResult](),
	)
}

type AuthLoginCallback apiCallback[*AuthTokenResult]

type AuthLoginArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (self *Api) AuthLogin(authLogin *AuthLoginArgs, callback AuthLoginCallback) {
	go post(
		self.ctx,
		fmt.Sprintf("%s/api/login", self.apiUrl),
		authLogin,
		self.authJwt,
		&AuthTokenResult{},
		callback,
	)
}

func (self *Api) AuthLoginSync(authLogin *AuthLoginArgs) (*AuthTokenResult, error) {
	return post(
		self.ctx,
		fmt.Sprintf("%s/api/login", self.apiUrl),
		authLogin,
		self.authJwt,
		&AuthTokenResult{},
		NewNoopApiCallback[*AuthTokenResult](),
	)
}

type GetMeCallback apiCallback[*UserResult]

type UserResult struct {
	UserId    int       `json:"user_id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func (self *Api) GetMe(callback GetMeCallback) {
	go get(
		self.ctx,
		fmt.Sprintf("%s/api/me", self.apiUrl),
		self.authJwt,
		&UserResult{},
		callback,
	)
}

func (self *Api) GetMeSync() (*UserResult, error) {
	return get(
		self.ctx,
		fmt.Sprintf("%s/api/me", self.apiUrl),
		self.authJwt,
		&UserResult{},
		NewNoopApiCallback[*UserResult](),
	)
}

func (self *Api) Close() {
	self.cancel()
}

func post[R any](ctx context.Context, url string, args any, authJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "POST", url, args, authJwt, result, callback)
}

func put[R any](ctx context.Context, url string, args any, authJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "PUT", url, args, authJwt, result, callback)
}

func get[R any](ctx context.Context, url string, authJwt string, result R, callback apiCallback[R]) (R, error) {
	return request(ctx, "GET", url, nil, authJwt, result, callback)
}

func request[R any](ctx context.Context, method string, url string, args any, authJwt string, result R, callback apiCallback[R]) (R, error) {
	var requestBody io.Reader
	if args != nil {
		requestBodyBytes, err := json.Marshal(args)
		if err != nil {
			var empty R
			callback.Result(empty, err)
			return empty, err
		}
		requestBody = bytes.NewReader(requestBodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, requestBody)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	req.Header.Add("Content-Type", "application/json")

	if authJwt != "" {
		auth := fmt.Sprintf("Bearer %s", authJwt)
		req.Header.Add("Authorization", auth)
	}

	client := defaultClient()
	r, err := client.Do(req)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}
	defer r.Body.Close()

	responseBodyBytes, err := io.ReadAll(r.Body)

	if http.StatusOK != r.StatusCode {
		err = errorFromResponse(r.StatusCode, responseBodyBytes)
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	if err != nil {
		callback.Result(result, err)
		return result, err
	}

	err = json.Unmarshal(responseBodyBytes, &result)
	if err != nil {
		var empty R
		callback.Result(empty, err)
		return empty, err
	}

	callback.Result(result, nil)
	return result, nil
}

// the server puts failure messages in a json `detail` field.
// fall back to the raw body, then to the status code.
func errorFromResponse(statusCode int, responseBodyBytes []byte) error {
	var failure struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(responseBodyBytes, &failure); err == nil && failure.Detail != "" {
		return errors.New(failure.Detail)
	}
	if message := strings.TrimSpace(string(responseBodyBytes)); message != "" {
		return errors.New(message)
	}
	return fmt.Errorf("request failed with status %d", statusCode)
}
