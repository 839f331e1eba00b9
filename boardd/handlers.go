package main

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/qadash/qadash/board"
)

const maxMessageLength = 1000
const maxGuestNameLength = 100

type Server struct {
	db        *sql.DB
	hub       *Hub
	jwtSecret []byte
}

func NewServer(db *sql.DB, jwtSecret []byte) *Server {
	hub := NewHub()
	go hub.Run()
	return &Server{
		db:        db,
		hub:       hub,
		jwtSecret: jwtSecret,
	}
}

func (self *Server) Close() {
	self.hub.Shutdown()
}

func (self *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/", self.handleRoot).Methods("GET")
	router.HandleFunc("/api/register", self.handleRegister).Methods("POST")
	router.HandleFunc("/api/login", self.handleLogin).Methods("POST")
	router.HandleFunc("/api/me", self.handleMe).Methods("GET")
	router.HandleFunc("/api/questions", self.handleListQuestions).Methods("GET")
	router.HandleFunc("/api/questions", self.handleCreateQuestion).Methods("POST")
	router.HandleFunc("/api/questions/{question_id}", self.handleGetQuestion).Methods("GET")
	router.HandleFunc("/api/questions/{question_id}", self.handleUpdateQuestionStatus).Methods("PUT")
	router.HandleFunc("/api/questions/{question_id}/responses", self.handleListResponses).Methods("GET")
	router.HandleFunc("/api/questions/{question_id}/responses", self.handleCreateResponse).Methods("POST")
	router.HandleFunc("/ws", self.handleWs)
	return router
}

func writeJson(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(value)
}

func httpError(w http.ResponseWriter, status int, detail string) {
	writeJson(w, status, map[string]string{
		"detail": detail,
	})
}

func questionIdFromRequest(r *http.Request) (int, bool) {
	questionId, err := strconv.Atoi(mux.Vars(r)["question_id"])
	return questionId, err == nil
}

func (self *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, map[string]string{
		"message": "board api is running",
		"status":  "healthy",
	})
}

type registerArgs struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (self *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var args registerArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(args.Username) < 3 || 50 < len(args.Username) {
		httpError(w, http.StatusBadRequest, "Username must be 3-50 characters")
		return
	}
	if !strings.Contains(args.Email, "@") {
		httpError(w, http.StatusBadRequest, "Invalid email address")
		return
	}
	if len(args.Password) < 6 {
		httpError(w, http.StatusBadRequest, "Password must be at least 6 characters")
		return
	}

	if existing, err := getUserByUsername(self.db, args.Username); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	} else if existing != nil {
		httpError(w, http.StatusBadRequest, "Username already registered")
		return
	}
	if existing, err := getUserByEmail(self.db, args.Email); err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	} else if existing != nil {
		httpError(w, http.StatusBadRequest, "Email already registered")
		return
	}

	passwordHash, err := hashPassword(args.Password)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	u, err := insertUser(self.db, args.Username, args.Email, passwordHash)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	glog.V(2).Infof("[d]new user %s\n", u.Username)

	accessToken, err := self.createAccessToken(u.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusOK, &board.AuthTokenResult{
		AccessToken: accessToken,
		TokenType:   "bearer",
		Username:    u.Username,
	})
}

type loginArgs struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (self *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var args loginArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	u, err := getUserByUsername(self.db, args.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if u == nil || !verifyPassword(args.Password, u.PasswordHash) {
		httpError(w, http.StatusUnauthorized, "Incorrect username or password")
		return
	}

	accessToken, err := self.createAccessToken(u.Username)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusOK, &board.AuthTokenResult{
		AccessToken: accessToken,
		TokenType:   "bearer",
		Username:    u.Username,
	})
}

func (self *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, err := self.requireUser(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, errNotAuthenticated.Error())
		return
	}
	writeJson(w, http.StatusOK, &board.UserResult{
		UserId:    u.UserId,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	})
}

func (self *Server) handleListQuestions(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")
	if statusFilter != "" && !board.QuestionStatus(statusFilter).Valid() {
		httpError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	questions, err := listQuestions(self.db, statusFilter)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusOK, questions)
}

type createQuestionArgs struct {
	Message   string `json:"message"`
	GuestName string `json:"guest_name,omitempty"`
}

func (self *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	u, err := self.optionalUser(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, errNotAuthenticated.Error())
		return
	}

	var args createQuestionArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(args.Message) < 1 || maxMessageLength < len(args.Message) {
		httpError(w, http.StatusBadRequest, "Message must be 1-1000 characters")
		return
	}
	if maxGuestNameLength < len(args.GuestName) {
		httpError(w, http.StatusBadRequest, "Guest name is too long")
		return
	}
	if u == nil && args.GuestName == "" {
		httpError(w, http.StatusBadRequest, "Guest name is required for non-logged-in users")
		return
	}

	var userId *int
	guestName := args.GuestName
	if u != nil {
		userId = &u.UserId
		// authenticated authors never carry a guest name
		guestName = ""
	}

	question, err := insertQuestion(self.db, args.Message, userId, guestName)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	glog.V(2).Infof("[d]new question %d\n", question.QuestionId)

	self.hub.Broadcast(board.EventTypeNewQuestion, question)
	writeJson(w, http.StatusOK, question)
}

func (self *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	questionId, ok := questionIdFromRequest(r)
	if !ok {
		httpError(w, http.StatusBadRequest, "Invalid question id")
		return
	}
	question, err := getQuestion(self.db, questionId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if question == nil {
		httpError(w, http.StatusNotFound, "Question not found")
		return
	}
	writeJson(w, http.StatusOK, question)
}

type updateQuestionArgs struct {
	Status string `json:"status"`
}

func (self *Server) handleUpdateQuestionStatus(w http.ResponseWriter, r *http.Request) {
	u, err := self.requireUser(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, errNotAuthenticated.Error())
		return
	}

	questionId, ok := questionIdFromRequest(r)
	if !ok {
		httpError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	var args updateQuestionArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	status := board.QuestionStatus(args.Status)
	if !status.Valid() {
		httpError(w, http.StatusBadRequest, "Invalid status value")
		return
	}

	question, err := getQuestion(self.db, questionId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if question == nil {
		httpError(w, http.StatusNotFound, "Question not found")
		return
	}

	question, err = updateQuestionStatus(self.db, questionId, status, u.UserId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	glog.V(2).Infof("[d]question %d status %s by %s\n", questionId, status, u.Username)

	self.hub.Broadcast(board.EventTypeQuestionUpdated, question)
	writeJson(w, http.StatusOK, question)
}

func (self *Server) handleListResponses(w http.ResponseWriter, r *http.Request) {
	questionId, ok := questionIdFromRequest(r)
	if !ok {
		httpError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	question, err := getQuestion(self.db, questionId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if question == nil {
		httpError(w, http.StatusNotFound, "Question not found")
		return
	}

	responses, err := listResponses(self.db, questionId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJson(w, http.StatusOK, responses)
}

type createResponseArgs struct {
	Message   string `json:"message"`
	GuestName string `json:"guest_name,omitempty"`
}

func (self *Server) handleCreateResponse(w http.ResponseWriter, r *http.Request) {
	u, err := self.optionalUser(r)
	if err != nil {
		httpError(w, http.StatusUnauthorized, errNotAuthenticated.Error())
		return
	}

	questionId, ok := questionIdFromRequest(r)
	if !ok {
		httpError(w, http.StatusBadRequest, "Invalid question id")
		return
	}

	question, err := getQuestion(self.db, questionId)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if question == nil {
		httpError(w, http.StatusNotFound, "Question not found")
		return
	}

	var args createResponseArgs
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		httpError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(args.Message) < 1 || maxMessageLength < len(args.Message) {
		httpError(w, http.StatusBadRequest, "Message must be 1-1000 characters")
		return
	}
	if u == nil && args.GuestName == "" {
		httpError(w, http.StatusBadRequest, "Guest name is required for non-logged-in users")
		return
	}

	var userId *int
	guestName := args.GuestName
	if u != nil {
		userId = &u.UserId
		guestName = ""
	}

	response, err := insertResponse(self.db, questionId, args.Message, userId, guestName)
	if err != nil {
		httpError(w, http.StatusInternalServerError, err.Error())
		return
	}
	glog.V(2).Infof("[d]new response %d for question %d\n", response.ResponseId, questionId)

	self.hub.Broadcast(board.EventTypeNewResponse, response)
	writeJson(w, http.StatusOK, response)
}

var upgrader = websocket.Upgrader{
	// development collaborator, any page origin may subscribe
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (self *Server) handleWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[d]ws upgrade error = %s\n", err)
		return
	}

	client := &hubClient{
		conn: conn,
		send: make(chan []byte, 16),
	}
	select {
	case self.hub.register <- client:
	case <-self.hub.done:
		conn.Close()
		return
	}

	// write pump
	go func() {
		defer conn.Close()
		for message := range client.send {
			conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		}
	}()

	// read until the client goes away. inbound payloads are ignored,
	// the channel is push only.
	go func() {
		defer func() {
			select {
			case self.hub.unregister <- client:
			case <-self.hub.done:
			}
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
