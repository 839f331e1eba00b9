package main

import (
	"encoding/json"
	"sync"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/qadash/qadash/board"
)

type hubClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans server events out to every connected push channel client.
type Hub struct {
	stateLock sync.Mutex
	clients   map[*hubClient]bool

	register   chan *hubClient
	unregister chan *hubClient
	broadcast  chan []byte
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    map[*hubClient]bool{},
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
	}
}

func (self *Hub) Run() {
	for {
		select {
		case client := <-self.register:
			self.stateLock.Lock()
			self.clients[client] = true
			clientCount := len(self.clients)
			self.stateLock.Unlock()
			glog.V(2).Infof("[hub]client connected (total: %d)\n", clientCount)

		case client := <-self.unregister:
			self.stateLock.Lock()
			if _, ok := self.clients[client]; ok {
				delete(self.clients, client)
				close(client.send)
			}
			clientCount := len(self.clients)
			self.stateLock.Unlock()
			glog.V(2).Infof("[hub]client disconnected (total: %d)\n", clientCount)

		case message := <-self.broadcast:
			self.stateLock.Lock()
			for client := range self.clients {
				select {
				case client.send <- message:
				default:
					// slow consumer, drop it
					close(client.send)
					delete(self.clients, client)
				}
			}
			self.stateLock.Unlock()

		case <-self.done:
			return
		}
	}
}

func (self *Hub) Shutdown() {
	close(self.done)
}

// Broadcast sends one push envelope to every connected client.
func (self *Hub) Broadcast(eventType string, data any) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		glog.Infof("[hub]marshal event data error = %s\n", err)
		return
	}
	message, err := json.Marshal(&board.Event{
		Type: eventType,
		Data: dataBytes,
	})
	if err != nil {
		glog.Infof("[hub]marshal event error = %s\n", err)
		return
	}
	select {
	case self.broadcast <- message:
	case <-self.done:
	}
}
