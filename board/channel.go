package board

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

type ChannelState string

const (
	// not started, or permanently skipped by the origin policy
	ChannelStateIdle ChannelState = "idle"
	// dialing the endpoint
	ChannelStateConnecting ChannelState = "connecting"
	// live connection, pushes flowing
	ChannelStateOpen ChannelState = "open"
	// connection lost, one reconnect pending
	ChannelStateClosed ChannelState = "closed"
)

type ConnectivityFunction func(connected bool)

type ChannelSettings struct {
	WsHandshakeTimeout time.Duration
	ReconnectTimeout   time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
}

func DefaultChannelSettings() *ChannelSettings {
	return &ChannelSettings{
		WsHandshakeTimeout: 2 * time.Second,
		ReconnectTimeout:   3 * time.Second,
		PingTimeout:        15 * time.Second,
		WriteTimeout:       5 * time.Second,
	}
}

// ChannelUrl derives the push channel endpoint from the api url:
// the scheme upgrades to its websocket equivalent and the path is /ws.
func ChannelUrl(apiUrl string) (string, error) {
	u, err := url.Parse(apiUrl)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported api url scheme: %s", u.Scheme)
	}
	u.Path = "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// Channel owns the lifecycle of one push channel connection: connect,
// disconnect, and reconnection after a fixed delay. At most one live
// connection and at most one pending reconnect exist at any instant.
// Hold one channel per active session; a stopped channel stays stopped.
type Channel struct {
	ctx    context.Context
	cancel context.CancelFunc

	instanceId Id

	channelUrl string
	pageOrigin string
	router     *Router

	settings *ChannelSettings

	stateLock sync.Mutex
	state     ChannelState
	started   bool
	stopped   bool

	connectivityCallbacks *CallbackList[ConnectivityFunction]
}

func NewChannelWithDefaults(ctx context.Context, channelUrl string, pageOrigin string, router *Router) *Channel {
	return NewChannel(ctx, channelUrl, pageOrigin, router, DefaultChannelSettings())
}

func NewChannel(ctx context.Context, channelUrl string, pageOrigin string, router *Router, settings *ChannelSettings) *Channel {
	cancelCtx, cancel := context.WithCancel(ctx)
	return &Channel{
		ctx:                   cancelCtx,
		cancel:                cancel,
		instanceId:            NewId(),
		channelUrl:            channelUrl,
		pageOrigin:            pageOrigin,
		router:                router,
		settings:              settings,
		state:                 ChannelStateIdle,
		connectivityCallbacks: NewCallbackList[ConnectivityFunction](),
	}
}

// Start is idempotent against re-entry while connecting or open, which
// prevents duplicate sockets. A secure page origin with an insecure channel
// endpoint is a permanent skip for the session: log, stay idle, never retry.
func (self *Channel) Start() {
	self.stateLock.Lock()
	if self.started || self.stopped {
		self.stateLock.Unlock()
		return
	}
	if insecureContext(self.pageOrigin, self.channelUrl) {
		glog.Infof("[ch]%s skip insecure channel %s from secure page origin %s\n", self.instanceId, self.channelUrl, self.pageOrigin)
		self.stateLock.Unlock()
		return
	}
	self.started = true
	self.state = ChannelStateConnecting
	self.stateLock.Unlock()

	go self.run()
}

// Stop cancels the pending reconnect, closes an open connection, and
// suppresses further auto-reconnect. Safe to call multiple times and from
// any state.
func (self *Channel) Stop() {
	self.stateLock.Lock()
	self.stopped = true
	self.stateLock.Unlock()

	self.cancel()
}

func (self *Channel) State() ChannelState {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return self.state
}

// true only while the connection is open
func (self *Channel) IsOpen() bool {
	return self.State() == ChannelStateOpen
}

// AddConnectivityCallback registers an observer invoked on every transition
// to or from the open state. Returns a function to remove the callback.
func (self *Channel) AddConnectivityCallback(connectivityCallback ConnectivityFunction) func() {
	callbackId := self.connectivityCallbacks.Add(connectivityCallback)
	return func() {
		self.connectivityCallbacks.Remove(callbackId)
	}
}

func (self *Channel) setState(state ChannelState) {
	self.stateLock.Lock()
	previousState := self.state
	self.state = state
	self.stateLock.Unlock()

	wasOpen := previousState == ChannelStateOpen
	isOpen := state == ChannelStateOpen
	if wasOpen != isOpen {
		for _, connectivityCallback := range self.connectivityCallbacks.Get() {
			connectivityCallback(isOpen)
		}
	}
}

func (self *Channel) run() {
	defer self.setState(ChannelStateIdle)

	for {
		dialer := &websocket.Dialer{
			HandshakeTimeout: self.settings.WsHandshakeTimeout,
		}
		ws, _, err := dialer.DialContext(self.ctx, self.channelUrl, nil)
		if err != nil {
			glog.Infof("[ch]%s connect error = %s\n", self.instanceId, err)
		} else {
			self.setState(ChannelStateOpen)
			glog.V(2).Infof("[ch]%s open\n", self.instanceId)

			c := func() {
				defer ws.Close()

				handleCtx, handleCancel := context.WithCancel(self.ctx)
				defer handleCancel()

				go func() {
					defer handleCancel()

					for {
						select {
						case <-handleCtx.Done():
							return
						case <-time.After(self.settings.PingTimeout):
							ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
							if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
								// note that for websocket a deadline timeout cannot be recovered
								glog.V(2).Infof("[ch]%s-> ping error = %s\n", self.instanceId, err)
								return
							}
						}
					}
				}()

				go func() {
					defer handleCancel()

					for {
						messageType, message, err := ws.ReadMessage()
						if err != nil {
							glog.Infof("[ch]%s<- read error = %s\n", self.instanceId, err)
							return
						}

						switch messageType {
						case websocket.TextMessage, websocket.BinaryMessage:
							// apply pushes in arrival order, no reordering, no batching
							self.router.Route(message)
							glog.V(2).Infof("[ch]%s<-\n", self.instanceId)
						}
					}
				}()

				select {
				case <-handleCtx.Done():
				}
			}
			c()
		}

		// exactly one reconnect, scheduled from the time of the close
		self.setState(ChannelStateClosed)
		reconnect := NewReconnect(self.settings.ReconnectTimeout)
		select {
		case <-self.ctx.Done():
			return
		case <-reconnect.After():
			self.setState(ChannelStateConnecting)
		}
	}
}

// a secure page must not open an insecure channel (mixed content)
func insecureContext(pageOrigin string, channelUrl string) bool {
	if pageOrigin == "" {
		return false
	}
	page, err := url.Parse(pageOrigin)
	if err != nil {
		return false
	}
	channel, err := url.Parse(channelUrl)
	if err != nil {
		return false
	}
	return page.Scheme == "https" && channel.Scheme == "ws"
}
