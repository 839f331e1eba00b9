package board

import (
	"context"
)

type ClientSettings struct {
	// origin of the surface hosting this client, used by the mixed-content
	// gate on the push channel. empty means no gate.
	PageOrigin      string
	ChannelSettings *ChannelSettings
}

func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		ChannelSettings: DefaultChannelSettings(),
	}
}

// Client assembles one session: the api and actions for request/response
// calls, the store for the synchronized view, and the channel that feeds
// pushed events through the router into the store.
//
// Data flow: actions fetch initial state into the store, the channel opens,
// the router applies pushed events, and the renderer reads store snapshots.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	api     *Api
	store   *Store
	actions *Actions
	router  *Router
	channel *Channel
}

func NewClientWithDefaults(ctx context.Context, apiUrl string) (*Client, error) {
	return NewClient(ctx, apiUrl, DefaultClientSettings())
}

func NewClient(ctx context.Context, apiUrl string, settings *ClientSettings) (*Client, error) {
	channelUrl, err := ChannelUrl(apiUrl)
	if err != nil {
		return nil, err
	}

	cancelCtx, cancel := context.WithCancel(ctx)

	api := NewApiWithContext(cancelCtx, apiUrl)
	store := NewStore()
	router := NewRouter(store)
	channel := NewChannel(cancelCtx, channelUrl, settings.PageOrigin, router, settings.ChannelSettings)

	return &Client{
		ctx:     cancelCtx,
		cancel:  cancel,
		api:     api,
		store:   store,
		actions: NewActions(api, store),
		router:  router,
		channel: channel,
	}, nil
}

func (self *Client) Api() *Api {
	return self.api
}

func (self *Client) Store() *Store {
	return self.store
}

func (self *Client) Actions() *Actions {
	return self.actions
}

func (self *Client) Channel() *Channel {
	return self.channel
}

// Start opens the push channel. Idempotent.
func (self *Client) Start() {
	self.channel.Start()
}

// Close tears the session down. The channel will not reconnect.
func (self *Client) Close() {
	self.channel.Stop()
	self.cancel()
}
