package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/aristath/abydos/internal/websync"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 30 * time.Second

	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10

	defaultHeartbeat = 30 * time.Second
)

// frame is the gateway wire envelope. Every frame is a JSON text message.
type frame struct {
	Op string          `json:"op"`
	D  json.RawMessage `json:"d,omitempty"`
}

type helloPayload struct {
	HeartbeatMS int64 `json:"heartbeat_ms"`
}

type identifyPayload struct {
	Token string `json:"token"`
}

type readyPayload struct {
	BotID   string              `json:"bot_id"`
	BotName string              `json:"bot_name"`
	Guilds  []websync.GuildInfo `json:"guilds"`
}

type messagePayload struct {
	ID            string   `json:"id"`
	GuildID       string   `json:"guild_id,omitempty"`
	ChannelID     string   `json:"channel_id"`
	AuthorID      string   `json:"author_id"`
	AuthorName    string   `json:"author_name"`
	AuthorIsAdmin bool     `json:"author_is_admin,omitempty"`
	IsBot         bool     `json:"is_bot,omitempty"`
	Content       string   `json:"content"`
	HasAttachment bool     `json:"has_attachment,omitempty"`
	Mentions      []string `json:"mentions,omitempty"`
}

type interactionPayload struct {
	Kind      string `json:"kind"`
	GuildID   string `json:"guild_id,omitempty"`
	ChannelID string `json:"channel_id"`
	UserID    string `json:"user_id"`
}

type sendPayload struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

type presencePayload struct {
	Text string `json:"text"`
}

type guildPayload struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Gateway is the websocket gateway client. It maintains one connection
// with identify/heartbeat, reconnects with exponential backoff, and
// caches the bot identity and guild list from ready/guild frames.
type Gateway struct {
	url   string
	token string
	log   zerolog.Logger

	onMessage     func(Message)
	onInteraction func(Interaction)

	mu           sync.RWMutex
	conn         *websocket.Conn
	connCtx      context.Context
	cancelFunc   context.CancelFunc
	connected    bool
	reconnecting bool
	stopped      bool
	stopChan     chan struct{}

	stateMu sync.RWMutex
	botID   string
	botName string
	guilds  map[string]string // id -> name
}

// NewGateway creates a gateway client. Handlers must be set before Start.
func NewGateway(url, token string, log zerolog.Logger) *Gateway {
	return &Gateway{
		url:      url,
		token:    token,
		log:      log.With().Str("component", "gateway").Logger(),
		stopChan: make(chan struct{}),
		guilds:   make(map[string]string),
	}
}

// OnMessage sets the inbound message handler. Called from the read loop,
// so per-channel arrival order is preserved.
func (g *Gateway) OnMessage(fn func(Message)) { g.onMessage = fn }

// OnInteraction sets the inbound interaction handler.
func (g *Gateway) OnInteraction(fn func(Interaction)) { g.onInteraction = fn }

// Start connects and launches the read loop. A failed initial dial is not
// fatal; the reconnect loop keeps trying in the background.
func (g *Gateway) Start() error {
	g.log.Info().Str("url", g.url).Msg("Starting gateway client")

	if err := g.connect(); err != nil {
		g.log.Warn().Err(err).Msg("Initial gateway connection failed, will retry in background")
		go g.reconnectLoop()
		return err
	}

	g.mu.RLock()
	ctx := g.connCtx
	g.mu.RUnlock()
	go g.readMessages(ctx)
	return nil
}

// Stop closes the connection and stops reconnecting.
func (g *Gateway) Stop() error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	g.stopped = true
	g.mu.Unlock()

	g.log.Info().Msg("Stopping gateway client")
	close(g.stopChan)
	return g.disconnect()
}

// IsConnected reports the current connection state.
func (g *Gateway) IsConnected() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.connected
}

// Send delivers a text message to a channel.
func (g *Gateway) Send(channelID, text string) error {
	return g.write("send", sendPayload{ChannelID: channelID, Text: text})
}

// Reply answers an inbound message in its channel.
func (g *Gateway) Reply(m Message, text string) error {
	return g.Send(m.ChannelID, text)
}

// SetPresence updates the bot's status text.
func (g *Gateway) SetPresence(text string) {
	if err := g.write("presence", presencePayload{Text: text}); err != nil {
		g.log.Warn().Err(err).Msg("Failed to set presence")
	}
}

// BotIdentity returns the identity from the last ready frame.
func (g *Gateway) BotIdentity() (id, name string) {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return g.botID, g.botName
}

// GuildList returns the cached guild list.
func (g *Gateway) GuildList() []websync.GuildInfo {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	list := make([]websync.GuildInfo, 0, len(g.guilds))
	for id, name := range g.guilds {
		list = append(list, websync.GuildInfo{ID: id, Name: name})
	}
	return list
}

// GuildCount returns the number of guilds the gateway currently sees.
func (g *Gateway) GuildCount() int {
	g.stateMu.RLock()
	defer g.stateMu.RUnlock()
	return len(g.guilds)
}

func (g *Gateway) connect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	dialCtx, dialCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer dialCancel()

	conn, _, err := websocket.Dial(dialCtx, g.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial gateway: %w", err)
	}
	// Word lists and quest boards fit comfortably; the default 32KiB read
	// limit does not.
	conn.SetReadLimit(1 << 20)

	connCtx, connCancel := context.WithCancel(context.Background())
	g.conn = conn
	g.connCtx = connCtx
	g.cancelFunc = connCancel
	g.connected = true

	if err := g.writeLocked(connCtx, "identify", identifyPayload{Token: g.token}); err != nil {
		connCancel()
		conn.Close(websocket.StatusNormalClosure, "identify failed")
		g.conn = nil
		g.connCtx = nil
		g.cancelFunc = nil
		g.connected = false
		return fmt.Errorf("failed to identify: %w", err)
	}

	g.log.Info().Msg("Gateway connected")
	return nil
}

func (g *Gateway) disconnect() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return nil
	}
	if g.cancelFunc != nil {
		g.cancelFunc()
		g.cancelFunc = nil
	}
	err := g.conn.Close(websocket.StatusNormalClosure, "")
	g.conn = nil
	g.connCtx = nil
	g.connected = false
	return err
}

func (g *Gateway) write(op string, payload interface{}) error {
	g.mu.RLock()
	conn := g.conn
	ctx := g.connCtx
	g.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("gateway not connected")
	}
	return writeFrame(ctx, conn, op, payload)
}

// writeLocked writes while g.mu is already held by the caller.
func (g *Gateway) writeLocked(ctx context.Context, op string, payload interface{}) error {
	return writeFrame(ctx, g.conn, op, payload)
}

func writeFrame(ctx context.Context, conn *websocket.Conn, op string, payload interface{}) error {
	d, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", op, err)
	}
	data, err := json.Marshal(frame{Op: op, D: d})
	if err != nil {
		return fmt.Errorf("failed to marshal frame: %w", err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}

func (g *Gateway) readMessages(ctx context.Context) {
	defer func() {
		g.log.Info().Msg("Gateway read loop stopped")
		g.mu.RLock()
		stopped := g.stopped
		g.mu.RUnlock()
		if !stopped {
			go g.reconnectLoop()
		}
	}()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}

		g.mu.RLock()
		conn := g.conn
		g.mu.RUnlock()
		if conn == nil {
			return
		}

		msgType, data, err := conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				g.log.Info().Int("status", int(closeStatus)).Msg("Gateway closed normally")
			} else if ctx.Err() == nil {
				g.log.Error().Err(err).Msg("Gateway read error")
			}
			return
		}
		if msgType != websocket.MessageText {
			continue
		}

		if err := g.handleFrame(ctx, data); err != nil {
			g.log.Error().Err(err).Msg("Failed to handle gateway frame")
		}
	}
}

func (g *Gateway) handleFrame(ctx context.Context, data []byte) error {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse frame: %w", err)
	}

	switch f.Op {
	case "hello":
		var p helloPayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse hello: %w", err)
		}
		interval := defaultHeartbeat
		if p.HeartbeatMS > 0 {
			interval = time.Duration(p.HeartbeatMS) * time.Millisecond
		}
		go g.heartbeat(ctx, interval)

	case "ready":
		var p readyPayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse ready: %w", err)
		}
		g.stateMu.Lock()
		g.botID = p.BotID
		g.botName = p.BotName
		g.guilds = make(map[string]string, len(p.Guilds))
		for _, guild := range p.Guilds {
			g.guilds[guild.ID] = guild.Name
		}
		g.stateMu.Unlock()
		g.log.Info().Str("bot", p.BotName).Int("guilds", len(p.Guilds)).Msg("Gateway ready")

	case "guild_add":
		var p guildPayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse guild_add: %w", err)
		}
		g.stateMu.Lock()
		g.guilds[p.ID] = p.Name
		g.stateMu.Unlock()

	case "guild_remove":
		var p guildPayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse guild_remove: %w", err)
		}
		g.stateMu.Lock()
		delete(g.guilds, p.ID)
		g.stateMu.Unlock()

	case "message":
		var p messagePayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse message: %w", err)
		}
		if g.onMessage != nil {
			g.onMessage(Message{
				ID:            p.ID,
				GuildID:       p.GuildID,
				ChannelID:     p.ChannelID,
				AuthorID:      p.AuthorID,
				AuthorName:    p.AuthorName,
				AuthorIsAdmin: p.AuthorIsAdmin,
				IsBot:         p.IsBot,
				Content:       p.Content,
				HasAttachment: p.HasAttachment,
				Mentions:      p.Mentions,
			})
		}

	case "interaction":
		var p interactionPayload
		if err := json.Unmarshal(f.D, &p); err != nil {
			return fmt.Errorf("failed to parse interaction: %w", err)
		}
		if g.onInteraction != nil {
			g.onInteraction(Interaction{
				Kind:      p.Kind,
				GuildID:   p.GuildID,
				ChannelID: p.ChannelID,
				UserID:    p.UserID,
			})
		}

	default:
		g.log.Debug().Str("op", f.Op).Msg("Ignoring unknown gateway op")
	}
	return nil
}

func (g *Gateway) heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.write("heartbeat", struct{}{}); err != nil {
				g.log.Warn().Err(err).Msg("Heartbeat failed")
				return
			}
		}
	}
}

func (g *Gateway) reconnectLoop() {
	g.mu.Lock()
	if g.reconnecting || g.stopped {
		g.mu.Unlock()
		return
	}
	g.reconnecting = true
	g.mu.Unlock()

	defer func() {
		g.mu.Lock()
		g.reconnecting = false
		g.mu.Unlock()
	}()

	attempt := 0
	for {
		select {
		case <-g.stopChan:
			return
		default:
		}

		attempt++
		delay := calculateBackoff(attempt)
		if attempt <= maxReconnectAttempts {
			g.log.Info().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting to gateway")
		} else {
			g.log.Warn().Int("attempt", attempt).Dur("delay", delay).Msg("Reconnecting to gateway (exceeded max attempts, will keep retrying)")
		}

		select {
		case <-time.After(delay):
		case <-g.stopChan:
			return
		}

		if err := g.connect(); err != nil {
			g.log.Error().Err(err).Int("attempt", attempt).Msg("Gateway reconnection failed")
			continue
		}

		g.log.Info().Int("attempt", attempt).Msg("Gateway reconnected")
		g.mu.RLock()
		ctx := g.connCtx
		g.mu.RUnlock()
		go g.readMessages(ctx)
		return
	}
}

func calculateBackoff(attempt int) time.Duration {
	delay := float64(baseReconnectDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(maxReconnectDelay) {
		delay = float64(maxReconnectDelay)
	}
	return time.Duration(delay)
}
