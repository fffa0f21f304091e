package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
	"github.com/haniipp/cybersentient/usecase"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024 // 512KB for camera frames and audio chunks
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub maintains the set of active console clients.
type Hub struct {
	// Registered clients keyed by connection id.
	clients map[string]*Client

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex

	conversations *usecase.ConversationService
	detector      repositories.LandmarkDetector
	ttsRepo       repositories.TextToSpeech
	sttRepo       repositories.SpeechToText

	logger *zap.Logger
}

// NewHub creates a new WebSocket hub
func NewHub(
	conversations *usecase.ConversationService,
	detector repositories.LandmarkDetector,
	ttsRepo repositories.TextToSpeech,
	sttRepo repositories.SpeechToText,
	logger *zap.Logger,
) *Hub {
	return &Hub{
		clients:       make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		conversations: conversations,
		detector:      detector,
		ttsRepo:       ttsRepo,
		sttRepo:       sttRepo,
		logger:        logger,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			h.logger.Info("Client registered",
				zap.String("operatorID", client.operatorID),
				zap.String("conversationID", client.conversationID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("Client unregistered", zap.String("operatorID", client.operatorID))
		}
	}
}

type WriteData struct {
	// MessageType is the type of the websocket message.
	// Expect websocket.TextMessage or websocket.BinaryMessage
	Type    int
	Payload []byte
}

// Client is a middleman between the websocket connection and the hub. Each
// connection owns one conversation, at most one bio-scan session and at most
// one voice query session.
type Client struct {
	hub *Hub

	// The websocket connection.
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	send chan WriteData

	id             string
	operatorID     string
	conversationID string

	logger    *zap.Logger
	validator *MessageValidator

	// Cancelled when the connection tears down.
	ctx    context.Context
	cancel context.CancelFunc

	// Bio-scan state
	scan      *usecase.AnnotationSession
	lastFrame []byte

	// Cancels the previous announcement when a new one starts.
	announceCancel context.CancelFunc

	// Voice query state
	listening    bool
	sttStreaming repositories.SpeechToTextStreaming

	mutex sync.Mutex
}

// HandleWebSocketWithAuth upgrades the connection for a pre-authenticated
// operator and attaches it to the operator's conversation, resuming the last
// one when a prior connection left a live transcript behind.
func HandleWebSocketWithAuth(hub *Hub, c echo.Context, operatorID string, logger *zap.Logger) error {
	conversation, err := hub.conversations.Open(c.Request().Context(), operatorID)
	if err != nil {
		logger.Error("Failed to open conversation", zap.Error(err))
		return err
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:            hub,
		conn:           conn,
		send:           make(chan WriteData, 256),
		id:             uuid.New().String(),
		operatorID:     operatorID,
		conversationID: conversation.ID,
		logger:         logger,
		validator:      NewMessageValidator(),
		ctx:            ctx,
		cancel:         cancel,
	}

	client.hub.register <- client

	// Allow collection of memory referenced by the caller by doing all work in
	// new goroutines.
	go client.writePump()
	go client.readPump()

	// Sync the transcript so the terminal shows the ready banner, or the
	// resumed history on reconnect.
	client.sendJSON(&HistoryClearedMessage{
		BaseMessage: BaseMessage{Type: MessageTypeHistoryCleared, Timestamp: time.Now().Format(time.RFC3339)},
		Messages:    conversation.Snapshot(),
	})

	return nil
}

// readPump pumps messages from the websocket connection to the hub.
func (c *Client) readPump() {
	defer func() {
		c.cancel()
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("WebSocket error", zap.Error(err))
			}
			break
		}

		switch messageType {
		case websocket.TextMessage:
			// Control messages: chat, scan and listening lifecycle
			c.processMessage(message)
		case websocket.BinaryMessage:
			// Camera frames during a scan, audio chunks while listening
			c.processBinary(message)
		default:
			c.logger.Warn("Received unknown message type", zap.Int("type", messageType))
		}
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(message.Type, message.Payload); err != nil {
				c.logger.Error("Failed to write message", zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) sendJSON(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("Failed to marshal outbound message", zap.Error(err))
		return
	}
	select {
	case c.send <- WriteData{Type: websocket.TextMessage, Payload: data}:
	case <-c.ctx.Done():
	}
}

func (c *Client) sendError(code, message string) {
	c.sendJSON(CreateErrorMessage(code, message))
}

// processMessage processes incoming control messages from the console.
func (c *Client) processMessage(message []byte) {
	parsed, err := c.validator.ValidateMessage(message)
	if err != nil {
		c.logger.Warn("Rejected message", zap.Error(err))
		c.sendError("invalid_message", err.Error())
		return
	}

	switch msg := parsed.(type) {
	case *ChatRequestMessage:
		c.handleChatRequest(msg.Text, msg.Image, msg.Provider, msg.Tool)
	case *ClearHistoryMessage:
		c.handleClearHistory()
	case *ScanStartMessage:
		c.handleScanStart(msg)
	case *ScanStopMessage:
		c.handleScanStop()
	case *ListeningStartMessage:
		c.handleListeningStart(msg)
	case *ListeningEndMessage:
		c.handleListeningEnd(msg)
	}
}

// processBinary routes binary payloads by session state: audio while a voice
// query is open, otherwise camera frames while a scan is open.
func (c *Client) processBinary(data []byte) {
	c.mutex.Lock()
	listening := c.listening
	streaming := c.sttStreaming
	scan := c.scan
	c.mutex.Unlock()

	if listening && streaming != nil {
		if err := streaming.Stream(data); err != nil {
			c.logger.Error("Failed to stream audio chunk", zap.Error(err))
		}
		return
	}

	if scan != nil {
		c.processFrame(scan, data)
		return
	}

	c.logger.Warn("Binary payload with no active session",
		zap.String("operatorID", c.operatorID),
		zap.Int("size", len(data)))
}

func (c *Client) handleChatRequest(text, image, provider, tool string) {
	updates, err := c.hub.conversations.Submit(c.ctx, c.conversationID, usecase.SubmitInput{
		Text:     text,
		Image:    image,
		Provider: entities.Provider(provider),
		Tool:     entities.Tool(tool),
	})
	if err != nil {
		switch err {
		case usecase.ErrEmptySubmission:
			// Blank submission is a silent no-op on the console too.
		case usecase.ErrStreamInFlight:
			c.sendError("stream_in_flight", "a response is still streaming")
		default:
			c.logger.Error("Chat submission failed", zap.Error(err))
			c.sendError("chat_failed", "failed to submit message")
		}
		return
	}

	go func() {
		for update := range updates {
			if update.Done {
				c.sendJSON(&ChatDoneMessage{
					BaseMessage: BaseMessage{Type: MessageTypeChatDone, Timestamp: time.Now().Format(time.RFC3339)},
					MessageID:   update.MessageID,
					Content:     update.Content,
					IsError:     update.IsError,
				})
				continue
			}
			c.sendJSON(&ChatChunkMessage{
				BaseMessage: BaseMessage{Type: MessageTypeChatChunk},
				MessageID:   update.MessageID,
				Fragment:    update.Fragment,
				Content:     update.Content,
				IsError:     update.IsError,
			})
		}
	}()
}

func (c *Client) handleClearHistory() {
	conversation, err := c.hub.conversations.Clear(c.ctx, c.conversationID)
	if err != nil {
		if err == usecase.ErrStreamInFlight {
			c.sendError("stream_in_flight", "cannot clear while a response is streaming")
			return
		}
		c.logger.Error("Failed to clear history", zap.Error(err))
		c.sendError("clear_failed", "failed to clear history")
		return
	}

	c.sendJSON(&HistoryClearedMessage{
		BaseMessage: BaseMessage{Type: MessageTypeHistoryCleared, Timestamp: time.Now().Format(time.RFC3339)},
		Messages:    conversation.Snapshot(),
	})
}

func (c *Client) handleScanStart(msg *ScanStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.scan = usecase.NewAnnotationSession(c.hub.detector, msg.Width, msg.Height, c.logger)
	c.logger.Info("Bio-scan started",
		zap.String("operatorID", c.operatorID),
		zap.Int("width", msg.Width),
		zap.Int("height", msg.Height))
}

func (c *Client) handleScanStop() {
	c.mutex.Lock()
	if c.announceCancel != nil {
		c.announceCancel()
		c.announceCancel = nil
	}
	c.scan = nil
	c.lastFrame = nil
	c.mutex.Unlock()

	c.logger.Info("Bio-scan stopped", zap.String("operatorID", c.operatorID))
}

// processFrame runs detection on one JPEG frame and pushes the overlay back.
func (c *Client) processFrame(scan *usecase.AnnotationSession, frame []byte) {
	c.mutex.Lock()
	c.lastFrame = frame
	c.mutex.Unlock()

	annotation := scan.Advance(c.ctx, frame)

	c.sendJSON(&OverlayMessage{
		BaseMessage: BaseMessage{Type: MessageTypeOverlay},
		Overlays:    annotation.Overlays,
		Capture:     annotation.Capture,
		FaceCount:   annotation.FaceCount,
		HandCount:   annotation.HandCount,
		Gesture:     annotation.Gesture,
	})

	if annotation.Capture {
		c.sendJSON(&CaptureMessage{
			BaseMessage: BaseMessage{Type: MessageTypeCapture, Timestamp: time.Now().Format(time.RFC3339)},
			Image:       "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(frame),
		})
	}

	for _, announcement := range annotation.Announcements {
		c.speak(announcement)
	}
}

// speak synthesizes one announcement and streams the audio to the client. A
// new announcement cancels whatever is still playing.
func (c *Client) speak(text string) {
	c.mutex.Lock()
	if c.announceCancel != nil {
		c.announceCancel()
	}
	ctx, cancel := context.WithTimeout(c.ctx, 30*time.Second)
	c.announceCancel = cancel
	c.mutex.Unlock()

	go func() {
		audioChan, err := c.hub.ttsRepo.ConvertTextToSpeech(ctx, text)
		if err != nil {
			c.logger.Error("Failed to synthesize announcement",
				zap.String("text", text),
				zap.Error(err))
			return
		}

		c.sendJSON(&AnnouncementMessage{
			BaseMessage: BaseMessage{Type: MessageTypeAnnouncement, Timestamp: time.Now().Format(time.RFC3339)},
			Text:        text,
		})

		for audioData := range audioChan {
			select {
			case c.send <- WriteData{Type: websocket.BinaryMessage, Payload: audioData}:
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Client) handleListeningStart(msg *ListeningStartMessage) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.listening {
		c.sendError("already_listening", "a voice query is already open")
		return
	}

	audioConfig := repositories.AudioConfig{
		SampleRate: 48000,
		Language:   "id-ID",
		Encoding:   "WEBM_OPUS",
	}
	if msg.SampleRate > 0 {
		audioConfig.SampleRate = msg.SampleRate
	}
	if msg.Language != "" {
		audioConfig.Language = msg.Language
	}
	if msg.Encoding != "" {
		audioConfig.Encoding = msg.Encoding
	}

	streaming, err := c.hub.sttRepo.InitTranscribeStreaming(c.ctx, audioConfig)
	if err != nil {
		c.logger.Error("Failed to initialize streaming transcription", zap.Error(err))
		c.sendError("listening_failed", "failed to initialize transcription")
		return
	}

	c.sttStreaming = streaming
	c.listening = true
	c.logger.Info("Voice query started", zap.String("operatorID", c.operatorID))
}

func (c *Client) handleListeningEnd(msg *ListeningEndMessage) {
	c.mutex.Lock()
	streaming := c.sttStreaming
	c.sttStreaming = nil
	c.listening = false
	c.mutex.Unlock()

	if streaming == nil {
		c.sendError("not_listening", "no voice query is open")
		return
	}

	transcript, err := streaming.End()
	if err != nil {
		c.logger.Error("Failed to end transcription stream", zap.Error(err))
		c.sendError("listening_failed", "failed to end transcription")
		return
	}

	c.logger.Info("Voice query transcribed",
		zap.String("operatorID", c.operatorID),
		zap.String("transcript", transcript))

	c.sendJSON(&TranscriptMessage{
		BaseMessage: BaseMessage{Type: MessageTypeTranscript, Timestamp: time.Now().Format(time.RFC3339)},
		Text:        transcript,
	})

	// A recognized voice query flows through the same chat pipeline as a
	// typed one.
	if transcript != "" {
		c.handleChatRequest(transcript, "", msg.Provider, msg.Tool)
	}
}
