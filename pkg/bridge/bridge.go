// Package bridge is the editor transport: a websocket server editors
// connect to. Inbound messages describe buffer state and prompt
// submissions and are funneled onto the engine loop; assistant events flow
// back out over the same connection.
package bridge

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/inlay-dev/inlay/pkg/buffer"
	"github.com/inlay-dev/inlay/pkg/engine"
	"github.com/inlay-dev/inlay/pkg/utils"
)

// Inbound message types.
const (
	MsgBufferOpen   = "buffer_open"
	MsgBufferEdit   = "buffer_edit"
	MsgModeChange   = "mode_change"
	MsgPromptSubmit = "prompt_submit"
	MsgBufferClose  = "buffer_close"
)

// Message is the envelope editors send.
type Message struct {
	Type   string `json:"type"`
	Buffer string `json:"buffer"`
	Text   string `json:"text,omitempty"`

	// buffer_edit: replace lines [Start, End) with the Lines payload.
	Start int      `json:"start,omitempty"`
	End   int      `json:"end,omitempty"`
	Lines []string `json:"lines,omitempty"`

	// mode_change flags.
	Insert    bool `json:"insert,omitempty"`
	Selection bool `json:"selection,omitempty"`
	Popup     bool `json:"popup,omitempty"`
}

// Server accepts editor connections and bridges them to the engine.
type Server struct {
	Engine   *engine.Engine
	Logger   *utils.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a bridge over the given engine.
func NewServer(eng *engine.Engine, logger *utils.Logger) *Server {
	return &Server{
		Engine: eng,
		Logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP handler serving the websocket endpoint at /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe blocks serving websocket connections on addr at /ws.
func (s *Server) ListenAndServe(addr string) error {
	s.Logger.LogProcessStep(fmt.Sprintf("inlay bridge listening on ws://%s/ws", addr))
	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		return fmt.Errorf("bridge server failed: %w", err)
	}
	return nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.LogError(err)
		return
	}
	sc := NewSafeConn(conn)
	defer sc.Close()

	// Forward assistant events to this editor for as long as it is
	// connected.
	subName := fmt.Sprintf("editor-%p", sc)
	events := s.Engine.Bus.Subscribe(subName)
	defer s.Engine.Bus.Unsubscribe(subName)
	go func() {
		for ev := range events {
			if err := sc.WriteJSON(ev); err != nil {
				s.Logger.LogError(err)
				return
			}
		}
	}()

	for {
		_, data, err := sc.Underlying().ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.Logger.LogError(err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.Logger.LogError(fmt.Errorf("malformed editor message: %w", err))
			continue
		}
		s.dispatch(msg)
	}
}

// dispatch posts the message's effect onto the engine loop.
func (s *Server) dispatch(msg Message) {
	switch msg.Type {
	case MsgBufferOpen:
		s.Engine.Do(func() {
			s.Engine.OpenBuffer(msg.Buffer, msg.Text)
		})
	case MsgBufferEdit:
		s.Engine.Do(func() {
			if buf, ok := s.Engine.Buffers.Lookup(msg.Buffer); ok {
				buf.SetLines(msg.Start, msg.End, msg.Lines)
			}
		})
	case MsgModeChange:
		s.Engine.Do(func() {
			if buf, ok := s.Engine.Buffers.Lookup(msg.Buffer); ok {
				buf.SetMode(buffer.Mode{
					Insert:          msg.Insert,
					SelectionActive: msg.Selection,
					PopupVisible:    msg.Popup,
				})
			}
		})
	case MsgPromptSubmit:
		s.Engine.Do(func() {
			s.Engine.SubmitBufferTags(msg.Buffer)
		})
	case MsgBufferClose:
		s.Engine.Do(func() {
			s.Engine.CloseBuffer(msg.Buffer)
		})
	default:
		s.Logger.Logf("ignoring unknown editor message type %q", msg.Type)
	}
}
