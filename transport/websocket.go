package transport

import (
	"net/http"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/agentwire/kqml/sexp"
	"github.com/agentwire/kqml/types"
)

// WSServer serves the kqml protocol over WebSocket, one performative per
// text frame. It implements http.Handler so embedders mount it wherever
// they like.
type WSServer struct {
	handler Handler
	logger  *zap.Logger
}

// NewWSServer creates a WebSocket endpoint for the given handler.
func NewWSServer(handler Handler, logger *zap.Logger) *WSServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSServer{handler: handler, logger: logger}
}

// ServeHTTP upgrades the connection and pumps frames through the
// dispatcher until the peer closes or sends eof.
func (s *WSServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer c.CloseNow()

	ctx := r.Context()
	logger := s.logger.With(zap.String("remote", r.RemoteAddr))
	logger.Info("websocket connection accepted")

	peer := ""
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			s.handler.HandleEOF(peer)
			logger.Info("websocket connection closed", zap.String("peer", peer))
			return
		}

		v, err := sexp.Parse(string(data))
		if err != nil {
			logger.Warn("dropping malformed frame", zap.Error(err))
			continue
		}
		list, ok := v.(types.List)
		if !ok {
			logger.Warn("dropping non-list frame", zap.Stringer("frame", v))
			continue
		}

		msg := types.Message(list)
		if name := msg.Sender(); name != "" {
			peer = name
		}

		reply, ok := s.handler.Dispatch(list)
		if ok {
			if err := c.Write(ctx, websocket.MessageText, []byte(reply.String())); err != nil {
				logger.Warn("websocket write failed", zap.Error(err))
				return
			}
		}

		if verb, _ := msg.Verb(); verb == types.VerbEOF {
			c.Close(websocket.StatusNormalClosure, "eof")
			return
		}
	}
}
