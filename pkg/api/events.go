package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cuemby/launcher/pkg/events"
	"github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameHostOrigin,
}

// sameHostOrigin accepts clients without an Origin header and browsers on a
// loopback page
func sameHostOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// streamEvents pushes broker events to a websocket client. ?cluster=<id>
// restricts the stream to one cluster.
func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Broker == nil {
		s.writeError(w, http.StatusNotFound, errors.New("event stream is disabled"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	clusterID := r.URL.Query().Get("cluster")
	sub := s.cfg.Broker.Subscribe()
	defer s.cfg.Broker.Unsubscribe(sub)

	// The read side only watches for the client going away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-sub:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "broker stopped"),
					time.Now().Add(writeWait))
				return
			}
			if clusterID != "" && event.ClusterID != clusterID {
				continue
			}
			if err := streamJSON(conn, event); err != nil {
				s.logger.Debug().Err(err).Msg("Websocket write failed")
				return
			}
		}
	}
}

func streamJSON(c *websocket.Conn, event *events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_ = c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, payload)
}
