package http

import (
	"context"
	"encoding/json"
	"net/http"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/domain"
	"bridgebites-service/internal/infra/auth"
	"bridgebites-service/internal/metrics"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSHandler exposes the session, feed and friend use cases over one
// websocket per user.
type WSHandler struct {
	sessions *app.SessionService
	feed     *app.FeedService
	friends  *app.FriendService
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService, feed *app.FeedService, friends *app.FriendService, log logrus.FieldLogger, m *metrics.Metrics) *WSHandler {
	if log == nil {
		log = logrus.New()
	}
	return &WSHandler{
		sessions: sessions,
		feed:     feed,
		friends:  friends,
		log:      log,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	ChallengeID string `json:"challengeId"`
	Answer      string `json:"answer"`
}

type recentPayload struct {
	Limit int `json:"limit"`
}

type postPayload struct {
	PostID  string `json:"postId"`
	Content string `json:"content,omitempty"`
}

type friendPayload struct {
	UserID       string `json:"userId,omitempty"`
	FriendshipID string `json:"friendshipId,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

type likeResult struct {
	PostID string `json:"postId"`
	Liked  bool   `json:"liked"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pumps messages between the connection and
// the services. A writer goroutine owns the connection's write side so
// session broadcasts and reply messages never interleave.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	username := r.URL.Query().Get("name")
	if userID == "" || username == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.WSConnections.Inc()
		defer h.metrics.WSConnections.Dec()
	}

	ctx := auth.WithUser(r.Context(), domain.User{ID: userID, Username: username})

	snapshot, err := h.sessions.Open(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}

	updates, cancelUpdates, err := h.sessions.Subscribe(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancelUpdates()
	defer h.sessions.Leave(userID)

	feedEvents, cancelFeed, err := h.feed.Subscribe(ctx)
	if err != nil {
		h.log.WithError(err).Warn("feed subscription failed")
		feedEvents = nil
	} else {
		defer cancelFeed()
	}

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "session", Payload: update}:
				case <-closeSignals:
					return
				}
			case event, ok := <-feedEvents:
				if !ok {
					feedEvents = nil
					continue
				}
				// Any insert event triggers a full refetch; the event itself
				// only says something changed.
				entries, err := h.feed.Feed(ctx)
				if err != nil {
					h.log.WithError(err).WithField("table", event.Table).Warn("feed refetch failed")
					continue
				}
				select {
				case send <- outboundMessage[any]{Type: "feed", Payload: entries}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Deliveries must not block forever once the writer has exited on a
	// write error, or teardown would wait for the peer.
	deliver := func(msg outboundMessage[any]) bool {
		select {
		case send <- msg:
			return true
		case <-writerDone:
			return false
		}
	}

	deliver(outboundMessage[any]{Type: "session", Payload: snapshot})

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		if reply, ok := h.dispatch(ctx, inbound); ok {
			if !deliver(reply) {
				break
			}
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// dispatch runs one inbound message through the matching use case and builds
// the reply. It returns ok=false only for messages that produce no reply.
func (h *WSHandler) dispatch(ctx context.Context, inbound inboundMessage) (outboundMessage[any], bool) {
	fail := func(msg string) (outboundMessage[any], bool) {
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: msg}}, true
	}

	switch inbound.Type {
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return fail("invalid answer payload")
		}
		result, err := h.sessions.RecordAttempt(ctx, payload.ChallengeID, payload.Answer)
		if err != nil && !result.Recorded {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "attemptResult", Payload: result}, true

	case "advance":
		pick, err := h.sessions.Advance(ctx)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "daily", Payload: pick}, true

	case "recent":
		var payload recentPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return fail("invalid recent payload")
			}
		}
		views, err := h.sessions.RecentAttempts(ctx, payload.Limit)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "recent", Payload: views}, true

	case "feed":
		entries, err := h.feed.Feed(ctx)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "feed", Payload: entries}, true

	case "like":
		var payload postPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PostID == "" {
			return fail("invalid like payload")
		}
		liked, err := h.feed.ToggleLike(ctx, payload.PostID)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "likeResult", Payload: likeResult{PostID: payload.PostID, Liked: liked}}, true

	case "comment":
		var payload postPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.PostID == "" || payload.Content == "" {
			return fail("invalid comment payload")
		}
		comment, err := h.feed.AddComment(ctx, payload.PostID, payload.Content)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "comment", Payload: comment}, true

	case "suggestions":
		var payload friendPayload
		if len(inbound.Payload) > 0 {
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				return fail("invalid suggestions payload")
			}
		}
		profiles, err := h.friends.Suggestions(ctx, payload.Limit)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "suggestions", Payload: profiles}, true

	case "friendRequest":
		var payload friendPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.UserID == "" {
			return fail("invalid friendRequest payload")
		}
		friendship, err := h.friends.SendRequest(ctx, payload.UserID)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friendRequestSent", Payload: friendship}, true

	case "friendRequests":
		requests, err := h.friends.IncomingRequests(ctx)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friendRequests", Payload: requests}, true

	case "acceptFriend":
		var payload friendPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.FriendshipID == "" {
			return fail("invalid acceptFriend payload")
		}
		if err := h.friends.AcceptRequest(ctx, payload.FriendshipID); err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friendAccepted", Payload: payload.FriendshipID}, true

	case "declineFriend":
		var payload friendPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.FriendshipID == "" {
			return fail("invalid declineFriend payload")
		}
		if err := h.friends.DeclineRequest(ctx, payload.FriendshipID); err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friendDeclined", Payload: payload.FriendshipID}, true

	case "friends":
		friends, err := h.friends.Friends(ctx)
		if err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friends", Payload: friends}, true

	case "removeFriend":
		var payload friendPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.FriendshipID == "" {
			return fail("invalid removeFriend payload")
		}
		if err := h.friends.RemoveFriend(ctx, payload.FriendshipID); err != nil {
			return fail(err.Error())
		}
		return outboundMessage[any]{Type: "friendRemoved", Payload: payload.FriendshipID}, true

	default:
		return fail("unsupported message type")
	}
}
