package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/olahol/melody"
	"go.uber.org/zap"

	"github.com/eventnest/eventnest/internal/auth"
	"github.com/eventnest/eventnest/internal/realtime"
	"github.com/eventnest/eventnest/pkg/logger"
	"github.com/eventnest/eventnest/pkg/metrics"
)

const (
	streamChannel     = "notifications"
	existingLimit     = 20
	recentLimit       = 50
	keySession        = "session_key"
	keyUserID         = "user_id"
	keyUsername       = "username"
	keyEmail          = "email"
	keyToken          = "token"
	keyRejectCode     = "reject_code"
	keyRejectReason   = "reject_reason"
	sessionKeyPrefix  = "notifications_"
	streamQueryTimout = 5 * time.Second
)

// TokenValidator checks access tokens presented by stream clients.
type TokenValidator interface {
	ValidateAccessToken(token string) (*auth.Claims, error)
}

// Stream serves the per-user notification socket.
type Stream struct {
	melody *melody.Melody
	store  *Store
	tokens TokenValidator
	log    *zap.Logger
}

// StreamOption customises a Stream.
type StreamOption func(*Stream)

// WithStreamOriginCheck overrides the default same-host origin policy.
func WithStreamOriginCheck(check func(r *http.Request) bool) StreamOption {
	return func(s *Stream) {
		if check != nil {
			s.melody.Upgrader.CheckOrigin = check
		}
	}
}

// NewStream wires melody callbacks over store.
func NewStream(store *Store, tokens TokenValidator, opts ...StreamOption) (*Stream, error) {
	if store == nil {
		return nil, errors.New("notification stream: store is required")
	}
	if tokens == nil {
		return nil, errors.New("notification stream: token validator is required")
	}

	m := melody.New()
	m.Config.MaxMessageSize = 4096
	m.Upgrader.CheckOrigin = realtime.SameOrigin

	s := &Stream{
		melody: m,
		store:  store,
		tokens: tokens,
		log:    logger.WithModule("notification_stream"),
	}
	for _, opt := range opts {
		opt(s)
	}

	m.HandleConnect(s.onConnect)
	m.HandleMessage(s.onMessage)
	m.HandleDisconnect(s.onDisconnect)
	m.HandleError(func(session *melody.Session, err error) {
		s.log.Debug("notification stream error", zap.String("session", sessionKey(session)), zap.Error(err))
	})
	return s, nil
}

// HandleRequest upgrades the request. A bad credential still upgrades so the client
// receives close code 4001 with a reason.
func (s *Stream) HandleRequest(w http.ResponseWriter, r *http.Request, token string) error {
	keys := map[string]any{keyToken: token}

	token = strings.TrimSpace(token)
	if token == "" {
		keys[keyRejectCode] = realtime.CloseAuthFailed
		keys[keyRejectReason] = "authentication failed: no credential"
		return s.melody.HandleRequestWithKeys(w, r, keys)
	}

	claims, err := s.tokens.ValidateAccessToken(token)
	if err != nil || strings.TrimSpace(claims.UserID) == "" {
		keys[keyRejectCode] = realtime.CloseAuthFailed
		keys[keyRejectReason] = "authentication failed: invalid credential"
		return s.melody.HandleRequestWithKeys(w, r, keys)
	}

	keys[keyUserID] = claims.UserID
	keys[keyUsername] = claims.Username
	keys[keyEmail] = claims.Email
	keys[keySession] = sessionKeyPrefix + claims.UserID
	return s.melody.HandleRequestWithKeys(w, r, keys)
}

// Publish pushes a notification to every open session of userID.
func (s *Stream) Publish(userID string, view View) {
	payload, err := json.Marshal(map[string]any{"type": "new_notification", "notification": view})
	if err != nil {
		s.log.Error("encode notification", zap.Error(err))
		return
	}
	target := sessionKeyPrefix + userID
	if err := s.melody.BroadcastFilter(payload, func(session *melody.Session) bool {
		return sessionKey(session) == target
	}); err != nil && !errors.Is(err, melody.ErrClosed) {
		s.log.Warn("publish notification", zap.String("user_id", userID), zap.Error(err))
	}
}

// Sessions reports how many sockets are open.
func (s *Stream) Sessions() int {
	return s.melody.Len()
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	return s.melody.IsClosed()
}

// Close disconnects every session.
func (s *Stream) Close() error {
	return s.melody.Close()
}

func (s *Stream) onConnect(session *melody.Session) {
	if code, ok := session.Get(keyRejectCode); ok {
		reason, _ := session.Get(keyRejectReason)
		s.reject(session, code.(int), reason.(string))
		return
	}
	metrics.RealtimeConnections.WithLabelValues(streamChannel).Inc()

	userID := stringKey(session, keyUserID)
	s.write(session, map[string]any{
		"type":          "auth_status",
		"authenticated": true,
		"user": map[string]any{
			"id":       userID,
			"username": stringKey(session, keyUsername),
			"email":    stringKey(session, keyEmail),
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), streamQueryTimout)
	defer cancel()

	rows, count, err := s.store.LatestUnread(ctx, userID, existingLimit)
	if err != nil {
		s.log.Error("load unread notifications", zap.String("user_id", userID), zap.Error(err))
		s.writeError(session, "server_error", "Failed to load notifications")
		return
	}
	s.write(session, map[string]any{
		"type":          "existing_notifications",
		"notifications": NewViews(rows, s.store.Now()),
		"count":         count,
	})
}

func (s *Stream) onDisconnect(session *melody.Session) {
	if _, rejected := session.Get(keyRejectCode); rejected {
		return
	}
	metrics.RealtimeConnections.WithLabelValues(streamChannel).Dec()
}

type streamRequest struct {
	Type           string `json:"type"`
	NotificationID string `json:"notification_id"`
}

func (s *Stream) onMessage(session *melody.Session, payload []byte) {
	if _, rejected := session.Get(keyRejectCode); rejected {
		return
	}

	if _, err := s.tokens.ValidateAccessToken(stringKey(session, keyToken)); err != nil {
		if auth.IsExpired(err) {
			s.reject(session, realtime.CloseTokenExpired, "token expired")
		} else {
			s.reject(session, realtime.CloseAuthFailed, "authentication failed: invalid credential")
		}
		return
	}

	var req streamRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		s.writeError(session, "invalid_json", "Invalid JSON format")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), streamQueryTimout)
	defer cancel()
	userID := stringKey(session, keyUserID)

	switch req.Type {
	case "mark_as_read":
		if strings.TrimSpace(req.NotificationID) == "" {
			s.writeError(session, "validation_failed", "notification_id is required")
			return
		}
		ok, err := s.store.MarkRead(ctx, userID, req.NotificationID)
		if err != nil {
			s.log.Error("mark notification read", zap.String("user_id", userID), zap.Error(err))
			s.writeError(session, "server_error", "Failed to mark notification as read")
			return
		}
		s.write(session, map[string]any{
			"type":            "mark_read_response",
			"success":         ok,
			"notification_id": req.NotificationID,
		})
	case "get_user_notifications":
		rows, err := s.store.Recent(ctx, userID, recentLimit)
		if err != nil {
			s.log.Error("list notifications", zap.String("user_id", userID), zap.Error(err))
			s.writeError(session, "server_error", "Failed to load notifications")
			return
		}
		s.write(session, map[string]any{
			"type":          "user_notifications",
			"notifications": NewViews(rows, s.store.Now()),
		})
	default:
		s.writeError(session, "unknown_type", "Unknown message type: "+req.Type)
	}
}

func (s *Stream) reject(session *melody.Session, code int, reason string) {
	metrics.RealtimeRejections.WithLabelValues(streamChannel, strconv.Itoa(code)).Inc()
	if err := session.CloseWithMsg(melody.FormatCloseMessage(code, reason)); err != nil {
		s.log.Debug("close notification session", zap.Error(err))
	}
}

func (s *Stream) write(session *melody.Session, message any) {
	payload, err := json.Marshal(message)
	if err != nil {
		s.log.Error("encode stream message", zap.Error(err))
		return
	}
	if err := session.Write(payload); err != nil {
		s.log.Debug("write stream message", zap.Error(err))
	}
}

func (s *Stream) writeError(session *melody.Session, errorType, message string) {
	s.write(session, map[string]any{"type": "error", "error_type": errorType, "message": message})
}

func sessionKey(session *melody.Session) string {
	return stringKey(session, keySession)
}

func stringKey(session *melody.Session, key string) string {
	value, ok := session.Get(key)
	if !ok {
		return ""
	}
	str, _ := value.(string)
	return str
}
