package services

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/actuallyakshat/chrona/internal/apperrors"
	"github.com/actuallyakshat/chrona/internal/delivery"
	"github.com/actuallyakshat/chrona/internal/geo"
	"github.com/actuallyakshat/chrona/internal/models"

	"github.com/google/uuid"
)

// ConnectionStore is the persistence surface for connections.
type ConnectionStore interface {
	Create(ctx context.Context, conn *models.Connection, first *models.Chronicle) error
	GetByID(ctx context.Context, id string) (*models.Connection, error)
	ListByUserID(ctx context.Context, userID string) ([]*models.Connection, error)
}

// ChronicleStore is the persistence surface for chronicles.
type ChronicleStore interface {
	Append(ctx context.Context, chronicle *models.Chronicle) error
	ListByConnectionID(ctx context.Context, connectionID string) ([]*models.Chronicle, error)
}

// Notifier pushes content-free activity events to online users.
type Notifier interface {
	NotifyConnectionCreated(userID, connectionID string)
	NotifyChronicleSent(receiverID, connectionID, chronicleID string, sentAt time.Time)
}

// ConnectionService owns the connection aggregate and the concealment gate:
// every chronicle read passes through it and delivery status is re-derived
// from the wall clock on each call, never stored.
type ConnectionService struct {
	connRepo  ConnectionStore
	chronRepo ChronicleStore
	userRepo  UserStore
	notifier  Notifier

	speedKmh float64
	minHours float64
	minWords int

	now func() time.Time

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewConnectionService creates a new connection service
func NewConnectionService(
	connRepo ConnectionStore,
	chronRepo ChronicleStore,
	userRepo UserStore,
	notifier Notifier,
	speedKmh, minHours float64,
	minWords int,
) *ConnectionService {
	return &ConnectionService{
		connRepo:  connRepo,
		chronRepo: chronRepo,
		userRepo:  userRepo,
		notifier:  notifier,
		speedKmh:  speedKmh,
		minHours:  minHours,
		minWords:  minWords,
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ConnectionDetail is a connection with its chronicles rendered for one
// viewer at one instant.
type ConnectionDetail struct {
	Connection *models.Connection         `json:"connection"`
	Chronicles []models.RenderedChronicle `json:"chronicles"`
}

// CreateConnection establishes a connection between two users with its
// first chronicle. The delay is derived server-side from the distance
// between the two profiles; clients cannot choose it.
func (s *ConnectionService) CreateConnection(ctx context.Context, senderID, recipientID, content string) (*models.Connection, error) {
	if senderID == recipientID {
		return nil, apperrors.ErrSelfConnection
	}
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	sender, err := s.userRepo.GetByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}

	sentAt := s.now()
	conn := &models.Connection{
		ID:                  uuid.New().String(),
		UserAID:             sender.ID,
		UserBID:             recipient.ID,
		PairKey:             models.PairKey(sender.ID, recipient.ID),
		DelayInHours:        s.delayBetween(sender, recipient),
		LastChronicleSentAt: &sentAt,
		CreatedAt:           sentAt,
	}
	first := &models.Chronicle{
		ID:           uuid.New().String(),
		ConnectionID: conn.ID,
		SenderID:     sender.ID,
		ReceiverID:   recipient.ID,
		Content:      strings.TrimSpace(content),
		SentAt:       sentAt,
	}

	if err := s.connRepo.Create(ctx, conn, first); err != nil {
		return nil, err
	}

	if s.notifier != nil {
		s.notifier.NotifyConnectionCreated(recipient.ID, conn.ID)
	}
	return conn, nil
}

// SendChronicle appends a chronicle to an existing connection.
func (s *ConnectionService) SendChronicle(ctx context.Context, connectionID, senderID, content string) (string, error) {
	if err := s.validateContent(content); err != nil {
		return "", err
	}

	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return "", err
	}
	if !conn.HasParticipant(senderID) {
		return "", apperrors.ErrNotParticipant
	}

	chronicle := &models.Chronicle{
		ID:           uuid.New().String(),
		ConnectionID: conn.ID,
		SenderID:     senderID,
		ReceiverID:   conn.Counterpart(senderID),
		Content:      strings.TrimSpace(content),
		SentAt:       s.now(),
	}
	if err := s.chronRepo.Append(ctx, chronicle); err != nil {
		return "", err
	}

	if s.notifier != nil {
		s.notifier.NotifyChronicleSent(chronicle.ReceiverID, conn.ID, chronicle.ID, chronicle.SentAt)
	}
	return chronicle.ID, nil
}

// GetConnectionWithChronicles loads a connection and renders every
// chronicle through the concealment gate for the given viewer. A
// non-participant is rejected outright, never served a filtered view.
func (s *ConnectionService) GetConnectionWithChronicles(ctx context.Context, connectionID, viewerID string) (*ConnectionDetail, error) {
	conn, err := s.connRepo.GetByID(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	if !conn.HasParticipant(viewerID) {
		return nil, apperrors.ErrNotParticipant
	}

	chronicles, err := s.chronRepo.ListByConnectionID(ctx, conn.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rendered := make([]models.RenderedChronicle, 0, len(chronicles))
	for _, ch := range chronicles {
		if ch.ConnectionID != conn.ID {
			return nil, apperrors.NotFound("chronicle does not belong to this connection")
		}
		rendered = append(rendered, s.renderChronicle(ch, conn.DelayInHours, viewerID, now))
	}

	return &ConnectionDetail{Connection: conn, Chronicles: rendered}, nil
}

// renderChronicle applies the concealment gate: the sender always sees
// their own content; the receiver sees it only once delivered, and a
// same-word-count decoy before that.
func (s *ConnectionService) renderChronicle(ch *models.Chronicle, delayHours float64, viewerID string, now time.Time) models.RenderedChronicle {
	status := delivery.ComputeStatus(ch.SentAt, delayHours, now)

	content := ch.Content
	if !status.Delivered && viewerID != ch.SenderID {
		s.mu.Lock()
		content = delivery.Decoy(ch.Content, s.rnd)
		s.mu.Unlock()
	}

	return models.RenderedChronicle{
		ID:           ch.ID,
		ConnectionID: ch.ConnectionID,
		SenderID:     ch.SenderID,
		ReceiverID:   ch.ReceiverID,
		Content:      content,
		SentAt:       ch.SentAt,
		Delivered:    status.Delivered,
		TimeLeft:     status.TimeLeft(),
	}
}

// ListForUser returns the user's inbox: all connections with the
// counterpart profile attached, most recently active first.
func (s *ConnectionService) ListForUser(ctx context.Context, userID string) ([]models.ConnectionSummary, error) {
	conns, err := s.connRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(conns, func(i, j int) bool {
		a, b := conns[i].LastChronicleSentAt, conns[j].LastChronicleSentAt
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})

	summaries := make([]models.ConnectionSummary, 0, len(conns))
	for _, conn := range conns {
		summary := models.ConnectionSummary{Connection: *conn}
		counterpart, err := s.userRepo.GetByID(ctx, conn.Counterpart(userID))
		if err == nil {
			summary.Counterpart = counterpart
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// delayBetween derives the fixed delay for a new connection from the
// distance between the two users. Unknown locations fall back to the floor.
func (s *ConnectionService) delayBetween(a, b *models.User) float64 {
	if a.Location == nil || b.Location == nil {
		return s.minHours
	}
	dist := geo.DistanceKm(
		geo.Point{Lat: a.Location.Latitude, Lon: a.Location.Longitude},
		geo.Point{Lat: b.Location.Latitude, Lon: b.Location.Longitude},
	)
	return delivery.ComputeHours(dist, s.speedKmh, s.minHours)
}

func (s *ConnectionService) validateContent(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return apperrors.ErrEmptyContent
	}
	words := len(strings.Fields(trimmed))
	if words < s.minWords {
		return apperrors.Validationf("chronicle must contain at least %d words, got %d", s.minWords, words)
	}
	return nil
}
