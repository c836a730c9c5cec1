package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/isdelr/blog/internal/models"
)

// EventServiceProvider defines the interface for the auth audit log.
type EventServiceProvider interface {
	CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error
	GetRecentEventsForUser(ctx context.Context, userID int64, limit int) ([]models.Event, error)
}

// EventService records authentication events.
type EventService struct {
	db *sql.DB
}

// NewEventService creates a new EventService.
func NewEventService(db *sql.DB) *EventService {
	return &EventService{db: db}
}

// CreateEvent logs a new event to the database.
func (s *EventService) CreateEvent(ctx context.Context, eventType, level, message string, userID *int64) error {
	event := models.Event{
		ID:      uuid.New().String(),
		Type:    eventType,
		Level:   level,
		Message: message,
		UserID:  userID,
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO event (id, type, level, message, user_id) VALUES (?, ?, ?, ?, ?)",
		event.ID, event.Type, event.Level, event.Message, event.UserID)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", eventType, err)
	}
	return nil
}

// GetRecentEventsForUser retrieves the most recent events for one user,
// newest first.
func (s *EventService) GetRecentEventsForUser(ctx context.Context, userID int64, limit int) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type, level, message, user_id, created_at
		FROM event WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var event models.Event
		if err := rows.Scan(&event.ID, &event.Type, &event.Level, &event.Message, &event.UserID, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
