package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/eventnest/eventnest/internal/models"
)

// ActorView is the public part of the user who caused a notification.
type ActorView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// View is the wire shape of a notification, shared by REST and the notification stream.
type View struct {
	ID          string         `json:"id"`
	Level       string         `json:"level"`
	Unread      bool           `json:"unread"`
	Actor       *ActorView     `json:"actor"`
	Verb        string         `json:"verb"`
	Description string         `json:"description"`
	TargetKind  string         `json:"target_kind,omitempty"`
	TargetID    string         `json:"target_id,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Public      bool           `json:"public"`
	Timestamp   time.Time      `json:"timestamp"`
	TimeSince   string         `json:"time_since"`
	ReadAt      *time.Time     `json:"read_at"`
}

// NewView maps a stored notification. now feeds the relative time_since label.
func NewView(row models.Notification, now time.Time) View {
	view := View{
		ID:          row.ID,
		Level:       row.Level,
		Unread:      row.Unread,
		Verb:        row.Verb,
		Description: row.Description,
		TargetKind:  row.TargetKind,
		TargetID:    row.TargetID,
		Data:        decodeData(row.Data),
		Public:      row.Public,
		Timestamp:   row.CreatedAt,
		TimeSince:   TimeSince(row.CreatedAt, now),
		ReadAt:      row.ReadAt,
	}
	if view.Level == "" {
		view.Level = models.LevelInfo
	}
	if row.Actor != nil {
		view.Actor = &ActorView{
			ID:        row.Actor.ID,
			Username:  row.Actor.Username,
			Email:     row.Actor.Email,
			FirstName: row.Actor.FirstName,
			LastName:  row.Actor.LastName,
		}
	}
	return view
}

// NewViews maps rows in order.
func NewViews(rows []models.Notification, now time.Time) []View {
	out := make([]View, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewView(row, now))
	}
	return out
}

// TimeSince renders the elapsed time between then and now using at most two units,
// for example "3 hours, 12 minutes".
func TimeSince(then, now time.Time) string {
	elapsed := now.Sub(then)
	if elapsed < time.Minute {
		return "0 minutes"
	}

	units := []struct {
		name string
		size time.Duration
	}{
		{"year", 365 * 24 * time.Hour},
		{"month", 30 * 24 * time.Hour},
		{"week", 7 * 24 * time.Hour},
		{"day", 24 * time.Hour},
		{"hour", time.Hour},
		{"minute", time.Minute},
	}

	for i, unit := range units {
		count := int(elapsed / unit.size)
		if count == 0 {
			continue
		}
		label := plural(count, unit.name)
		if i+1 < len(units) {
			next := units[i+1]
			rest := int((elapsed - time.Duration(count)*unit.size) / next.size)
			if rest > 0 {
				label += ", " + plural(rest, next.name)
			}
		}
		return label
	}
	return "0 minutes"
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func decodeData(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func encodeData(data map[string]any) (datatypes.JSON, error) {
	if len(data) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
