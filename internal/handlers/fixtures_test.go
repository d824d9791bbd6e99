package handlers_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/handlers/testutil"
)

type eventPayload struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Status    string    `json:"status"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

type collaboratorPayload struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	EventID string `json:"event_id"`
	Role    string `json:"role"`
}

type budgetPayload struct {
	ID        string          `json:"id"`
	EventID   string          `json:"event_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	IsEnabled bool            `json:"is_enabled"`
}

type invitePayload struct {
	Invitation struct {
		ID        string    `json:"id"`
		Email     string    `json:"email"`
		Status    string    `json:"status"`
		ExpiresAt time.Time `json:"expires_at"`
	} `json:"invitation"`
	Link string `json:"invite_link"`
}

func (p invitePayload) token(t *testing.T) string {
	t.Helper()
	parsed, err := url.Parse(p.Link)
	require.NoError(t, err)
	token := parsed.Query().Get("token")
	require.NotEmpty(t, token)
	return token
}

func createEvent(t *testing.T, env *testutil.Env, owner testutil.Session) eventPayload {
	t.Helper()
	start := time.Now().UTC().Add(24 * time.Hour)
	w := env.Request(http.MethodPost, "/api/events", map[string]any{
		"name":       "Launch Party",
		"type":       "party",
		"location":   "Lagos",
		"start_date": start,
		"end_date":   start.Add(48 * time.Hour),
	}, owner.Token)

	var event eventPayload
	testutil.RequireData(t, w, http.StatusCreated, &event)
	return event
}

func invite(t *testing.T, env *testutil.Env, owner testutil.Session, eventID, email string) invitePayload {
	t.Helper()
	w := env.Request(http.MethodPost, "/api/events/"+eventID+"/invite", map[string]string{"email": email}, owner.Token)
	var payload invitePayload
	testutil.RequireData(t, w, http.StatusCreated, &payload)
	return payload
}

// join invites member to the event and accepts on their behalf.
func join(t *testing.T, env *testutil.Env, owner, member testutil.Session, eventID string) collaboratorPayload {
	t.Helper()
	token := invite(t, env, owner, eventID, member.User.Email).token(t)
	w := env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": token}, member.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	for _, collaborator := range collaborators(t, env, owner, eventID) {
		if collaborator.UserID == member.User.ID {
			return collaborator
		}
	}
	t.Fatalf("membership for %s not found", member.User.Username)
	return collaboratorPayload{}
}

func collaborators(t *testing.T, env *testutil.Env, session testutil.Session, eventID string) []collaboratorPayload {
	t.Helper()
	var members []collaboratorPayload
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/events/"+eventID+"/collaborators", nil, session.Token), http.StatusOK, &members)
	return members
}

func eventBudget(t *testing.T, env *testutil.Env, session testutil.Session, eventID string) budgetPayload {
	t.Helper()
	var budget budgetPayload
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/events/"+eventID+"/budget", nil, session.Token), http.StatusOK, &budget)
	return budget
}

func enableBudget(t *testing.T, env *testutil.Env, owner testutil.Session, eventID string) budgetPayload {
	t.Helper()
	budget := eventBudget(t, env, owner, eventID)
	if budget.IsEnabled {
		return budget
	}
	testutil.RequireData(t, env.Request(http.MethodPost, "/api/budgets/"+budget.ID+"/toggle", nil, owner.Token), http.StatusOK, &budget)
	require.True(t, budget.IsEnabled)
	return budget
}

type expensePayload struct {
	ID         string  `json:"id"`
	BudgetID   string  `json:"budget_id"`
	Name       string  `json:"name"`
	Status     string  `json:"status"`
	AssigneeID *string `json:"assignee_id"`
}

func createExpense(t *testing.T, env *testutil.Env, owner testutil.Session, budgetID string, body map[string]any) expensePayload {
	t.Helper()
	if body == nil {
		body = map[string]any{"name": "Venue", "estimated_cost": "1500.00"}
	}
	var expense expensePayload
	testutil.RequireData(t, env.Request(http.MethodPost, "/api/budgets/"+budgetID+"/expenses", body, owner.Token), http.StatusCreated, &expense)
	return expense
}
