package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/handlers/testutil"
	"github.com/eventnest/eventnest/internal/models"
)

func TestEventCreateAddsAdminMembershipAndDisabledBudget(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")

	event := createEvent(t, env, owner)
	require.Equal(t, owner.User.ID, event.OwnerID)
	require.Equal(t, "ongoing", event.Status)

	members := collaborators(t, env, owner, event.ID)
	require.Len(t, members, 1)
	require.Equal(t, owner.User.ID, members[0].UserID)
	require.Equal(t, "ADMIN", members[0].Role)

	budget := eventBudget(t, env, owner, event.ID)
	require.False(t, budget.IsEnabled)
	require.Equal(t, "NGN", budget.Currency)
	require.True(t, budget.Amount.IsZero())
}

func TestEventCreateValidatesWindow(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")

	start := time.Now().UTC().Add(24 * time.Hour)
	w := env.Request(http.MethodPost, "/api/events", map[string]any{
		"name":       "Backwards",
		"start_date": start,
		"end_date":   start.Add(-time.Hour),
	}, owner.Token)
	testutil.RequireError(t, w, http.StatusBadRequest, "BAD_REQUEST")

	w = env.Request(http.MethodPost, "/api/events", map[string]any{"start_date": start}, owner.Token)
	resp := testutil.RequireError(t, w, http.StatusBadRequest, "BAD_REQUEST")
	require.Contains(t, resp.Error.Message, "name is required")
}

func TestEventListPaginatesOwnedAndJoinedEvents(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")

	first := createEvent(t, env, owner)
	createEvent(t, env, owner)
	join(t, env, owner, guest, first.ID)

	w := env.Request(http.MethodGet, "/api/events?page=1&page_size=1", nil, owner.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeResponse(t, w)
	require.NotNil(t, resp.Meta)
	require.EqualValues(t, 2, resp.Meta.Total)
	require.Equal(t, 2, resp.Meta.TotalPages)

	var events []eventPayload
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/events", nil, guest.Token), http.StatusOK, &events)
	require.Len(t, events, 1)
	require.Equal(t, first.ID, events[0].ID)
}

func TestEventUpdateAndDeleteAreOwnerOnly(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	outsider := env.CreateUser("outsider")

	event := createEvent(t, env, owner)
	join(t, env, owner, guest, event.ID)

	testutil.RequireError(t, env.Request(http.MethodGet, "/api/events/"+event.ID, nil, outsider.Token), http.StatusForbidden, "FORBIDDEN")
	testutil.RequireError(t, env.Request(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"location": "Abuja"}, guest.Token), http.StatusForbidden, "FORBIDDEN")

	var updated eventPayload
	testutil.RequireData(t, env.Request(http.MethodPatch, "/api/events/"+event.ID, map[string]any{"location": "Abuja"}, owner.Token), http.StatusOK, &updated)
	require.Equal(t, "Abuja", updated.Location)

	var notes []map[string]any
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/notifications", nil, guest.Token), http.StatusOK, &notes)
	require.Len(t, notes, 1)
	require.Equal(t, "Event Updated", notes[0]["verb"])

	testutil.RequireError(t, env.Request(http.MethodDelete, "/api/events/"+event.ID, nil, guest.Token), http.StatusForbidden, "FORBIDDEN")
	w := env.Request(http.MethodDelete, "/api/events/"+event.ID, nil, owner.Token)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/events/"+event.ID, nil, owner.Token), http.StatusNotFound, "NOT_FOUND")
}

func TestInvitationAcceptFlow(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	event := createEvent(t, env, owner)

	payload := invite(t, env, owner, event.ID, guest.User.Email)
	require.Equal(t, "PENDING", payload.Invitation.Status)
	require.WithinDuration(t, time.Now().Add(48*time.Hour), payload.Invitation.ExpiresAt, time.Minute)
	require.Len(t, env.Mailer.Messages(), 1)
	require.Contains(t, env.Mailer.Messages()[0].Body, payload.Link)

	token := payload.token(t)
	var summary map[string]any
	testutil.RequireData(t, env.Request(http.MethodGet, "/api/invitations/validate?token="+token, nil, ""), http.StatusOK, &summary)
	require.Equal(t, true, summary["is_valid"])
	require.Equal(t, "Launch Party", summary["event_name"])

	w := env.Request(http.MethodPost, "/api/events/"+event.ID+"/invite", map[string]string{"email": guest.User.Email}, owner.Token)
	resp := testutil.RequireError(t, w, http.StatusBadRequest, "BAD_REQUEST")
	require.Contains(t, resp.Error.Message, "pending invitation already exists")

	w = env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": token}, guest.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	members := collaborators(t, env, guest, event.ID)
	require.Len(t, members, 2)

	var stored models.Invitation
	require.NoError(t, env.DB.Take(&stored, "id = ?", payload.Invitation.ID).Error)
	require.Equal(t, models.InvitationAccepted, stored.Status)
}

func TestInvitationAcceptRejectsWrongUserAndExpiredTokens(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	intruder := env.CreateUser("intruder")
	event := createEvent(t, env, owner)

	payload := invite(t, env, owner, event.ID, guest.User.Email)
	token := payload.token(t)

	testutil.RequireError(t, env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": token}, intruder.Token), http.StatusForbidden, "FORBIDDEN")
	testutil.RequireError(t, env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": "unknown"}, guest.Token), http.StatusNotFound, "NOT_FOUND")

	require.NoError(t, env.DB.Model(&models.Invitation{}).Where("id = ?", payload.Invitation.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	resp := testutil.RequireError(t, env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": token}, guest.Token), http.StatusGone, "GONE")
	require.Equal(t, "Invitation has expired", resp.Error.Message)

	var count int64
	require.NoError(t, env.DB.Model(&models.Collaborator{}).Where("event_id = ? AND user_id = ?", event.ID, guest.User.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestInvitationDecline(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	guest := env.CreateUser("guest")
	event := createEvent(t, env, owner)
	token := invite(t, env, owner, event.ID, guest.User.Email).token(t)

	w := env.Request(http.MethodPost, "/api/invitations/decline", map[string]string{"token": token}, guest.Token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	testutil.RequireError(t, env.Request(http.MethodPost, "/api/invitations/accept", map[string]string{"token": token}, guest.Token), http.StatusNotFound, "NOT_FOUND")
	testutil.RequireError(t, env.Request(http.MethodGet, "/api/events/"+event.ID, nil, guest.Token), http.StatusForbidden, "FORBIDDEN")
}
