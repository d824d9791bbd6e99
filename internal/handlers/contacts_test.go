package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/handlers/testutil"
)

type contactPayload struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

func TestContactCRUD(t *testing.T) {
	env := testutil.NewEnv(t)
	owner := env.CreateUser("owner")
	other := env.CreateUser("other")

	var contacts []contactPayload
	w := env.Request(http.MethodGet, "/api/contacts", nil, owner.Token)
	testutil.RequireData(t, w, http.StatusOK, &contacts)
	require.Empty(t, contacts)
	require.Contains(t, w.Body.String(), `"data":[]`)

	var contact contactPayload
	testutil.RequireData(t, env.Request(http.MethodPost, "/api/contacts", map[string]any{
		"name":  "Ada Caterer",
		"email": "Ada@Example.com",
		"phone": "+2348000000000",
	}, owner.Token), http.StatusCreated, &contact)
	require.Equal(t, "ada@example.com", contact.Email)

	testutil.RequireError(t, env.Request(http.MethodPost, "/api/contacts", map[string]any{"name": "Dup", "email": "ada@example.com"}, owner.Token), http.StatusBadRequest, "BAD_REQUEST")
	testutil.RequireError(t, env.Request(http.MethodPost, "/api/contacts", map[string]any{"name": "Bad", "email": "nope"}, owner.Token), http.StatusBadRequest, "BAD_REQUEST")

	testutil.RequireError(t, env.Request(http.MethodGet, "/api/contacts/"+contact.ID, nil, other.Token), http.StatusNotFound, "NOT_FOUND")

	testutil.RequireData(t, env.Request(http.MethodPatch, "/api/contacts/"+contact.ID, map[string]any{"phone": "+2348111111111"}, owner.Token), http.StatusOK, &contact)
	require.Equal(t, "+2348111111111", contact.Phone)
	require.Equal(t, "Ada Caterer", contact.Name)

	testutil.RequireData(t, env.Request(http.MethodGet, "/api/contacts", nil, owner.Token), http.StatusOK, &contacts)
	require.Len(t, contacts, 1)

	require.Equal(t, http.StatusNoContent, env.Request(http.MethodDelete, "/api/contacts/"+contact.ID, nil, owner.Token).Code)
	testutil.RequireError(t, env.Request(http.MethodDelete, "/api/contacts/"+contact.ID, nil, owner.Token), http.StatusNotFound, "NOT_FOUND")
}
