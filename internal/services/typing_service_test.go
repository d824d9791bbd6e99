package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventnest/eventnest/internal/models"
)

func TestTypingServiceUpsertAndTTL(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	_, err := f.env.typing.Set(ctx, f.target, f.guest.ID, true)
	require.NoError(t, err)
	_, err = f.env.typing.Set(ctx, f.target, f.guest.ID, true)
	require.NoError(t, err)

	var rows int64
	require.NoError(t, f.env.db.Model(&models.TypingStatus{}).Count(&rows).Error)
	require.EqualValues(t, 1, rows)

	typing, err := f.env.typing.ListTyping(ctx, f.target, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, typing, 1)
	require.Equal(t, f.guest.ID, typing[0].Collaborator.User.ID)

	f.env.clock.Advance(DefaultTypingTTL + time.Second)
	typing, err = f.env.typing.ListTyping(ctx, f.target, f.owner.ID)
	require.NoError(t, err)
	require.Empty(t, typing)

	_, err = f.env.typing.Set(ctx, f.target, f.guest.ID, false)
	require.NoError(t, err)
	typing, err = f.env.typing.ListTyping(ctx, f.target, f.owner.ID)
	require.NoError(t, err)
	require.Empty(t, typing)
}

func TestTypingServiceClearAndPurge(t *testing.T) {
	f := newCommentFixture(t)
	ctx := context.Background()

	status, err := f.env.typing.Set(ctx, f.target, f.guest.ID, true)
	require.NoError(t, err)
	_, err = f.env.typing.Set(ctx, f.target, f.owner.ID, true)
	require.NoError(t, err)

	require.NoError(t, f.env.typing.Clear(ctx, f.target, status.CollaboratorID))
	typing, err := f.env.typing.ListTyping(ctx, f.target, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, typing, 1)

	purged, err := f.env.typing.Purge(ctx, f.env.clock.Now().Add(time.Minute))
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)
}
