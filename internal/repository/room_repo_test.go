package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fashionjiok/internal/db"
	"github.com/oggyb/fashionjiok/internal/db/dbtest"
	"github.com/oggyb/fashionjiok/internal/repository"
)

func TestCreateRoom_OrderIndependent(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 4, 9)
	repo := repository.NewChatRoomRepository(dbase)

	a, created, err := repo.CreateRoom(ctx, 9, 4)
	require.NoError(t, err)
	assert.True(t, created)

	b, created, err := repo.CreateRoom(ctx, 4, 9)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, a.ID, b.ID)

	var count int64
	dbase.Model(&db.ChatRoom{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestFindRoom_NonCanonicalRow(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 1, 2)
	repo := repository.NewChatRoomRepository(dbase)

	// stored reversed, as legacy rows may be
	legacy := db.ChatRoom{UserID1: 2, UserID2: 1}
	require.NoError(t, dbase.Create(&legacy).Error)

	found, err := repo.FindRoom(ctx, 1, 2)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, legacy.ID, found.ID)

	none, err := repo.FindRoom(ctx, 1, 3)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCreateRoom_Concurrent(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 1, 2)
	repo := repository.NewChatRoomRepository(dbase)

	const n = 8
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := repo.CreateRoom(ctx, uint64(1+i%2), uint64(2-i%2))
			if assert.NoError(t, err) {
				ids[i] = room.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestGetRoom_NotFound(t *testing.T) {
	repo := repository.NewChatRoomRepository(dbtest.New(t))

	_, err := repo.GetRoom(context.Background(), 42)
	assert.Error(t, err)
}

func TestListRoomsForUser(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.SeedProfiles(t, dbase,
		dbtest.Profile{ID: 1, Name: "Mina"},
		dbtest.Profile{ID: 2, Name: "Jun", Gender: "M"},
		dbtest.Profile{ID: 3, Name: "Hoon", Gender: "M"},
	)
	rooms := repository.NewChatRoomRepository(dbase)

	quiet, _, err := rooms.CreateRoom(ctx, 1, 2)
	require.NoError(t, err)
	busy, _, err := rooms.CreateRoom(ctx, 3, 1)
	require.NoError(t, err)

	base := time.Now().UTC().Add(time.Hour).Truncate(time.Millisecond)
	msgs := []db.ChatMessage{
		{ID: "m1", RoomID: busy.ID, SenderID: 3, Body: "hi", CreatedAt: base},
		{ID: "m2", RoomID: busy.ID, SenderID: 3, Body: "coffee?", CreatedAt: base.Add(time.Second)},
		{ID: "m3", RoomID: busy.ID, SenderID: 1, Body: "sure", CreatedAt: base.Add(2 * time.Second)},
	}
	require.NoError(t, dbase.Create(&msgs).Error)

	list, err := rooms.ListRoomsForUser(ctx, 1)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, busy.ID, list[0].RoomID)
	assert.Equal(t, uint64(3), list[0].PartnerID)
	assert.Equal(t, "Hoon", list[0].PartnerName)
	assert.Equal(t, "sure", list[0].LastMessage)
	require.NotNil(t, list[0].LastMessageAt)
	assert.EqualValues(t, 2, list[0].UnreadCount)

	assert.Equal(t, quiet.ID, list[1].RoomID)
	assert.Equal(t, "Jun", list[1].PartnerName)
	assert.Nil(t, list[1].LastMessageAt)
	assert.Zero(t, list[1].UnreadCount)
}
