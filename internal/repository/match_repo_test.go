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

func TestCreateMatch_InsertOrGet(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 3, 7)
	repo := repository.NewMatchRepository(dbase)

	first, created, err := repo.CreateMatch(ctx, 7, 3, time.Now())
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, uint64(3), first.UserID1)
	assert.Equal(t, uint64(7), first.UserID2)
	assert.Equal(t, db.MatchAccepted, first.Status)

	// reversed order hits the same canonical row
	second, created, err := repo.CreateMatch(ctx, 3, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	found, err := repo.FindMatch(ctx, 7, 3)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
}

func TestCreateMatch_Concurrent(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 1, 2)
	repo := repository.NewMatchRepository(dbase)

	const n = 8
	ids := make([]uint64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := uint64(1), uint64(2)
			if i%2 == 1 {
				a, b = b, a
			}
			m, _, err := repo.CreateMatch(ctx, a, b, time.Now())
			if assert.NoError(t, err) {
				ids[i] = m.ID
			}
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
	var count int64
	dbase.Model(&db.Match{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestFindMatch_None(t *testing.T) {
	repo := repository.NewMatchRepository(dbtest.New(t))

	m, err := repo.FindMatch(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestListMatches_PartnerAndPagination(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.SeedProfiles(t, dbase,
		dbtest.Profile{ID: 1, Name: "Mina"},
		dbtest.Profile{ID: 2, Name: "Jun", Gender: "M"},
		dbtest.Profile{ID: 3, Name: "Hoon", Gender: "M"},
		dbtest.Profile{ID: 4, Name: "Tae", Gender: "M"},
	)
	matches := repository.NewMatchRepository(dbase)
	rooms := repository.NewChatRoomRepository(dbase)

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, partner := range []uint64{2, 3, 4} {
		_, _, err := matches.CreateMatch(ctx, 1, partner, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	room, _, err := rooms.CreateRoom(ctx, 3, 1)
	require.NoError(t, err)

	page1, next, err := matches.ListMatches(ctx, 1, nil, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	require.NotNil(t, next)

	// newest first, partner seen from user 1
	assert.Equal(t, uint64(4), page1[0].MatchedUserID)
	assert.Equal(t, "Tae", page1[0].Name)
	assert.Nil(t, page1[0].RoomID)
	assert.Equal(t, uint64(3), page1[1].MatchedUserID)
	require.NotNil(t, page1[1].RoomID)
	assert.Equal(t, room.ID, *page1[1].RoomID)
	assert.Equal(t, "https://img.test/3.jpg", page1[1].Image)

	page2, next, err := matches.ListMatches(ctx, 1, next, 2)
	require.NoError(t, err)
	assert.Nil(t, next)
	require.Len(t, page2, 1)
	assert.Equal(t, uint64(2), page2[0].MatchedUserID)

	// the partner sees user 1
	fromOther, _, err := matches.ListMatches(ctx, 4, nil, 10)
	require.NoError(t, err)
	require.Len(t, fromOther, 1)
	assert.Equal(t, uint64(1), fromOther[0].MatchedUserID)
	assert.Equal(t, "Mina", fromOther[0].Name)
}

func TestMatchedIDs(t *testing.T) {
	ctx := context.Background()
	dbase := dbtest.New(t)
	dbtest.Users(t, dbase, 1, 2, 5)
	repo := repository.NewMatchRepository(dbase)

	_, _, err := repo.CreateMatch(ctx, 5, 2, time.Now())
	require.NoError(t, err)
	_, _, err = repo.CreateMatch(ctx, 2, 1, time.Now())
	require.NoError(t, err)

	ids, err := repo.MatchedIDs(ctx, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{1, 5}, ids)
}
