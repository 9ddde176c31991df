package db_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oggyb/fashionjiok/internal/db"
	"github.com/oggyb/fashionjiok/internal/db/dbtest"
	"github.com/oggyb/fashionjiok/internal/logger"
)

func TestSeedTestData(t *testing.T) {
	database := dbtest.New(t)

	opts := db.DefaultSeedOptions()
	opts.Users = 10
	opts.RandSeed = 7
	require.NoError(t, db.SeedTestData(database, opts, logger.Discard()))

	var users, images, locations int64
	database.Model(&db.User{}).Count(&users)
	database.Model(&db.UserImage{}).Count(&images)
	database.Model(&db.UserLocation{}).Count(&locations)
	assert.EqualValues(t, 10, users)
	assert.EqualValues(t, 10, images)
	assert.EqualValues(t, 10, locations)

	// every seeded match is canonical, backed by two likes and owns one room
	var matches []db.Match
	require.NoError(t, database.Find(&matches).Error)
	for _, m := range matches {
		assert.Less(t, m.UserID1, m.UserID2)

		var likes int64
		database.Model(&db.Like{}).
			Where("(from_user_id = ? AND to_user_id = ?) OR (from_user_id = ? AND to_user_id = ?)",
				m.UserID1, m.UserID2, m.UserID2, m.UserID1).
			Count(&likes)
		assert.EqualValues(t, 2, likes)

		var rooms int64
		database.Model(&db.ChatRoom{}).Where("user_id_1 = ? AND user_id_2 = ?", m.UserID1, m.UserID2).Count(&rooms)
		assert.EqualValues(t, 1, rooms)
	}

	// reseeding starts from a clean slate
	require.NoError(t, db.SeedTestData(database, opts, logger.Discard()))
	database.Model(&db.User{}).Count(&users)
	assert.EqualValues(t, 10, users)
}

func TestCanonicalPair(t *testing.T) {
	lo, hi := db.CanonicalPair(9, 3)
	assert.Equal(t, uint64(3), lo)
	assert.Equal(t, uint64(9), hi)

	lo, hi = db.CanonicalPair(3, 9)
	assert.Equal(t, uint64(3), lo)
	assert.Equal(t, uint64(9), hi)
}

func TestChatRoomPartner(t *testing.T) {
	r := db.ChatRoom{UserID1: 1, UserID2: 2}
	assert.Equal(t, uint64(2), r.Partner(1))
	assert.Equal(t, uint64(1), r.Partner(2))
	assert.Zero(t, r.Partner(3))
}
