// Package dbtest opens isolated in-memory SQLite databases for tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/oggyb/fashionjiok/internal/db"
)

// New returns a migrated in-memory database private to t.
//
// The pool is pinned to one connection: SQLite serializes writers anyway and
// a single connection keeps concurrent tests free of "database is locked".
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	database, err := db.Open(sqlite.Open(dsn), gormlogger.Default.LogMode(gormlogger.Silent))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("failed to get sql pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return database
}

// Profile describes a user row plus its optional attribute rows.
type Profile struct {
	ID       uint64
	Name     string
	Gender   string
	Style    string
	Location string
	Lat, Lon float64
}

// SeedProfiles inserts users (with image, style and location) for tests.
func SeedProfiles(t testing.TB, database *gorm.DB, profiles ...Profile) {
	t.Helper()
	for _, p := range profiles {
		name := p.Name
		if name == "" {
			name = fmt.Sprintf("user%d", p.ID)
		}
		gender := p.Gender
		if gender == "" {
			gender = "F"
		}
		mustCreate(t, database, &db.User{ID: p.ID, Name: name, Age: 25, Gender: gender, PasswordHash: "x", IsActive: true})
		mustCreate(t, database, &db.UserImage{UserID: p.ID, ImageURL: fmt.Sprintf("https://img.test/%d.jpg", p.ID), IsPrimary: true})
		if p.Style != "" {
			mustCreate(t, database, &db.StyleAnalysis{UserID: p.ID, PrimaryStyle: p.Style})
		}
		if p.Location != "" || p.Lat != 0 || p.Lon != 0 {
			mustCreate(t, database, &db.UserLocation{UserID: p.ID, Latitude: p.Lat, Longitude: p.Lon, LocationName: p.Location})
		}
	}
}

// Users inserts bare profiles with the given ids.
func Users(t testing.TB, database *gorm.DB, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		SeedProfiles(t, database, Profile{ID: id})
	}
}

// Likes inserts directed like edges given as from,to pairs.
func Likes(t testing.TB, database *gorm.DB, pairs ...[2]uint64) {
	t.Helper()
	for _, p := range pairs {
		mustCreate(t, database, &db.Like{FromUserID: p[0], ToUserID: p[1]})
	}
}

func mustCreate(t testing.TB, database *gorm.DB, v any) {
	t.Helper()
	if err := database.Create(v).Error; err != nil {
		t.Fatalf("seed %T: %v", v, err)
	}
}
