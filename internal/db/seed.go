package db

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedStyles    = []string{"minimal", "street", "casual", "classic", "vintage", "sporty", "dandy"}
	seedLocations = []string{"Hongdae", "Sinchon", "Gangnam", "Itaewon", "Seongsu", "Yeouido"}
)

// SeedOptions controls the size of the demo dataset.
type SeedOptions struct {
	Users        int
	LikesPerUser int
	// RandSeed makes runs reproducible; 0 picks a time based seed.
	RandSeed int64
	// Center of the generated locations.
	Lat, Lon float64
}

func DefaultSeedOptions() SeedOptions {
	return SeedOptions{Users: 20, LikesPerUser: 8, Lat: 37.5663, Lon: 126.9015}
}

// SeedTestData resets the database and populates it with demo profiles and likes.
//
// Behavior:
//  1. Clears all match related tables.
//  2. Creates opts.Users users (alternating gender) with image, style and location rows.
//  3. Each user likes ~opts.LikesPerUser users of the other gender; every 3rd like is
//     made mutual; every mutual pair gets its match and chat room.
//
// Compatible with MySQL, Postgres and SQLite.
func SeedTestData(database *gorm.DB, opts SeedOptions, log *slog.Logger) error {
	if log == nil {
		log = slog.Default()
	}
	seed := opts.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faker := gofakeit.New(seed)

	if err := Reset(database); err != nil {
		return err
	}
	log.Info("cleared existing data")

	// one hash for every demo account; bcrypt is slow on purpose
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	users := make([]User, 0, opts.Users)
	for i := 1; i <= opts.Users; i++ {
		gender := "M"
		if i%2 == 0 {
			gender = "F"
		}
		phone := fmt.Sprintf("010-%04d-%04d", i, faker.Number(0, 9999))
		u := User{
			PhoneNumber:      &phone,
			PasswordHash:     string(hash),
			Name:             faker.FirstName(),
			Age:              faker.Number(20, 39),
			Gender:           gender,
			Job:              faker.JobTitle(),
			IsActive:         true,
			ProfileCompleted: true,
		}
		if err := database.Create(&u).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		users = append(users, u)

		score := faker.Number(50, 99)
		extras := []any{
			&UserImage{UserID: u.ID, ImageURL: fmt.Sprintf("https://picsum.photos/seed/jiok%d/400/600", u.ID), IsPrimary: true},
			&StyleAnalysis{UserID: u.ID, PrimaryStyle: faker.RandomString(seedStyles), StyleScore: &score},
			&UserLocation{
				UserID:       u.ID,
				Latitude:     opts.Lat + faker.Float64Range(-0.05, 0.05),
				Longitude:    opts.Lon + faker.Float64Range(-0.05, 0.05),
				LocationName: faker.RandomString(seedLocations),
			},
		}
		for _, e := range extras {
			if err := database.Create(e).Error; err != nil {
				return fmt.Errorf("failed to seed profile data: %w", err)
			}
		}
	}
	log.Info("seeded users", "count", len(users))

	counter := 0
	for _, actor := range users {
		for j := 0; j < opts.LikesPerUser; j++ {
			target := users[faker.Number(0, len(users)-1)]
			if target.ID == actor.ID || target.Gender == actor.Gender {
				continue
			}
			if err := insertLike(database, actor.ID, target.ID); err != nil {
				return err
			}
			if counter%3 == 0 {
				if err := insertLike(database, target.ID, actor.ID); err != nil {
					return err
				}
			}
			counter++
		}
	}

	// random likes can turn mutual by chance too; every mutual pair gets its match
	var pairs []struct{ FromUserID, ToUserID uint64 }
	err = database.Table("likes l1").
		Select("l1.from_user_id, l1.to_user_id").
		Joins("JOIN likes l2 ON l2.from_user_id = l1.to_user_id AND l2.to_user_id = l1.from_user_id").
		Where("l1.from_user_id < l1.to_user_id").
		Scan(&pairs).Error
	if err != nil {
		return fmt.Errorf("failed to find mutual likes: %w", err)
	}
	for _, p := range pairs {
		if err := insertMatchAndRoom(database, p.FromUserID, p.ToUserID); err != nil {
			return err
		}
	}
	log.Info("seeded likes", "likes", counter, "mutual", len(pairs))

	return nil
}

// Reset deletes every row of the match related tables.
func Reset(database *gorm.DB) error {
	// children first
	tables := []string{"chat_messages", "chat_rooms", "matches", "likes", "user_locations", "ai_style_analysis", "user_images", "users"}
	for _, t := range tables {
		if err := database.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}

	switch database.Dialector.Name() {
	case "mysql":
		for _, t := range tables {
			database.Exec("ALTER TABLE " + t + " AUTO_INCREMENT = 1")
		}
	case "sqlite":
		database.Exec("DELETE FROM sqlite_sequence")
	}
	return nil
}

func insertLike(database *gorm.DB, from, to uint64) error {
	err := database.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Like{FromUserID: from, ToUserID: to}).Error
	if err != nil {
		return fmt.Errorf("failed to seed like: %w", err)
	}
	return nil
}

func insertMatchAndRoom(database *gorm.DB, a, b uint64) error {
	lo, hi := CanonicalPair(a, b)
	err := database.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Match{UserID1: lo, UserID2: hi, Status: MatchAccepted, MatchedAt: time.Now().UTC()}).Error
	if err != nil {
		return fmt.Errorf("failed to seed match: %w", err)
	}
	err = database.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&ChatRoom{UserID1: lo, UserID2: hi}).Error
	if err != nil {
		return fmt.Errorf("failed to seed chat room: %w", err)
	}
	return nil
}
