package match

import (
	"context"
	"log/slog"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// Resolver maps an unordered pair of users to their single chat room.
type Resolver struct {
	rooms RoomStore
	log   *slog.Logger
}

func NewResolver(rooms RoomStore, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{rooms: rooms, log: log}
}

// ResolveRoom returns the room of (a, b), creating it if absent.
// ResolveRoom(a, b) and ResolveRoom(b, a) always return the same id, also
// when called concurrently.
func (r *Resolver) ResolveRoom(ctx context.Context, a, b uint64) (uint64, error) {
	if a == 0 || b == 0 {
		return 0, svcErr.Validation("both user ids are required")
	}
	if a == b {
		return 0, svcErr.Validation("a room needs two different users")
	}

	room, err := r.rooms.FindRoom(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if room != nil {
		RoomsTotal.WithLabelValues("existing").Inc()
		return room.ID, nil
	}

	room, created, err := r.rooms.CreateRoom(ctx, a, b)
	if err != nil {
		return 0, err
	}
	if created {
		RoomsTotal.WithLabelValues("created").Inc()
		r.log.InfoContext(ctx, "chat room created", "room_id", room.ID, "user_a", a, "user_b", b)
	} else {
		RoomsTotal.WithLabelValues("existing").Inc()
		r.log.DebugContext(ctx, "chat room race lost, reusing winner", "room_id", room.ID)
	}
	return room.ID, nil
}

// HasRoom reports whether (a, b) already has a room. It never creates one.
func (r *Resolver) HasRoom(ctx context.Context, a, b uint64) (bool, error) {
	room, err := r.rooms.FindRoom(ctx, a, b)
	if err != nil {
		return false, err
	}
	return room != nil, nil
}
