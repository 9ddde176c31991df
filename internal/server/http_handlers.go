package server

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	svcErr "github.com/oggyb/fashionjiok/internal/errors"
	"github.com/oggyb/fashionjiok/internal/service/explore"
	"github.com/oggyb/fashionjiok/internal/service/match"
	"github.com/oggyb/fashionjiok/internal/service/suggest"
)

func idString(id uint64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatUint(id, 10)
}

// jsonArray writes items as a bare JSON array; nil becomes [].
func jsonArray[T any](c *fiber.Ctx, items []T) error {
	if items == nil {
		items = []T{}
	}
	return c.JSON(items)
}

// bind parses and validates the JSON body into req.
func (h *httpHandlers) bind(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return svcErr.Validation("invalid JSON body")
	}
	if err := h.validate.Struct(req); err != nil {
		return svcErr.Validation(validationMessage(err))
	}
	return nil
}

func (h *httpHandlers) root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "running", "message": "Fashion Jiok Backend"})
}

func (h *httpHandlers) liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// readiness pings the database and Redis.
func (h *httpHandlers) readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	dbStatus := "healthy"
	if h.appCtx.DB == nil {
		dbStatus = "unavailable"
	} else if sqlDB, err := h.appCtx.DB.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "healthy"
	if h.appCtx.RedisCache == nil {
		redisStatus = "unavailable"
	} else if err := h.appCtx.RedisCache.Ping(ctx); err != nil {
		redisStatus = "unhealthy"
	}

	status, overall := fiber.StatusOK, "healthy"
	if dbStatus != "healthy" || redisStatus != "healthy" {
		status, overall = fiber.StatusServiceUnavailable, "unhealthy"
	}
	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": fiber.Map{"database": dbStatus, "redis": redisStatus},
	})
}

func (h *httpHandlers) testDB(c *fiber.Ctx) error {
	var result int
	if err := h.appCtx.DB.WithContext(c.UserContext()).Raw("SELECT 1 + 1 AS result").Scan(&result).Error; err != nil {
		return h.writeError(c, svcErr.Storage("test db", err))
	}
	return c.JSON(fiber.Map{"success": true, "message": "database connection ok", "result": result})
}

type likeRequest struct {
	FromUser uint64 `json:"fromUser"`
	ToUser   uint64 `json:"toUser" validate:"required"`
}

type likeResponse struct {
	Success bool `json:"success"`
	match.LikeResult
}

func (h *httpHandlers) sendLike(c *fiber.Ctx) error {
	var req likeRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}
	from, err := actingUser(c, "fromUser", idString(req.FromUser))
	if err != nil {
		return h.writeError(c, err)
	}
	res, err := h.svcs.Match.Engine.SendLike(c.UserContext(), from, req.ToUser)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(likeResponse{Success: true, LikeResult: res})
}

func (h *httpHandlers) cards(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	deck, err := h.svcs.Match.Selector.SelectCandidates(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return jsonArray(c, deck)
}

func (h *httpHandlers) listMatches(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	matches, next, err := h.svcs.Match.ListMatches(c.UserContext(), userID, pageToken(c))
	if err != nil {
		return h.writeError(c, err)
	}
	setNextToken(c, next)
	return jsonArray(c, matches)
}

func (h *httpHandlers) likedYou(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	likers, next, err := h.svcs.Match.ListLikedYou(c.UserContext(), userID, pageToken(c))
	if err != nil {
		return h.writeError(c, err)
	}
	setNextToken(c, next)
	return c.JSON(fiber.Map{"success": true, "likers": likers})
}

func (h *httpHandlers) likedYouCount(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	n, err := h.svcs.Match.LikedYouCount(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "count": n})
}

func (h *httpHandlers) explore(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	items, err := h.svcs.Explore.Explore(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return jsonArray(c, items)
}

// queryFloat returns nil when the parameter is missing or malformed.
func queryFloat(c *fiber.Ctx, key string) *float64 {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (h *httpHandlers) nearby(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	users, err := h.svcs.Explore.Nearby(c.UserContext(), userID, explore.Point{
		Lat: queryFloat(c, "lat"),
		Lon: queryFloat(c, "lon"),
	})
	if err != nil {
		return h.writeError(c, err)
	}
	return jsonArray(c, users)
}

func (h *httpHandlers) listRooms(c *fiber.Ctx) error {
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	rooms, err := h.svcs.Chat.ListRooms(c.UserContext(), userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "rooms": rooms})
}

func (h *httpHandlers) messages(c *fiber.Ctx) error {
	roomID, err := parseID("roomId", c.Params("roomId"))
	if err != nil {
		return h.writeError(c, err)
	}
	userID, err := actingUser(c, "userId", c.Query("userId"))
	if err != nil {
		return h.writeError(c, err)
	}
	msgs, err := h.svcs.Chat.History(c.UserContext(), roomID, userID)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "messages": msgs})
}

type sendMessageRequest struct {
	SenderID uint64 `json:"senderId"`
	Text     string `json:"text" validate:"required,max=2000"`
}

func (h *httpHandlers) sendMessage(c *fiber.Ctx) error {
	roomID, err := parseID("roomId", c.Params("roomId"))
	if err != nil {
		return h.writeError(c, err)
	}
	var req sendMessageRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}
	sender, err := actingUser(c, "senderId", idString(req.SenderID))
	if err != nil {
		return h.writeError(c, err)
	}
	msg, err := h.svcs.Chat.Send(c.UserContext(), roomID, sender, req.Text)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "message": msg})
}

type sendCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
}

func (h *httpHandlers) sendCode(c *fiber.Ctx) error {
	var req sendCodeRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.svcs.Auth.SendCode(c.UserContext(), req.Phone)
	if err != nil {
		return h.writeError(c, err)
	}
	body := fiber.Map{
		"success":   true,
		"message":   "verification code sent",
		"expiresIn": int(res.ExpiresIn.Seconds()),
	}
	if res.DebugCode != "" {
		body["debugCode"] = res.DebugCode
	}
	return c.JSON(body)
}

type verifyCodeRequest struct {
	Phone string `json:"phone" validate:"required"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

func (h *httpHandlers) verifyCode(c *fiber.Ctx) error {
	var req verifyCodeRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}
	res, err := h.svcs.Auth.VerifyCode(c.UserContext(), req.Phone, req.Code)
	if err != nil {
		return h.writeError(c, err)
	}

	msg := "signed in"
	if res.IsNewUser {
		msg = "signed up and signed in"
	}
	var phone string
	if res.User.PhoneNumber != nil {
		phone = *res.User.PhoneNumber
	}
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   msg,
		"isNewUser": res.IsNewUser,
		"token":     res.Token,
		"expiresAt": res.ExpiresAt.UTC(),
		"user": fiber.Map{
			"id":               res.User.ID,
			"name":             res.User.Name,
			"phone":            phone,
			"profileCompleted": res.User.ProfileCompleted,
		},
	})
}

type recommendationRequest struct {
	UserProfile map[string]any `json:"userProfile" validate:"required"`
	ChatHistory []suggest.Turn `json:"chatHistory" validate:"required"`
}

func (h *httpHandlers) recommendation(c *fiber.Ctx) error {
	var req recommendationRequest
	if err := h.bind(c, &req); err != nil {
		return h.writeError(c, err)
	}
	out, err := h.svcs.Suggest.Suggest(c.UserContext(), req.UserProfile, req.ChatHistory)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(fiber.Map{"success": true, "suggestions": out})
}
