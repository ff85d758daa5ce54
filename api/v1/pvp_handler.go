// Package v1 is the REST surface for rankings, the leaderboard, match
// history, and the matchmaking queue: package-level service pointers
// wired once at boot, one handler func per route, echo.Map response
// literals.
package v1

import (
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pvparena/typing-arena/internal/apperr"
	"github.com/pvparena/typing-arena/internal/auth"
	"github.com/pvparena/typing-arena/internal/matchqueue"
	"github.com/pvparena/typing-arena/internal/ranking"
)

const invalidRequest = "invalid request"

// Store and Queue are wired once at boot by cmd/main.go.
var (
	Store ranking.Store
	Queue *matchqueue.Queue
)

// RegisterPvpRoutes mounts the ranking, leaderboard, queue, and
// history endpoints under g. g should already carry the JWT
// middleware so auth.FromContext has claims to read.
func RegisterPvpRoutes(g *echo.Group) {
	g.GET("/ranking/:userId", GetRankingHandler)
	g.GET("/leaderboard", GetLeaderboardHandler)
	g.POST("/queue/join", JoinQueueHandler)
	g.DELETE("/queue/leave", LeaveQueueHandler)
	g.GET("/history/:userId", GetHistoryHandler)
}

func GetRankingHandler(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return apperr.Validation("userId is required")
	}
	r, err := Store.GetRanking(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	if r == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no ranking for user")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "ok", "data": r})
}

func GetLeaderboardHandler(c echo.Context) error {
	limit := parseBounded(c.QueryParam("limit"), 50, 1, 100)
	offset := parseBounded(c.QueryParam("offset"), 0, 0, 1<<31-1)

	rows, total, err := Store.GetLeaderboard(c.Request().Context(), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "ok",
		"data":    echo.Map{"leaderboard": rows, "total": total},
	})
}

// JoinQueueHandler enters the authenticated user into the matchmaking
// queue over the REST surface; a client connected over the WebSocket
// surface instead sends pvp:join_queue.
func JoinQueueHandler(c echo.Context) error {
	claims, ok := auth.FromContext(c)
	if !ok {
		return apperr.Auth("unauthenticated")
	}
	if Queue.IsInQueue(claims.UserID) {
		return apperr.Queue(http.StatusConflict, "already in queue")
	}

	size := Queue.Join(claims.UserID, claims.Username, nil)
	return c.JSON(http.StatusOK, echo.Map{
		"message": "joined queue",
		"data":    echo.Map{"queueId": claims.UserID, "queueSize": size},
	})
}

func LeaveQueueHandler(c echo.Context) error {
	claims, ok := auth.FromContext(c)
	if !ok {
		return apperr.Auth("unauthenticated")
	}
	if !Queue.Leave(claims.UserID) {
		return apperr.Queue(http.StatusNotFound, "not in queue")
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "left queue", "data": echo.Map{}})
}

func GetHistoryHandler(c echo.Context) error {
	userID := c.Param("userId")
	if userID == "" {
		return apperr.Validation("userId is required")
	}
	limit := parseBounded(c.QueryParam("limit"), 20, 1, 100)
	offset := parseBounded(c.QueryParam("offset"), 0, 0, 1<<31-1)

	rows, total, err := Store.GetMatchHistory(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "ok",
		"data":    echo.Map{"matches": rows, "total": total},
	})
}

func parseBounded(raw string, def, min, max int) int {
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

// ErrorHandler translates an apperr.AppError (or a plain echo error)
// into the {message} envelope. Wired as echo.New().HTTPErrorHandler so
// handlers can return err directly and let one place decide the status
// code.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var status int
	message := invalidRequest

	switch e := err.(type) {
	case *apperr.AppError:
		status = e.Status
		message = e.Message
		if apperr.IsKind(e, apperr.KindStorage) {
			log.Printf("pvp: storage error on %s %s: %v", c.Request().Method, c.Request().URL.Path, e.Cause)
		}
	case *echo.HTTPError:
		status = e.Code
		if msg, ok := e.Message.(string); ok {
			message = msg
		}
	default:
		status = http.StatusInternalServerError
		message = "internal error"
	}

	_ = c.JSON(status, echo.Map{"message": message})
}
