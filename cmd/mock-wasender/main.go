package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
)

// sendMessageRequest mirrors what the wasender client posts to /api/send-message.
type sendMessageRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type sendMessageData struct {
	MsgID  int64  `json:"msgId"`
	JID    string `json:"jid"`
	Status string `json:"status"`
}

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	addr := getenv("HTTP_ADDR", ":9090")
	token := os.Getenv("MOCK_WASENDER_TOKEN")
	failRate := getenvFloat("MOCK_WASENDER_FAIL_RATE", 0)

	var nextID atomic.Int64
	nextID.Store(time.Now().Unix())

	fiberApp := fiber.New(fiber.Config{AppName: "mock-wasender", DisableStartupMessage: true})

	// POST /api/send-message accepts one text message and answers like WaSender.
	fiberApp.Post("/api/send-message", func(c *fiber.Ctx) error {
		if token != "" && strings.TrimPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ") != token {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"success": false, "message": "Invalid API key"})
		}

		var req sendMessageRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"success": false, "message": "invalid body"})
		}

		digits := strings.TrimPrefix(req.To, "+")
		if digits == "" || strings.Trim(digits, "0123456789") != "" {
			log.Info("mock wasender rejected recipient", "to", req.To)
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"success": false,
				"message": "The to field must be a valid phone number.",
			})
		}

		if failRate > 0 && rand.Float64() < failRate {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"success": false, "message": "simulated outage"})
		}

		data := sendMessageData{
			MsgID:  nextID.Add(1),
			JID:    digits + "@s.whatsapp.net",
			Status: "in_progress",
		}
		log.Info("mock wasender received message", "to", req.To, "msg_id", data.MsgID, "text_len", len(req.Text))

		return c.JSON(fiber.Map{"success": true, "data": data})
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("mock-wasender listening", "addr", addr)
		if err := fiberApp.Listen(addr); err != nil {
			log.Error("fiber listen", "err", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down mock-wasender")
	_ = fiberApp.Shutdown()
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvFloat(k string, def float64) float64 {
	v, err := strconv.ParseFloat(os.Getenv(k), 64)
	if err != nil {
		return def
	}
	return v
}
