package services

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
)

// StreamUnlocksSSE streams newly unlocked achievements for the authenticated user.
func (s *AchievementService) StreamUnlocksSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing user context"})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	done := c.Context().Done()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		// Only unlocks queued after the stream opened; earlier ones are served by /recent.
		cursor := s.now()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				pending := s.Notifier.Since(userID, cursor)
				if len(pending) == 0 {
					// keepalive
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
					continue
				}

				cursor = pending[len(pending)-1].QueuedAt
				for _, n := range pending {
					payload, err := json.Marshal(n)
					if err != nil {
						log.Printf("[SSE] encode unlock for %s: %v", userID, err)
						continue
					}
					fmt.Fprintf(w, "event: achievement\ndata: %s\n\n", payload)
				}

				if err := w.Flush(); err != nil {
					// client gone
					return
				}

			case <-done:
				return
			}
		}
	})

	return nil
}
