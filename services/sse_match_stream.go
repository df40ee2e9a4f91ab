package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"duel-arena/engine"

	"github.com/gofiber/fiber/v2"
)

func setSSEHeaders(c *fiber.Ctx) {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx
}

// matchVersion changes whenever a match is visibly updated.
type matchVersion struct {
	status engine.Status
	turns  uint32
	player string
}

func versionOf(m engine.Match) matchVersion {
	return matchVersion{status: m.Status, turns: m.Turns, player: m.Player2}
}

func writeMatchEvent(w *bufio.Writer, m engine.Match) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: match\ndata: %s\n\n", payload); err != nil {
		return err
	}
	return w.Flush()
}

// writeKeepalive sends an SSE comment. A failed flush means the client is gone.
func writeKeepalive(w *bufio.Writer) error {
	if _, err := w.WriteString(":\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// writeChangedMatches sends every match whose version differs from seen and
// records the new versions. It returns how many events were written.
func writeChangedMatches(w *bufio.Writer, matches []engine.Match, seen map[uint64]matchVersion) (int, error) {
	sent := 0
	for _, m := range matches {
		v := versionOf(m)
		if prev, ok := seen[m.ID]; ok && prev == v {
			continue
		}
		if err := writeMatchEvent(w, m); err != nil {
			return sent, err
		}
		seen[m.ID] = v
		sent++
	}
	return sent, nil
}

// StreamMatchSSE sends the match once, then again every time it changes. The
// stream ends after the match reaches a terminal status.
func (s *DuelService) StreamMatchSSE(c *fiber.Ctx) error {
	id, ok := matchIDParam(c)
	if !ok {
		return badRequest(c, "invalid match id")
	}
	first, err := s.Engine.Match(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	setSSEHeaders(c)
	done := c.Context().Done()
	interval := s.StreamInterval

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := versionOf(first)
		if err := writeMatchEvent(w, first); err != nil {
			return
		}
		if first.Status.Terminal() {
			return
		}

		for {
			select {
			case <-ticker.C:
				m, err := s.Engine.Match(context.Background(), id)
				if err != nil {
					log.Printf("SSE query error for match %d: %v", id, err)
					continue
				}
				if versionOf(m) == last {
					if err := writeKeepalive(w); err != nil {
						return
					}
					continue
				}
				last = versionOf(m)
				if err := writeMatchEvent(w, m); err != nil {
					return
				}
				if m.Status.Terminal() {
					return
				}
			case <-done:
				return
			}
		}
	})

	return nil
}

// StreamMyMatchesSSE follows every match of the authenticated pilot and sends
// each one whenever it changes, including newly created ones.
func (s *DuelService) StreamMyMatchesSSE(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	setSSEHeaders(c)
	done := c.Context().Done()
	interval := s.StreamInterval

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		seen := make(map[uint64]matchVersion)

		// Initial keepalive (comment event)
		if err := writeKeepalive(w); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				sent := 0
				matches, err := s.Engine.MatchesOf(context.Background(), userID)
				if err != nil {
					if !errors.Is(err, engine.ErrPlayerNotFound) {
						log.Printf("SSE query error for pilot %s: %v", userID, err)
					}
				} else if sent, err = writeChangedMatches(w, matches, seen); err != nil {
					return
				}
				// idle ticks still write so a dropped client ends the loop
				if sent == 0 {
					if err := writeKeepalive(w); err != nil {
						return
					}
				}
			case <-done:
				return
			}
		}
	})

	return nil
}
