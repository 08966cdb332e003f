// Package auth keeps the chat allow-list. Updates from chats outside the
// list are dropped before any handler runs.
package auth

import (
	"strconv"
	"strings"
)

type Service struct {
	allowed map[int64]struct{}
}

func NewService(chatIDs []int64) *Service {
	allowed := make(map[int64]struct{}, len(chatIDs))
	for _, id := range chatIDs {
		allowed[id] = struct{}{}
	}
	return &Service{allowed: allowed}
}

func (s *Service) IsAllowed(chatID int64) bool {
	_, ok := s.allowed[chatID]
	return ok
}

func (s *Service) Len() int {
	return len(s.allowed)
}

// ParseChatIDs reads a comma-separated allow-list. Blank and malformed
// entries are skipped.
func ParseChatIDs(raw string) []int64 {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}
