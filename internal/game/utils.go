package game

import (
	"context"
	crand "crypto/rand"
	"errors"
	"math/big"
	"math/rand"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/models"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

// GenerateRoomCode creates a random room code
func GenerateRoomCode() string {
	code := make([]byte, RoomCodeLength)
	for i := range RoomCodeLength {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(RoomCodeChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			code[i] = RoomCodeChars[rand.Intn(len(RoomCodeChars))]
			continue
		}
		code[i] = RoomCodeChars[n.Int64()]
	}
	return string(code)
}

// createWithUniqueCode assigns a fresh room code to s and stores it,
// retrying on collision
func createWithUniqueCode(ctx context.Context, sessions store.SessionStore, s *models.GameSession) error {
	for range roomCodeAttempts {
		s.RoomID = GenerateRoomCode()
		err := sessions.Create(ctx, s)
		if err == nil {
			return nil
		}
		if !errors.Is(err, models.NewError(models.CodeRoomExists)) {
			return err
		}
	}
	return models.Errorf(models.CodeInternal, "no free room code after %d attempts", roomCodeAttempts)
}

// ValidRoomCode reports whether id has the shape of a generated room code
func ValidRoomCode(id string) bool {
	if len(id) != RoomCodeLength {
		return false
	}
	for i := range len(id) {
		found := false
		for j := range len(RoomCodeChars) {
			if id[i] == RoomCodeChars[j] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
