package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/iamasit07/pingline/backend/internal/errs"
)

// ConversationKey derives the stable identifier for the pairwise conversation
// between two users. The pair is unordered: ConversationKey(a, b) and
// ConversationKey(b, a) always produce the same key, so either participant's
// send or history query resolves to the same partition.
//
// Derivation: sort the two ids, join with "_", sha256, hex-encode.
func ConversationKey(a, b int64) (string, error) {
	if a <= 0 || b <= 0 {
		return "", fmt.Errorf("%w: user ids must be positive", errs.ErrInvalidArgument)
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d_%d", lo, hi)))
	return hex.EncodeToString(sum[:]), nil
}
