package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
	"time"
)

const checkinAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCheckinCode returns an uppercase alphanumeric code of the given length.
func GenerateCheckinCode(length int) (string, error) {
	var sb strings.Builder
	max := big.NewInt(int64(len(checkinAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		sb.WriteByte(checkinAlphabet[n.Int64()])
	}
	return sb.String(), nil
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Paginate clamps limit to [1,max] (falling back to def) and offset to >= 0.
func Paginate(limit, offset, def, max int) (int, int) {
	if limit <= 0 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// ContainsFold is a case-insensitive LIKE pattern for the given substring.
func ContainsFold(s string) string {
	return "%" + strings.ToLower(strings.TrimSpace(s)) + "%"
}
