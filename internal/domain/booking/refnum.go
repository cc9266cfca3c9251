package booking

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"time"
)

const (
	referencePrefix   = "GC"
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceSuffix   = 5

	DefaultReferenceAttempts = 10
)

var referencePattern = regexp.MustCompile(`^GC-\d{8}-[A-Z0-9]{5}$`)

// ValidReference reports whether s has the GC-YYYYMMDD-XXXXX shape.
func ValidReference(s string) bool {
	return referencePattern.MatchString(s)
}

// ReferenceGenerator issues GC-YYYYMMDD-XXXXX reference numbers that are not yet taken.
type ReferenceGenerator struct {
	exists      func(ctx context.Context, ref string) (bool, error)
	maxAttempts int
	randIndex   func(n int) (int, error)
}

func NewReferenceGenerator(exists func(ctx context.Context, ref string) (bool, error), maxAttempts int) *ReferenceGenerator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultReferenceAttempts
	}
	return &ReferenceGenerator{exists: exists, maxAttempts: maxAttempts, randIndex: cryptoIndex}
}

func cryptoIndex(n int) (int, error) {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}

// Generate returns an unused reference for date or ErrReferenceGenerationExhausted after
// maxAttempts collisions.
func (g *ReferenceGenerator) Generate(ctx context.Context, date time.Time) (string, error) {
	for attempt := 0; attempt < g.maxAttempts; attempt++ {
		candidate, err := g.candidate(date)
		if err != nil {
			return "", err
		}

		taken, err := g.exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check reference %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", ErrReferenceGenerationExhausted
}

func (g *ReferenceGenerator) candidate(date time.Time) (string, error) {
	suffix := make([]byte, referenceSuffix)
	for i := range suffix {
		idx, err := g.randIndex(len(referenceAlphabet))
		if err != nil {
			return "", err
		}
		suffix[i] = referenceAlphabet[idx]
	}
	return fmt.Sprintf("%s-%s-%s", referencePrefix, date.Format("20060102"), suffix), nil
}

// referenceDate picks the booking's event date, falling back to the approval instant.
func referenceDate(eventDate string, approvedAt time.Time) time.Time {
	if d, err := time.Parse(time.DateOnly, eventDate); err == nil {
		return d
	}
	return approvedAt.UTC()
}
