package order

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"regexp"
)

const codeSpace = 10000

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

// ValidCode reports whether s has the shape of a pickup code.
func ValidCode(s string) bool { return codePattern.MatchString(s) }

// Allocator hands out 4-digit pickup codes. The store's unique index over
// active orders is what guarantees uniqueness; the in-use check only saves a
// failed insert.
type Allocator struct {
	draw  func() int
	inUse func(ctx context.Context, code string) (bool, error)
}

func NewAllocator(repo Repository) *Allocator {
	return &Allocator{
		draw:  func() int { return rand.IntN(codeSpace) },
		inUse: repo.CodeInUse,
	}
}

// Draw returns a uniformly random code, zero padded.
func (a *Allocator) Draw() string {
	return fmt.Sprintf("%04d", a.draw())
}

// Reserve draws codes and calls commit with each until commit succeeds. A
// commit failing with errDuplicate means another active order took the code
// first and a fresh code is drawn. There is no retry limit; only ctx ends
// the loop.
func (a *Allocator) Reserve(ctx context.Context, commit func(code string) error) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code := a.Draw()
		taken, err := a.inUse(ctx, code)
		if err != nil {
			return "", err
		}
		if taken {
			continue
		}
		err = commit(code)
		if errors.Is(err, errDuplicate) {
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}
}
