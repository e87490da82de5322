// Package seed generates demo users, posts and engagement for development.
// Everything goes through the feed service so seeded data obeys the same
// validation and ownership rules as live traffic.
package seed

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"socialfeed/internal/identity"
	"socialfeed/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
)

// Factory produces fake but valid inputs for the feed operations.
type Factory struct {
	faker *gofakeit.Faker
	used  map[string]struct{}
}

// NewFactory returns a factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{
		faker: gofakeit.New(seed),
		used:  make(map[string]struct{}),
	}
}

// Caller mints a fresh identity for a seeded user.
func (f *Factory) Caller() *identity.Caller {
	return &identity.Caller{IdentityID: "seed|" + f.faker.UUID()}
}

// Username returns a unique name within the 3-20 character bound.
func (f *Factory) Username() string {
	base := clip(strings.ToLower(f.faker.Username()), validation.MaxUsernameLen)
	if utf8.RuneCountInString(base) < validation.MinUsernameLen {
		base = "user"
	}
	name := base
	for i := 2; ; i++ {
		if _, taken := f.used[name]; !taken {
			break
		}
		suffix := fmt.Sprintf("%d", i)
		name = clip(base, validation.MaxUsernameLen-len(suffix)) + suffix
	}
	f.used[name] = struct{}{}
	return name
}

// Email returns an address derived from username so it stays unique.
func (f *Factory) Email(username string) string {
	return fmt.Sprintf("%s@%s", username, f.faker.DomainName())
}

func (f *Factory) PostBody() string {
	return clip(f.faker.Paragraph(1, f.faker.Number(1, 4), f.faker.Number(4, 12), " "), validation.MaxPostBodyLen)
}

func (f *Factory) CommentBody() string {
	if f.faker.Bool() {
		return clip(f.faker.Question(), validation.MaxCommentBodyLen)
	}
	return clip(f.faker.Sentence(f.faker.Number(3, 14)), validation.MaxCommentBodyLen)
}

// Intn returns a number in [0, n).
func (f *Factory) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return f.faker.Number(0, n-1)
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
