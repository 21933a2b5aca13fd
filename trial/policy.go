// Package trial decides whether and which trial code a user receives.
package trial

import (
	"sync"

	"github.com/samber/lo"
)

// Codes is the slice of the code store the policy needs.
type Codes interface {
	IssuedFor(user string) (string, bool)
	TakeOneFor(user string) (string, bool)
	PeekRandom() (string, bool)
}

// SecondChances is the slice of the second-chance registry the policy needs.
type SecondChances interface {
	Has(user string) bool
	Consume(user string) bool
}

type Kind int

const (
	Granted Kind = iota
	AlreadyUsed
	NoCodes
)

func (k Kind) String() string {
	switch k {
	case Granted:
		return "granted"
	case AlreadyUsed:
		return "already_used"
	case NoCodes:
		return "no_codes"
	}
	return "unknown"
}

// Outcome is the result of one allocation.
type Outcome struct {
	Kind Kind
	// Code is the code handed out when Kind is Granted.
	Code string
	// Previous holds the codes already issued to the user when Kind is AlreadyUsed.
	Previous []string
	// SecondChance marks a grant made under a second-chance exception.
	SecondChance bool
	// Whitelisted marks a non-destructive draw for a whitelisted user.
	Whitelisted bool
}

// Policy is the single place the one-code-per-user rule lives.
type Policy struct {
	// mu serializes Allocate; the issued check and the pop must not interleave.
	mu sync.Mutex

	codes     Codes
	chances   SecondChances
	whitelist map[string]struct{}
}

func NewPolicy(codes Codes, chances SecondChances, whitelist []string) *Policy {
	return &Policy{
		codes:     codes,
		chances:   chances,
		whitelist: lo.Keyify(lo.Compact(whitelist)),
	}
}

func (p *Policy) IsWhitelisted(user string) bool {
	_, ok := p.whitelist[user]
	return ok
}

// Allocate runs the allocation rules for user:
//   - whitelisted users draw a random pooled code without consuming it;
//   - everyone else gets one code, plus one more if granted a second chance;
//   - a used-up user gets their previous code back instead.
func (p *Policy) Allocate(user string) Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.IsWhitelisted(user) {
		code, ok := p.codes.PeekRandom()
		if !ok {
			return Outcome{Kind: NoCodes, Whitelisted: true}
		}
		return Outcome{Kind: Granted, Code: code, Whitelisted: true}
	}

	var previous []string
	if code, ok := p.codes.IssuedFor(user); ok {
		previous = append(previous, code)
	}
	secondChance := p.chances.Has(user)

	if len(previous) >= 2 || (len(previous) == 1 && !secondChance) {
		return Outcome{Kind: AlreadyUsed, Previous: previous}
	}

	code, ok := p.codes.TakeOneFor(user)
	if !ok {
		return Outcome{Kind: NoCodes}
	}
	out := Outcome{Kind: Granted, Code: code}
	if len(previous) == 1 {
		// The exception is single use.
		p.chances.Consume(user)
		out.SecondChance = true
	}
	return out
}
