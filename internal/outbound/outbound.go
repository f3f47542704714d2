// Package outbound implements the chat-bot command state machine:
// parse /call, resolve a recipient, issue a short confirmation code,
// and place the call on confirmation. It follows the teacher module's
// Provider/Option construction shape adapted to a pending-code store
// instead of a connection pool.
package outbound

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/agentplexus/voicegateway/internal/opconfig"
	"github.com/agentplexus/voicegateway/internal/phone"
)

// DefaultCodeTTL is how long a pending confirmation code remains valid.
const DefaultCodeTTL = 120 * time.Second

// Pending is one outstanding outbound-call confirmation.
type Pending struct {
	DestinationE164 string
	Display         string
	Theme           string
	RecipientName   string
	CreatedAt       time.Time
	RequesterChatID string
}

// Store holds pending confirmation codes, keyed by the 6-digit code
// text, guarded by a mutex following the same discipline as
// callstate.Store.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]Pending
}

// NewStore builds a pending-code store with the given TTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &Store{ttl: ttl, pending: make(map[string]Pending)}
}

// purgeExpired removes codes past their TTL. Called lazily on webhook
// entry rather than by a background timer.
func (s *Store) purgeExpired(now time.Time) {
	for code, p := range s.pending {
		if now.Sub(p.CreatedAt) > s.ttl {
			delete(s.pending, code)
		}
	}
}

// Issue stores a pending confirmation under a freshly generated code
// and returns it.
func (s *Store) Issue(p Pending, now time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpired(now)

	var code string
	for {
		code = fmt.Sprintf("%06d", rand.Intn(1_000_000))
		if _, exists := s.pending[code]; !exists {
			break
		}
	}
	p.CreatedAt = now
	s.pending[code] = p
	return code
}

// Confirm pops a pending entry if the code exists and is within TTL.
func (s *Store) Confirm(code string, now time.Time) (Pending, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeExpired(now)

	p, ok := s.pending[code]
	if !ok {
		return Pending{}, fmt.Errorf("outbound: unknown confirmation code")
	}
	delete(s.pending, code)
	return p, nil
}

// Cancel removes a pending entry without placing the call.
func (s *Store) Cancel(code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.pending[code]; !ok {
		return fmt.Errorf("outbound: unknown confirmation code")
	}
	delete(s.pending, code)
	return nil
}

// CommandKind is a closed variant over the recognized chat-bot
// commands.
type CommandKind int

const (
	CommandUnknown CommandKind = iota
	CommandHelp
	CommandCallByName
	CommandCallByPhone
	CommandConfirm
	CommandCancel
)

// Command is the parsed form of one chat-bot message.
type Command struct {
	Kind  CommandKind
	Name  string
	Last4 string
	Phone string
	Theme string
	Code  string
}

var callByNameRE = regexp.MustCompile(`(?i)^/call\s+([^\d|]+?)\s+(\d{4})\s*\|\s*(.+)$`)
var callByPhoneRE = regexp.MustCompile(`(?i)^/call\s+([+\d()\-\s]+)\s*\|\s*(.+)$`)
var confirmRE = regexp.MustCompile(`(?i)^YES\s+(\d{6})$`)
var cancelRE = regexp.MustCompile(`(?i)^/cancel\s+(\d{6})$`)

// ParseCommand classifies one chat-bot message.
func ParseCommand(text string) Command {
	text = strings.TrimSpace(text)
	switch {
	case strings.EqualFold(text, "/help") || strings.EqualFold(text, "/start") || strings.EqualFold(text, "help"):
		return Command{Kind: CommandHelp}
	case callByNameRE.MatchString(text):
		m := callByNameRE.FindStringSubmatch(text)
		return Command{Kind: CommandCallByName, Name: strings.TrimSpace(m[1]), Last4: m[2], Theme: strings.TrimSpace(m[3])}
	case callByPhoneRE.MatchString(text):
		m := callByPhoneRE.FindStringSubmatch(text)
		return Command{Kind: CommandCallByPhone, Phone: strings.TrimSpace(m[1]), Theme: strings.TrimSpace(m[2])}
	case confirmRE.MatchString(text):
		m := confirmRE.FindStringSubmatch(text)
		return Command{Kind: CommandConfirm, Code: m[1]}
	case cancelRE.MatchString(text):
		m := cancelRE.FindStringSubmatch(text)
		return Command{Kind: CommandCancel, Code: m[1]}
	default:
		return Command{Kind: CommandUnknown}
	}
}

// HelpText is the fixed syntax reply for /help, /start, and bare
// "help".
const HelpText = "Commands:\n" +
	"/call <name> <last4> | <theme>\n" +
	"/call <phone> | <theme>\n" +
	"YES <code>\n" +
	"/cancel <code>"

// ResolveByName matches a VIP by case-insensitive substring on name and
// exact last-4 match on phone.
func ResolveByName(vips []opconfig.VIP, name, last4 string) (opconfig.VIP, bool) {
	needle := strings.ToLower(name)
	for _, v := range vips {
		if strings.Contains(strings.ToLower(v.Name), needle) && phone.Last4(v.Phone) == last4 {
			return v, true
		}
	}
	return opconfig.VIP{}, false
}
