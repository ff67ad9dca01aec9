// Package session drives the conversational flow that collects a start
// date, an end date and an amount before a backtest is run.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rustyeddy/macdtrader/market"
)

// State is where a conversation currently stands.
type State int

const (
	AwaitingStart State = iota
	AwaitingEnd
	AwaitingAmount
	Ready
)

func (s State) String() string {
	switch s {
	case AwaitingStart:
		return "awaiting_start"
	case AwaitingEnd:
		return "awaiting_end"
	case AwaitingAmount:
		return "awaiting_amount"
	case Ready:
		return "ready"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var (
	ErrBadDate   = errors.New("bad date")
	ErrDateOrder = errors.New("end date before start date")
	ErrBadAmount = errors.New("amount must be a positive number")
)

// Triggers start (or restart) a conversation.
var Triggers = []string{"回測", "開始", "macd", "backtest", "start"}

// IsTrigger reports whether input is one of Triggers, ignoring case and
// surrounding space.
func IsTrigger(input string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	for _, t := range Triggers {
		if in == t {
			return true
		}
	}
	return false
}

// HelpWords ask for the usage text without changing the conversation.
var HelpWords = []string{"說明", "使用說明", "help"}

// IsHelp reports whether input is one of HelpWords, ignoring case and
// surrounding space.
func IsHelp(input string) bool {
	in := strings.ToLower(strings.TrimSpace(input))
	for _, w := range HelpWords {
		if in == w {
			return true
		}
	}
	return false
}

// Session is the state of one conversation. Start, End and Amount are
// meaningful once the state has moved past the step that collects them.
type Session struct {
	ID     string
	State  State
	Start  time.Time
	End    time.Time
	Amount float64

	Updated time.Time
}

// Reply is what the bot says after handling an input. Done is set when
// the session reached Ready and the backtest should run.
type Reply struct {
	Text string
	Done bool
}

const (
	PromptStart  = "Please enter the backtest start date (YYYY-MM-DD):"
	PromptEnd    = "Please enter the backtest end date (YYYY-MM-DD):"
	PromptAmount = "Please enter the initial amount:"
	ReplyReady   = "Input complete, running backtest..."
	Help         = "Hi, I am the MACD backtest bot.\n" +
		"Send `backtest`, `start` or `macd` to begin.\n" +
		"You will be asked for a start date, an end date and an amount.\n" +
		"Send `backtest` again at any time to start over."
)

// New returns a session waiting for its start date.
func New(id string) *Session {
	return &Session{ID: id, State: AwaitingStart, Updated: time.Now()}
}

// Handle advances the session with one user input. A trigger word always
// restarts the flow. Invalid input leaves the state unchanged and returns
// an error wrapping ErrBadDate, ErrDateOrder or ErrBadAmount together
// with a reply asking again.
func (s *Session) Handle(input string) (Reply, error) {
	s.Updated = time.Now()
	if IsTrigger(input) {
		*s = Session{ID: s.ID, State: AwaitingStart, Updated: s.Updated}
		return Reply{Text: PromptStart}, nil
	}
	if IsHelp(input) {
		return Reply{Text: Help}, nil
	}

	switch s.State {
	case AwaitingStart:
		d, err := parseDay(input)
		if err != nil {
			return Reply{Text: "Date format error. " + PromptStart}, err
		}
		s.Start = d
		s.State = AwaitingEnd
		return Reply{Text: PromptEnd}, nil

	case AwaitingEnd:
		d, err := parseDay(input)
		if err != nil {
			return Reply{Text: "Date format error. " + PromptEnd}, err
		}
		if d.Before(s.Start) {
			return Reply{Text: "The end date must not be before the start date. " + PromptEnd},
				fmt.Errorf("%s < %s: %w", d.Format(market.DateLayout), s.Start.Format(market.DateLayout), ErrDateOrder)
		}
		s.End = d
		s.State = AwaitingAmount
		return Reply{Text: PromptAmount}, nil

	case AwaitingAmount:
		amt, err := parseAmount(input)
		if err != nil {
			return Reply{Text: "Amount format error, please enter a plain number."}, err
		}
		s.Amount = amt
		s.State = Ready
		return Reply{Text: ReplyReady, Done: true}, nil
	}

	return Reply{Text: Help}, nil
}

func parseDay(input string) (time.Time, error) {
	d, err := time.Parse(market.DateLayout, strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, fmt.Errorf("%q: %w", input, ErrBadDate)
	}
	return d, nil
}

func parseAmount(input string) (float64, error) {
	s := strings.NewReplacer(",", "", "$", "", " ", "").Replace(strings.TrimSpace(input))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || !(v > 0) || v > 1e15 {
		return 0, fmt.Errorf("%q: %w", input, ErrBadAmount)
	}
	return v, nil
}
