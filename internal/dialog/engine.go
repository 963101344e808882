package dialog

import (
	"context"
	"math/rand"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"fixmantra-backend/internal/catalog"
	"fixmantra-backend/internal/classify"
	fmlog "fixmantra-backend/internal/log"
	"fixmantra-backend/internal/metrics"
	"fixmantra-backend/internal/session"
)

// Awaiting-input contexts recognized by entity extraction.
const (
	CtxAwaitingName    = "awaiting_name"
	CtxAwaitingEmail   = "awaiting_email"
	CtxAwaitingPhone   = "awaiting_phone"
	CtxAwaitingAddress = "awaiting_address"
	CtxAwaitingDevice  = "awaiting_device"
	CtxAwaitingProblem = "awaiting_problem"
)

const (
	fallbackReply = "I'm sorry, I don't quite understand. You can ask me to 'book a service' or ask about our services."
	failureReply  = "Something went wrong. Please try again."
)

var phonePattern = regexp.MustCompile(`\b\d{10}\b`)

// Engine executes one dialogue turn for a resolved intent: entity extraction
// keyed on the session's pre-transition context, the context transition, and
// response rendering. Everything a turn reads or writes happens inside one
// serialized session.Store.Turn, so the context a turn resolves against is
// the context it mutates.
type Engine struct {
	cat      *catalog.Catalog
	sessions *session.Store
	pick     func(n int) int
	log      zerolog.Logger
}

func NewEngine(cat *catalog.Catalog, sessions *session.Store) *Engine {
	return &Engine{
		cat:      cat,
		sessions: sessions,
		pick:     rand.Intn,
		log:      fmlog.WithComponent("engine"),
	}
}

// Turn runs a full dialogue turn: resolution, extraction, transition and
// rendering, all under the session's turn lock. Concurrent turns on the same
// session id serialize; each one resolves against the context the previous
// turn committed.
func (e *Engine) Turn(ctx context.Context, r *Resolver, sessionID, utterance string) string {
	return e.turn(sessionID, utterance, func(current string) []classify.Candidate {
		return r.resolveCurrent(ctx, current, utterance)
	})
}

// Respond produces the reply text for pre-resolved candidates. An empty
// candidate list leaves the session untouched. Callers that resolve
// themselves give up the atomicity Turn provides.
func (e *Engine) Respond(sessionID, utterance string, candidates []classify.Candidate) string {
	return e.turn(sessionID, utterance, func(string) []classify.Candidate {
		return candidates
	})
}

// turn is the shared body. A turn that produces no candidates or an unknown
// tag declines the commit, so it neither mutates nor creates the session.
// Any panic during extraction or rendering degrades to a generic failure
// reply; a turn never crashes the process.
func (e *Engine) turn(sessionID, utterance string, resolve func(current string) []classify.Candidate) (reply string) {
	var out string
	outcome := metrics.OutcomeOK

	defer func() {
		if r := recover(); r != nil {
			e.log.Error().Str("session_id", sessionID).Interface("panic", r).Msg("turn failed")
			metrics.RecordTurn(metrics.OutcomeFailure)
			reply = failureReply
			return
		}
		metrics.RecordTurn(outcome)
	}()

	_, err := e.sessions.Turn(sessionID, func(s *session.Session) (bool, error) {
		candidates := resolve(s.Context)
		if len(candidates) == 0 {
			out = fallbackReply
			outcome = metrics.OutcomeFallback
			return false, nil
		}

		tag := candidates[0].Tag
		intent, ok := e.cat.ByTag(tag)
		if !ok {
			// Catalog/resolver inconsistency; recover with a generic reply
			// but log it as a defect.
			e.log.Error().Str("session_id", sessionID).Str("tag", tag).Msg("resolved tag missing from catalog")
			out = failureReply
			outcome = metrics.OutcomeFailure
			return false, nil
		}

		extract(s, utterance)
		transition(s, intent)
		out = render(intent.Responses[e.pick(len(intent.Responses))], s)
		return true, nil
	})
	if err != nil {
		e.log.Error().Err(err).Str("session_id", sessionID).Msg("session update failed")
		outcome = metrics.OutcomeFailure
		return failureReply
	}
	return out
}

// extract stores slot values keyed on the current (pre-transition) context.
// Unrecognized or absent contexts extract nothing.
func extract(s *session.Session, utterance string) {
	trimmed := strings.TrimSpace(utterance)
	switch s.Context {
	case CtxAwaitingName:
		s.SetSlot(session.SlotName, cases.Title(language.English).String(trimmed))
	case CtxAwaitingEmail:
		// The reference implementation mangles this value; storing the
		// trimmed utterance is the intended behavior.
		s.SetSlot(session.SlotEmail, trimmed)
	case CtxAwaitingPhone:
		phone := phonePattern.FindString(utterance)
		if phone == "" {
			phone = "Not Provided"
		}
		s.SetSlot(session.SlotPhone, phone)
	case CtxAwaitingAddress:
		s.SetSlot(session.SlotAddress, trimmed)
	case CtxAwaitingDevice:
		s.SetSlot(session.SlotDevice, trimmed)
	case CtxAwaitingProblem:
		s.SetSlot(session.SlotProblem, trimmed)
	}
}

// transition applies the selected intent's context linkage. Entering
// awaiting_name restarts the form: the later slots are dropped while name
// and email survive. An intent without context_set terminates the flow.
func transition(s *session.Session, intent catalog.Intent) {
	if intent.ContextSet == "" {
		s.Context = ""
		return
	}
	s.Context = intent.ContextSet
	if intent.ContextSet == CtxAwaitingName {
		s.ClearSlot(session.SlotPhone)
		s.ClearSlot(session.SlotAddress)
		s.ClearSlot(session.SlotDevice)
		s.ClearSlot(session.SlotProblem)
	}
}

// render substitutes every occurrence of {slot} for each slot present in the
// session. Placeholders for unset slots stay literal.
func render(tmpl string, s *session.Session) string {
	out := tmpl
	for _, k := range session.Slots {
		if v, ok := s.Slot(k); ok {
			out = strings.ReplaceAll(out, "{"+string(k)+"}", v)
		}
	}
	return out
}
