package swapstate

import (
	"sync"
	"time"

	"github.com/defistate/swapintent-go/currency"
)

// DefaultQuietPeriod is how long typing must pause before a route is resolved.
const DefaultQuietPeriod = 300 * time.Millisecond

// Store owns the swap State. State changes only through Dispatch and the
// handler methods; subscribers observe every change in the order the changes
// were applied. A Dispatch made from inside a subscriber is delivered after
// the current change has reached every subscriber.
type Store struct {
	mu    sync.Mutex
	state State

	clock       Clock
	quietPeriod time.Duration
	timer       Timer
	// generation is bumped on every keystroke so a timer that already fired
	// cannot complete input that has since changed.
	generation uint64

	subMu       sync.Mutex
	nextSubID   int
	subscribers map[int]subscriber
	order       []int

	// queue holds applied changes not yet delivered. It is appended to under
	// mu so delivery follows the order of the changes.
	queueMu    sync.Mutex
	queue      []change
	delivering bool

	onSelectCurrency func(Field)
}

type subscriber struct {
	fn func(State)
	// completions only receives the change that ends a quiet period.
	completions bool
}

type change struct {
	state     State
	completes bool
}

// Option configures the Store.
type Option interface {
	apply(*Store)
}

type funcOption func(*Store)

func (f funcOption) apply(s *Store) {
	f(s)
}

func newOption(f func(*Store)) Option {
	return funcOption(f)
}

// WithClock sets the clock used for the quiet-period timer.
func WithClock(c Clock) Option {
	return newOption(func(s *Store) {
		s.clock = c
	})
}

// WithQuietPeriod overrides DefaultQuietPeriod.
func WithQuietPeriod(d time.Duration) Option {
	return newOption(func(s *Store) {
		s.quietPeriod = d
	})
}

// WithInitialState seeds the store.
func WithInitialState(st State) Option {
	return newOption(func(s *Store) {
		s.state = st.Clone()
	})
}

// WithSelectCurrencyHook registers a callback run on every SelectCurrency,
// before the selection is applied.
func WithSelectCurrencyHook(f func(Field)) Option {
	return newOption(func(s *Store) {
		s.onSelectCurrency = f
	})
}

// NewStore creates a Store holding InitialState unless overridden.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:       InitialState(),
		clock:       RealClock,
		quietPeriod: DefaultQuietPeriod,
		subscribers: make(map[int]subscriber),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	return s
}

// State returns a copy of the current state.
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Dispatch reduces a into the state and notifies subscribers.
func (s *Store) Dispatch(a Action) State {
	s.mu.Lock()
	next := s.reduceLocked(a)
	s.enqueueLocked(next, false)
	s.mu.Unlock()

	s.deliver()
	return next
}

func (s *Store) reduceLocked(a Action) State {
	s.state = Reduce(s.state, a)
	return s.state.Clone()
}

// Subscribe registers fn for every state change and returns a function that
// removes it. fn is called outside the store's lock and may dispatch.
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	return s.subscribe(subscriber{fn: fn})
}

// SubscribeInputComplete registers fn for the end of each quiet period. fn
// runs exactly once per settled TypeInput, with the state that completed it.
func (s *Store) SubscribeInputComplete(fn func(State)) (unsubscribe func()) {
	return s.subscribe(subscriber{fn: fn, completions: true})
}

func (s *Store) subscribe(sub subscriber) func() {
	s.subMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = sub
	s.order = append(s.order, id)
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subscribers, id)
		for i, sid := range s.order {
			if sid == id {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
}

// enqueueLocked records an applied change. s.mu must be held.
func (s *Store) enqueueLocked(st State, completes bool) {
	s.queueMu.Lock()
	s.queue = append(s.queue, change{state: st, completes: completes})
	s.queueMu.Unlock()
}

// deliver drains the queue unless another goroutine already is. That
// goroutine picks up whatever was queued meanwhile.
func (s *Store) deliver() {
	s.queueMu.Lock()
	if s.delivering {
		s.queueMu.Unlock()
		return
	}
	s.delivering = true
	for len(s.queue) > 0 {
		c := s.queue[0]
		s.queue = s.queue[1:]
		s.queueMu.Unlock()
		s.notify(c)
		s.queueMu.Lock()
	}
	s.delivering = false
	s.queueMu.Unlock()
}

func (s *Store) notify(c change) {
	s.subMu.Lock()
	subs := make([]subscriber, 0, len(s.order))
	for _, id := range s.order {
		subs = append(subs, s.subscribers[id])
	}
	s.subMu.Unlock()

	for _, sub := range subs {
		if sub.completions && !c.completes {
			continue
		}
		sub.fn(c.state.Clone())
	}
}

// SelectCurrency selects c for field. Tokens are stored by address and the
// native asset by currency.NativeID.
func (s *Store) SelectCurrency(field Field, c currency.Currency) State {
	if s.onSelectCurrency != nil {
		s.onSelectCurrency(field)
	}
	return s.Dispatch(SelectCurrencyAction{Field: field, CurrencyID: c.ID()})
}

// SwitchCurrencies swaps the input and output sides.
func (s *Store) SwitchCurrencies() State {
	return s.Dispatch(SwitchCurrenciesAction{})
}

// TypeInput records value on field and restarts the quiet-period timer.
// An empty value returns the delay to INIT and arms nothing.
func (s *Store) TypeInput(field Field, value string) State {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}

	s.reduceLocked(TypeInputAction{Field: field, TypedValue: value})
	var next State
	if value == "" {
		next = s.reduceLocked(SetSwapDelayAction{SwapDelay: DelayInit})
	} else {
		next = s.reduceLocked(SetSwapDelayAction{SwapDelay: DelayUserInput})
		s.timer = s.clock.AfterFunc(s.quietPeriod, func() {
			s.completeInput(gen)
		})
	}
	s.enqueueLocked(next, false)
	s.mu.Unlock()

	s.deliver()
	return next
}

func (s *Store) completeInput(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	next := s.reduceLocked(SetSwapDelayAction{SwapDelay: DelayUserInputComplete})
	s.enqueueLocked(next, true)
	s.mu.Unlock()

	s.deliver()
}

// DispatchIf reduces actions only while the state still expresses the same
// intent as intent (see State.SameIntent), and notifies once. It reports
// whether the actions were applied. Resolution results use it so a response
// to superseded input is never written back.
func (s *Store) DispatchIf(intent State, actions ...Action) (State, bool) {
	s.mu.Lock()
	if !s.state.SameIntent(intent) {
		cur := s.state.Clone()
		s.mu.Unlock()
		return cur, false
	}
	next := s.state.Clone()
	for _, a := range actions {
		next = s.reduceLocked(a)
	}
	s.enqueueLocked(next, false)
	s.mu.Unlock()

	s.deliver()
	return next, true
}

// SetRecipient sets the recipient; nil means the connected account.
func (s *Store) SetRecipient(recipient *string) State {
	return s.Dispatch(SetRecipientAction{Recipient: recipient})
}

// SetSwapDelay moves the delay lifecycle.
func (s *Store) SetSwapDelay(d SwapDelay) State {
	return s.Dispatch(SetSwapDelayAction{SwapDelay: d})
}

// SetBestRoute records the best route.
func (s *Store) SetBestRoute(r BestRoute) State {
	return s.Dispatch(SetBestRouteAction{BestRoute: r})
}

// ReplaceState replaces the whole state and cancels any pending quiet-period timer.
func (s *Store) ReplaceState(st State) State {
	s.mu.Lock()
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	next := s.reduceLocked(ReplaceStateAction{State: st})
	s.enqueueLocked(next, false)
	s.mu.Unlock()

	s.deliver()
	return next
}
