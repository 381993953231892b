package viewer

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/config"
)

// Status of the document rendering state machine.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusLoaded    Status = "loaded"
	StatusExhausted Status = "exhausted"
)

// DirectMethodName labels the desktop path that renders from the in-memory
// binary instead of cycling through embed fallbacks.
const DirectMethodName = "direct"

// State is the externally visible controller state.
type State struct {
	Status       Status `json:"status"`
	Method       string `json:"method"`
	URL          string `json:"url"`
	AttemptIndex int    `json:"attempt_index"`
}

// Controller drives the ordered rendering-method fallback cycle for one
// viewer session. Mobile clients walk the configured methods under a
// per-attempt deadline; desktop clients render the local binary directly and
// never enter the cycle. At most one deadline timer is live at a time, and
// every transition clears it; a fired deadline carries its generation so a
// stale timer is ignored after a transition already happened.
type Controller struct {
	methods     []config.ViewerMethod
	deadline    time.Duration
	maxAttempts int
	sched       Scheduler
	desktop     bool
	directURL   string

	mu           sync.Mutex
	docURL       string
	status       Status
	methodIndex  int
	attemptIndex int
	generation   uint64
	timer        Timer
}

func NewController(cfg config.ViewerConfig, sched Scheduler, desktop bool, directURL string) *Controller {
	methods := cfg.Methods
	if len(methods) == 0 {
		methods = []config.ViewerMethod{{Name: DirectMethodName}}
	}
	deadline := time.Duration(cfg.AttemptTimeoutSeconds) * time.Second
	if deadline <= 0 {
		deadline = 8 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &Controller{
		methods:     methods,
		deadline:    deadline,
		maxAttempts: maxAttempts,
		sched:       sched,
		desktop:     desktop,
		directURL:   directURL,
	}
}

// Reset re-enters the initial state for a (possibly new) document identity,
// clearing attempt counters and any pending deadline.
func (c *Controller) Reset(docURL string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearTimerLocked()
	c.docURL = docURL
	c.methodIndex = 0
	c.attemptIndex = 0
	c.generation++

	if c.desktop {
		// The binary is already local; nothing to retry over the network.
		c.status = StatusLoaded
		return
	}
	c.status = StatusLoading
	c.armTimerLocked()
}

// Rendered signals a successful render. Terminal: cancels the pending
// deadline and ignores any further failure signals.
func (c *Controller) Rendered() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusLoading {
		return
	}
	c.clearTimerLocked()
	c.generation++
	c.status = StatusLoaded
}

// Failed signals an explicit render failure and advances the cycle.
func (c *Controller) Failed() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advanceLocked(c.generation)
}

// Retry re-arms the cycle after exhaustion; a no-op in any other state.
func (c *Controller) Retry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.status != StatusExhausted {
		return false
	}
	c.methodIndex = 0
	c.attemptIndex = 0
	c.generation++
	c.status = StatusLoading
	c.armTimerLocked()
	return true
}

// CurrentState reports the method, viewer URL, and attempt the client should
// be showing.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := State{Status: c.status, AttemptIndex: c.attemptIndex}
	if c.desktop {
		st.Method = DirectMethodName
		st.URL = c.directURL
		return st
	}
	method := c.methods[c.methodIndex]
	st.Method = method.Name
	st.URL = methodURL(method, c.docURL)
	return st
}

func (c *Controller) advanceLocked(gen uint64) {
	if c.status != StatusLoading || gen != c.generation {
		return
	}
	c.clearTimerLocked()
	c.generation++
	c.attemptIndex++
	if c.attemptIndex >= c.maxAttempts {
		c.status = StatusExhausted
		return
	}
	c.methodIndex = (c.methodIndex + 1) % len(c.methods)
	c.armTimerLocked()
}

func (c *Controller) armTimerLocked() {
	gen := c.generation
	c.timer = c.sched.Schedule(c.deadline, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.advanceLocked(gen)
	})
}

func (c *Controller) clearTimerLocked() {
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
}

func methodURL(method config.ViewerMethod, docURL string) string {
	if method.URLTemplate == "" {
		return docURL
	}
	if strings.Contains(method.URLTemplate, "%s") {
		return fmt.Sprintf(method.URLTemplate, url.QueryEscape(docURL))
	}
	return method.URLTemplate
}
