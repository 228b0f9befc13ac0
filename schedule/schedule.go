// Package schedule implements §4.6: the best-first forward planner that
// expands (goal, plan) candidates under resource/service/tactic
// constraints, runs delegation auctions, deconflicts and binds survivors,
// and extracts the best execution chain.
package schedule

import (
	"math"
	"time"

	"github.com/jackagents/jackgo/belief"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/model"
)

// NodeState is a SearchNode's place in the search (§4.6 "States").
type NodeState int

const (
	NodePending NodeState = iota
	NodeOpen
	NodeClosed
	NodeFailed
)

// Failure classifies why a candidate could not bind (§7 "Plan
// infeasibility... recorded on the search node's failure bitfield").
type Failure int

const (
	NoFailure Failure = iota
	PlanInvalid
	ServiceUnavailable
	ResourceViolation
	AuctionBidTimeout
	DelegateAllocated
)

func (f Failure) String() string {
	switch f {
	case PlanInvalid:
		return "PLAN_INVALID"
	case ServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	case ResourceViolation:
		return "RESOURCE_VIOLATION"
	case AuctionBidTimeout:
		return "AUCTION_BID_TIMEOUT"
	case DelegateAllocated:
		return "DELEGATE_ALLOCATED"
	default:
		return "NONE"
	}
}

// FailedCost is the infeasibility sentinel (§4.6 costing).
const FailedCost = math.Inf(1)

// DefaultAuctionExpiry is the default 2s auction window (§4.6).
const DefaultAuctionExpiry = 2 * time.Second

// SearchNode is one node of the search (§4.6).
type SearchNode struct {
	Goal *model.Goal
	Plan *model.PlanTemplate // nil means "delegate"

	Ctx *belief.Context // the (possibly cloned) context reflecting applied effects up to this node

	CostFromStart float64
	CostOfNode    float64
	EstimateToEnd float64
	CostTotal     float64

	State   NodeState
	Failure Failure

	Delegate          string
	AuctionScheduleID identity.UniqueId
}

func (n *SearchNode) recomputeTotal() {
	n.CostTotal = n.CostFromStart + n.CostOfNode + n.EstimateToEnd
}

// DirtyBits are the bit-OR'd reasons a schedule needs rebuilding (§4.6).
type DirtyBits uint32

const (
	AgentStarted DirtyBits = 1 << iota
	Percept
	MessageDirty
	GoalAdded
	GoalRemoved
	MemberAdded
	MemberRemoved
	TacticsChanged
	Force
)

// RequiresImmediateRebuild reports whether any bit forces a synchronous
// rebuild rather than deferring until the current schedule ends (§4.5
// step 2, §4.6 "Schedule dirty bits").
func (b DirtyBits) RequiresImmediateRebuild() bool {
	return b&(GoalRemoved|MemberRemoved|Force) != 0
}

// Deps is everything the search needs from the owning agent/team to
// expand candidates, injected so this package has no dependency on
// agent or engine.
type Deps struct {
	// PlansFor returns the agent's committed plans applicable to a goal
	// template name, in tactic-list order.
	PlansFor func(goalName string) []*model.PlanTemplate
	// TacticFor returns the goal's tactic (builtin or application-set).
	TacticFor func(goalName string) *model.Tactic
	// ServiceAvailable reports whether serviceName is attached and
	// available on the agent.
	ServiceAvailable func(serviceName string) bool
	// Delegable reports whether goal has no applicable local plan at all,
	// making it a delegation candidate (§4.6 expansion, team-only).
	Delegable func(goal *model.Goal) bool
	// Members returns delegate-eligible member names for goal (role
	// covers goal, member running). Nil/empty for non-team agents.
	Members func(goal *model.Goal) []string
}

// AuctionBroker issues delegation auctions and reports their outcome.
// The concrete implementation (owned by package agent's Team) emits
// DELEGATION{analyse=true} events and folds AUCTION replies; see §4.6
// "Auction"/"Auction reconciliation".
type AuctionBroker interface {
	Propose(goal *model.Goal, members []string, now time.Time) identity.UniqueId
	// Results reports whether scheduleID has concluded (all bids in or
	// expired), the winning delegate/score if any bid arrived, and
	// whether it concluded via expiry with zero bids.
	Results(scheduleID identity.UniqueId, now time.Time) (done bool, bestDelegate string, bestScore float64, timedOut bool)
}

type auctionWait struct {
	node       *SearchNode
	goalName   string
	scheduleID identity.UniqueId
}

// Search runs one schedule: one-ply expansion of every still-remaining
// root goal, each producing at most one bound SearchNode, chained in
// goal order (§2: "a forward-planner that...produce[s] an optimal
// sequenced chain of intentions").
type Search struct {
	MaxDepth int
	Deps     Deps
	Broker   AuctionBroker

	goals []*model.Goal
	ctx   *belief.Context

	nodes    []*SearchNode
	pending  []*auctionWait
	expanded bool
}

// NewSearch builds a search over goals against ctx.
func NewSearch(goals []*model.Goal, ctx *belief.Context, maxDepth int, deps Deps, broker AuctionBroker) *Search {
	return &Search{MaxDepth: maxDepth, Deps: deps, Broker: broker, goals: goals, ctx: ctx}
}

// Step advances the search by one state-machine pass (§4.6 "States...
// cycle: START → SELECT → EXPAND → AUCTION → COST → PENDING_COST →
// DECONFLICT → BIND → SELECT → … → END"). Call repeatedly (once per
// engine tick for a team waiting on an auction) until it returns true.
func (s *Search) Step(now time.Time) (done bool) {
	if !s.expanded {
		s.expand(now)
		s.deconflictResources()
		s.expanded = true
	}
	s.reconcileAuctions(now)
	if len(s.pending) == 0 {
		s.deconflictDelegates()
		return true
	}
	return false
}

// Run loops Step until the search concludes (used by non-team agents,
// where no delegation candidates ever enter PENDING_COST, and by tests
// with an immediately-resolving broker stub).
func (s *Search) Run(now time.Time) {
	for !s.Step(now) {
	}
}

// expand performs SELECT/EXPAND/AUCTION/COST for every remaining goal
// (§4.6 "Expansion").
func (s *Search) expand(now time.Time) {
	for _, g := range s.goals {
		node := s.expandOne(g, now)
		s.nodes = append(s.nodes, node)
	}
}

func (s *Search) expandOne(g *model.Goal, now time.Time) *SearchNode {
	tactic := s.Deps.TacticFor(g.Template.Name)
	candidates := s.Deps.PlansFor(g.Template.Name)

	var best *SearchNode
	var lastFailure Failure

	for _, plan := range candidates {
		if g.PlanSelection != nil && g.PlanSelection.Excluded(plan.Name) {
			continue
		}
		if !plan.Precond(s.ctx) {
			lastFailure = PlanInvalid
			continue
		}
		unavailable := false
		for _, svc := range plan.RequiredServices {
			if s.Deps.ServiceAvailable == nil || !s.Deps.ServiceAvailable(svc) {
				unavailable = true
				break
			}
		}
		if unavailable {
			lastFailure = ServiceUnavailable
			continue
		}
		simulated := plan.SimulateEffects(s.ctx)
		if simulated.AnyViolated(plan.ResourceLocks) {
			lastFailure = ResourceViolation
			continue
		}

		estimate := s.estimate(g)
		candidate := &SearchNode{
			Goal:          g,
			Plan:          plan,
			Ctx:           simulated,
			CostOfNode:    1.0,
			EstimateToEnd: estimate,
			State:         NodeOpen,
		}
		candidate.recomputeTotal()
		if best == nil || candidate.CostTotal < best.CostTotal {
			best = candidate
		}
	}

	if best != nil {
		return best
	}

	if s.Deps.Delegable != nil && s.Deps.Delegable(g) && s.Broker != nil {
		members := s.Deps.Members(g)
		if len(members) > 0 {
			scheduleID := s.Broker.Propose(g, members, now)
			node := &SearchNode{Goal: g, Plan: nil, Ctx: s.ctx, State: NodePending, AuctionScheduleID: scheduleID}
			s.pending = append(s.pending, &auctionWait{node: node, goalName: g.Template.Name, scheduleID: scheduleID})
			return node
		}
	}

	failure := lastFailure
	if failure == NoFailure {
		failure = PlanInvalid
	}
	return &SearchNode{Goal: g, State: NodeFailed, Failure: failure, EstimateToEnd: FailedCost, CostTotal: FailedCost}
}

// estimate implements §4.6's "Heuristic: when the goal provides one,
// estimateToEnd = max(0, goal.heuristic(context)); otherwise sum unit
// costs for remaining goals."
func (s *Search) estimate(g *model.Goal) float64 {
	if g.Template.Heuristic != nil {
		return g.Heuristic()
	}
	return float64(len(s.goals) - 1)
}

// reconcileAuctions implements §4.6 "Auction reconciliation": folds
// resolved bids into their node, fails timed-out ones with
// AUCTION_BID_TIMEOUT.
func (s *Search) reconcileAuctions(now time.Time) {
	var stillPending []*auctionWait
	for _, w := range s.pending {
		done, delegate, score, timedOut := s.Broker.Results(w.scheduleID, now)
		switch {
		case done:
			w.node.Delegate = delegate
			w.node.CostFromStart += score
			w.node.State = NodeClosed
		case timedOut:
			w.node.State = NodeFailed
			w.node.Failure = AuctionBidTimeout
		default:
			stillPending = append(stillPending, w)
		}
	}
	s.pending = stillPending
}

// deconflictResources implements §4.6 "Deconflict": within this tick's
// candidates, two nodes sharing a resource lock collapse to the cheaper;
// the loser fails with RESOURCE_VIOLATION.
func (s *Search) deconflictResources() {
	holders := make(map[string]*SearchNode)
	for _, n := range s.nodes {
		if n.Plan == nil || n.State == NodeFailed {
			continue
		}
		for _, lock := range n.Plan.ResourceLocks {
			if existing, ok := holders[lock]; ok {
				loser, winner := n, existing
				if n.CostTotal < existing.CostTotal {
					loser, winner = existing, n
				}
				loser.State = NodeFailed
				loser.Failure = ResourceViolation
				holders[lock] = winner
			} else {
				holders[lock] = n
			}
		}
	}
}

// deconflictDelegates implements §4.6's delegate-allocation conflict
// rule: the later node referencing an already-claimed delegate fails
// with DELEGATE_ALLOCATED.
func (s *Search) deconflictDelegates() {
	claimed := make(map[string]bool)
	for _, n := range s.nodes {
		if n.State != NodeClosed || n.Delegate == "" {
			continue
		}
		if claimed[n.Delegate] {
			n.State = NodeFailed
			n.Failure = DelegateAllocated
			continue
		}
		claimed[n.Delegate] = true
	}
}

// BestChain extracts the linear execution chain (§4.6 "Best chain
// extraction"): every successfully bound node, in goal order, with
// CostFromStart recomputed cumulatively so the §8 monotonicity invariant
// holds by construction: n_{i+1}.costFromStart >= n_i.costFromStart +
// n_i.costOfNode.
func (s *Search) BestChain() []*SearchNode {
	var chain []*SearchNode
	for _, n := range s.nodes {
		if n.State == NodeOpen || n.State == NodeClosed {
			chain = append(chain, n)
		}
	}
	cumulative := 0.0
	for _, n := range chain {
		if n.Plan != nil {
			n.CostFromStart = cumulative
		}
		cumulative += n.CostOfNode
		n.recomputeTotal()
	}
	return chain
}

// Failed returns every node that could not be bound, for diagnostics and
// the "remove impossible goals post-schedule" work-around (§9 open
// question; see DESIGN.md for the adopted policy).
func (s *Search) Failed() []*SearchNode {
	var out []*SearchNode
	for _, n := range s.nodes {
		if n.State == NodeFailed {
			out = append(out, n)
		}
	}
	return out
}
