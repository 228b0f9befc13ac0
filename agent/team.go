package agent

import (
	"math"
	"time"

	"github.com/jackagents/jackgo/core"
	"github.com/jackagents/jackgo/event"
	"github.com/jackagents/jackgo/identity"
	"github.com/jackagents/jackgo/message"
	"github.com/jackagents/jackgo/model"
	"github.com/jackagents/jackgo/schedule"
)

// SharedEntry is one member's published belief, as stored in a team's
// per-schema vector (§4.8 shared-beliefsets).
type SharedEntry struct {
	Member        string
	Msg           *message.Message
	LastUpdatedUs int64
}

// CurrentAuction tracks one in-flight delegation round (§4.6 "The team
// stores a CurrentAuction{goal, scheduleId, totalDelegations, bids,
// expiryTimePoint}").
type CurrentAuction struct {
	Goal       *model.Goal
	ScheduleID identity.UniqueId
	Members    []string
	Bids       map[string]float64
	ExpiryUs   int64
}

// Team is an Agent that additionally manages a member list and owns
// delegation auctions (§3 "A Team additionally holds a members list...",
// §4.8).
type Team struct {
	*Agent

	Members       map[string]*Agent
	auctions      map[identity.UniqueId]*CurrentAuction
	auctionExpiry time.Duration

	shared map[string][]SharedEntry
}

// NewTeam builds a Team and wires its Agent's delegation hooks
// (Deps.Delegable/Members, the AuctionBroker, and the AUCTION/
// SHAREBELIEFSET sinks) back to this team's own bookkeeping.
func NewTeam(nodeName string, tpl *Template, logger core.ComponentAwareLogger) *Team {
	t := &Team{
		Agent:         NewAgent(nodeName, tpl, logger),
		Members:       make(map[string]*Agent),
		auctions:      make(map[identity.UniqueId]*CurrentAuction),
		auctionExpiry: schedule.DefaultAuctionExpiry,
		shared:        make(map[string][]SharedEntry),
	}
	t.Agent.delegable = t.delegable
	t.Agent.members = t.getDelegates
	t.Agent.broker = t
	t.Agent.auctionSink = t.handleAuctionReply
	t.Agent.shareSink = t.handleShareBeliefSet
	t.Agent.onDelegateBound = t.delegateGoal
	return t
}

// AddMember enrolls m as a delegate-eligible team member.
func (t *Team) AddMember(m *Agent) {
	t.Members[m.Handle().Name] = m
	t.markDirty(schedule.MemberAdded)
}

// RemoveMember drops m from the team, forcing an immediate schedule
// rebuild (§4.6 "MEMBER_REMOVED require immediate replacement").
func (t *Team) RemoveMember(name string) {
	if _, ok := t.Members[name]; ok {
		delete(t.Members, name)
		t.markDirty(schedule.MemberRemoved)
	}
}

// delegable reports whether goal has no applicable local plan at all,
// making it a delegation candidate (§4.6 expansion).
func (t *Team) delegable(goal *model.Goal) bool {
	return len(t.template.Plans[goal.Template.Name]) == 0
}

// getDelegates filters members by (role supports goal) ∧ (running) (§4.8).
// Agents carry no separate availability flag, so availability is not
// checked, and the result is recomputed on every call rather than cached.
func (t *Team) getDelegates(goal *model.Goal) []string {
	var names []string
	for name, m := range t.Members {
		if !roleSupports(m.template.Roles, goal.Template.Name) {
			continue
		}
		if m.State() != Running {
			continue
		}
		names = append(names, name)
	}
	return names
}

func roleSupports(roles []string, goalName string) bool {
	for _, r := range roles {
		if r == goalName {
			return true
		}
	}
	return false
}

// Propose implements schedule.AuctionBroker: emits DELEGATION{analyse=true}
// to each eligible member and opens a CurrentAuction (§4.6 "Auction").
func (t *Team) Propose(goal *model.Goal, members []string, now time.Time) identity.UniqueId {
	scheduleID := identity.New()
	auction := &CurrentAuction{
		Goal: goal, ScheduleID: scheduleID, Members: members,
		Bids:     make(map[string]float64),
		ExpiryUs: now.UnixMicro() + t.auctionExpiry.Microseconds(),
	}
	t.auctions[scheduleID] = auction
	for _, name := range members {
		m, ok := t.Members[name]
		if !ok {
			continue
		}
		ev := event.New(event.Delegation, t.nodeName, t.Handle(), m.Handle(), now.UnixMicro())
		ev.Delegation = event.DelegationPayload{
			GoalName: goal.Template.Name, Params: goal.Params,
			Analyse: true, Team: t.Handle(), ScheduleID: scheduleID,
		}
		m.Enqueue(ev)
	}
	return scheduleID
}

// Results implements schedule.AuctionBroker (§4.6 "Auction reconciliation").
func (t *Team) Results(scheduleID identity.UniqueId, now time.Time) (done bool, bestDelegate string, bestScore float64, timedOut bool) {
	auction, ok := t.auctions[scheduleID]
	if !ok {
		return true, "", 0, true
	}
	finished := len(auction.Bids) == len(auction.Members) || now.UnixMicro() >= auction.ExpiryUs
	if !finished {
		return false, "", 0, false
	}
	delete(t.auctions, scheduleID)
	if len(auction.Bids) == 0 {
		return true, "", 0, true
	}
	best := ""
	bestVal := math.Inf(1)
	for name, score := range auction.Bids {
		if score < bestVal {
			bestVal = score
			best = name
		}
	}
	return true, best, bestVal, false
}

// handleAuctionReply folds one member's AUCTION reply into its
// CurrentAuction; stale scheduleIds (the auction already concluded or was
// never ours) are dropped (§4.6 "Stale bids ... are dropped").
func (t *Team) handleAuctionReply(ev *event.Event) {
	bid := ev.Auction
	auction, ok := t.auctions[bid.ScheduleID]
	if !ok {
		return
	}
	auction.Bids[ev.Sender.Name] = bid.Bid
}

// delegateGoal implements §4.8 delegateGoal(handle, delegate, params):
// commit the chosen member and tell every other member (whether or not it
// bid) to drop the goal, belt-and-braces against stale routing.
func (t *Team) delegateGoal(handle identity.Handle, delegate string, params *message.Message, goalName string) {
	now := t.internalClockUs
	for name, m := range t.Members {
		if name == delegate {
			ev := event.New(event.Delegation, t.nodeName, t.Handle(), m.Handle(), now)
			ev.Delegation = event.DelegationPayload{GoalName: goalName, Params: params, Analyse: false, Team: t.Handle()}
			m.Enqueue(ev)
			continue
		}
		drop := event.New(event.Drop, t.nodeName, t.Handle(), m.Handle(), now)
		drop.Drop = event.DropPayload{GoalHandle: handle, Mode: event.DropNormal, Reason: "delegated elsewhere"}
		m.Enqueue(drop)
	}
}

// handleShareBeliefSet stores one member's published belief into this
// team's per-schema vector (§4.8 shared-beliefsets).
func (t *Team) handleShareBeliefSet(ev *event.Event) {
	s := ev.ShareBeliefSet
	t.shared[s.SchemaName] = append(filterOutMember(t.shared[s.SchemaName], s.Member), SharedEntry{
		Member: s.Member, Msg: s.Msg, LastUpdatedUs: s.LastUpdatedUs,
	})
}

// SharedBeliefs returns this team's stored vector for schemaName, for
// planners and tests to inspect.
func (t *Team) SharedBeliefs(schemaName string) []SharedEntry { return t.shared[schemaName] }

// Auctions snapshots every in-flight delegation round, for the jackd
// inspect CLI and store.RedisExecutionStore's telemetry mirror.
func (t *Team) Auctions() []*CurrentAuction {
	out := make([]*CurrentAuction, 0, len(t.auctions))
	for _, a := range t.auctions {
		out = append(out, a)
	}
	return out
}

func filterOutMember(entries []SharedEntry, member string) []SharedEntry {
	out := make([]SharedEntry, 0, len(entries))
	for _, e := range entries {
		if e.Member != member {
			out = append(out, e)
		}
	}
	return out
}
