// Package store provides an optional, durable mirror of in-flight
// schedule and auction telemetry, for operators running a JACK engine
// behind a dashboard. This is strictly read-only projection: the belief
// context and event queue that actually drive an agent always stay
// in-memory (§1 non-durability invariant); nothing here is ever read
// back to reconstruct live state.
package store

import (
	"context"

	"github.com/jackagents/jackgo/agent"
)

// IntentionSnapshot mirrors agent.IntentionSnapshot for one live desire,
// flattened to string/primitive fields so it marshals without importing
// package executor's State type into the wire format.
type IntentionSnapshot struct {
	GoalID    string `json:"goal_id"`
	GoalName  string `json:"goal_name"`
	PlanName  string `json:"plan_name,omitempty"`
	Delegated bool   `json:"delegated"`
	State     string `json:"state"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
}

// AuctionSnapshot mirrors one team's agent.CurrentAuction.
type AuctionSnapshot struct {
	GoalName   string             `json:"goal_name"`
	ScheduleID string             `json:"schedule_id"`
	Members    []string           `json:"members"`
	Bids       map[string]float64 `json:"bids"`
	ExpiryUs   int64              `json:"expiry_us"`
}

// AgentSnapshot is one agent's (or team's) schedule/auction telemetry at
// a point in time, the unit Store persists and Get/ListRecent return.
type AgentSnapshot struct {
	AgentName    string              `json:"agent_name"`
	NodeName     string              `json:"node_name"`
	CapturedAtUs int64               `json:"captured_at_us"`
	Intentions   []IntentionSnapshot `json:"intentions"`
	Auctions     []AuctionSnapshot   `json:"auctions,omitempty"`
}

// auctioneer is the narrow view of agent.Team this package needs, so it
// doesn't have to type-switch on *agent.Team directly at every call site.
type auctioneer interface {
	Auctions() []*agent.CurrentAuction
}

// Capture builds an AgentSnapshot from a, and from team's in-flight
// auctions if team is non-nil (team is typically a itself, asserted by
// the caller against *agent.Team; passed separately so this package
// doesn't need a type assertion on every call).
func Capture(nodeName string, a *agent.Agent, team auctioneer, nowUs int64) AgentSnapshot {
	snap := AgentSnapshot{
		AgentName:    a.Handle().Name,
		NodeName:     nodeName,
		CapturedAtUs: nowUs,
	}
	for _, is := range a.Intentions() {
		snap.Intentions = append(snap.Intentions, IntentionSnapshot{
			GoalID:    is.GoalID.String(),
			GoalName:  is.GoalName,
			PlanName:  is.PlanName,
			Delegated: is.Delegated,
			State:     is.State.String(),
			Succeeded: is.Succeeded,
			Failed:    is.Failed,
		})
	}
	if team != nil {
		for _, au := range team.Auctions() {
			bids := make(map[string]float64, len(au.Bids))
			for k, v := range au.Bids {
				bids[k] = v
			}
			goalName := ""
			if au.Goal != nil {
				goalName = au.Goal.Template.Name
			}
			snap.Auctions = append(snap.Auctions, AuctionSnapshot{
				GoalName:   goalName,
				ScheduleID: au.ScheduleID.String(),
				Members:    append([]string(nil), au.Members...),
				Bids:       bids,
				ExpiryUs:   au.ExpiryUs,
			})
		}
	}
	return snap
}

// SnapshotSummary is the lightweight projection ListRecent returns,
// avoiding a full Get per listed agent.
type SnapshotSummary struct {
	AgentName      string `json:"agent_name"`
	CapturedAtUs   int64  `json:"captured_at_us"`
	IntentionCount int    `json:"intention_count"`
	AuctionCount   int    `json:"auction_count"`
}

// ExecutionStore is the durable telemetry mirror's storage contract.
// RedisExecutionStore is the concrete implementation; a NoOp stand-in is
// used when no store is configured (§11 "optional").
type ExecutionStore interface {
	Store(ctx context.Context, snap AgentSnapshot) error
	Get(ctx context.Context, agentName string) (*AgentSnapshot, error)
	ListRecent(ctx context.Context, limit int) ([]SnapshotSummary, error)
	Close() error
}
