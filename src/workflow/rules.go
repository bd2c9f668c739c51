// Package workflow drives the booking state machine. Every status write
// goes through Engine.ApplyTransition and commits as a conditional
// update keyed on the observed status, so concurrent actors can never
// produce a lost update.
package workflow

import (
	"spruce/src/types"
	"time"
)

type Edge struct {
	From types.BookingStatus
	To   types.BookingStatus
}

// Timeout is the maximum dwell time for a state and the transition the
// watchdog applies when the booking is still sitting there at fire time.
type Timeout struct {
	Dwell    time.Duration
	Fallback types.BookingStatus
}

type Party string

const (
	PARTY_CUSTOMER Party = "customer"
	PARTY_WORKER   Party = "worker"
)

// Rules is the full machine configuration. It is built once at startup
// and injected into the engine; nothing mutates it afterwards, so tests
// can run alternate policies against the same engine.
type Rules struct {
	Transitions map[types.BookingStatus][]types.BookingStatus
	Actors      map[Edge][]types.Actor
	Timeouts    map[types.BookingStatus]Timeout
	Recipients  map[types.BookingStatus][]Party
	Refunds     RefundPolicy
}

func DefaultRules() *Rules {
	return &Rules{
		Transitions: map[types.BookingStatus][]types.BookingStatus{
			types.BOOKING_REQUESTED:   {types.BOOKING_CONFIRMED, types.BOOKING_CANCELED},
			types.BOOKING_CONFIRMED:   {types.BOOKING_ASSIGNED, types.BOOKING_CANCELED},
			types.BOOKING_ASSIGNED:    {types.BOOKING_EN_ROUTE, types.BOOKING_NO_SHOW, types.BOOKING_CANCELED},
			types.BOOKING_EN_ROUTE:    {types.BOOKING_ARRIVED, types.BOOKING_NO_SHOW, types.BOOKING_CANCELED},
			types.BOOKING_ARRIVED:     {types.BOOKING_IN_PROGRESS, types.BOOKING_NO_SHOW, types.BOOKING_CANCELED},
			types.BOOKING_IN_PROGRESS: {types.BOOKING_COMPLETED, types.BOOKING_DISPUTED, types.BOOKING_CANCELED},
			types.BOOKING_COMPLETED:   {types.BOOKING_PAID, types.BOOKING_DISPUTED},
			types.BOOKING_PAID:        {types.BOOKING_REVIEWED, types.BOOKING_DISPUTED},
			types.BOOKING_REVIEWED:    {},
			types.BOOKING_CANCELED:    {},
			types.BOOKING_NO_SHOW:     {types.BOOKING_CANCELED},
			types.BOOKING_DISPUTED:    {types.BOOKING_COMPLETED, types.BOOKING_CANCELED},
		},
		Actors: map[Edge][]types.Actor{
			{types.BOOKING_REQUESTED, types.BOOKING_CONFIRMED}:     {types.ACTOR_WORKER, types.ACTOR_SYSTEM, types.ACTOR_ADMIN},
			{types.BOOKING_REQUESTED, types.BOOKING_CANCELED}:      nil,
			{types.BOOKING_CONFIRMED, types.BOOKING_ASSIGNED}:      {types.ACTOR_WORKER, types.ACTOR_SYSTEM, types.ACTOR_ADMIN},
			{types.BOOKING_CONFIRMED, types.BOOKING_CANCELED}:      nil,
			{types.BOOKING_ASSIGNED, types.BOOKING_EN_ROUTE}:       {types.ACTOR_WORKER},
			{types.BOOKING_ASSIGNED, types.BOOKING_NO_SHOW}:        {types.ACTOR_SYSTEM, types.ACTOR_ADMIN, types.ACTOR_CUSTOMER},
			{types.BOOKING_ASSIGNED, types.BOOKING_CANCELED}:       nil,
			{types.BOOKING_EN_ROUTE, types.BOOKING_ARRIVED}:        {types.ACTOR_WORKER},
			{types.BOOKING_EN_ROUTE, types.BOOKING_NO_SHOW}:        {types.ACTOR_SYSTEM, types.ACTOR_ADMIN, types.ACTOR_CUSTOMER},
			{types.BOOKING_EN_ROUTE, types.BOOKING_CANCELED}:       nil,
			{types.BOOKING_ARRIVED, types.BOOKING_IN_PROGRESS}:     {types.ACTOR_WORKER},
			{types.BOOKING_ARRIVED, types.BOOKING_NO_SHOW}:         {types.ACTOR_SYSTEM, types.ACTOR_ADMIN, types.ACTOR_CUSTOMER},
			{types.BOOKING_ARRIVED, types.BOOKING_CANCELED}:        nil,
			{types.BOOKING_IN_PROGRESS, types.BOOKING_COMPLETED}:   {types.ACTOR_WORKER, types.ACTOR_ADMIN},
			{types.BOOKING_IN_PROGRESS, types.BOOKING_DISPUTED}:    {types.ACTOR_CUSTOMER, types.ACTOR_ADMIN, types.ACTOR_SYSTEM},
			{types.BOOKING_IN_PROGRESS, types.BOOKING_CANCELED}:    nil,
			{types.BOOKING_COMPLETED, types.BOOKING_PAID}:          {types.ACTOR_SYSTEM, types.ACTOR_ADMIN},
			{types.BOOKING_COMPLETED, types.BOOKING_DISPUTED}:      {types.ACTOR_CUSTOMER, types.ACTOR_ADMIN},
			{types.BOOKING_PAID, types.BOOKING_REVIEWED}:           {types.ACTOR_CUSTOMER, types.ACTOR_SYSTEM},
			{types.BOOKING_PAID, types.BOOKING_DISPUTED}:           {types.ACTOR_CUSTOMER, types.ACTOR_ADMIN},
			{types.BOOKING_NO_SHOW, types.BOOKING_CANCELED}:        {types.ACTOR_SYSTEM, types.ACTOR_ADMIN},
			{types.BOOKING_DISPUTED, types.BOOKING_COMPLETED}:      {types.ACTOR_ADMIN},
			{types.BOOKING_DISPUTED, types.BOOKING_CANCELED}:       {types.ACTOR_ADMIN},
		},
		Timeouts: map[types.BookingStatus]Timeout{
			types.BOOKING_REQUESTED:   {Dwell: 30 * time.Minute, Fallback: types.BOOKING_CANCELED},
			types.BOOKING_CONFIRMED:   {Dwell: 24 * time.Hour, Fallback: types.BOOKING_CANCELED},
			types.BOOKING_ASSIGNED:    {Dwell: 15 * time.Minute, Fallback: types.BOOKING_NO_SHOW},
			types.BOOKING_EN_ROUTE:    {Dwell: 2 * time.Hour, Fallback: types.BOOKING_NO_SHOW},
			types.BOOKING_ARRIVED:     {Dwell: time.Hour, Fallback: types.BOOKING_NO_SHOW},
			types.BOOKING_IN_PROGRESS: {Dwell: 24 * time.Hour, Fallback: types.BOOKING_DISPUTED},
			types.BOOKING_COMPLETED:   {Dwell: 72 * time.Hour, Fallback: types.BOOKING_PAID},
			types.BOOKING_PAID:        {Dwell: 7 * 24 * time.Hour, Fallback: types.BOOKING_REVIEWED},
			types.BOOKING_NO_SHOW:     {Dwell: 24 * time.Hour, Fallback: types.BOOKING_CANCELED},
		},
		Recipients: map[types.BookingStatus][]Party{
			types.BOOKING_CONFIRMED:   {PARTY_CUSTOMER},
			types.BOOKING_ASSIGNED:    {PARTY_CUSTOMER, PARTY_WORKER},
			types.BOOKING_EN_ROUTE:    {PARTY_CUSTOMER},
			types.BOOKING_ARRIVED:     {PARTY_CUSTOMER},
			types.BOOKING_IN_PROGRESS: {PARTY_CUSTOMER},
			types.BOOKING_COMPLETED:   {PARTY_CUSTOMER, PARTY_WORKER},
			types.BOOKING_PAID:        {PARTY_WORKER},
			types.BOOKING_REVIEWED:    {PARTY_WORKER},
			types.BOOKING_CANCELED:    {PARTY_CUSTOMER, PARTY_WORKER},
			types.BOOKING_NO_SHOW:     {PARTY_CUSTOMER, PARTY_WORKER},
			types.BOOKING_DISPUTED:    {PARTY_CUSTOMER, PARTY_WORKER},
		},
		Refunds: DefaultRefundPolicy(),
	}
}

// CanTransition reports whether the edge exists in the table.
func (r *Rules) CanTransition(from, to types.BookingStatus) bool {
	for _, next := range r.Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ActorAllowed reports whether the actor may drive the edge. A nil
// entry means any actor.
func (r *Rules) ActorAllowed(from, to types.BookingStatus, actor types.Actor) bool {
	allowed, ok := r.Actors[Edge{from, to}]
	if !ok || allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == actor {
			return true
		}
	}
	return false
}

func (r *Rules) IsTerminal(s types.BookingStatus) bool {
	return len(r.Transitions[s]) == 0
}

func (r *Rules) TimeoutFor(s types.BookingStatus) (Timeout, bool) {
	t, ok := r.Timeouts[s]
	return t, ok
}
