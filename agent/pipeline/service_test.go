package pipeline

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sorrisolabs/agendabot/agent/contract"
	"github.com/sorrisolabs/agendabot/agent/deadletter"
	"github.com/sorrisolabs/agendabot/agent/engine"
	"github.com/sorrisolabs/agendabot/agent/idempotency"
	"github.com/sorrisolabs/agendabot/agent/knowledge"
	"github.com/sorrisolabs/agendabot/agent/lock"
	nodex "github.com/sorrisolabs/agendabot/agent/nodes"
	"github.com/sorrisolabs/agendabot/agent/schedule"
	statex "github.com/sorrisolabs/agendabot/agent/state"
	templatex "github.com/sorrisolabs/agendabot/agent/template"
)

var testNow = time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

type scriptedInterpreter struct {
	mu    sync.Mutex
	queue []func() (contract.Interpretation, error)
	calls int
}

func (f *scriptedInterpreter) push(res contract.Interpretation, err error) {
	f.queue = append(f.queue, func() (contract.Interpretation, error) { return res, err })
}

func (f *scriptedInterpreter) Extract(context.Context, string, time.Time) (contract.Interpretation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.queue) == 0 {
		return contract.Interpretation{Intent: contract.IntentUnknown}, nil
	}
	next := f.queue[0]
	f.queue = f.queue[1:]
	return next()
}

type passthroughGenerator struct{}

func (passthroughGenerator) Humanize(_ context.Context, _ contract.Action, resolved string) (string, error) {
	return resolved, nil
}

type scriptedExecutor struct {
	result contract.ToolResult
	calls  []string
}

func (f *scriptedExecutor) Execute(_ context.Context, tool string, _ map[string]string) contract.ToolResult {
	f.calls = append(f.calls, tool)
	return f.result
}

type memorySink struct {
	mu      sync.Mutex
	records []contract.DeadLetter
	retried map[int64]bool
}

func (s *memorySink) Record(_ context.Context, dl contract.DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, dl)
	return nil
}

func (s *memorySink) ListUnretried(_ context.Context, limit int) ([]deadletter.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]deadletter.Record, 0, limit)
	for i, dl := range s.records {
		id := int64(i + 1)
		if s.retried[id] {
			continue
		}
		out = append(out, deadletter.Record{
			ID:          id,
			MessageID:   dl.MessageID,
			TraceID:     dl.TraceID,
			ErrorKind:   dl.ErrorKind,
			ErrorDetail: dl.ErrorDetail,
			Payload:     dl.Payload,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memorySink) MarkRetried(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.retried == nil {
		s.retried = make(map[int64]bool)
	}
	s.retried[id] = true
	return nil
}

func (s *memorySink) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type harness struct {
	svc         *Service
	store       *statex.RedisStore
	interpreter *scriptedInterpreter
	executor    *scriptedExecutor
	sink        *memorySink
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := statex.NewRedisStore(client)
	guard := idempotency.NewRedisGuard(client)
	locker := lock.NewRedisLocker(client)

	interpreter := &scriptedInterpreter{}
	executor := &scriptedExecutor{result: contract.ToolResult{Success: true, ReferenceID: "APPT-TEST0001"}}
	sink := &memorySink{}

	cal := schedule.NewCalendar(schedule.Config{HorizonDays: 90, OpenHour: 8, CloseHour: 18})
	eng := engine.New(cal, knowledge.NewBase(), engine.Config{ConfidenceFloor: 0.6})

	svc, err := New(
		store, guard, locker,
		interpreter, passthroughGenerator{}, executor,
		eng, templatex.NewCatalog(), sink,
		Config{ConversationTTL: time.Hour, LockTTL: 10 * time.Second},
		zerolog.Nop(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	svc.now = func() time.Time { return testNow }

	return &harness{svc: svc, store: store, interpreter: interpreter, executor: executor, sink: sink}
}

func inbound(id, body string) nodex.GraphInput {
	return nodex.GraphInput{
		Message: contract.InboundMessage{
			MessageID: id,
			From:      "+5511999990000",
			Body:      body,
			Timestamp: testNow,
		},
	}
}

func TestScheduleFlowToBooking(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(contract.Interpretation{
		Intent:     contract.IntentSchedule,
		Entities:   map[string]string{"date": "2026-09-10"},
		Confidence: 0.9,
	}, nil)
	reply, err := h.svc.Handle(ctx, inbound("wamid.FLOW000000000001", "Quero marcar dia 10"))
	if err != nil {
		t.Fatalf("turn 1: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "2026-09-10") {
		t.Fatalf("turn 1 must ask for a time mentioning the date, got %q", reply.ReplyText)
	}

	conv, err := h.store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load after turn 1: %v", err)
	}
	if conv.Current != statex.StateDateCollected {
		t.Fatalf("state after turn 1 = %s", conv.Current)
	}

	h.interpreter.push(contract.Interpretation{
		Intent:     contract.IntentSchedule,
		Entities:   map[string]string{"time": "14:00"},
		Confidence: 0.9,
	}, nil)
	reply, err = h.svc.Handle(ctx, inbound("wamid.FLOW000000000002", "Pode ser 14h"))
	if err != nil {
		t.Fatalf("turn 2: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "2026-09-10") || !strings.Contains(reply.ReplyText, "14:00") {
		t.Fatalf("turn 2 must echo date and time, got %q", reply.ReplyText)
	}

	h.interpreter.push(contract.Interpretation{Intent: contract.IntentConfirm, Confidence: 0.95}, nil)
	reply, err = h.svc.Handle(ctx, inbound("wamid.FLOW000000000003", "Sim, pode confirmar"))
	if err != nil {
		t.Fatalf("turn 3: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "APPT-TEST0001") {
		t.Fatalf("turn 3 must carry the confirmation code, got %q", reply.ReplyText)
	}
	if reply.AppointmentRef != "APPT-TEST0001" {
		t.Fatalf("appointment ref = %q", reply.AppointmentRef)
	}

	conv, err = h.store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load after turn 3: %v", err)
	}
	if conv.Current != statex.StateScheduled {
		t.Fatalf("state after turn 3 = %s", conv.Current)
	}
	if code, _ := conv.Get(contract.EntityCode); code != "APPT-TEST0001" {
		t.Fatalf("stored confirmation code = %q", code)
	}
	if h.sink.len() != 0 {
		t.Fatalf("clean flow must not dead-letter")
	}
}

func TestDuplicateDelivery(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(contract.Interpretation{Intent: contract.IntentGreeting, Confidence: 0.9}, nil)
	first, err := h.svc.Handle(ctx, inbound("wamid.DUP0000000000001", "Oi"))
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Status != contract.StatusProcessed || first.ReplyText == "" {
		t.Fatalf("first delivery must be processed with text, got %+v", first)
	}

	second, err := h.svc.Handle(ctx, inbound("wamid.DUP0000000000001", "Oi"))
	if err != nil {
		t.Fatalf("retry delivery: %v", err)
	}
	if second.Status != contract.StatusDuplicate {
		t.Fatalf("retry status = %s", second.Status)
	}
	if second.ReplyText != "" {
		t.Fatalf("retry must not produce outbound text")
	}
	if h.interpreter.calls != 1 {
		t.Fatalf("retry must not reach the interpreter, calls = %d", h.interpreter.calls)
	}
}

func TestToolFailureKeepsState(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(contract.Interpretation{
		Intent:     contract.IntentSchedule,
		Entities:   map[string]string{"date": "2026-09-10", "time": "14:00"},
		Confidence: 0.9,
	}, nil)
	if _, err := h.svc.Handle(ctx, inbound("wamid.TOOL000000000001", "Dia 10 às 14h")); err != nil {
		t.Fatalf("setup turn: %v", err)
	}

	h.executor.result = contract.ToolResult{Err: "calendar backend down"}
	h.interpreter.push(contract.Interpretation{Intent: contract.IntentConfirm, Confidence: 0.95}, nil)
	reply, err := h.svc.Handle(ctx, inbound("wamid.TOOL000000000002", "Sim"))
	if err != nil {
		t.Fatalf("failing turn: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "agenda") {
		t.Fatalf("expected the retry template, got %q", reply.ReplyText)
	}

	conv, err := h.store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conv.Current != statex.StateTimeCollected {
		t.Fatalf("tool failure must not advance state, got %s", conv.Current)
	}
	if _, ok := conv.Get(contract.EntityCode); ok {
		t.Fatalf("no confirmation code may be stored on failure")
	}
	if h.sink.len() != 1 {
		t.Fatalf("tool failure must dead-letter once, got %d", h.sink.len())
	}
}

func TestInterpretationFailureFallsBack(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(
		contract.Interpretation{Intent: contract.IntentUnknown},
		contract.ErrInterpretation,
	)
	reply, err := h.svc.Handle(ctx, inbound("wamid.NLU0000000000001", "asdf"))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "problema técnico") {
		t.Fatalf("expected the fallback template, got %q", reply.ReplyText)
	}
	if h.sink.len() != 1 {
		t.Fatalf("interpretation failure must dead-letter, got %d", h.sink.len())
	}
}

func TestMalformedPayloadRejected(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	in := inbound("short", "Oi")

	if _, err := h.svc.Handle(context.Background(), in); err == nil {
		t.Fatalf("short message id must be rejected")
	}
	if h.sink.len() != 0 {
		t.Fatalf("invalid input must not dead-letter")
	}
}

func TestSlotConflictOffersAlternatives(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(contract.Interpretation{
		Intent:     contract.IntentSchedule,
		Entities:   map[string]string{"date": "2026-09-10", "time": "14:00"},
		Confidence: 0.9,
	}, nil)
	if _, err := h.svc.Handle(ctx, inbound("wamid.CONF000000000001", "Dia 10 às 14h")); err != nil {
		t.Fatalf("setup turn: %v", err)
	}

	h.executor.result = contract.ToolResult{
		Err:          "slot already taken",
		Alternatives: []string{"09:00", "15:00"},
	}
	h.interpreter.push(contract.Interpretation{Intent: contract.IntentConfirm, Confidence: 0.95}, nil)
	reply, err := h.svc.Handle(ctx, inbound("wamid.CONF000000000002", "Sim"))
	if err != nil {
		t.Fatalf("conflict turn: %v", err)
	}
	if !strings.Contains(reply.ReplyText, "09:00") || !strings.Contains(reply.ReplyText, "15:00") {
		t.Fatalf("conflict reply must offer the open slots, got %q", reply.ReplyText)
	}

	conv, err := h.store.Load(ctx, "+5511999990000")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if conv.Current != statex.StateDateCollected {
		t.Fatalf("conflict must step back to time collection, got %s", conv.Current)
	}
	if _, ok := conv.Get(contract.EntityTime); ok {
		t.Fatalf("the conflicting time must be dropped")
	}
	if date, _ := conv.Get(contract.EntityDate); date != "2026-09-10" {
		t.Fatalf("the date must survive the conflict, got %q", date)
	}
	if h.sink.len() != 0 {
		t.Fatalf("a slot conflict is not a defect, got %d dead letters", h.sink.len())
	}
}

func TestReplayDeadLetters(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	ctx := context.Background()

	h.interpreter.push(
		contract.Interpretation{Intent: contract.IntentUnknown},
		contract.ErrInterpretation,
	)
	if _, err := h.svc.Handle(ctx, inbound("wamid.RPLY000000000001", "Oi")); err != nil {
		t.Fatalf("failing turn: %v", err)
	}
	if h.sink.len() != 1 {
		t.Fatalf("expected one dead letter, got %d", h.sink.len())
	}

	h.interpreter.push(contract.Interpretation{Intent: contract.IntentGreeting, Confidence: 0.9}, nil)
	replayed, err := h.svc.Replay(ctx, h.sink, 10)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed != 1 {
		t.Fatalf("replayed = %d", replayed)
	}
	if h.interpreter.calls != 2 {
		t.Fatalf("replay must run the full pipeline again, interpreter calls = %d", h.interpreter.calls)
	}
	if h.sink.len() != 1 {
		t.Fatalf("a clean replay must not dead-letter again, got %d", h.sink.len())
	}

	replayed, err = h.svc.Replay(ctx, h.sink, 10)
	if err != nil {
		t.Fatalf("second replay: %v", err)
	}
	if replayed != 0 {
		t.Fatalf("retried records must not replay twice, got %d", replayed)
	}
}
