package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

func TestMemoryStore_CommitAndLoad(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.SaveRoster(ctx, []types.Identity{"0xb1"}, types.Event{Seq: 1, Kind: types.EventRosterChanged}); err != nil {
		t.Fatal(err)
	}
	m := testMutation(types.MutationPropose)
	if err := s.CommitMutation(ctx, m, nil); err != nil {
		t.Fatal(err)
	}

	m.Action.Approvals[0] = "0xff"
	state, err := s.LoadState(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(state.Roster) != 1 || len(state.Actions) != 1 || state.LastSeq != 2 {
		t.Fatalf("state=%+v", state)
	}
	if state.Actions[0].Approvals[0] != "0xb1" {
		t.Fatal("store aliased the caller's action")
	}

	approve := testMutation(types.MutationApprove)
	approve.Action.Approvals = []types.Identity{"0xb1", "0xb2"}
	approve.Approver = "0xb2"
	approve.Events[0].Seq = 3
	if err := s.CommitMutation(ctx, approve, nil); err != nil {
		t.Fatal(err)
	}
	state, _ = s.LoadState(ctx)
	if len(state.Actions[0].Approvals) != 2 || state.LastSeq != 3 {
		t.Fatalf("state=%+v", state)
	}
}

func TestMemoryStore_CommitRejects(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	gap := testMutation(types.MutationPropose)
	gap.Action.ID = 1
	if err := s.CommitMutation(ctx, gap, nil); err == nil {
		t.Fatal("expected dense id error")
	}
	if err := s.CommitMutation(ctx, testMutation(types.MutationApprove), nil); err == nil {
		t.Fatal("expected not found")
	}
	if err := s.CommitMutation(ctx, testMutation("REVOKE"), nil); err == nil {
		t.Fatal("expected unknown kind")
	}

	errEffect := errors.New("reverted")
	if err := s.CommitMutation(ctx, testMutation(types.MutationPropose), func(context.Context) error { return errEffect }); !errors.Is(err, errEffect) {
		t.Fatalf("err=%v", err)
	}
	state, _ := s.LoadState(ctx)
	if len(state.Actions) != 0 || state.LastSeq != 0 {
		t.Fatalf("failed effect left state: %+v", state)
	}
}

func TestMemoryStore_ListEvents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for seq := int64(1); seq <= 5; seq++ {
		if err := s.SaveRoster(ctx, nil, types.Event{Seq: seq}); err != nil {
			t.Fatal(err)
		}
	}

	cases := []struct {
		after int64
		limit int
		want  []int64
	}{
		{after: 0, limit: 2, want: []int64{1, 2}},
		{after: 3, limit: 10, want: []int64{4, 5}},
		{after: 5, limit: 10, want: []int64{}},
		{after: 0, limit: 0, want: []int64{}},
	}
	for _, tc := range cases {
		got, err := s.ListEvents(ctx, tc.after, tc.limit)
		if err != nil {
			t.Fatal(err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("after=%d limit=%d got=%d", tc.after, tc.limit, len(got))
		}
		for i := range got {
			if got[i].Seq != tc.want[i] {
				t.Fatalf("after=%d limit=%d got seq %d", tc.after, tc.limit, got[i].Seq)
			}
		}
	}
}
