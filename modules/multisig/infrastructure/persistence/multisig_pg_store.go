package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/ports"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
)

type pgBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// MultisigPGStore persists one board's roster, ledger and audit events. Every
// write runs in its own transaction; CommitMutation runs the execution
// effect before COMMIT so a failed target call leaves no trace.
type MultisigPGStore struct {
	pool    pgBeginner
	boardID string
}

func NewMultisigPGStore(pool pgBeginner, boardID string) *MultisigPGStore {
	return &MultisigPGStore{pool: pool, boardID: boardID}
}

var _ ports.LedgerStore = (*MultisigPGStore)(nil)

const Schema = `
CREATE SCHEMA IF NOT EXISTS multisig;

CREATE TABLE IF NOT EXISTS multisig.roster_members (
  board_id text NOT NULL,
  position int NOT NULL,
  member text NOT NULL,
  PRIMARY KEY (board_id, position),
  CONSTRAINT roster_members_unique UNIQUE (board_id, member)
);

CREATE TABLE IF NOT EXISTS multisig.actions (
  board_id text NOT NULL,
  action_id bigint NOT NULL CHECK (action_id >= 0),
  target text NOT NULL CHECK (target <> ''),
  description text NOT NULL,
  payload bytea NOT NULL,
  executed boolean NOT NULL DEFAULT false,
  PRIMARY KEY (board_id, action_id)
);

CREATE TABLE IF NOT EXISTS multisig.action_approvals (
  board_id text NOT NULL,
  action_id bigint NOT NULL,
  position int NOT NULL,
  approver text NOT NULL,
  PRIMARY KEY (board_id, action_id, position),
  CONSTRAINT action_approvals_unique_approver UNIQUE (board_id, action_id, approver),
  FOREIGN KEY (board_id, action_id) REFERENCES multisig.actions (board_id, action_id)
);

CREATE TABLE IF NOT EXISTS multisig.events (
  board_id text NOT NULL,
  seq bigint NOT NULL,
  event_uuid uuid NOT NULL UNIQUE,
  kind text NOT NULL,
  action_id bigint,
  body jsonb NOT NULL,
  created_at timestamptz NOT NULL,
  PRIMARY KEY (board_id, seq)
);
`

func (s *MultisigPGStore) EnsureSchema(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, Schema); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *MultisigPGStore) begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `SELECT set_config('app.current_board', $1, true);`, s.boardID); err != nil {
		_ = tx.Rollback(context.Background())
		return nil, err
	}
	return tx, nil
}

func (s *MultisigPGStore) LoadState(ctx context.Context) (types.LedgerState, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return types.LedgerState{}, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	var state types.LedgerState

	rows, err := tx.Query(ctx, `
SELECT member
FROM multisig.roster_members
WHERE board_id = $1
ORDER BY position ASC
`, s.boardID)
	if err != nil {
		return types.LedgerState{}, err
	}
	for rows.Next() {
		var member string
		if err := rows.Scan(&member); err != nil {
			rows.Close()
			return types.LedgerState{}, err
		}
		state.Roster = append(state.Roster, types.Identity(member))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.LedgerState{}, err
	}

	rows, err = tx.Query(ctx, `
SELECT action_id, target, description, payload, executed
FROM multisig.actions
WHERE board_id = $1
ORDER BY action_id ASC
`, s.boardID)
	if err != nil {
		return types.LedgerState{}, err
	}
	for rows.Next() {
		var a types.Action
		var id int64
		var target string
		if err := rows.Scan(&id, &target, &a.Description, &a.Payload, &a.Executed); err != nil {
			rows.Close()
			return types.LedgerState{}, err
		}
		a.ID = types.ActionID(id)
		a.Target = types.Identity(target)
		state.Actions = append(state.Actions, a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.LedgerState{}, err
	}

	rows, err = tx.Query(ctx, `
SELECT action_id, approver
FROM multisig.action_approvals
WHERE board_id = $1
ORDER BY action_id ASC, position ASC
`, s.boardID)
	if err != nil {
		return types.LedgerState{}, err
	}
	for rows.Next() {
		var id int64
		var approver string
		if err := rows.Scan(&id, &approver); err != nil {
			rows.Close()
			return types.LedgerState{}, err
		}
		if id < 0 || id >= int64(len(state.Actions)) || state.Actions[id].ID != types.ActionID(id) {
			rows.Close()
			return types.LedgerState{}, fmt.Errorf("multisig: approval references unknown action %d", id)
		}
		state.Actions[id].Approvals = append(state.Actions[id].Approvals, types.Identity(approver))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.LedgerState{}, err
	}

	if err := tx.QueryRow(ctx, `
SELECT COALESCE(MAX(seq), 0)
FROM multisig.events
WHERE board_id = $1
`, s.boardID).Scan(&state.LastSeq); err != nil {
		return types.LedgerState{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return types.LedgerState{}, err
	}
	return state, nil
}

func (s *MultisigPGStore) SaveRoster(ctx context.Context, members []types.Identity, event types.Event) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	if _, err := tx.Exec(ctx, `DELETE FROM multisig.roster_members WHERE board_id = $1;`, s.boardID); err != nil {
		return err
	}
	for i, m := range members {
		if _, err := tx.Exec(ctx, `
INSERT INTO multisig.roster_members (board_id, position, member)
VALUES ($1, $2, $3)
`, s.boardID, i, string(m)); err != nil {
			return err
		}
	}
	if err := s.insertEvents(ctx, tx, []types.Event{event}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *MultisigPGStore) CommitMutation(ctx context.Context, m types.Mutation, effect func(ctx context.Context) error) error {
	if len(m.Action.Approvals) == 0 || m.Action.Approvals[len(m.Action.Approvals)-1] != m.Approver {
		return errors.New("multisig: mutation approver must be the last recorded approval")
	}

	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	a := m.Action
	switch m.Kind {
	case types.MutationPropose:
		payload := a.Payload
		if payload == nil {
			payload = []byte{}
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO multisig.actions (board_id, action_id, target, description, payload, executed)
VALUES ($1, $2, $3, $4, $5, $6)
`, s.boardID, int64(a.ID), string(a.Target), a.Description, payload, a.Executed); err != nil {
			return err
		}
	case types.MutationApprove:
		tag, err := tx.Exec(ctx, `
UPDATE multisig.actions
SET executed = $3
WHERE board_id = $1 AND action_id = $2 AND executed = false
`, s.boardID, int64(a.ID), a.Executed)
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			return fmt.Errorf("multisig: action %d is missing or already executed", a.ID)
		}
	default:
		return fmt.Errorf("multisig: unknown mutation kind %q", m.Kind)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO multisig.action_approvals (board_id, action_id, position, approver)
VALUES ($1, $2, $3, $4)
`, s.boardID, int64(a.ID), len(a.Approvals)-1, string(m.Approver)); err != nil {
		return err
	}

	if err := s.insertEvents(ctx, tx, m.Events); err != nil {
		return err
	}

	if effect == nil {
		return tx.Commit(ctx)
	}
	if err := effect(ctx); err != nil {
		return err
	}
	// The target has been called; a cancelled request must not abort the
	// commit that records it.
	if err := tx.Commit(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("%w: action %d: %w", ports.ErrEffectUnrecorded, a.ID, err)
	}
	return nil
}

func (s *MultisigPGStore) insertEvents(ctx context.Context, tx pgx.Tx, events []types.Event) error {
	for _, ev := range events {
		body, err := marshalJSON(ev)
		if err != nil {
			return err
		}
		var actionID any
		if ev.ActionID != nil {
			actionID = int64(*ev.ActionID)
		}
		if _, err := tx.Exec(ctx, `
INSERT INTO multisig.events (board_id, seq, event_uuid, kind, action_id, body, created_at)
VALUES ($1, $2, $3::uuid, $4, $5, $6::jsonb, $7)
`, s.boardID, ev.Seq, ev.UUID, string(ev.Kind), actionID, body, ev.At); err != nil {
			return err
		}
	}
	return nil
}

func (s *MultisigPGStore) ListEvents(ctx context.Context, afterSeq int64, limit int) ([]types.Event, error) {
	tx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(context.Background()) }()

	rows, err := tx.Query(ctx, `
SELECT body
FROM multisig.events
WHERE board_id = $1 AND seq > $2
ORDER BY seq ASC
LIMIT $3
`, s.boardID, afterSeq, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]types.Event, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var ev types.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

var marshalJSON = json.Marshal
