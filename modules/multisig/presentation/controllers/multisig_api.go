package controllers

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jacksonlee411/board-multisig/modules/multisig/domain/types"
	"github.com/jacksonlee411/board-multisig/modules/multisig/services"
	"github.com/jacksonlee411/board-multisig/pkg/httperr"
)

const (
	defaultPageLimit = 20
	maxBodyBytes     = 1 << 20
)

type PrincipalGetter func(ctx context.Context) (principal types.Identity, ok bool)

type MultisigService interface {
	SetRoster(ctx context.Context, caller types.Identity, members []types.Identity) error
	Roster() []types.Identity
	CurrentThreshold() int
	Propose(ctx context.Context, caller types.Identity, target types.Identity, description string, payload []byte) (types.ActionID, error)
	Approve(ctx context.Context, caller types.Identity, id types.ActionID) (bool, error)
	Actions(offset int, limit int) ([]types.Action, error)
	ActionCount() int
	Action(id types.ActionID) (types.Action, error)
	Approvers(id types.ActionID) ([]types.Identity, error)
	Events(ctx context.Context, afterSeq int64, limit int) ([]types.Event, error)
}

type MultisigController struct {
	Principal    PrincipalGetter
	Service      MultisigService
	MaxPageLimit int
	// Logger receives causes that are not echoed to the client. Nil means
	// slog.Default().
	Logger       *slog.Logger
}

type rosterAPIRequest struct {
	Members []string `json:"members"`
}

type proposeAPIRequest struct {
	Target      string `json:"target"`
	Description string `json:"description"`
	PayloadHex  string `json:"payload_hex"`
}

type actionView struct {
	ID            types.ActionID   `json:"action_id"`
	Target        types.Identity   `json:"target"`
	Description   string           `json:"description"`
	PayloadHex    string           `json:"payload_hex"`
	ApprovalCount int              `json:"approval_count"`
	Approvers     []types.Identity `json:"approvers"`
	Executed      bool             `json:"executed"`
}

func newActionView(a types.Action) actionView {
	approvers := a.Approvals
	if approvers == nil {
		approvers = []types.Identity{}
	}
	return actionView{
		ID:            a.ID,
		Target:        a.Target,
		Description:   a.Description,
		PayloadHex:    "0x" + hex.EncodeToString(a.Payload),
		ApprovalCount: a.ApprovalCount(),
		Approvers:     approvers,
		Executed:      a.Executed,
	}
}

func (c MultisigController) HandleRosterAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		roster := c.Service.Roster()
		if roster == nil {
			roster = []types.Identity{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"members":   roster,
			"size":      len(roster),
			"threshold": c.Service.CurrentThreshold(),
		})
		return

	case http.MethodPut:
		caller, ok := c.principal(w, r)
		if !ok {
			return
		}
		var req rosterAPIRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Members == nil {
			writeError(w, r, http.StatusBadRequest, "missing_members", "members is required")
			return
		}
		members := make([]types.Identity, 0, len(req.Members))
		for _, m := range req.Members {
			members = append(members, types.NormalizeIdentity(m))
		}
		if err := c.Service.SetRoster(r.Context(), caller, members); err != nil {
			c.writeServiceError(w, r, err, "set roster failed")
			return
		}
		roster := c.Service.Roster()
		writeJSON(w, http.StatusOK, map[string]any{
			"members":   roster,
			"size":      len(roster),
			"threshold": c.Service.CurrentThreshold(),
		})
		return

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
}

func (c MultisigController) HandleActionsAPI(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offset, limit, ok := c.page(w, r, "offset")
		if !ok {
			return
		}
		actions, err := c.Service.Actions(offset, limit)
		if err != nil {
			c.writeServiceError(w, r, err, "list failed")
			return
		}
		views := make([]actionView, 0, len(actions))
		for _, a := range actions {
			views = append(views, newActionView(a))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"actions": views,
			"total":   c.Service.ActionCount(),
			"offset":  offset,
			"limit":   limit,
		})
		return

	case http.MethodPost:
		caller, ok := c.principal(w, r)
		if !ok {
			return
		}
		var req proposeAPIRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		payload, err := decodePayloadHex(req.PayloadHex)
		if err != nil {
			c.writeServiceError(w, r, err, "invalid payload_hex")
			return
		}
		id, err := c.Service.Propose(r.Context(), caller, types.NormalizeIdentity(req.Target), req.Description, payload)
		if err != nil {
			c.writeServiceError(w, r, err, "propose failed")
			return
		}
		a, err := c.Service.Action(id)
		if err != nil {
			c.writeServiceError(w, r, err, "propose failed")
			return
		}
		writeJSON(w, http.StatusCreated, newActionView(a))
		return

	default:
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
}

func (c MultisigController) HandleActionAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	id, ok := actionIDFromPath(w, r)
	if !ok {
		return
	}
	a, err := c.Service.Action(id)
	if err != nil {
		c.writeServiceError(w, r, err, "get failed")
		return
	}
	writeJSON(w, http.StatusOK, newActionView(a))
}

func (c MultisigController) HandleApproversAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	id, ok := actionIDFromPath(w, r)
	if !ok {
		return
	}
	approvers, err := c.Service.Approvers(id)
	if err != nil {
		c.writeServiceError(w, r, err, "get failed")
		return
	}
	if approvers == nil {
		approvers = []types.Identity{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action_id":      id,
		"approvers":      approvers,
		"approval_count": len(approvers),
	})
}

func (c MultisigController) HandleApprovalsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	caller, ok := c.principal(w, r)
	if !ok {
		return
	}
	id, ok := actionIDFromPath(w, r)
	if !ok {
		return
	}
	executed, err := c.Service.Approve(r.Context(), caller, id)
	if err != nil {
		c.writeServiceError(w, r, err, "approve failed")
		return
	}
	a, err := c.Service.Action(id)
	if err != nil {
		c.writeServiceError(w, r, err, "approve failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"action_id":          id,
		"approval_count":     a.ApprovalCount(),
		"executed":           a.Executed,
		"executed_this_call": executed,
	})
}

func (c MultisigController) HandleEventsAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	after, limit, ok := c.page(w, r, "after")
	if !ok {
		return
	}
	events, err := c.Service.Events(r.Context(), int64(after), limit)
	if err != nil {
		c.writeServiceError(w, r, err, "list events failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"events": events,
		"after":  after,
		"limit":  limit,
	})
}

func (c MultisigController) principal(w http.ResponseWriter, r *http.Request) (types.Identity, bool) {
	if c.Principal == nil {
		writeError(w, r, http.StatusUnauthorized, "principal_missing", "principal missing")
		return "", false
	}
	p, ok := c.Principal(r.Context())
	if !ok || p.IsZero() {
		writeError(w, r, http.StatusUnauthorized, "principal_missing", "principal missing")
		return "", false
	}
	return p, true
}

func (c MultisigController) page(w http.ResponseWriter, r *http.Request, startParam string) (start int, limit int, ok bool) {
	q := r.URL.Query()
	start, limit = 0, defaultPageLimit
	if raw := strings.TrimSpace(q.Get(startParam)); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_page", "invalid "+startParam)
			return 0, 0, false
		}
		start = v
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, r, http.StatusBadRequest, "invalid_page", "invalid limit")
			return 0, 0, false
		}
		limit = v
	}
	if c.MaxPageLimit > 0 && limit > c.MaxPageLimit {
		limit = c.MaxPageLimit
	}
	return start, limit, true
}

func actionIDFromPath(w http.ResponseWriter, r *http.Request) (types.ActionID, bool) {
	raw := strings.TrimSpace(r.PathValue("id"))
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		writeError(w, r, http.StatusBadRequest, "invalid_action_id", "invalid action id")
		return 0, false
	}
	return types.ActionID(v), true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		writeError(w, r, http.StatusBadRequest, "bad_json", "bad json")
		return false
	}
	return true
}

// decodePayloadHex accepts calldata with or without the 0x prefix; an empty
// string is an empty payload.
func decodePayloadHex(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "0x"), "0X")
	if raw == "" {
		return []byte{}, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, httperr.WrapBadRequest("payload_hex is not valid hex", err)
	}
	return b, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusForError maps the engine taxonomy onto HTTP. Unknown errors fall back
// to postgres classification and then 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusForbidden, services.ErrorCode(err)
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound, services.ErrorCode(err)
	case errors.Is(err, services.ErrAlreadyApproved), errors.Is(err, services.ErrAlreadyExecuted):
		return http.StatusConflict, services.ErrorCode(err)
	case errors.Is(err, services.ErrInvalidTarget), errors.Is(err, services.ErrInvalidMember):
		return http.StatusUnprocessableEntity, services.ErrorCode(err)
	case errors.Is(err, services.ErrInvalidPage):
		return http.StatusBadRequest, services.ErrorCode(err)
	case errors.Is(err, services.ErrExecutionFailed):
		return http.StatusBadGateway, services.ErrorCode(err)
	case errors.Is(err, services.ErrExecutionUnconfirmed):
		return http.StatusInternalServerError, services.ErrorCode(err)
	case httperr.IsBadRequest(err), isPgInvalidInput(err):
		return http.StatusBadRequest, "invalid_request"
	}
	code := stablePgMessage(err)
	if isStableDBCode(code) {
		return http.StatusConflict, code
	}
	return http.StatusInternalServerError, "internal_error"
}

const (
	executionFailedMessage      = "Target call failed; nothing was recorded."
	executionUnconfirmedMessage = "Target call ran but could not be recorded; the action is blocked."
)

// writeServiceError echoes validation causes to the caller. Target and
// storage causes stay in the log.
func (c MultisigController) writeServiceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status, code := statusForError(err)
	switch {
	case status == http.StatusBadRequest:
		message = err.Error()
	case errors.Is(err, services.ErrExecutionFailed):
		message = executionFailedMessage
	case errors.Is(err, services.ErrExecutionUnconfirmed):
		message = executionUnconfirmedMessage
	}
	if status >= http.StatusInternalServerError {
		logger := c.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.LogAttrs(r.Context(), slog.LevelError, "multisig.request_failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("code", code),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, r, status, code, message)
}

type errorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    errorEnvelopeMeta `json:"meta"`
}

type errorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: errorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func pgErrorMessage(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		msg := strings.TrimSpace(pgErr.Message)
		if msg != "" {
			return msg
		}
	}
	return "UNKNOWN"
}

func pgErrorCode(err error) string {
	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		return strings.TrimSpace(pgErr.Code)
	}
	return ""
}

func isPgInvalidInput(err error) bool {
	switch pgErrorCode(err) {
	case "22P02", "22003", "22007", "22008":
		return true
	default:
		return false
	}
}

func traceIDFromRequest(r *http.Request) string {
	traceparent := strings.TrimSpace(r.Header.Get("traceparent"))
	if traceparent == "" {
		return ""
	}
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return ""
	}
	traceID := strings.ToLower(parts[1])
	if len(traceID) != 32 || traceID == "00000000000000000000000000000000" {
		return ""
	}
	for _, ch := range traceID {
		if (ch < '0' || ch > '9') && (ch < 'a' || ch > 'f') {
			return ""
		}
	}
	return traceID
}

func stablePgMessage(err error) string {
	msg := pgErrorMessage(err)
	if isStableDBCode(msg) {
		return msg
	}

	if pgErr, ok := errors.AsType[*pgconn.PgError](err); ok && pgErr != nil {
		switch strings.TrimSpace(pgErr.ConstraintName) {
		case "action_approvals_unique_approver":
			return "MULTISIG_ALREADY_APPROVED"
		case "roster_members_unique":
			return "MULTISIG_INVALID_MEMBER"
		}
	}
	return err.Error()
}

func isStableDBCode(code string) bool {
	code = strings.TrimSpace(code)
	if code == "" || code == "UNKNOWN" {
		return false
	}
	for i := 0; i < len(code); i++ {
		ch := code[i]
		if ch >= 'A' && ch <= 'Z' {
			continue
		}
		if ch >= '0' && ch <= '9' {
			continue
		}
		if ch == '_' {
			continue
		}
		return false
	}
	if code[0] < 'A' || code[0] > 'Z' {
		return false
	}
	return true
}
