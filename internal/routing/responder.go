package routing

import (
	"encoding/json"
	"net/http"
	"strings"
)

type ErrorEnvelope struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	TraceID string            `json:"trace_id"`
	Meta    ErrorEnvelopeMeta `json:"meta"`
}

type ErrorEnvelopeMeta struct {
	Path   string `json:"path"`
	Method string `json:"method"`
}

// WriteError renders the JSON error envelope. Ops routes answer in plain
// text unless the caller asks for JSON.
func WriteError(w http.ResponseWriter, r *http.Request, rc RouteClass, status int, code string, message string) {
	message = normalizeErrorMessage(code, message)
	if rc == RouteClassOps && !wantsJSON(r) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(message + "\n"))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorEnvelope{
		Code:    code,
		Message: message,
		TraceID: traceIDFromRequest(r),
		Meta: ErrorEnvelopeMeta{
			Path:   r.URL.Path,
			Method: r.Method,
		},
	})
}

func wantsJSON(r *http.Request) bool {
	return r.Header.Get("Accept") == "application/json" || r.Header.Get("Accept") == "application/json; charset=utf-8"
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

// normalizeErrorMessage keeps explicit messages and replaces placeholder ones
// ("approve_failed", "internal_error", the code itself) with a readable text.
func normalizeErrorMessage(code string, message string) string {
	if !isGenericErrorMessage(code, message) {
		return message
	}
	if known := knownErrorMessage(code); known != "" {
		return known
	}
	return humanizeErrorCode(code)
}

func isGenericErrorMessage(code string, message string) bool {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return true
	}
	if strings.EqualFold(msg, strings.TrimSpace(code)) {
		return true
	}
	if !strings.ContainsAny(msg, " .") && strings.Contains(msg, "_") {
		return strings.HasSuffix(msg, "_failed") || strings.HasSuffix(msg, "_error")
	}
	words := strings.Fields(msg)
	if len(words) <= 3 {
		last := words[len(words)-1]
		return last == "failed" || last == "error"
	}
	return false
}

func knownErrorMessage(code string) string {
	switch strings.TrimSpace(code) {
	case "forbidden":
		return "You are not allowed to perform this operation."
	case "unauthorized", "principal_missing":
		return "Caller identity is missing. Set the X-Principal header."
	case "invalid_request":
		return "Request parameters are invalid."
	case "MULTISIG_UNAUTHORIZED":
		return "Caller is not allowed to perform this operation on the board."
	case "MULTISIG_INVALID_TARGET":
		return "Target address is invalid or not allowed."
	case "MULTISIG_ACTION_NOT_FOUND":
		return "Action not found."
	case "MULTISIG_ALREADY_APPROVED":
		return "Caller has already approved this action."
	case "MULTISIG_ALREADY_EXECUTED":
		return "Action has already been executed."
	case "MULTISIG_EXECUTION_FAILED":
		return "Target call failed; nothing was recorded."
	case "MULTISIG_EXECUTION_UNCONFIRMED":
		return "Target call ran but could not be recorded; the action is blocked."
	case "MULTISIG_INVALID_MEMBER":
		return "Roster contains an invalid member address."
	case "MULTISIG_INVALID_PAGE":
		return "Page offset and limit must not be negative."
	default:
		return ""
	}
}

func humanizeErrorCode(code string) string {
	words := strings.FieldsFunc(strings.ToLower(strings.TrimSpace(code)), func(r rune) bool {
		return r == '_' || r == '-'
	})
	if len(words) == 0 {
		return "Request failed."
	}
	if len(words) == 1 {
		switch words[0] {
		case "failed":
			return "Request failed."
		case "error":
			return "Request error."
		}
	}
	return titleCaseWords(words) + "."
}

var upperWords = map[string]string{
	"api":  "API",
	"db":   "DB",
	"id":   "ID",
	"rls":  "RLS",
	"uuid": "UUID",
	"json": "JSON",
}

func titleCaseWords(words []string) string {
	if len(words) == 0 {
		return ""
	}
	out := make([]string, len(words))
	for i, w := range words {
		if upper, ok := upperWords[w]; ok {
			out[i] = upper
			continue
		}
		if i == 0 {
			out[i] = capitalizeWord(w)
			continue
		}
		out[i] = w
	}
	return strings.Join(out, " ")
}

func capitalizeWord(w string) string {
	if w == "" {
		return ""
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
