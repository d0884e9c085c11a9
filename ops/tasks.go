package ops

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/evan-idocoding/ztick"
	"github.com/evan-idocoding/ztick/rt/coro"
)

// SnapshotSource provides the latest published scheduler snapshot. It must be safe for concurrent
// use; *ztick.Loop and *coro.Scheduler (with WithSnapshotPublishing) both satisfy it.
type SnapshotSource interface {
	LastSnapshot() (coro.Snapshot, bool)
}

// TaskStopper stops a task by ID from any goroutine. *ztick.Loop satisfies it.
type TaskStopper interface {
	StopTask(ctx context.Context, id uint64) (coro.Status, error)
}

// TaskController is what TaskStopHandler needs: a stopper plus a snapshot to apply name guards.
type TaskController interface {
	SnapshotSource
	TaskStopper
}

type taskOpsConfig struct {
	format Format
	guard  func(name string) bool
}

// TaskOption configures the task handlers.
type TaskOption func(*taskOpsConfig)

// WithTaskDefaultFormat sets the default response format. ?format=json|text overrides it.
func WithTaskDefaultFormat(f Format) TaskOption {
	return func(c *taskOpsConfig) { c.format = f }
}

// WithTaskNameGuard restricts the tasks the handlers expose and may stop. Tasks whose name fails
// fn are hidden from snapshots, and stopping them returns 403.
func WithTaskNameGuard(fn func(name string) bool) TaskOption {
	return func(c *taskOpsConfig) { c.guard = fn }
}

// WithTaskAllowPrefixes is WithTaskNameGuard allowing names with one of the given prefixes.
// Blank prefixes are ignored; with none left, every task is denied.
func WithTaskAllowPrefixes(prefixes ...string) TaskOption {
	var ps []string
	for _, p := range prefixes {
		if p = strings.TrimSpace(p); p != "" {
			ps = append(ps, p)
		}
	}
	return WithTaskNameGuard(func(name string) bool {
		for _, p := range ps {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
		return false
	})
}

// WithTaskAllowNames is WithTaskNameGuard allowing exactly the given names.
func WithTaskAllowNames(names ...string) TaskOption {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			set[n] = struct{}{}
		}
	}
	return WithTaskNameGuard(func(name string) bool {
		_, ok := set[name]
		return ok
	})
}

func applyTaskOptions(opts []TaskOption) taskOpsConfig {
	cfg := taskOpsConfig{format: FormatText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	cfg.format = normalizeFormat(cfg.format)
	return cfg
}

func (c taskOpsConfig) allowed(name string) bool {
	return c.guard == nil || c.guard(name)
}

// TasksSnapshotHandler returns a GET/HEAD handler listing the tasks of the latest snapshot.
//
// Query filters: ?name=<exact name>, ?state=running|succeeded|failed|stopped.
// It responds 503 until src has published a snapshot.
func TasksSnapshotHandler(src SnapshotSource, opts ...TaskOption) http.Handler {
	if src == nil {
		panic("ops: nil SnapshotSource")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		snap, ok := src.LastSnapshot()
		if !ok {
			writeError(w, r, format, http.StatusServiceUnavailable, "no snapshot yet")
			return
		}
		name, _ := getQueryRequired(r, "name")
		state, _ := getQueryRequired(r, "state")

		resp := tasksResponse{OK: true, TakenAt: snap.TakenAt, SubTasks: snap.SubTasks, Tasks: []taskStatus{}}
		for _, st := range snap.Tasks {
			if !cfg.allowed(st.Name) || (name != "" && st.Name != name) || (state != "" && st.State.String() != state) {
				continue
			}
			resp.Tasks = append(resp.Tasks, toTaskStatus(st))
		}
		writeResponse(w, r, format, http.StatusOK, resp, func() string { return renderTasksText(resp) })
	})
}

// QueuesSnapshotHandler returns a GET/HEAD handler listing pending waits per (phase, domain).
func QueuesSnapshotHandler(src SnapshotSource, opts ...TaskOption) http.Handler {
	if src == nil {
		panic("ops: nil SnapshotSource")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			methodNotAllowed(w, r, format, "GET, HEAD")
			return
		}
		snap, ok := src.LastSnapshot()
		if !ok {
			writeError(w, r, format, http.StatusServiceUnavailable, "no snapshot yet")
			return
		}
		resp := queuesResponse{OK: true, TakenAt: snap.TakenAt, Queues: make([]queueStatus, 0, len(snap.Queues))}
		for _, q := range snap.Queues {
			resp.Queues = append(resp.Queues, queueStatus{Phase: q.Phase.String(), Domain: q.Domain.String(), Pending: q.Pending})
		}
		writeResponse(w, r, format, http.StatusOK, resp, func() string { return renderQueuesText(resp) })
	})
}

// TaskStopHandler returns a POST handler stopping the task given by ?id=<n>.
//
// It responds:
//   - 400 for a missing or malformed id
//   - 403 when the name guard rejects the task
//   - 404 for an unknown task
//   - 409 once the loop has exited
//   - 504 when the request context ends before the loop picks the stop up
//
// Stopping a task that already finished is not an error; the response carries its final state.
func TaskStopHandler(c TaskController, opts ...TaskOption) http.Handler {
	if c == nil {
		panic("ops: nil TaskController")
	}
	cfg := applyTaskOptions(opts)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		format := formatFromRequest(r, cfg.format)
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, format, "POST")
			return
		}
		raw, ok := getQueryRequired(r, "id")
		if !ok {
			writeError(w, r, format, http.StatusBadRequest, "missing id")
			return
		}
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			writeError(w, r, format, http.StatusBadRequest, "invalid id")
			return
		}
		if cfg.guard != nil {
			snap, _ := c.LastSnapshot()
			st, found := snap.Get(id)
			if !found {
				writeError(w, r, format, http.StatusNotFound, "unknown task")
				return
			}
			if !cfg.guard(st.Name) {
				writeError(w, r, format, http.StatusForbidden, "task not allowed")
				return
			}
		}

		st, err := c.StopTask(r.Context(), id)
		if err != nil {
			writeError(w, r, format, mapStopErrorToStatus(err), err.Error())
			return
		}
		resp := taskStopResponse{OK: true, Task: toTaskStatus(st)}
		writeResponse(w, r, format, http.StatusOK, resp, func() string {
			var b strings.Builder
			appendTaskLines(&b, resp.Task)
			return b.String()
		})
	})
}

func mapStopErrorToStatus(err error) int {
	switch {
	case errors.Is(err, ztick.ErrUnknownTask):
		return http.StatusNotFound
	case errors.Is(err, ztick.ErrLoopClosed):
		return http.StatusConflict
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type taskTag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type taskStatus struct {
	ID         uint64    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Tags       []taskTag `json:"tags,omitempty"`
	State      string    `json:"state"`
	Released   bool      `json:"released"`
	Resumes    uint64    `json:"resumes"`
	StartedAt  float64   `json:"started_at"`
	FinishedAt float64   `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

func toTaskStatus(st coro.Status) taskStatus {
	out := taskStatus{
		ID:         st.ID,
		Name:       st.Name,
		State:      st.State.String(),
		Released:   st.Released,
		Resumes:    st.Resumes,
		StartedAt:  st.StartedAt,
		FinishedAt: st.FinishedAt,
		Error:      st.Err,
	}
	for _, t := range st.Tags {
		out.Tags = append(out.Tags, taskTag{Key: t.Key, Value: t.Value})
	}
	return out
}

type tasksResponse struct {
	OK       bool         `json:"ok"`
	TakenAt  float64      `json:"taken_at"`
	SubTasks int          `json:"sub_tasks"`
	Tasks    []taskStatus `json:"tasks"`
}

type queueStatus struct {
	Phase   string `json:"phase"`
	Domain  string `json:"domain"`
	Pending int    `json:"pending"`
}

type queuesResponse struct {
	OK      bool          `json:"ok"`
	TakenAt float64       `json:"taken_at"`
	Queues  []queueStatus `json:"queues"`
}

type taskStopResponse struct {
	OK   bool       `json:"ok"`
	Task taskStatus `json:"task"`
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// renderTasksText renders one line per field: task\t<id>\t<field>\t<value>.
func renderTasksText(resp tasksResponse) string {
	var b strings.Builder
	b.WriteString("scheduler\ttaken_at\t" + formatSeconds(resp.TakenAt) + "\n")
	b.WriteString("scheduler\tsub_tasks\t" + strconv.Itoa(resp.SubTasks) + "\n")
	for _, t := range resp.Tasks {
		appendTaskLines(&b, t)
	}
	return b.String()
}

func appendTaskLines(b *strings.Builder, t taskStatus) {
	prefix := "task\t" + strconv.FormatUint(t.ID, 10) + "\t"
	line := func(field, value string) {
		b.WriteString(prefix + field + "\t" + value + "\n")
	}
	if t.Name != "" {
		line("name", escapeTextField(t.Name))
	}
	line("state", t.State)
	line("released", strconv.FormatBool(t.Released))
	line("resumes", strconv.FormatUint(t.Resumes, 10))
	line("started_at", formatSeconds(t.StartedAt))
	if t.FinishedAt != 0 {
		line("finished_at", formatSeconds(t.FinishedAt))
	}
	for _, tag := range t.Tags {
		line("tag."+escapeTextField(tag.Key), escapeTextField(tag.Value))
	}
	if t.Error != "" {
		line("error", escapeTextField(t.Error))
	}
}

func renderQueuesText(resp queuesResponse) string {
	var b strings.Builder
	for _, q := range resp.Queues {
		b.WriteString("queue\t" + q.Phase + "\t" + q.Domain + "\tpending\t" + strconv.Itoa(q.Pending) + "\n")
	}
	return b.String()
}
