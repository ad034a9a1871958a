package bot

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"habitbot/internal/habit"
	"habitbot/internal/storage"
	kit "habitbot/internal/transport"
	logx "habitbot/pkg/logx"
	"habitbot/pkg/tgui"
)

// handler is one entry of the ordered message dispatch table. Entries are
// evaluated top to bottom and the first match wins, so state-specific
// handlers placed before the generic ones shadow them while the state is
// active.
type handler struct {
	name  string
	match func(m *kit.Message, st session) bool
	run   func(ctx context.Context, m *kit.Message, st session) error
}

// Router owns the conversation layer: it consumes transport updates and
// dispatches them to command, state and callback handlers.
type Router struct {
	store    storage.Store
	rec      *habit.Reconciler
	adapter  kit.Adapter
	sessions *sessions
	log      logx.Logger

	loc     *time.Location
	timeout time.Duration
	now     func() time.Time

	handlers []handler
}

func NewRouter(store storage.Store, rec *habit.Reconciler, adapter kit.Adapter, loc *time.Location, log logx.Logger) *Router {
	if loc == nil {
		loc = time.Local
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Router{
		store:    store,
		rec:      rec,
		adapter:  adapter,
		sessions: newSessions(),
		log:      log,
		loc:      loc,
		timeout:  30 * time.Second,
		now:      time.Now,
	}
	r.handlers = []handler{
		{name: "cmd.start", match: matchCommand("/start"), run: r.handleStart},
		{name: "cmd.add_habit", match: matchCommand("/add_habit"), run: r.handleAddPrompt},
		{name: "cmd.list_habits", match: matchCommand("/list_habits"), run: r.handleList},
		{name: "edit.name", match: matchState(StateAwaitingNewName), run: r.handleNewName},
		{name: "edit.time", match: matchState(StateAwaitingNewTime), run: r.handleNewTime},
		{name: "habit.add", match: matchContains(","), run: r.handleAddHabit},
	}
	return r
}

func matchCommand(cmd string) func(*kit.Message, session) bool {
	return func(m *kit.Message, _ session) bool {
		text := strings.TrimSpace(m.Text)
		// "/cmd@BotName args" forms count as the bare command too.
		first, _, _ := strings.Cut(text, " ")
		first, _, _ = strings.Cut(first, "@")
		return first == cmd
	}
}

func matchState(st State) func(*kit.Message, session) bool {
	return func(_ *kit.Message, cur session) bool { return cur.State == st }
}

func matchContains(sub string) func(*kit.Message, session) bool {
	return func(m *kit.Message, _ session) bool { return strings.Contains(m.Text, sub) }
}

// DispatchLoop consumes updates until the channel closes or ctx is done.
// Updates are handled one at a time; slow handlers only delay this user's
// queue, Telegram retries nothing.
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-updates:
			if !ok {
				return nil
			}
			r.dispatch(ctx, u)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, u kit.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler",
				logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch u.Kind {
	case kit.UpdateMessage:
		if u.Message != nil {
			r.dispatchMessage(ctx, u.Message)
		}
	case kit.UpdateCallback:
		if u.Callback != nil {
			r.dispatchCallback(ctx, u.Callback)
		}
	}
}

func (r *Router) dispatchMessage(ctx context.Context, m *kit.Message) {
	st := r.sessions.get(m.FromID)
	for _, h := range r.handlers {
		if !h.match(m, st) {
			continue
		}
		if err := h.run(ctx, m, st); err != nil {
			r.log.Error("message handler failed",
				logx.String("handler", h.name), logx.Int64("user_id", m.FromID), logx.Err(err))
		}
		return
	}
	// Free text without a comma and outside any edit state is ignored.
}

func (r *Router) dispatchCallback(ctx context.Context, cb *kit.Callback) {
	ns, action, payload, ok := tgui.ParseData(cb.Data)
	if !ok || ns != cbNS {
		r.answer(ctx, cb.ID, "")
		return
	}

	var err error
	switch action {
	case actionDone:
		err = r.cbDone(ctx, cb, payload)
	case actionEdit:
		err = r.cbEditMenu(ctx, cb, payload)
	case actionDelete:
		err = r.cbDelete(ctx, cb, payload)
	case actionEditName:
		err = r.cbEditName(ctx, cb, payload)
	case actionEditTime:
		err = r.cbEditTime(ctx, cb, payload)
	default:
		r.answer(ctx, cb.ID, "")
		return
	}
	if err != nil {
		r.log.Error("callback handler failed",
			logx.String("action", action), logx.Int64("user_id", cb.FromID), logx.Err(err))
	}
}

func (r *Router) reply(ctx context.Context, chatID int64, text string, markup any) {
	opt := &kit.SendOptions{}
	if markup != nil {
		opt.ReplyMarkupAdapter = markup
	}
	if _, err := r.adapter.SendText(ctx, kit.ChatTarget{ChatID: chatID}, text, opt); err != nil {
		r.log.Warn("send failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}

func (r *Router) answer(ctx context.Context, callbackID, text string) {
	if err := r.adapter.AnswerCallback(ctx, callbackID, text); err != nil {
		r.log.Warn("callback answer failed", logx.Err(err))
	}
}
