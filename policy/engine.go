package policy

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/moby/patternmatcher"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/grovetools/warden/command"
	"github.com/grovetools/warden/config"
	"github.com/grovetools/warden/errors"
	"github.com/grovetools/warden/git"
	"github.com/grovetools/warden/logging"
	"github.com/grovetools/warden/mode"
	"github.com/grovetools/warden/state"
	"github.com/grovetools/warden/util/pathutil"
)

// wardenBinary is the program name of this tool as the agent would type it.
const wardenBinary = "warden"

// introspection lists the warden subcommands the agent may run in any mode.
var introspection = []string{
	"mode", "mode show", "mode discussion", "mode discuss",
	"bypass", "bypass off",
	"todos", "todos show",
	"task", "task show",
	"state", "state show", "state schema",
	"classify *", "config", "config schema", "logs", "version", "help *",
}

// userOnly lists the warden subcommands only the user may run.
var userOnly = toSet(
	"mode implementation *", "mode implement *",
	"bypass on *",
	"state reset *",
	"todos clear *", "todos clear-stash *", "todos stash *", "todos restore *",
	"task start *", "task clear *", "task restore *",
	"flags clear *",
	"hook *",
)

func toSet(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, it := range items {
		m[it] = true
	}
	return m
}

// Decision is the verdict for one invocation.
type Decision struct {
	// ID correlates the decision with its log line.
	ID      string
	Allow   bool
	Message string
	Reason  string
	// Warning is a non-blocking notice, e.g. a branch check that failed open.
	Warning string
}

func (d Decision) verdict() string {
	if d.Allow {
		return "allow"
	}
	return "block"
}

func allow(reason string) Decision {
	return Decision{Allow: true, Reason: reason}
}

func block(reason, message string) Decision {
	return Decision{Reason: reason, Message: message}
}

// Engine evaluates tool invocations against the session state.
type Engine struct {
	cfg         *config.Config
	projectRoot string
	statePath   string
	classes     Classes
	classifier  *command.Classifier
	branch      *BranchChecker
	protected   *patternmatcher.PatternMatcher
	blocked     map[string]bool
	logger      *logrus.Entry
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	repo      git.RepositoryProvider
	statePath string
	logger    *logrus.Entry
}

// WithRepository replaces the git provider used by the branch check.
func WithRepository(repo git.RepositoryProvider) EngineOption {
	return func(o *engineOptions) { o.repo = repo }
}

// WithStatePath sets the state document guarded from generic tools.
func WithStatePath(path string) EngineOption {
	return func(o *engineOptions) { o.statePath = path }
}

// WithLogger replaces the engine logger.
func WithLogger(l *logrus.Entry) EngineOption {
	return func(o *engineOptions) { o.logger = l }
}

// NewEngine builds an engine for the project at projectRoot.
func NewEngine(cfg *config.Config, projectRoot string, opts ...EngineOption) (*Engine, error) {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.NewLogger("policy")
	}
	if o.repo == nil {
		o.repo = git.NewCLIRepository(cfg.Branch.Timeout.Std())
	}
	if o.statePath == "" {
		o.statePath = filepath.Join(cfg.ResolveStateDir(projectRoot), state.FileName)
	}

	protected, err := patternmatcher.New(cfg.ProtectedPaths)
	if err != nil {
		return nil, errors.ConfigInvalid(fmt.Sprintf("protected_paths: %v", err))
	}

	root := pathutil.Canonical(projectRoot)
	return &Engine{
		cfg:         cfg,
		projectRoot: root,
		statePath:   pathutil.Canonical(o.statePath),
		classes:     NewClasses(cfg.Tools.Classes),
		classifier: command.NewClassifier(
			command.WithExtraSafe(cfg.ExtraSafe()),
			command.WithReadOnly(cfg.Classifier.ReadOnlyCommands...),
			command.WithReadOnlySubcommands(wardenBinary, introspection...),
		),
		branch:    NewBranchChecker(root, o.repo, o.logger),
		protected: protected,
		blocked:   toSet(cfg.Tools.Blocked...),
		logger:    o.logger,
	}, nil
}

// Classes returns the tool name mapping the engine uses.
func (e *Engine) Classes() Classes {
	return e.classes
}

// Classifier returns the command classifier the engine uses.
func (e *Engine) Classifier() *command.Classifier {
	return e.classifier
}

// Evaluate decides whether inv may proceed. It may mutate st (todo storage,
// scope violations); callers run it inside Store.Edit so those changes
// commit atomically.
func (e *Engine) Evaluate(ctx context.Context, inv Invocation, st *state.SessionState) Decision {
	d := e.evaluate(ctx, inv, st)
	d.ID = ulid.Make().String()

	entry := e.logger.WithFields(logrus.Fields{
		"decision_id": d.ID,
		"tool":        inv.ToolName,
		"capability":  inv.Capability.String(),
		"mode":        string(st.Mode),
		"verdict":     d.verdict(),
		"reason":      d.Reason,
	})
	if d.Allow {
		entry.Info("Tool call allowed")
	} else {
		entry.Info("Tool call blocked")
	}
	return d
}

func (e *Engine) evaluate(ctx context.Context, inv Invocation, st *state.SessionState) Decision {
	if st.Flags.BypassMode {
		return allow("bypass mode")
	}

	if d, decided := e.guard(inv, st); decided {
		return d
	}

	if st.Mode != state.ModeImplementation {
		return e.discussion(inv)
	}

	switch inv.Capability {
	case TodoUpdate:
		return e.todoUpdate(inv, st)
	case FileMutation:
		return e.fileMutation(ctx, inv, st)
	}
	return allow("default")
}

// guard keeps generic tools away from warden's own state and user-only
// operations.
func (e *Engine) guard(inv Invocation, st *state.SessionState) (Decision, bool) {
	switch inv.Capability {
	case FileMutation:
		in, err := inv.File()
		if err != nil {
			return block("malformed input", err.Error()), true
		}
		if target := in.Target(); target != "" && e.isProtected(target) {
			return block("protected path", fmt.Sprintf(
				"%s is managed by warden and cannot be edited directly.\n"+
					"Use the todo tool for todo changes; the user changes modes with trigger phrases or `warden` commands.",
				target)), true
		}

	case Shell:
		in, err := inv.Shell()
		if err != nil {
			return block("malformed input", err.Error()), true
		}
		if sub, ok := userOnlyCommand(in.Command); ok {
			return block("user-only command", fmt.Sprintf(
				"`warden %s` can only be run by the user. Ask the user to run it if it is needed.", sub)), true
		}
		if target, ok := e.touchesProtected(in.Command); ok && !e.classifier.IsReadOnly(in.Command) {
			return block("protected path", fmt.Sprintf(
				"This command would modify %s, which is managed by warden.", target)), true
		}

	case TodoUpdate:
		if st.Flags.InSubagent {
			return block("todo update from subagent",
				"Sub-agents cannot change the todo list. Report back to the main agent instead."), true
		}
	}
	return Decision{}, false
}

func (e *Engine) discussion(inv Invocation) Decision {
	if inv.Capability == Shell {
		in, err := inv.Shell()
		if err != nil {
			return block("malformed input", err.Error())
		}
		v := e.classifier.Classify(in.Command)
		if v.ReadOnly {
			return allow("read-only command")
		}
		return block("write-like command in discussion", fmt.Sprintf(
			"[Discussion mode] `%s` is not read-only (%s).\n%s", v.Segment, v.Reason, e.alignmentHint()))
	}

	if e.blocked[inv.ToolName] {
		return block("blocked tool in discussion", fmt.Sprintf(
			"[Discussion mode] %s is not available yet.\n%s", inv.ToolName, e.alignmentHint()))
	}
	return allow("discussion default")
}

func (e *Engine) alignmentHint() string {
	hint := "Seek alignment first: describe the change you intend to make and wait for the user's approval."
	if len(e.cfg.Triggers.Implement) > 0 {
		hint += fmt.Sprintf(" The user switches to implementation mode by saying '%s'.", e.cfg.Triggers.Implement[0])
	}
	return hint
}

func (e *Engine) todoUpdate(inv Invocation, st *state.SessionState) Decision {
	in, err := inv.Todos()
	if err != nil {
		return block("malformed input", err.Error())
	}

	if st.Todos.HasActive() && !st.Todos.SameContents(in.Todos) {
		approved := st.Todos.Contents()
		proposed := make([]string, len(in.Todos))
		for i, t := range in.Todos {
			proposed[i] = t.Content
		}
		t := mode.Discuss(st)
		t.Cleared = st.Todos.ClearActive()

		return block("todo scope violation", fmt.Sprintf(
			"The approved todo list cannot be changed during implementation.\n"+
				"Approved: %s\nProposed: %s\n"+
				"%d todo(s) were cleared and the session is back in discussion mode. "+
				"Explain the change in scope to the user and agree on a new plan.",
			quoteList(approved), quoteList(proposed), t.Cleared))
	}

	res := st.Todos.Store(in.Todos, true)
	return allow(fmt.Sprintf("stored %d todo(s)", res.Count))
}

func (e *Engine) fileMutation(ctx context.Context, inv Invocation, st *state.SessionState) Decision {
	if st.CurrentTask.Branch == "" || !e.cfg.BranchEnforced() {
		return allow("no branch to enforce")
	}
	in, err := inv.File()
	if err != nil {
		return block("malformed input", err.Error())
	}
	if in.Target() == "" {
		return allow("no target path")
	}

	v := e.branch.Check(ctx, in.Target(), st.CurrentTask)
	if !v.Allow {
		return block("branch check", v.Message)
	}
	d := allow("branch check passed")
	if v.Warning != "" {
		d.Reason = "branch check failed open"
		d.Warning = v.Warning
	}
	return d
}

// isProtected reports whether path is the state document, one of its
// sidecar files, or matches a protected pattern.
func (e *Engine) isProtected(path string) bool {
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.projectRoot, path)
	}
	path = pathutil.Canonical(path)

	if path == e.statePath || strings.HasPrefix(path, e.statePath+".") {
		return true
	}

	if !pathutil.Within(e.projectRoot, path) {
		return false
	}
	rel, _ := filepath.Rel(e.projectRoot, path)
	matched, err := e.protected.MatchesOrParentMatches(rel)
	return err == nil && matched
}

// touchesProtected reports the first protected path named by cmd.
func (e *Engine) touchesProtected(cmd string) (string, bool) {
	for _, seg := range command.Segments(cmd) {
		for _, word := range command.Words(seg) {
			if strings.HasPrefix(word, "-") {
				continue
			}
			if e.isProtected(word) {
				return word, true
			}
		}
	}
	return "", false
}

// userOnlyCommand finds a warden invocation in cmd reserved for the user.
// warden may appear anywhere in a segment (after sudo, xargs, find -exec) and
// inside `sh -c` or `eval` text. A call whose arguments are only known at run
// time is reserved when they could name a reserved subcommand.
func userOnlyCommand(cmd string) (string, bool) {
	for _, seg := range command.Segments(cmd) {
		words := command.Words(seg)
		for i, w := range words {
			if payload, ok := command.ShellPayload(words[i:]); ok {
				if sub, found := userOnlyCommand(payload); found {
					return sub, true
				}
			}
			if filepath.Base(w) != wardenBinary {
				continue
			}

			args := dropValueFlags(words[i+1:])
			sub := strings.Join(args, " ")
			if command.MatchSubcommand(userOnly, args) {
				return sub, true
			}
			xargs := fedByXargs(words[:i])
			if xargs {
				sub = strings.TrimSpace(sub + " ...")
			}
			if reachesUserOnly(args, xargs) {
				return sub, true
			}
		}
	}
	return "", false
}

func fedByXargs(before []string) bool {
	for _, w := range before {
		if filepath.Base(w) == "xargs" {
			return true
		}
	}
	return false
}

// reachesUserOnly reports whether args could still name a reserved
// subcommand once run-time values are filled in. Words built from
// expansions, globs or {} are unknown, and xargs appends an unknown tail.
func reachesUserOnly(args []string, unknownTail bool) bool {
	var prefix []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") {
			continue
		}
		if strings.ContainsAny(a, "$`*?[{") {
			return userOnlyBelow(prefix)
		}
		prefix = append(prefix, a)
	}
	return unknownTail && userOnlyBelow(prefix)
}

// userOnlyBelow reports whether a reserved subcommand path extends prefix.
func userOnlyBelow(prefix []string) bool {
	p := strings.Join(prefix, " ")
	for path := range userOnly {
		if p == "" || strings.HasPrefix(path, p+" ") {
			return true
		}
	}
	return false
}

// valueFlags are warden's global flags that take a separate value.
var valueFlags = toSet("-C", "--project", "-c", "--config")

// dropValueFlags removes global flags and their values so they cannot hide
// the subcommand path.
func dropValueFlags(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		if valueFlags[args[i]] {
			i++
			continue
		}
		out = append(out, args[i])
	}
	return out
}

func quoteList(items []string) string {
	if len(items) == 0 {
		return "(none)"
	}
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = fmt.Sprintf("%q", it)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
